package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nhle/todoplus/internal/api"
	"github.com/nhle/todoplus/internal/auth"
)

const shutdownTimeout = 10 * time.Second

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides server.addr)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	e, err := setup(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	var verifier *auth.Verifier
	if e.cfg.Auth.Disabled {
		e.logger.Warn("authentication disabled")
	} else {
		verifier, err = auth.FromJWKS(ctx, e.cfg.Auth.JWKSURL, e.cfg.Auth.Audience, e.cfg.Auth.Issuer)
		if err != nil {
			return err
		}
	}

	loc, err := e.cfg.Location()
	if err != nil {
		return err
	}
	server := api.NewServer(e.svc, verifier, e.logger, api.Config{
		BodyLimit:    int64(e.cfg.Server.BodyLimitMB) << 20,
		CORSOrigins:  e.cfg.Server.CORSOrigins,
		ExposeErrors: e.cfg.Server.ExposeErrors,
		Location:     loc,
	})

	addr := e.cfg.Server.Addr
	if serveAddr != "" {
		addr = serveAddr
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		e.logger.Info("listening", "addr", addr, "db", e.cfg.Database.Path)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serving on %s: %w", addr, err)
		}
		return nil
	case <-ctx.Done():
	}

	e.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	return nil
}
