package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/nhle/todoplus/internal/logging"
	"github.com/nhle/todoplus/internal/model"
	"github.com/nhle/todoplus/internal/service"
	"github.com/nhle/todoplus/internal/store"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:   "todoplus",
	Short: "todoplus: REST backend for projects, tasks and focus sessions",
	Long: `todoplus serves the to-do and productivity API backed by a local SQLite
database. Configuration is read from a YAML file and TODOPLUS_* environment
variables.`,
	SilenceUsage: true,
}

// Execute is the entry point called from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", model.DefaultConfigPath(), "path to the YAML config file")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(reconcileCmd)
	rootCmd.AddCommand(recomputeCmd)
	rootCmd.AddCommand(configCmd)
}

// env bundles what every subcommand needs.
type env struct {
	cfg    *model.AppConfig
	logger *slog.Logger
	store  *store.SQLiteStore
	svc    *service.Service
}

func (e *env) Close() error {
	return e.store.Close()
}

// setup loads configuration, builds the logger and opens the store.
func setup(cmd *cobra.Command) (*env, error) {
	cfg, err := model.LoadConfig(cfgPath)
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(cmd.ErrOrStderr(), cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	st, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return nil, err
	}
	logger.Debug("store opened", "path", cfg.Database.Path)

	svc := service.New(st,
		service.WithLogger(logger),
		service.WithLocation(loc),
		service.WithSessionLength(cfg.SessionDuration()),
	)
	return &env{cfg: cfg, logger: logger, store: st, svc: svc}, nil
}
