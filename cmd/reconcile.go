package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var reconcileGrace time.Duration

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Remove unlinked projects and unreferenced attachments",
	Long: `reconcile deletes projects that no user links to and attachments that no
task references. Only rows older than the grace period are touched, so
requests still in flight are never affected.`,
	Args: cobra.NoArgs,
	RunE: runReconcile,
}

func init() {
	reconcileCmd.Flags().DurationVar(&reconcileGrace, "grace", 0, "minimum age of removed rows (default reconcile.grace_minutes)")
}

func runReconcile(cmd *cobra.Command, args []string) error {
	e, err := setup(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	grace := e.cfg.ReconcileGrace()
	if cmd.Flags().Changed("grace") {
		grace = reconcileGrace
	}

	res, err := e.svc.Reconcile(cmd.Context(), grace)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Removed %d project(s) and %d attachment(s) older than %s.\n",
		len(res.Projects), len(res.Attachments), grace)
	return nil
}
