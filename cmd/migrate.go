package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or upgrade the database schema",
	Args:  cobra.NoArgs,
	RunE:  runMigrate,
}

func runMigrate(cmd *cobra.Command, args []string) error {
	// Opening the store applies pending migrations.
	e, err := setup(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	version, err := e.store.SchemaVersion(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Schema at version %d (%s)\n", version, e.cfg.Database.Path)
	return nil
}
