package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var recomputeCmd = &cobra.Command{
	Use:   "recompute",
	Short: "Recompute every productivity total from its entries",
	Args:  cobra.NoArgs,
	RunE:  runRecompute,
}

func runRecompute(cmd *cobra.Command, args []string) error {
	e, err := setup(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	fixed, err := e.svc.RecomputeAll(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Repaired %d productivity record(s).\n", fixed)
	return nil
}
