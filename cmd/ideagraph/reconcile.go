package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Replay pending repairs and scan for drift once, then exit",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := newApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer a.close()

		rep, err := a.reconciler.RunOnce(cmd.Context())
		if err != nil {
			return fmt.Errorf("reconcile: %w", err)
		}
		out, _ := json.MarshalIndent(rep, "", "  ")
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return nil
	},
}
