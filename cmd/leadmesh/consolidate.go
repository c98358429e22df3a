package main

import (
	"context"

	"github.com/spf13/cobra"
)

func newConsolidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "consolidate",
		Short: "Run one consolidation pass and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			report, err := a.consolidator.Run(context.Background())
			if err != nil {
				return err
			}
			a.logger.Info("consolidation complete",
				"scanned", report.Scanned,
				"promoted", report.Promoted,
				"failures", report.Failures,
			)
			return nil
		},
	}
}
