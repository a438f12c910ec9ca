package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// statsCmd prints the telemetry report
func statsCmd() *cobra.Command {
	var days int
	var asJSON bool
	var clear bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show usage and connection telemetry",
		Long: `Print a report of response times, timeout incidents, connection quality,
and the recommended timeout settings derived from recent history.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			eng, err := openEngine(ctx)
			if err != nil {
				return err
			}
			defer eng.close()

			if clear {
				eng.agg.Clear()
				fmt.Println("Telemetry log cleared.")
				return nil
			}

			if asJSON {
				data, err := eng.agg.Export()
				if err != nil {
					return fmt.Errorf("failed to export telemetry: %w", err)
				}
				fmt.Println(string(data))
				return nil
			}

			if days == 0 {
				days = cfg.Autosave.AnalyticsWindowDays
			}
			fmt.Print(eng.agg.Report(days))
			return nil
		},
	}

	cmd.Flags().IntVarP(&days, "days", "d", 0, "Window in days (defaults to configured analytics window)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Dump the raw event log as JSON")
	cmd.Flags().BoolVar(&clear, "clear", false, "Clear the telemetry log")

	return cmd
}
