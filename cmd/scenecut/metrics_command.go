package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"scenecut/internal/analysis"
	"scenecut/internal/config"
	"scenecut/internal/metrics"
)

func newMetricsCommand(ctx *commandContext) *cobra.Command {
	var (
		analysisID string
		operation  string
		since      time.Duration
	)

	cmd := &cobra.Command{
		Use:   "metrics",
		Short: "Summarize recorded operation timings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := analysis.MetricsFilter{AnalysisID: analysisID, Operation: operation}
			if since > 0 {
				filter.Since = time.Now().Add(-since)
			}
			return ctx.withStore(func(_ *config.Config, store *analysis.Store) error {
				recorded, err := store.Metrics(cmd.Context(), filter)
				if err != nil {
					return err
				}
				summary := metrics.Summarize(recorded)
				if ctx.jsonOutput() {
					return writeJSON(cmd, summary)
				}
				out := cmd.OutOrStdout()
				if summary.Total == 0 {
					fmt.Fprintln(out, "No operations recorded")
					return nil
				}
				fmt.Fprintf(out, "Operations: %d (%d ok, %d failed, %.1f%% success)\n",
					summary.Total, summary.Successes, summary.Failures, summary.SuccessRate)
				rows := make([][]string, 0, len(summary.Operations))
				for _, op := range summary.Operations {
					rows = append(rows, []string{
						op.Operation,
						fmt.Sprintf("%d", op.Count),
						fmt.Sprintf("%.1f%%", op.SuccessRate),
						fmt.Sprintf("%.3f", op.Min),
						fmt.Sprintf("%.3f", op.Avg),
						fmt.Sprintf("%.3f", op.Max),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Operation", "Count", "Success", "Min s", "Avg s", "Max s"},
					rows,
					[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight},
				))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&analysisID, "analysis", "", "Only metrics for this analysis")
	cmd.Flags().StringVar(&operation, "operation", "", "Only metrics for this operation")
	cmd.Flags().DurationVar(&since, "since", 0, "Only metrics newer than this (e.g. 24h)")
	return cmd
}
