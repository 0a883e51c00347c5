package main

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"scenecut/internal/derivcache"
	"scenecut/internal/pipeline"
)

func newCacheCommand(ctx *commandContext) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and prune rendered segments",
	}

	cacheCmd.AddCommand(newCacheStatsCommand(ctx))
	cacheCmd.AddCommand(newCachePruneCommand(ctx))

	return cacheCmd
}

func newCacheStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show segment storage usage",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withPipeline(func(p *pipeline.Pipeline) error {
				stats, err := p.Cache().Stats(cmd.Context())
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, stats)
				}
				out := cmd.OutOrStdout()
				limit := "unlimited"
				if stats.MaxBytes > 0 {
					limit = humanBytes(stats.MaxBytes)
				}
				fmt.Fprintf(out, "Analyses: %d\n", stats.Entries)
				fmt.Fprintf(out, "Size:     %s / %s\n", humanBytes(stats.TotalBytes), limit)
				fmt.Fprintf(out, "Disk:     %s free (%.1f%%)\n", humanize.IBytes(stats.FreeBytes), stats.FreeRatio*100)
				printCacheEntries(out, stats.EntrySummaries)
				return nil
			})
		},
	}
}

func printCacheEntries(out io.Writer, entries []derivcache.EntrySummary) {
	if len(entries) == 0 {
		fmt.Fprintln(out, "Segments: none")
		return
	}
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{
			e.AnalysisID,
			fmt.Sprintf("%d", e.SegmentCount),
			humanBytes(e.SizeBytes),
			humanize.Time(e.ModifiedAt),
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Analysis", "Segments", "Size", "Updated"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignRight},
	))
}

func newCachePruneCommand(ctx *commandContext) *cobra.Command {
	var keep string

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Remove the oldest segments until the store is within budget",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withPipeline(func(p *pipeline.Pipeline) error {
				removed, err := p.Cache().Prune(cmd.Context(), keep)
				if ctx.jsonOutput() {
					if jsonErr := writeJSON(cmd, removed); jsonErr != nil {
						return jsonErr
					}
					return err
				}
				out := cmd.OutOrStdout()
				if len(removed) == 0 {
					fmt.Fprintln(out, "No segments pruned")
				}
				var freed int64
				for _, e := range removed {
					freed += e.SizeBytes
					fmt.Fprintf(out, "Pruned %s (%d segments, %s)\n", e.AnalysisID, e.SegmentCount, humanBytes(e.SizeBytes))
				}
				if freed > 0 {
					fmt.Fprintf(out, "Freed %s\n", humanBytes(freed))
				}
				return err
			})
		},
	}
	cmd.Flags().StringVar(&keep, "keep", "", "Analysis ID whose segments must survive")
	return cmd
}
