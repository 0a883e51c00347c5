package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"scenecut/internal/analysis"
	"scenecut/internal/config"
	"scenecut/internal/pipeline"
)

func newAnalyzeCommand(ctx *commandContext) *cobra.Command {
	var noRender bool

	cmd := &cobra.Command{
		Use:   "analyze <video>",
		Short: "Detect scenes in a video and render their derivatives",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := config.ExpandPath(strings.TrimSpace(args[0]))
			if err != nil {
				return err
			}
			return ctx.withPipeline(func(p *pipeline.Pipeline) error {
				report, err := p.Analyze(cmd.Context(), source, pipeline.AnalyzeOptions{
					SkipRender: noRender,
					Progress:   progressFor(ctx, cmd),
				})
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, report)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Analysis %s: %d scenes (%s)\n", report.Analysis.ID, len(report.Analysis.Scenes), report.Analysis.Method)
				printSceneTable(out, report.Analysis)
				printRenderOutcome(out, report)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&noRender, "no-render", false, "Store scenes without rendering proxy and mezzanine segments")
	return cmd
}

func printRenderOutcome(out io.Writer, report *pipeline.Report) {
	if report.Rendered+report.Failed == 0 {
		return
	}
	fmt.Fprintf(out, "Rendered %d scenes, %d failed\n", report.Rendered, report.Failed)
	for _, f := range report.Failures {
		fmt.Fprintf(out, "  - scene %s %s: %s\n", shortID(f.SceneID), f.Tier, f.Kind)
	}
	for _, p := range report.Pruned {
		fmt.Fprintf(out, "Pruned segments of %s (%s)\n", shortID(p.AnalysisID), humanBytes(p.SizeBytes))
	}
}

func printSceneTable(out io.Writer, a *analysis.Analysis) {
	headers := []string{"#", "Scene", "Start", "End", "Duration", "Transition", "Volume", "High", "Title", "Tags", "Segments"}
	rows := make([][]string, 0, len(a.Scenes))
	for _, sc := range a.Scenes {
		var tiers []string
		if sc.ProxyURL != "" {
			tiers = append(tiers, "proxy")
		}
		if sc.MezzanineURL != "" {
			tiers = append(tiers, "mezzanine")
		}
		rows = append(rows, []string{
			fmt.Sprintf("%d", sc.Index),
			shortID(sc.SceneID),
			formatSeconds(sc.StartOriginal),
			formatSeconds(sc.EndOriginal),
			formatSeconds(sc.Duration),
			string(sc.TransitionType),
			fmt.Sprintf("%.3f", sc.AvgVolume),
			yesNo(bool(sc.HighEnergy)),
			sc.Title,
			strings.Join(sc.Tags, ", "),
			strings.Join(tiers, "+"),
		})
	}
	aligns := []columnAlignment{alignRight, alignLeft, alignRight, alignRight, alignRight, alignLeft, alignRight}
	fmt.Fprintln(out, renderTable(headers, rows, aligns))
}
