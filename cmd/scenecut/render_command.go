package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"scenecut/internal/pipeline"
)

func newRenderCommand(ctx *commandContext) *cobra.Command {
	var sceneIDs []string

	cmd := &cobra.Command{
		Use:   "render <analysis-id>",
		Short: "Re-render proxy and mezzanine segments",
		Long:  "Re-render derivatives from the stored master source. Existing segment files are overwritten in place.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withPipeline(func(p *pipeline.Pipeline) error {
				report, err := p.Render(cmd.Context(), args[0], sceneIDs, progressFor(ctx, cmd))
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, report)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Analysis %s\n", report.Analysis.ID)
				printRenderOutcome(out, report)
				if report.Failed > 0 {
					return fmt.Errorf("%d scenes failed to render", report.Failed)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVar(&sceneIDs, "scene", nil, "Scene ID to render (repeatable); default renders every scene")
	return cmd
}
