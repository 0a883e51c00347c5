package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"scenecut/internal/pipeline"
	"scenecut/internal/trim"
)

func newTrimCommand(ctx *commandContext) *cobra.Command {
	var start, duration float64

	cmd := &cobra.Command{
		Use:   "trim <analysis-id> <scene-id>",
		Short: "Trim a scene and regenerate its segments",
		Long: "Trim a scene to a window relative to its current start. Both segments are\n" +
			"re-rendered from the master source and replace the old files together.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("duration") {
				return errors.New("--duration is required")
			}
			return ctx.withPipeline(func(p *pipeline.Pipeline) error {
				scene, err := p.Trim(cmd.Context(), trim.Request{
					AnalysisID:  args[0],
					SceneID:     args[1],
					RelStart:    start,
					RelDuration: duration,
				})
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, scene)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Scene %s now spans %s-%s (%ss)\n",
					scene.SceneID,
					formatSeconds(scene.StartOriginal),
					formatSeconds(scene.EndOriginal),
					formatSeconds(scene.Duration),
				)
				return nil
			})
		},
	}
	cmd.Flags().Float64Var(&start, "start", 0, "Seconds to cut from the scene's current start")
	cmd.Flags().Float64Var(&duration, "duration", 0, "Length of the trimmed scene in seconds")
	return cmd
}
