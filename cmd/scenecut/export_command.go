package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"scenecut/internal/config"
	"scenecut/internal/export"
	"scenecut/internal/pipeline"
)

func newExportCommand(ctx *commandContext) *cobra.Command {
	var (
		timelinePath string
		sceneIDs     []string
		name         string
		width        int
		height       int
		fps          float64
	)

	cmd := &cobra.Command{
		Use:   "export <analysis-id>",
		Short: "Concatenate mezzanine segments into one video",
		Long: "Export a timeline of mezzanine segments. The timeline comes from a JSON or\n" +
			"YAML file (--timeline) or from scene IDs in order (--scene); without either\n" +
			"every scene is exported. Passing --width, --height and --fps re-encodes to\n" +
			"that composition; otherwise segments are stream-copied.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			var composition *export.Composition
			if cmd.Flags().Changed("width") || cmd.Flags().Changed("height") || cmd.Flags().Changed("fps") {
				composition = &export.Composition{Width: width, Height: height, FPS: fps}
				if err := composition.Validate(); err != nil {
					return err
				}
			}
			return ctx.withPipeline(func(p *pipeline.Pipeline) error {
				timeline, err := loadTimeline(cmd, p, id, timelinePath, sceneIDs)
				if err != nil {
					return err
				}
				res, err := p.Export(cmd.Context(), export.Request{
					AnalysisID:  id,
					Timeline:    timeline,
					Composition: composition,
					Name:        name,
				})
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, res)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Exported %d segments to %s (%s, %s)\n",
					res.SegmentCount, res.OutputPath, humanBytes(res.Size), res.Elapsed.Round(time.Millisecond))
				if res.EDLPath != "" {
					fmt.Fprintf(out, "EDL: %s\n", res.EDLPath)
				}
				if res.ArchivePath != "" {
					fmt.Fprintf(out, "Archive: %s\n", res.ArchivePath)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&timelinePath, "timeline", "t", "", "Timeline file (JSON or YAML)")
	cmd.Flags().StringSliceVar(&sceneIDs, "scene", nil, "Scene ID in timeline order (repeatable)")
	cmd.Flags().StringVarP(&name, "name", "n", "", "Export name; sanitized and timestamped")
	cmd.Flags().IntVar(&width, "width", 0, "Composition width")
	cmd.Flags().IntVar(&height, "height", 0, "Composition height")
	cmd.Flags().Float64Var(&fps, "fps", 0, "Composition frame rate")
	cmd.MarkFlagsMutuallyExclusive("timeline", "scene")
	return cmd
}

func loadTimeline(cmd *cobra.Command, p *pipeline.Pipeline, id, path string, sceneIDs []string) (export.Timeline, error) {
	if path != "" {
		expanded, err := config.ExpandPath(path)
		if err != nil {
			return export.Timeline{}, err
		}
		data, err := os.ReadFile(expanded)
		if err != nil {
			return export.Timeline{}, fmt.Errorf("read timeline: %w", err)
		}
		return export.ParseTimeline(data)
	}
	a, err := p.Store().Get(cmd.Context(), id)
	if err != nil {
		return export.Timeline{}, err
	}
	return export.TimelineFromScenes(a, sceneIDs)
}
