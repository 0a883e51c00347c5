package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"scenecut/internal/analysis"
	"scenecut/internal/config"
)

func newListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored analyses",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, store *analysis.Store) error {
				list, err := store.List(cmd.Context())
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, list)
				}
				out := cmd.OutOrStdout()
				if len(list) == 0 {
					fmt.Fprintln(out, "No analyses stored")
					return nil
				}
				rows := make([][]string, 0, len(list))
				for _, s := range list {
					rows = append(rows, []string{
						s.ID,
						s.FileName,
						string(s.Method),
						formatSeconds(s.Duration),
						fmt.Sprintf("%d", s.SceneCount),
						humanize.Time(s.UpdatedAt),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"ID", "File", "Method", "Duration", "Scenes", "Updated"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight},
				))
				return nil
			})
		},
	}
}

func newShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <analysis-id>",
		Short: "Show an analysis and its scenes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, store *analysis.Store) error {
				a, err := store.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, a)
				}
				out := cmd.OutOrStdout()
				m := a.Metadata
				fmt.Fprintf(out, "Analysis: %s\n", a.ID)
				fmt.Fprintf(out, "File:     %s\n", a.FileName)
				fmt.Fprintf(out, "Source:   %s\n", a.SourcePath)
				fmt.Fprintf(out, "Video:    %dx%d @ %.3g fps, %ss, %d frames\n", m.Width, m.Height, m.FPS, formatSeconds(m.Duration), m.FrameCount)
				if m.HasAudio() {
					fmt.Fprintf(out, "Audio:    %d ch, %d Hz\n", m.Audio.Channels, m.Audio.SampleRate)
				} else {
					fmt.Fprintln(out, "Audio:    none")
				}
				fmt.Fprintf(out, "Method:   %s\n", a.Method)
				printSceneTable(out, a)
				return nil
			})
		},
	}
}

func newDeleteCommand(ctx *commandContext) *cobra.Command {
	var keepFiles bool

	cmd := &cobra.Command{
		Use:   "delete <analysis-id>",
		Short: "Delete an analysis and its stored files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, store *analysis.Store) error {
				id := args[0]
				if err := store.Delete(cmd.Context(), id); err != nil {
					return err
				}
				if !keepFiles {
					if err := os.RemoveAll(store.Layout().Dir(id)); err != nil && !errors.Is(err, os.ErrNotExist) {
						return fmt.Errorf("remove analysis files: %w", err)
					}
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted analysis %s\n", id)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&keepFiles, "keep-files", false, "Keep the source copy, segments and exports on disk")
	return cmd
}
