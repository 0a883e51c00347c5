package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"scenecut/internal/analysis"
	"scenecut/internal/config"
	"scenecut/internal/scenes"
)

func newSceneCommand(ctx *commandContext) *cobra.Command {
	sceneCmd := &cobra.Command{
		Use:   "scene",
		Short: "Inspect and edit individual scenes",
	}
	sceneCmd.AddCommand(newSceneEditCommand(ctx))
	return sceneCmd
}

func newSceneEditCommand(ctx *commandContext) *cobra.Command {
	var (
		title     string
		tags      []string
		clearTags bool
	)

	cmd := &cobra.Command{
		Use:   "edit <analysis-id> <scene-id>",
		Short: "Change a scene's title or tags",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			edit := scenes.Edit{}
			if cmd.Flags().Changed("title") {
				edit.Title = &title
			}
			if cmd.Flags().Changed("tag") || clearTags {
				edit.Tags = tags
				edit.ReplaceTags = true
			}
			if edit.Title == nil && !edit.ReplaceTags {
				return errors.New("nothing to edit: pass --title, --tag or --clear-tags")
			}
			return ctx.withStore(func(_ *config.Config, store *analysis.Store) error {
				scene, err := store.EditScene(cmd.Context(), args[0], args[1], edit)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, scene)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Scene %s updated\n", scene.SceneID)
				fmt.Fprintf(out, "Title: %s\n", scene.Title)
				fmt.Fprintf(out, "Tags:  %s\n", strings.Join(scene.Tags, ", "))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "New scene title")
	cmd.Flags().StringSliceVar(&tags, "tag", nil, "Scene tag (repeatable); replaces existing tags")
	cmd.Flags().BoolVar(&clearTags, "clear-tags", false, "Remove every tag")
	return cmd
}
