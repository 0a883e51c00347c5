package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"scenecut/internal/deps"
	"scenecut/internal/preflight"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

var statusStyles = map[statusKind]struct{ label, color string }{
	statusInfo:  {"INFO", ansiBlue},
	statusOK:    {"OK", ansiGreen},
	statusWarn:  {"WARN", ansiYellow},
	statusError: {"ERROR", ansiRed},
}

const statusLabelWidth = 20

func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	style := statusStyles[kind]
	text := "[" + style.label + "]"
	if message != "" {
		text += " " + message
	}
	line := fmt.Sprintf("  %-*s %s", statusLabelWidth, label+":", text)
	if colorize {
		return style.color + line + ansiReset
	}
	return line
}

func printSection(out io.Writer, title string, colorize bool) {
	header := "== " + strings.TrimSpace(title) + " =="
	if colorize {
		header = ansiBlue + header + ansiReset
	}
	fmt.Fprintln(out, header)
}

type statusReport struct {
	Checks []preflight.Result `json:"checks"`
	Tools  []deps.Status      `json:"tools"`
	Ready  bool               `json:"ready"`
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check directories and external tools",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			checks := preflight.RunAll(cmd.Context(), cfg)
			report := statusReport{
				Checks: checks,
				Tools:  preflight.CheckSystemDeps(cfg),
				Ready:  preflight.Err(checks) == nil,
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, report)
			}

			out := cmd.OutOrStdout()
			colorize := isTerminal(out)
			printSection(out, "Environment", colorize)
			for _, c := range checks {
				kind := statusOK
				if !c.Passed {
					kind = statusError
				}
				fmt.Fprintln(out, renderStatusLine(c.Name, kind, c.Detail, colorize))
			}
			for _, tool := range report.Tools {
				if !tool.Optional {
					continue
				}
				kind, detail := statusOK, tool.Command
				if !tool.Available {
					kind, detail = statusWarn, tool.Detail+"; AI detection falls back to cuts"
				}
				fmt.Fprintln(out, renderStatusLine(tool.Name, kind, detail, colorize))
			}

			printSection(out, "Tools", colorize)
			versions := []preflight.Result{
				preflight.CheckToolVersion(cmd.Context(), "ffmpeg", cfg.FFmpegBinary()),
				preflight.CheckToolVersion(cmd.Context(), "ffprobe", deps.ResolveFFprobe(cfg.FFmpegBinary(), cfg.FFprobeBinary())),
			}
			for _, v := range versions {
				kind := statusInfo
				if !v.Passed {
					kind = statusWarn
				}
				fmt.Fprintln(out, renderStatusLine(v.Name, kind, v.Detail, colorize))
			}

			printSection(out, "Settings", colorize)
			fmt.Fprintln(out, renderStatusLine("Detection", statusInfo, cfg.Detection.Method, colorize))
			fmt.Fprintln(out, renderStatusLine("Render workers", statusInfo, fmt.Sprintf("%d", cfg.Render.Workers), colorize))
			fmt.Fprintln(out, renderStatusLine("Transcription", statusInfo, yesNo(cfg.Transcription.Enabled), colorize))
			fmt.Fprintln(out, renderStatusLine("Archive", statusInfo, yesNo(cfg.Archive.Enabled), colorize))

			if !report.Ready {
				return preflight.Err(checks)
			}
			return nil
		},
	}
}
