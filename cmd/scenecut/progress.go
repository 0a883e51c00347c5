package main

import (
	"io"
	"os"
	"sync"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"scenecut/internal/segments"
)

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// renderProgress draws a bar on w while scenes render. It returns nil when w
// is not a terminal so piped output stays clean. The bar is created on the
// first callback because the scene count is only known after detection.
func renderProgress(w io.Writer) segments.ProgressFunc {
	if !isTerminal(w) {
		return nil
	}
	var (
		mu  sync.Mutex
		bar *progressbar.ProgressBar
	)
	return func(done, total int, _ segments.SceneResult) {
		mu.Lock()
		defer mu.Unlock()
		if bar == nil {
			bar = progressbar.NewOptions(total,
				progressbar.OptionSetWriter(w),
				progressbar.OptionSetDescription("Rendering scenes"),
				progressbar.OptionSetTheme(progressbar.Theme{
					Saucer:        "█",
					SaucerHead:    "█",
					SaucerPadding: "░",
					BarStart:      "▐",
					BarEnd:        "▌",
				}),
				progressbar.OptionShowCount(),
				progressbar.OptionSetWidth(40),
				progressbar.OptionSetRenderBlankState(true),
				progressbar.OptionClearOnFinish(),
			)
		}
		// Callbacks can arrive out of order; never move the bar backwards.
		if int64(done) > bar.State().CurrentNum {
			_ = bar.Set(done)
		}
		if done == total {
			_ = bar.Finish()
		}
	}
}

// progressFor returns the render progress bar for cmd, or nil for JSON output.
func progressFor(ctx *commandContext, cmd *cobra.Command) segments.ProgressFunc {
	if ctx.jsonOutput() {
		return nil
	}
	return renderProgress(cmd.ErrOrStderr())
}
