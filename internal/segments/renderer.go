package segments

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"scenecut/internal/analysis"
	"scenecut/internal/fileutil"
	"scenecut/internal/logging"
	"scenecut/internal/media/ffmpeg"
	"scenecut/internal/metrics"
	"scenecut/internal/services"
)

// DefaultTimeout bounds a single tier render.
const DefaultTimeout = 600 * time.Second

// Options configures a Renderer.
type Options struct {
	Layout   analysis.Layout
	Profiles Profiles
	Timeout  time.Duration
	Workers  int
	Logger   *slog.Logger
	Recorder *metrics.Recorder
}

// Renderer cuts scene windows out of a master source with ffmpeg.
type Renderer struct {
	runner   *ffmpeg.Runner
	layout   analysis.Layout
	profiles Profiles
	timeout  time.Duration
	workers  int
	logger   *slog.Logger
	recorder *metrics.Recorder
}

// NewRenderer constructs a renderer.
func NewRenderer(runner *ffmpeg.Runner, opts Options) *Renderer {
	profiles := opts.Profiles
	if profiles == nil {
		profiles = DefaultProfiles()
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = 1
	}
	return &Renderer{
		runner:   runner,
		layout:   opts.Layout,
		profiles: profiles,
		timeout:  timeout,
		workers:  workers,
		logger:   logging.NewComponentLogger(opts.Logger, "segments"),
		recorder: opts.Recorder,
	}
}

// Target identifies one scene window to materialize.
type Target struct {
	AnalysisID string
	SceneID    string
	Source     string
	Start      float64
	End        float64
}

// Path returns the deterministic derivative path of t for tier.
func (r *Renderer) Path(t Target, tier Tier) string {
	return r.layout.SegmentPath(t.AnalysisID, t.SceneID, string(tier))
}

// Render materializes one tier of t at its deterministic path.
func (r *Renderer) Render(ctx context.Context, t Target, tier Tier) (string, error) {
	out := r.Path(t, tier)
	if err := r.RenderTo(ctx, t.Source, t.Start, t.End, tier, out); err != nil {
		return "", err
	}
	return out, nil
}

// RenderTo renders [start, end) of source with the tier profile into out.
// out is replaced only when the render succeeds.
func (r *Renderer) RenderTo(ctx context.Context, source string, start, end float64, tier Tier, out string) error {
	profile, ok := r.profiles[tier]
	if !ok {
		return services.Wrap(services.ErrValidation, "render", "select profile", string(tier), nil)
	}
	if _, err := os.Stat(source); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return services.NewError(services.KindSourceNotFound, "render "+string(tier), source, err)
		}
		return services.NewError(services.KindUnreadableMedia, "render "+string(tier), source, err)
	}
	duration := end - start
	if start < 0 || duration <= 0 {
		return services.NewError(services.KindInvalidSceneWindow, "render "+string(tier),
			fmt.Sprintf("window [%.3f, %.3f) is empty or negative", start, end), nil)
	}

	op := "render_" + string(tier)
	return r.recorder.Measure(ctx, op, map[string]any{"tier": string(tier), "duration": duration}, func(ctx context.Context) error {
		return r.renderTo(ctx, source, start, duration, tier, profile, out)
	})
}

func (r *Renderer) renderTo(ctx context.Context, source string, start, duration float64, tier Tier, profile Profile, out string) error {
	logger := logging.WithContext(ctx, r.logger).With(logging.String(logging.FieldTier, string(tier)))
	base := filepath.Base(out)
	staged, err := fileutil.StagePath(filepath.Dir(out), "."+strings.TrimSuffix(base, filepath.Ext(base))+".tmp-", filepath.Ext(base))
	if err != nil {
		return fmt.Errorf("stage %s: %w", out, err)
	}
	defer os.Remove(staged)

	args := []string{
		"-hide_banner", "-nostdin",
		"-y",
		"-ss", ffmpeg.FormatSeconds(start),
		"-i", source,
		"-t", ffmpeg.FormatSeconds(duration),
	}
	args = append(args, profile.Args()...)
	args = append(args,
		"-avoid_negative_ts", "make_zero",
		"-fflags", "+genpts",
		"-movflags", "+faststart",
		staged,
	)

	sampler := logging.NewProgressSampler(25)
	progress := &ffmpeg.ProgressWriter{OnProgress: func(seconds float64) {
		percent := min(seconds/duration*100, 100)
		if sampler.ShouldLog(percent, string(tier)) {
			logger.Debug("render progress", logging.Float64(logging.FieldProgressPercent, percent))
		}
	}}

	started := time.Now()
	if _, err := r.runner.Run(ctx, ffmpeg.Invocation{
		Operation: "render " + string(tier),
		Args:      args,
		Timeout:   r.timeout,
		Stderr:    progress,
	}); err != nil {
		return err
	}

	size, ok := fileutil.NonEmpty(staged)
	if !ok {
		return services.NewError(services.KindRenderVerificationFailed, "render "+string(tier),
			"ffmpeg exited 0 but produced no output", nil)
	}
	if err := os.Rename(staged, out); err != nil {
		return fmt.Errorf("commit %s: %w", out, err)
	}
	logger.Info("segment rendered",
		logging.String("path", out),
		logging.Int64("size_bytes", size),
		logging.Duration("elapsed", time.Since(started)),
	)
	return nil
}
