package trim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"scenecut/internal/analysis"
	"scenecut/internal/fileutil"
	"scenecut/internal/logging"
	"scenecut/internal/scenes"
	"scenecut/internal/segments"
	"scenecut/internal/services"
)

// durationSlack absorbs rounding between the probed duration and stored
// scene bounds.
const durationSlack = 0.01

// Request is a trim relative to the scene's original window.
type Request struct {
	AnalysisID  string
	SceneID     string
	RelStart    float64
	RelDuration float64
}

// Regenerator applies trims.
type Regenerator struct {
	store    *analysis.Store
	renderer *segments.Renderer
	logger   *slog.Logger
}

// NewRegenerator wires a regenerator to the store and renderer.
func NewRegenerator(store *analysis.Store, renderer *segments.Renderer, logger *slog.Logger) *Regenerator {
	return &Regenerator{
		store:    store,
		renderer: renderer,
		logger:   logging.NewComponentLogger(logger, "trim"),
	}
}

// Window computes the new source window of a trim. It rejects negative
// offsets, empty durations and windows past the source end.
func Window(scene scenes.Scene, sourceDuration, relStart, relDuration float64) (float64, float64, error) {
	if relStart < 0 {
		return 0, 0, invalid("relative start %.3f is negative", relStart)
	}
	if relDuration <= 0 {
		return 0, 0, invalid("relative duration %.3f must be positive", relDuration)
	}
	if scene.EndOriginal <= scene.StartOriginal {
		return 0, 0, invalid("scene %s has no original window", scene.SceneID)
	}
	start := scene.StartOriginal + relStart
	end := start + relDuration
	if sourceDuration > 0 && end > sourceDuration+durationSlack {
		return 0, 0, invalid("trim ends at %.3f beyond source duration %.3f", end, sourceDuration)
	}
	return start, end, nil
}

func invalid(format string, args ...any) error {
	return services.NewError(services.KindInvalidSceneWindow, "trim", fmt.Sprintf(format, args...), nil)
}

// Trim re-renders the scene over its new window and persists it.
func (r *Regenerator) Trim(ctx context.Context, req Request) (scenes.Scene, error) {
	ctx = services.WithAnalysisID(ctx, req.AnalysisID)
	ctx = services.WithSceneID(ctx, req.SceneID)
	ctx = services.WithStage(ctx, "trim")
	logger := logging.WithContext(ctx, r.logger)

	a, err := r.store.Get(ctx, req.AnalysisID)
	if err != nil {
		return scenes.Scene{}, err
	}
	scene, err := a.Scene(req.SceneID)
	if err != nil {
		return scenes.Scene{}, err
	}
	start, end, err := Window(*scene, a.Metadata.Duration, req.RelStart, req.RelDuration)
	if err != nil {
		return scenes.Scene{}, err
	}

	target := segments.Target{AnalysisID: a.ID, SceneID: scene.SceneID, Source: a.SourcePath, Start: start, End: end}
	swaps := make([]fileutil.Swap, 0, len(segments.Tiers))
	defer func() {
		for _, s := range swaps {
			_ = os.Remove(s.Staged)
		}
	}()
	for _, tier := range segments.Tiers {
		final := r.renderer.Path(target, tier)
		staged, err := fileutil.StagePath(filepath.Dir(final), ".trim-", ".mp4")
		if err != nil {
			return scenes.Scene{}, fmt.Errorf("stage %s segment: %w", tier, err)
		}
		swaps = append(swaps, fileutil.Swap{Staged: staged, Target: final})
		if err := r.renderer.RenderTo(ctx, a.SourcePath, start, end, tier, staged); err != nil {
			logging.WarnWithContext(logger, "trim render failed", "trim_render_failed",
				logging.String(logging.FieldTier, string(tier)),
				logging.ErrorKind(err),
				logging.Error(err),
				logging.String(logging.FieldImpact, "scene left unchanged"),
				logging.String(logging.FieldErrorHint, "check the source file and ffmpeg output"),
			)
			return scenes.Scene{}, err
		}
	}

	var (
		commit  *fileutil.Commit
		trimmed scenes.Scene
	)
	_, err = r.store.Update(ctx, a.ID, func(current *analysis.Analysis) error {
		s, err := current.Scene(req.SceneID)
		if err != nil {
			return err
		}
		commit, err = fileutil.CommitSwaps(swaps)
		if err != nil {
			return fmt.Errorf("replace segments: %w", err)
		}
		s.Retime(start, end)
		for _, tier := range segments.Tiers {
			path := r.renderer.Path(target, tier)
			url := analysis.SegmentURL(a.ID, s.SceneID, string(tier))
			if tier == segments.TierProxy {
				s.ProxyPath, s.ProxyURL = path, url
			} else {
				s.MezzaninePath, s.MezzanineURL = path, url
			}
		}
		trimmed = *s
		return nil
	})
	if err != nil {
		if rbErr := commit.Rollback(); rbErr != nil {
			err = errors.Join(err, fmt.Errorf("restore segments: %w", rbErr))
		}
		return scenes.Scene{}, err
	}
	commit.Finalize()

	logger.Info("scene trimmed",
		logging.Float64("start", trimmed.Start),
		logging.Float64("end", trimmed.End),
		logging.Float64("duration", trimmed.Duration),
	)
	return trimmed, nil
}
