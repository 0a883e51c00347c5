package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"scenecut/internal/analysis"
	"scenecut/internal/logging"
	"scenecut/internal/segments"
	"scenecut/internal/services"
)

// Render regenerates derivatives for an existing analysis. sceneIDs limits
// the run to those scenes; empty renders every scene. Existing files are
// overwritten in place.
func (p *Pipeline) Render(ctx context.Context, id string, sceneIDs []string, progress segments.ProgressFunc) (*Report, error) {
	started := time.Now()
	ctx = services.WithAnalysisID(ctx, id)
	a, err := p.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	for _, sceneID := range sceneIDs {
		if _, err := a.Scene(sceneID); err != nil {
			return nil, err
		}
	}
	logger, closer := p.journal(ctx, id)
	defer closer.Close()

	report := &Report{Analysis: a}
	if err := p.renderScenes(ctx, a, sceneIDs, progress, report, logger); err != nil {
		return report, err
	}
	report.Pruned = p.prune(ctx, id, logger)
	report.Elapsed = time.Since(started)
	return report, nil
}

// renderScenes renders the selected scenes and stores the derivative
// locations of every tier that succeeded.
func (p *Pipeline) renderScenes(ctx context.Context, a *analysis.Analysis, only []string, progress segments.ProgressFunc, report *Report, logger *slog.Logger) error {
	ctx = services.WithStage(ctx, "render")
	targets := make([]segments.Target, 0, len(a.Scenes))
	for _, sc := range a.Scenes {
		if len(only) > 0 && !slices.Contains(only, sc.SceneID) {
			continue
		}
		targets = append(targets, segments.Target{
			AnalysisID: a.ID,
			SceneID:    sc.SceneID,
			Source:     a.SourcePath,
			Start:      sc.StartOriginal,
			End:        sc.EndOriginal,
		})
	}

	results := p.Renderer(logger).RenderAll(ctx, targets, progress)
	for _, res := range results {
		if res.OK() {
			report.Rendered++
			continue
		}
		report.Failed++
		for _, tr := range res.Results {
			if tr.Err == nil {
				continue
			}
			report.Failures = append(report.Failures, Failure{
				SceneID: res.SceneID,
				Tier:    string(tr.Tier),
				Kind:    services.Tag(tr.Err),
				Error:   tr.Err.Error(),
			})
		}
	}

	// Persist even after cancellation so finished renders are not orphaned.
	updated, err := p.store.Update(context.WithoutCancel(ctx), a.ID, func(current *analysis.Analysis) error {
		for _, res := range results {
			scene, err := current.Scene(res.SceneID)
			if err != nil {
				// Deleted concurrently; nothing to attach.
				continue
			}
			res.Apply(scene)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("store segment locations: %w", err)
	}
	report.Analysis = updated

	logging.WithContext(ctx, logger).Info("segments rendered",
		logging.String(logging.FieldEventType, "segments_rendered"),
		logging.Int("scene_count", len(targets)),
		logging.Int("rendered", report.Rendered),
		logging.Int("failed", report.Failed),
	)
	return ctx.Err()
}
