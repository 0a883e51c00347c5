package segments

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"scenecut/internal/analysis"
	"scenecut/internal/logging"
	"scenecut/internal/scenes"
	"scenecut/internal/services"
)

// Result is the outcome of one tier render.
type Result struct {
	Tier    Tier
	Path    string
	URL     string
	Err     error
	Elapsed time.Duration
}

// SceneResult aggregates the tier results of one scene.
type SceneResult struct {
	SceneID string
	Results []Result
}

// OK reports whether every tier rendered.
func (s SceneResult) OK() bool {
	for _, r := range s.Results {
		if r.Err != nil {
			return false
		}
	}
	return len(s.Results) > 0
}

// Apply records successful tier paths and URLs on scene.
func (s SceneResult) Apply(scene *scenes.Scene) {
	for _, r := range s.Results {
		if r.Err != nil {
			continue
		}
		switch r.Tier {
		case TierProxy:
			scene.ProxyPath, scene.ProxyURL = r.Path, r.URL
		case TierMezzanine:
			scene.MezzaninePath, scene.MezzanineURL = r.Path, r.URL
		}
	}
}

// RenderScene renders every tier of t. Tiers are independent: a proxy
// failure does not prevent the mezzanine render.
func (r *Renderer) RenderScene(ctx context.Context, t Target) SceneResult {
	ctx = services.WithSceneID(ctx, t.SceneID)
	out := SceneResult{SceneID: t.SceneID, Results: make([]Result, 0, len(Tiers))}
	for _, tier := range Tiers {
		started := time.Now()
		path, err := r.Render(ctx, t, tier)
		res := Result{Tier: tier, Err: err, Elapsed: time.Since(started)}
		if err == nil {
			res.Path = path
			res.URL = analysis.SegmentURL(t.AnalysisID, t.SceneID, string(tier))
		}
		out.Results = append(out.Results, res)
	}
	return out
}

// ProgressFunc observes RenderAll as scenes complete.
type ProgressFunc func(done, total int, res SceneResult)

// RenderAll renders targets on a bounded worker pool. Failures are isolated
// per scene and logged; the returned slice is in target order. Only context
// cancellation stops the batch early, and scenes not started by then carry
// the context error.
func (r *Renderer) RenderAll(ctx context.Context, targets []Target, progress ProgressFunc) []SceneResult {
	results := make([]SceneResult, len(targets))
	logger := logging.WithContext(ctx, r.logger)

	var (
		mu   sync.Mutex
		done int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for i, t := range targets {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				results[i] = cancelled(t.SceneID, err)
				return nil
			}
			res := r.RenderScene(gctx, t)
			results[i] = res
			if !res.OK() {
				for _, tr := range res.Results {
					if tr.Err == nil {
						continue
					}
					logging.WarnWithContext(logger, "scene render failed", "segment_render_failed",
						logging.String(logging.FieldSceneID, t.SceneID),
						logging.String(logging.FieldTier, string(tr.Tier)),
						logging.ErrorKind(tr.Err),
						logging.Error(tr.Err),
						logging.String(logging.FieldErrorHint, "re-run `scenecut render` for this analysis"),
						logging.String(logging.FieldImpact, "scene has no "+string(tr.Tier)+" derivative"),
					)
				}
			}
			mu.Lock()
			done++
			current := done
			mu.Unlock()
			if progress != nil {
				progress(current, len(targets), res)
			}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func cancelled(sceneID string, err error) SceneResult {
	out := SceneResult{SceneID: sceneID}
	for _, tier := range Tiers {
		out.Results = append(out.Results, Result{Tier: tier, Err: err})
	}
	return out
}
