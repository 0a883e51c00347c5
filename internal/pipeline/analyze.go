package pipeline

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"scenecut/internal/analysis"
	"scenecut/internal/audioenergy"
	"scenecut/internal/derivcache"
	"scenecut/internal/fileutil"
	"scenecut/internal/logging"
	"scenecut/internal/metadata"
	"scenecut/internal/preflight"
	"scenecut/internal/scenes"
	"scenecut/internal/segments"
	"scenecut/internal/services"
	"scenecut/internal/textutil"
)

// AnalyzeOptions tunes one Analyze run.
type AnalyzeOptions struct {
	// SkipRender stores the analysis without materializing derivatives.
	SkipRender bool
	// Progress observes the bulk render.
	Progress segments.ProgressFunc
}

// Report summarizes an Analyze or Render run.
type Report struct {
	Analysis     *analysis.Analysis        `json:"analysis"`
	Rendered     int                       `json:"rendered"`
	Failed       int                       `json:"failed"`
	Failures     []Failure                 `json:"failures,omitempty"`
	Pruned       []derivcache.EntrySummary `json:"pruned,omitempty"`
	SourceSHA256 string                    `json:"source_sha256,omitempty"`
	Elapsed      time.Duration             `json:"elapsed"`
}

// Failure is one scene tier that did not render.
type Failure struct {
	SceneID string `json:"scene_id"`
	Tier    string `json:"tier"`
	Kind    string `json:"error_kind"`
	Error   string `json:"error"`
}

// Analyze ingests source into a new analysis: the file is copied into the
// store, probed, segmented into scenes annotated with audio energy, and
// every scene is rendered to both derivative tiers. Render failures are
// isolated per scene and reported; everything before them is fatal and
// leaves no analysis behind.
func (p *Pipeline) Analyze(ctx context.Context, source string, opts AnalyzeOptions) (*Report, error) {
	started := time.Now()
	id := p.newID()
	ctx = services.WithAnalysisID(ctx, id)

	if p.preflight {
		if err := preflight.Err(preflight.RunAll(ctx, p.cfg)); err != nil {
			return nil, err
		}
	}
	if _, err := os.Stat(source); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, services.NewError(services.KindSourceNotFound, "analyze", source, err)
		}
		return nil, services.NewError(services.KindUnreadableMedia, "analyze", source, err)
	}

	layout := p.store.Layout()
	logger, closer := p.journal(ctx, id)
	defer closer.Close()
	logger.Info("analysis started",
		logging.String(logging.FieldEventType, "analysis_start"),
		logging.String("source_file", source),
		logging.String("detection_method", p.cfg.Detection.Method),
	)

	report := &Report{}
	var a *analysis.Analysis
	err := p.recorder.Measure(ctx, "analyze", map[string]any{"method": p.cfg.Detection.Method}, func(ctx context.Context) error {
		var err error
		a, err = p.ingest(ctx, id, source, report, logger)
		return err
	})
	if err != nil {
		if a == nil {
			_ = os.RemoveAll(layout.Dir(id))
		}
		logging.ErrorWithContext(logger, "analysis failed", "analysis_failed",
			logging.ErrorKind(err),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, hintFor(err)),
		)
		return nil, err
	}
	report.Analysis = a

	if !opts.SkipRender {
		if err := p.renderScenes(ctx, a, nil, opts.Progress, report, logger); err != nil {
			return report, err
		}
	}
	report.Pruned = p.prune(ctx, id, logger)
	report.Elapsed = time.Since(started)

	logger.Info("analysis complete",
		logging.String(logging.FieldEventType, "analysis_complete"),
		logging.Int("scene_count", len(report.Analysis.Scenes)),
		logging.Int("rendered", report.Rendered),
		logging.Int("failed", report.Failed),
		logging.Duration("elapsed", report.Elapsed),
	)
	return report, nil
}

// ingest runs every fatal step of Analyze and persists the analysis.
func (p *Pipeline) ingest(ctx context.Context, id, source string, report *Report, logger *slog.Logger) (*analysis.Analysis, error) {
	fileName := textutil.SanitizeFileName(filepath.Base(source))
	if fileName == "" {
		fileName = "source" + filepath.Ext(source)
	}
	stored := p.store.Layout().SourcePath(id, fileName)

	stageCtx := services.WithStage(ctx, "ingest")
	sum, err := fileutil.CopyFileVerified(source, stored)
	if err != nil {
		return nil, services.NewError(services.KindUnreadableMedia, "copy source", source, err)
	}
	report.SourceSHA256 = sum
	logging.WithContext(stageCtx, logger).Debug("source copied",
		logging.String("stored_path", stored),
		logging.String("sha256", sum),
	)

	stageCtx = services.WithStage(ctx, "metadata")
	meta, err := p.extractor(logger).Extract(stageCtx, stored)
	if err != nil {
		return nil, err
	}
	logging.WithContext(stageCtx, logger).Info("metadata extracted",
		logging.Float64("duration_seconds", meta.Duration),
		logging.Float64("fps", meta.FPS),
		logging.Int("width", meta.Width),
		logging.Int("height", meta.Height),
		logging.Bool("has_audio", meta.HasAudio()),
		logging.String("backend", meta.Backend),
	)

	samples := p.audioEnergy(services.WithStage(ctx, "audio"), stored, meta, logger)

	stageCtx = services.WithStage(ctx, "detection")
	detector := p.detector(logger)
	windows, err := detector.Detect(stageCtx, scenes.Request{
		Source:           stored,
		Metadata:         meta,
		ContentThreshold: p.cfg.Detection.ContentThreshold,
		FadeThreshold:    p.cfg.Detection.FadeThreshold,
		MinSceneFrames:   p.cfg.Detection.MinSceneFrames,
	})
	if err != nil {
		return nil, err
	}

	a := &analysis.Analysis{
		ID:           id,
		FileName:     fileName,
		SourcePath:   stored,
		Metadata:     meta,
		Method:       detector.Method(),
		Scenes:       scenes.Annotate(windows, samples, detector.Method(), scenes.NewID),
		AudioSamples: samples,
	}
	if err := p.store.Create(ctx, a); err != nil {
		return nil, err
	}
	logging.WithContext(stageCtx, logger).Info("scenes detected",
		logging.String(logging.FieldEventType, "scenes_detected"),
		logging.Int("scene_count", len(a.Scenes)),
		logging.String("segmentation_method", string(a.Method)),
	)
	return a, nil
}

// audioEnergy never fails the analysis: scenes without samples carry zero
// volume and no high-energy flag.
func (p *Pipeline) audioEnergy(ctx context.Context, source string, meta metadata.VideoMetadata, logger *slog.Logger) []audioenergy.Sample {
	if !meta.HasAudio() {
		return []audioenergy.Sample{}
	}
	threshold := p.cfg.Audio.HighEnergyThreshold
	samples, err := p.analyzer(logger).Analyze(ctx, source, meta, audioenergy.Options{
		Interval:  p.cfg.Audio.IntervalSeconds,
		Threshold: &threshold,
	})
	if err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, logger), "audio energy analysis failed", "audio_energy_failed",
			logging.ErrorKind(err),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the audio stream with ffprobe"),
			logging.String(logging.FieldImpact, "scenes carry zero volume"),
		)
		return []audioenergy.Sample{}
	}
	return samples
}

func (p *Pipeline) prune(ctx context.Context, keepID string, logger *slog.Logger) []derivcache.EntrySummary {
	pruned, err := p.Cache().Prune(ctx, keepID)
	if err != nil {
		logging.WarnWithContext(logger, "derivative cache over budget", "derivcache_prune_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "raise cache.max_gib or free disk space"),
			logging.String(logging.FieldImpact, "store may exceed its size budget"),
		)
	}
	return pruned
}

func hintFor(err error) string {
	switch {
	case errors.Is(err, services.ErrSourceNotFound):
		return "check the source path"
	case errors.Is(err, services.ErrUnreadableMedia):
		return "verify the file plays and ffprobe can read it"
	case errors.Is(err, services.ErrConfiguration):
		return "run `scenecut status` to see failing checks"
	case errors.Is(err, services.ErrTranscodeTimeout):
		return "raise render.probe_timeout_seconds"
	}
	return "see the analysis log for details"
}
