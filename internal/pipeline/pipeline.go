package pipeline

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"scenecut/internal/analysis"
	"scenecut/internal/archive"
	"scenecut/internal/audioenergy"
	"scenecut/internal/config"
	"scenecut/internal/derivcache"
	"scenecut/internal/export"
	"scenecut/internal/logging"
	"scenecut/internal/media/ffmpeg"
	"scenecut/internal/metadata"
	"scenecut/internal/metrics"
	"scenecut/internal/scenes"
	"scenecut/internal/segments"
	"scenecut/internal/services"
	"scenecut/internal/services/whisperx"
	"scenecut/internal/trim"
)

// Pipeline runs analysis operations against one store.
type Pipeline struct {
	cfg         *config.Config
	store       *analysis.Store
	ffmpeg      *ffmpeg.Runner
	ffprobe     *ffmpeg.Runner
	transcriber scenes.Transcriber
	archiver    archive.Encoder
	recorder    *metrics.Recorder
	logger      *slog.Logger
	newID       func() string
	preflight   bool
	now         func() time.Time
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithExecutor routes every ffmpeg and ffprobe invocation through exec.
func WithExecutor(exec ffmpeg.Executor) Option {
	return func(p *Pipeline) {
		p.ffmpeg = ffmpeg.NewRunner(p.cfg.FFmpegBinary(), ffmpeg.WithExecutor(exec), ffmpeg.WithLogger(p.logger))
		p.ffprobe = ffmpeg.NewRunner(p.cfg.FFprobeBinary(), ffmpeg.WithExecutor(exec), ffmpeg.WithLogger(p.logger))
	}
}

// WithTranscriber replaces the WhisperX transcriber used by AI detection.
func WithTranscriber(t scenes.Transcriber) Option {
	return func(p *Pipeline) {
		p.transcriber = t
	}
}

// WithArchiver replaces the Drapto archive encoder used by exports.
func WithArchiver(enc archive.Encoder) Option {
	return func(p *Pipeline) {
		p.archiver = enc
	}
}

// WithIDs replaces the analysis ID generator.
func WithIDs(fn func() string) Option {
	return func(p *Pipeline) {
		if fn != nil {
			p.newID = fn
		}
	}
}

// WithoutPreflight skips the environment checks before Analyze.
func WithoutPreflight() Option {
	return func(p *Pipeline) {
		p.preflight = false
	}
}

// WithClock replaces the time source used for export names.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		if now != nil {
			p.now = now
		}
	}
}

// New builds a pipeline. Operation timings are recorded into the store.
func New(cfg *config.Config, store *analysis.Store, logger *slog.Logger, opts ...Option) *Pipeline {
	if logger == nil {
		logger = logging.NewNop()
	}
	p := &Pipeline{
		cfg:       cfg,
		store:     store,
		logger:    logger,
		recorder:  metrics.NewRecorder(store, logger),
		newID:     uuid.NewString,
		preflight: true,
		now:       time.Now,
	}
	p.ffmpeg = ffmpeg.NewRunner(cfg.FFmpegBinary(), ffmpeg.WithLogger(logger))
	p.ffprobe = ffmpeg.NewRunner(cfg.FFprobeBinary(), ffmpeg.WithLogger(logger))
	for _, opt := range opts {
		opt(p)
	}
	if p.transcriber == nil && cfg.Transcription.Enabled {
		p.transcriber = whisperx.NewService(whisperx.Config{
			Model:       cfg.Transcription.Model,
			CUDAEnabled: cfg.Transcription.CUDAEnabled,
			VADMethod:   cfg.Transcription.VADMethod,
			HFToken:     cfg.Transcription.HuggingFace,
			Language:    cfg.Transcription.Language,
			WorkDir:     cfg.Paths.ScratchDir,
			Timeout:     cfg.TranscriptionTimeout(),
		}, whisperx.NewRunner(logger), logger)
	}
	if p.archiver == nil && cfg.Archive.Enabled {
		p.archiver = archive.NewLibrary()
	}
	return p
}

// Store returns the backing analysis store.
func (p *Pipeline) Store() *analysis.Store { return p.store }

// Recorder returns the metrics recorder shared by every operation.
func (p *Pipeline) Recorder() *metrics.Recorder { return p.recorder }

// Renderer builds a segment renderer that logs through logger.
func (p *Pipeline) Renderer(logger *slog.Logger) *segments.Renderer {
	return segments.NewRenderer(p.ffmpeg, segments.Options{
		Layout:   p.store.Layout(),
		Profiles: segments.ProfilesFromConfig(p.cfg.Render),
		Timeout:  p.cfg.RenderTimeout(),
		Workers:  p.cfg.Render.Workers,
		Logger:   logger,
		Recorder: p.recorder,
	})
}

// Cache returns the derivative cache manager for the store.
func (p *Pipeline) Cache() *derivcache.Manager {
	return derivcache.NewManager(p.store.Layout(), p.cfg.Cache.MaxGiB, p.store, p.logger)
}

func (p *Pipeline) exporter(logger *slog.Logger) *export.Exporter {
	return export.NewExporter(p.store, p.ffmpeg, export.Options{
		Timeout:      p.cfg.ExportTimeout(),
		ScratchDir:   p.cfg.Paths.ScratchDir,
		WriteEDL:     p.cfg.Export.WriteEDL,
		EDLFrameRate: p.cfg.Export.EDLFrameRate,
		Archiver:     p.archiver,
		ArchiveDir:   p.cfg.Archive.Dir,
		Logger:       logger,
		Recorder:     p.recorder,
		Now:          p.now,
	})
}

func (p *Pipeline) detector(logger *slog.Logger) scenes.Detector {
	cut := scenes.NewCutDetector(p.ffmpeg, p.cfg.ProbeTimeout(), logger)
	if method, err := scenes.ParseMethod(p.cfg.Detection.Method); err == nil && method == scenes.MethodAI {
		return scenes.NewAIDetector(cut, p.ffmpeg, p.transcriber, scenes.AIOptions{
			ScratchDir:     p.cfg.Paths.ScratchDir,
			ExtractTimeout: p.cfg.ProbeTimeout(),
			Logger:         logger,
		})
	}
	return cut
}

func (p *Pipeline) extractor(logger *slog.Logger) *metadata.Extractor {
	return metadata.NewExtractor(p.ffprobe, p.ffmpeg, p.cfg.ProbeTimeout(), logger)
}

func (p *Pipeline) analyzer(logger *slog.Logger) *audioenergy.Analyzer {
	return audioenergy.NewAnalyzer(p.ffmpeg, p.cfg.ProbeTimeout(), logger)
}

// journal opens the per-analysis log and returns a logger that writes to it
// and to the pipeline logger. A journal that cannot be opened is only a
// warning.
func (p *Pipeline) journal(ctx context.Context, id string) (*slog.Logger, io.Closer) {
	logger, closer, err := logging.AnalysisLog(p.logger, p.store.Layout().LogPath(id))
	if err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, p.logger), "analysis journal unavailable", "analysis_journal_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check permissions on the store directory"),
			logging.String(logging.FieldImpact, "operation is logged to the main log only"),
		)
	}
	return logging.WithContext(ctx, logger), closer
}

// Trim regenerates both derivatives of one scene for a relative window.
func (p *Pipeline) Trim(ctx context.Context, req trim.Request) (scenes.Scene, error) {
	ctx = services.WithAnalysisID(ctx, req.AnalysisID)
	ctx = services.WithStage(ctx, "trim")
	logger, closer := p.journal(ctx, req.AnalysisID)
	defer closer.Close()

	var out scenes.Scene
	err := p.recorder.Measure(ctx, "trim", map[string]any{"scene_id": req.SceneID}, func(ctx context.Context) error {
		var err error
		out, err = trim.NewRegenerator(p.store, p.Renderer(logger), logger).Trim(ctx, req)
		return err
	})
	return out, err
}

// Export assembles a timeline of one analysis into a single file.
func (p *Pipeline) Export(ctx context.Context, req export.Request) (export.Result, error) {
	ctx = services.WithAnalysisID(ctx, req.AnalysisID)
	ctx = services.WithStage(ctx, "export")
	logger, closer := p.journal(ctx, req.AnalysisID)
	defer closer.Close()
	return p.exporter(logger).Export(ctx, req)
}
