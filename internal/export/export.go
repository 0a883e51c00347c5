package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"scenecut/internal/analysis"
	"scenecut/internal/archive"
	"scenecut/internal/fileutil"
	"scenecut/internal/logging"
	"scenecut/internal/media/ffmpeg"
	"scenecut/internal/metrics"
	"scenecut/internal/scenes"
	"scenecut/internal/services"
)

// DefaultTimeout bounds the concat or re-encode run.
const DefaultTimeout = 600 * time.Second

// Composition forces output geometry and frame rate, which requires a
// re-encode.
type Composition struct {
	Width  int     `json:"width"`
	Height int     `json:"height"`
	FPS    float64 `json:"fps"`
}

// Validate rejects non-positive settings.
func (c Composition) Validate() error {
	if c.Width <= 0 || c.Height <= 0 || c.FPS <= 0 {
		return fmt.Errorf("composition needs positive width, height and fps (got %dx%d@%g)", c.Width, c.Height, c.FPS)
	}
	return nil
}

// Request describes one export.
type Request struct {
	AnalysisID  string
	Timeline    Timeline
	Composition *Composition
	Name        string
}

// Result describes a finished export.
type Result struct {
	OutputPath   string        `json:"output_path"`
	Size         int64         `json:"file_size"`
	SegmentCount int           `json:"segments_count"`
	Elapsed      time.Duration `json:"export_duration"`
	Composition  *Composition  `json:"composition_settings,omitempty"`
	EDLPath      string        `json:"edl_path,omitempty"`
	ArchivePath  string        `json:"archive_path,omitempty"`
}

// Options configures an Exporter.
type Options struct {
	Timeout      time.Duration
	ScratchDir   string
	WriteEDL     bool
	EDLFrameRate int
	Archiver     archive.Encoder
	ArchiveDir   string
	Logger       *slog.Logger
	Recorder     *metrics.Recorder
	Now          func() time.Time
}

// Exporter assembles timelines from the derivative store.
type Exporter struct {
	store  *analysis.Store
	runner *ffmpeg.Runner
	opts   Options
	logger *slog.Logger
}

// NewExporter constructs an exporter.
func NewExporter(store *analysis.Store, runner *ffmpeg.Runner, opts Options) *Exporter {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Exporter{
		store:  store,
		runner: runner,
		opts:   opts,
		logger: logging.NewComponentLogger(opts.Logger, "export"),
	}
}

type resolvedClip struct {
	Clip
	path  string
	scene *scenes.Scene
}

// Export writes the timeline to <store>/<id>/exports. Missing segments and
// empty selections fail before ffmpeg runs.
func (e *Exporter) Export(ctx context.Context, req Request) (Result, error) {
	ctx = services.WithAnalysisID(ctx, req.AnalysisID)
	ctx = services.WithStage(ctx, "export")

	var res Result
	err := e.opts.Recorder.Measure(ctx, "export", map[string]any{"composition": req.Composition != nil}, func(ctx context.Context) error {
		var err error
		res, err = e.export(ctx, req)
		return err
	})
	return res, err
}

func (e *Exporter) export(ctx context.Context, req Request) (Result, error) {
	logger := logging.WithContext(ctx, e.logger)
	started := e.opts.Now()

	if req.Composition != nil {
		if err := req.Composition.Validate(); err != nil {
			return Result{}, services.Wrap(services.ErrValidation, "export", "check composition", "", err)
		}
	}
	a, err := e.store.Get(ctx, req.AnalysisID)
	if err != nil {
		return Result{}, err
	}
	clips, err := e.resolve(a, req.Timeline)
	if err != nil {
		return Result{}, err
	}
	logger.Info("export started",
		logging.Int("segments", len(clips)),
		logging.Bool("reencode", req.Composition != nil),
	)

	scratch, err := os.MkdirTemp(e.opts.ScratchDir, "export-*")
	if err != nil {
		return Result{}, fmt.Errorf("create scratch dir: %w", err)
	}
	defer os.RemoveAll(scratch)
	manifest, err := writeManifest(scratch, clips)
	if err != nil {
		return Result{}, err
	}

	layout := e.store.Layout()
	out := filepath.Join(layout.ExportDir(a.ID), FileName(req.Name, a.ID, e.opts.Now()))
	stem := strings.TrimSuffix(filepath.Base(out), ".mp4")
	staged, err := fileutil.StagePath(filepath.Dir(out), "."+stem+".tmp-", ".mp4")
	if err != nil {
		return Result{}, fmt.Errorf("stage export: %w", err)
	}
	defer os.Remove(staged)

	total := 0.0
	for _, c := range clips {
		if c.scene != nil {
			total += c.scene.Duration
		}
	}
	sampler := logging.NewProgressSampler(10)
	progress := &ffmpeg.ProgressWriter{OnProgress: func(seconds float64) {
		if total <= 0 {
			return
		}
		percent := min(seconds/total*100, 100)
		if sampler.ShouldLog(percent, "export") {
			logger.Info("export progress", logging.Float64(logging.FieldProgressPercent, percent))
		}
	}}

	if _, err := e.runner.Run(ctx, ffmpeg.Invocation{
		Operation:   "export timeline",
		Args:        exportArgs(manifest, req.Composition, staged),
		Timeout:     e.opts.Timeout,
		Stderr:      progress,
		FailKind:    services.KindExportFailed,
		TimeoutKind: services.KindExportFailed,
	}); err != nil {
		return Result{}, err
	}
	size, ok := fileutil.NonEmpty(staged)
	if !ok {
		return Result{}, services.NewError(services.KindExportFailed, "export timeline", "output file was not created", nil)
	}
	if err := os.Rename(staged, out); err != nil {
		return Result{}, services.NewError(services.KindExportFailed, "export timeline", "commit output", err)
	}

	res := Result{
		OutputPath:   out,
		Size:         size,
		SegmentCount: len(clips),
		Composition:  req.Composition,
	}
	if e.opts.WriteEDL {
		res.EDLPath, err = e.writeEDL(out, a, clips, req.Composition)
		if err != nil {
			logging.WarnWithContext(logger, "edl not written", "export_edl_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "export has no cut list sidecar"),
				logging.String(logging.FieldErrorHint, "check permissions on the exports directory"),
			)
		}
	}
	if e.opts.Archiver != nil {
		res.ArchivePath = e.archive(ctx, logger, out)
	}
	res.Elapsed = e.opts.Now().Sub(started)

	logger.Info("export finished",
		logging.String("path", out),
		logging.Int64("size_bytes", size),
		logging.Int("segments", len(clips)),
		logging.Duration("elapsed", res.Elapsed),
	)
	return res, nil
}

// resolve maps exportable clips to mezzanine files in the store.
func (e *Exporter) resolve(a *analysis.Analysis, t Timeline) ([]resolvedClip, error) {
	exportable := t.Exportable()
	if len(exportable) == 0 {
		return nil, services.NewError(services.KindNoSegments, "export timeline",
			fmt.Sprintf("no mezzanine video segments among %d timeline items", len(t.Clips)), nil)
	}
	dir := e.store.Layout().SegmentDir(a.ID, "mezzanine")
	out := make([]resolvedClip, 0, len(exportable))
	for _, c := range exportable {
		name := c.SegmentName()
		if name == "" || name == "." || name == ".." {
			return nil, services.NewError(services.KindMissingSegment, "export timeline", "clip "+c.ID+" has no segment file name", nil)
		}
		p := filepath.Join(dir, name)
		info, err := os.Stat(p)
		if err != nil || !info.Mode().IsRegular() {
			return nil, services.NewError(services.KindMissingSegment, "export timeline", p, err)
		}
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", p, err)
		}
		out = append(out, resolvedClip{Clip: c, path: abs, scene: sceneFor(a, c, name)})
	}
	return out, nil
}

func sceneFor(a *analysis.Analysis, c Clip, name string) *scenes.Scene {
	id := c.SceneID
	if id == "" {
		id = strings.TrimSuffix(strings.TrimPrefix(name, "scene_"), "_mezzanine.mp4")
	}
	s, err := a.Scene(id)
	if err != nil {
		return nil
	}
	return s
}

// writeManifest writes the concat demuxer list.
func writeManifest(dir string, clips []resolvedClip) (string, error) {
	var b strings.Builder
	for _, c := range clips {
		fmt.Fprintf(&b, "file '%s'\n", strings.ReplaceAll(c.path, "'", `'\''`))
	}
	p := filepath.Join(dir, "concat.txt")
	if err := os.WriteFile(p, []byte(b.String()), 0o644); err != nil {
		return "", fmt.Errorf("write concat manifest: %w", err)
	}
	return p, nil
}

func exportArgs(manifest string, comp *Composition, out string) []string {
	args := []string{
		"-hide_banner", "-nostdin",
		"-y",
		"-f", "concat",
		"-safe", "0",
		"-i", manifest,
	}
	if comp == nil {
		args = append(args, "-c", "copy")
	} else {
		args = append(args,
			"-vf", fmt.Sprintf("scale=%d:%d", comp.Width, comp.Height),
			"-r", strconv.FormatFloat(comp.FPS, 'f', -1, 64),
			"-c:v", "libx264",
			"-preset", "medium",
			"-crf", "23",
			"-c:a", "aac",
			"-b:a", "128k",
		)
	}
	return append(args, "-movflags", "+faststart", out)
}

func (e *Exporter) writeEDL(out string, a *analysis.Analysis, clips []resolvedClip, comp *Composition) (string, error) {
	fps := e.opts.EDLFrameRate
	if comp != nil {
		fps = int(comp.FPS + 0.5)
	} else if a.Metadata.FPS > 0 {
		fps = int(a.Metadata.FPS + 0.5)
	}
	events := make([]EDLEvent, 0, len(clips))
	for _, c := range clips {
		ev := EDLEvent{ClipName: filepath.Base(c.path), MediaPath: c.path}
		if c.scene != nil {
			ev.ClipName = c.scene.Title
			ev.SourceIn = c.scene.StartOriginal
			ev.SourceOut = c.scene.EndOriginal
		} else {
			ev.SourceOut = c.TimelineEnd - c.TimelineStart
		}
		events = append(events, ev)
	}
	path := strings.TrimSuffix(out, filepath.Ext(out)) + ".edl"
	title := strings.TrimSuffix(filepath.Base(out), filepath.Ext(out))
	if err := os.WriteFile(path, []byte(GenerateEDL(title, fps, events)), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// archive runs the optional archive encode. Failures only cost the archive
// copy.
func (e *Exporter) archive(ctx context.Context, logger *slog.Logger, out string) string {
	dir := e.opts.ArchiveDir
	if dir == "" {
		dir = filepath.Dir(out)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		logging.WarnWithContext(logger, "archive skipped", "export_archive_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "no archive copy"),
			logging.String(logging.FieldErrorHint, "check archive.dir"),
		)
		return ""
	}
	sampler := logging.NewProgressSampler(25)
	path, err := e.opts.Archiver.Encode(ctx, out, dir, func(p archive.Progress) {
		if p.Warning != "" {
			logging.WarnWithContext(logger, "archive encoder warning", "archive_warning",
				logging.String("warning", p.Warning),
				logging.String(logging.FieldImpact, "archive copy may differ from the export"),
				logging.String(logging.FieldErrorHint, "inspect the archive before relying on it"),
			)
			return
		}
		if sampler.ShouldLog(p.Percent, p.Stage) {
			logger.Debug("archive progress", logging.String("stage", p.Stage), logging.Float64(logging.FieldProgressPercent, p.Percent))
		}
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return ""
		}
		logging.WarnWithContext(logger, "archive encode failed", "export_archive_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "export kept without archive copy"),
			logging.String(logging.FieldErrorHint, "re-run the export with archiving enabled"),
		)
		return ""
	}
	logger.Info("archive written", logging.String("path", path))
	return path
}
