package export_test

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"scenecut/internal/analysis"
	"scenecut/internal/archive"
	"scenecut/internal/export"
	"scenecut/internal/media/ffmpeg"
	"scenecut/internal/services"
	"scenecut/internal/testsupport"
)

var fixedNow = time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

type harness struct {
	env      *testsupport.Env
	exec     *testsupport.FakeExecutor
	exporter *export.Exporter

	mu        sync.Mutex
	manifests []string
}

func newHarness(t *testing.T, opts export.Options) *harness {
	t.Helper()
	h := &harness{env: testsupport.NewEnv(t)}
	h.exec = &testsupport.FakeExecutor{Handle: func(ctx context.Context, call testsupport.Call, stdout, stderr io.Writer) error {
		data, err := os.ReadFile(call.ArgAfter("-i"))
		if err != nil {
			return err
		}
		h.mu.Lock()
		h.manifests = append(h.manifests, string(data))
		h.mu.Unlock()
		return testsupport.WriteOutput("exported")(ctx, call, stdout, stderr)
	}}
	opts.ScratchDir = h.env.Config.Paths.ScratchDir
	opts.Now = func() time.Time { return fixedNow }
	h.exporter = export.NewExporter(h.env.Store, ffmpeg.NewRunner("ffmpeg", ffmpeg.WithExecutor(h.exec)), opts)
	return h
}

func (h *harness) seed(t *testing.T, bounds ...float64) *analysis.Analysis {
	t.Helper()
	a := testsupport.NewAnalysis(t, h.env.Store, "0123456789ab", bounds...)
	for _, s := range a.Scenes {
		testsupport.WriteFile(t, h.env.Store.Layout().SegmentPath(a.ID, s.SceneID, "mezzanine"), 512)
	}
	return a
}

func mezzClip(a *analysis.Analysis, sceneIdx int, from float64) export.Clip {
	s := a.Scenes[sceneIdx]
	return export.Clip{
		ID:            "item-" + s.SceneID,
		Type:          "video",
		Src:           "http://localhost:8000" + analysis.SegmentURL(a.ID, s.SceneID, "mezzanine") + "?t=123",
		Mezzanine:     true,
		SceneID:       s.SceneID,
		TimelineStart: from,
		TimelineEnd:   from + s.Duration,
	}
}

func exportFiles(t *testing.T, h *harness, id string) []string {
	t.Helper()
	entries, err := os.ReadDir(h.env.Store.Layout().ExportDir(id))
	if err != nil && !os.IsNotExist(err) {
		t.Fatal(err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestExportOrdersByTimelineStart(t *testing.T) {
	h := newHarness(t, export.Options{})
	a := h.seed(t, 0, 4, 9, 12)

	timeline := export.Timeline{Clips: []export.Clip{
		mezzClip(a, 2, 10),
		mezzClip(a, 0, 0),
		mezzClip(a, 1, 5),
		{ID: "music", Type: "audio", Src: "bgm.mp3"},
	}}
	res, err := h.exporter.Export(context.Background(), export.Request{AnalysisID: a.ID, Timeline: timeline, Name: "My Cut"})
	if err != nil {
		t.Fatalf("Export: %v", err)
	}

	want := filepath.Join(h.env.Store.Layout().ExportDir(a.ID), "My_Cut_20260314_092653.mp4")
	if res.OutputPath != want {
		t.Fatalf("output = %q, want %q", res.OutputPath, want)
	}
	if res.SegmentCount != 3 || res.Size != int64(len("exported")) {
		t.Fatalf("unexpected result %+v", res)
	}
	if len(h.manifests) != 1 {
		t.Fatalf("expected one ffmpeg run, got %d", len(h.manifests))
	}
	lines := strings.Split(strings.TrimSpace(h.manifests[0]), "\n")
	if len(lines) != 3 {
		t.Fatalf("unexpected manifest:\n%s", h.manifests[0])
	}
	for i, idx := range []int{0, 1, 2} {
		path := h.env.Store.Layout().SegmentPath(a.ID, a.Scenes[idx].SceneID, "mezzanine")
		if lines[i] != "file '"+path+"'" {
			t.Fatalf("manifest line %d = %q, want scene %d", i, lines[i], idx)
		}
	}

	call := h.exec.Calls()[0]
	if call.ArgAfter("-f") != "concat" || call.ArgAfter("-safe") != "0" || call.ArgAfter("-c") != "copy" {
		t.Fatalf("expected stream copy concat, got %v", call.Args)
	}
	if call.ArgAfter("-movflags") != "+faststart" || call.HasArg("-vf") {
		t.Fatalf("unexpected args %v", call.Args)
	}
	if names := exportFiles(t, h, a.ID); len(names) != 1 {
		t.Fatalf("expected only the export file, got %v", names)
	}
}

func TestExportWithCompositionReencodes(t *testing.T) {
	h := newHarness(t, export.Options{})
	a := h.seed(t, 0, 4)

	comp := &export.Composition{Width: 1920, Height: 1080, FPS: 30}
	res, err := h.exporter.Export(context.Background(), export.Request{
		AnalysisID:  a.ID,
		Timeline:    export.Timeline{Clips: []export.Clip{mezzClip(a, 0, 0)}},
		Composition: comp,
	})
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if filepath.Base(res.OutputPath) != "timeline_export_01234567_20260314_092653.mp4" {
		t.Fatalf("unexpected default name %q", res.OutputPath)
	}
	if res.Composition != comp {
		t.Fatal("composition not echoed in result")
	}
	call := h.exec.Calls()[0]
	checks := map[string]string{
		"-vf": "scale=1920:1080", "-r": "30", "-c:v": "libx264", "-preset": "medium",
		"-crf": "23", "-c:a": "aac", "-b:a": "128k", "-movflags": "+faststart",
	}
	for flag, want := range checks {
		if got := call.ArgAfter(flag); got != want {
			t.Errorf("%s = %q, want %q", flag, got, want)
		}
	}
	if call.HasArg("copy") {
		t.Fatalf("re-encode must not stream copy: %v", call.Args)
	}
}

func TestExportMissingSegmentWritesNothing(t *testing.T) {
	h := newHarness(t, export.Options{WriteEDL: true})
	a := h.seed(t, 0, 4, 9)
	if err := os.Remove(h.env.Store.Layout().SegmentPath(a.ID, a.Scenes[1].SceneID, "mezzanine")); err != nil {
		t.Fatal(err)
	}

	_, err := h.exporter.Export(context.Background(), export.Request{
		AnalysisID: a.ID,
		Timeline:   export.Timeline{Clips: []export.Clip{mezzClip(a, 0, 0), mezzClip(a, 1, 4)}},
	})
	if !errors.Is(err, services.ErrMissingSegment) {
		t.Fatalf("expected MissingSegment, got %v", err)
	}
	if len(h.exec.Calls()) != 0 {
		t.Fatal("ffmpeg must not run when a segment is missing")
	}
	if names := exportFiles(t, h, a.ID); len(names) != 0 {
		t.Fatalf("expected no export output, got %v", names)
	}
}

func TestExportNoSegments(t *testing.T) {
	h := newHarness(t, export.Options{})
	a := h.seed(t, 0, 4)

	notMezz := mezzClip(a, 0, 0)
	notMezz.Mezzanine = false
	noSrc := mezzClip(a, 0, 0)
	noSrc.Src = ""
	for name, tl := range map[string]export.Timeline{
		"empty":         {},
		"not mezzanine": {Clips: []export.Clip{notMezz}},
		"no source":     {Clips: []export.Clip{noSrc}},
		"audio only":    {Clips: []export.Clip{{Type: "audio", Src: "a.mp3", Mezzanine: true}}},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := h.exporter.Export(context.Background(), export.Request{AnalysisID: a.ID, Timeline: tl})
			if !errors.Is(err, services.ErrNoSegments) {
				t.Fatalf("expected NoSegments, got %v", err)
			}
		})
	}
	if len(h.exec.Calls()) != 0 {
		t.Fatal("ffmpeg must not run without segments")
	}
}

func TestExportFailures(t *testing.T) {
	cases := map[string]testsupport.HandlerFunc{
		"non-zero exit": func(_ context.Context, _ testsupport.Call, _, stderr io.Writer) error {
			_, _ = io.WriteString(stderr, "concat: Impossible to open segment\n")
			return errors.New("exit status 1")
		},
		"empty output": testsupport.WriteOutput(""),
	}
	for name, handle := range cases {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t, export.Options{WriteEDL: true})
			h.exec.Handle = handle
			a := h.seed(t, 0, 4)

			_, err := h.exporter.Export(context.Background(), export.Request{
				AnalysisID: a.ID,
				Timeline:   export.Timeline{Clips: []export.Clip{mezzClip(a, 0, 0)}},
			})
			if !errors.Is(err, services.ErrExportFailed) {
				t.Fatalf("expected ExportFailed, got %v", err)
			}
			if names := exportFiles(t, h, a.ID); len(names) != 0 {
				t.Fatalf("failed export left files: %v", names)
			}
		})
	}
}

func TestExportWritesEDL(t *testing.T) {
	h := newHarness(t, export.Options{WriteEDL: true, EDLFrameRate: 30})
	a := h.seed(t, 0, 4, 9)

	res, err := h.exporter.Export(context.Background(), export.Request{
		AnalysisID: a.ID,
		Timeline:   export.Timeline{Clips: []export.Clip{mezzClip(a, 1, 0), mezzClip(a, 0, 5)}},
		Name:       "edl",
	})
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if res.EDLPath != strings.TrimSuffix(res.OutputPath, ".mp4")+".edl" {
		t.Fatalf("unexpected edl path %q", res.EDLPath)
	}
	data, err := os.ReadFile(res.EDLPath)
	if err != nil {
		t.Fatal(err)
	}
	edl := string(data)
	// Source fps is 25 in the fixture.
	for _, want := range []string{
		"TITLE: edl_20260314_092653",
		"001  AX       V     C        00:00:04:00 00:00:09:00 00:00:00:00 00:00:05:00",
		"002  AX       V     C        00:00:00:00 00:00:04:00 00:00:05:00 00:00:09:00",
		"* FROM CLIP NAME:  Scene 2",
	} {
		if !strings.Contains(edl, want) {
			t.Fatalf("edl missing %q:\n%s", want, edl)
		}
	}
}

type fakeArchiver struct {
	input, dir string
	err        error
}

func (f *fakeArchiver) Encode(_ context.Context, input, dir string, progress func(archive.Progress)) (string, error) {
	f.input, f.dir = input, dir
	progress(archive.Progress{Stage: "encoding", Percent: 50})
	if f.err != nil {
		return "", f.err
	}
	return archive.OutputPath(input, dir), nil
}

func TestExportArchive(t *testing.T) {
	arch := &fakeArchiver{}
	h := newHarness(t, export.Options{})
	h.exporter = export.NewExporter(h.env.Store, ffmpeg.NewRunner("ffmpeg", ffmpeg.WithExecutor(h.exec)), export.Options{
		ScratchDir: h.env.Config.Paths.ScratchDir,
		Archiver:   arch,
		ArchiveDir: h.env.Config.Archive.Dir,
		Now:        func() time.Time { return fixedNow },
	})
	a := h.seed(t, 0, 4)

	res, err := h.exporter.Export(context.Background(), export.Request{
		AnalysisID: a.ID,
		Timeline:   export.Timeline{Clips: []export.Clip{mezzClip(a, 0, 0)}},
		Name:       "keep",
	})
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if arch.input != res.OutputPath || arch.dir != h.env.Config.Archive.Dir {
		t.Fatalf("archiver got %q -> %q", arch.input, arch.dir)
	}
	if res.ArchivePath != filepath.Join(h.env.Config.Archive.Dir, "keep_20260314_092653.mkv") {
		t.Fatalf("unexpected archive path %q", res.ArchivePath)
	}

	arch.err = errors.New("encoder crashed")
	res, err = h.exporter.Export(context.Background(), export.Request{
		AnalysisID: a.ID,
		Timeline:   export.Timeline{Clips: []export.Clip{mezzClip(a, 0, 0)}},
		Name:       "again",
	})
	if err != nil {
		t.Fatalf("archive failure must not fail the export: %v", err)
	}
	if res.ArchivePath != "" {
		t.Fatalf("expected no archive path, got %q", res.ArchivePath)
	}
}
