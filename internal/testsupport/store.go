package testsupport

import (
	"context"
	"testing"

	"scenecut/internal/analysis"
	"scenecut/internal/audioenergy"
	"scenecut/internal/config"
	"scenecut/internal/metadata"
	"scenecut/internal/scenes"
)

// MustOpenStore opens an analysis.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *analysis.Store {
	t.Helper()

	store, err := analysis.Open(cfg)
	if err != nil {
		t.Fatalf("analysis.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewAnalysis stores an analysis whose scenes follow bounds, e.g. 0, 4, 9
// yields scenes [0,4] and [4,9]. The source file is created on disk.
func NewAnalysis(t testing.TB, store *analysis.Store, id string, bounds ...float64) *analysis.Analysis {
	t.Helper()

	windows := make([]scenes.Window, 0, len(bounds))
	for i := 0; i+1 < len(bounds); i++ {
		windows = append(windows, scenes.Window{Start: bounds[i], End: bounds[i+1], Transition: scenes.TransitionCut})
	}
	n := 0
	ids := func() string {
		n++
		return id + "-scene-" + string(rune('a'+n-1))
	}
	duration := 0.0
	if len(bounds) > 0 {
		duration = bounds[len(bounds)-1]
	}

	layout := store.Layout()
	source := layout.SourcePath(id, "source.mp4")
	WriteFile(t, source, 2048)

	a := &analysis.Analysis{
		ID:         id,
		FileName:   "source.mp4",
		SourcePath: source,
		Metadata: metadata.VideoMetadata{
			Duration: duration, FPS: 25, Width: 1920, Height: 1080,
			Audio: &metadata.AudioInfo{Channels: 2, SampleRate: 48000, Duration: duration},
		},
		Method:       scenes.MethodCut,
		Scenes:       scenes.Annotate(windows, nil, scenes.MethodCut, ids),
		AudioSamples: []audioenergy.Sample{},
	}
	if err := store.Create(context.Background(), a); err != nil {
		t.Fatalf("store.Create: %v", err)
	}
	return a
}

// Env bundles a test config with an open store.
type Env struct {
	Config *config.Config
	Store  *analysis.Store
}

// NewEnv builds a config rooted in a temp dir and opens its store.
func NewEnv(t testing.TB, opts ...ConfigOption) *Env {
	t.Helper()
	cfg := NewConfig(t, opts...)
	return &Env{Config: cfg, Store: MustOpenStore(t, cfg)}
}
