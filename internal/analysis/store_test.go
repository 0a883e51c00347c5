package analysis_test

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"scenecut/internal/analysis"
	"scenecut/internal/metrics"
	"scenecut/internal/scenes"
	"scenecut/internal/services"
	"scenecut/internal/testsupport"
)

func TestCreateAndGetRoundTrip(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	created := testsupport.NewAnalysis(t, store, "a1", 0, 4, 9, 12)

	got, err := store.Get(ctx, "a1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.FileName != "source.mp4" || got.Method != scenes.MethodCut {
		t.Fatalf("unexpected analysis %+v", got)
	}
	if len(got.Scenes) != 3 {
		t.Fatalf("expected 3 scenes, got %d", len(got.Scenes))
	}
	for i, s := range got.Scenes {
		if s.SceneID != created.Scenes[i].SceneID || s.Index != i {
			t.Fatalf("scene %d out of order: %+v", i, s)
		}
	}
	if got.Metadata.Duration != 12 || !got.Metadata.HasAudio() {
		t.Fatalf("metadata not persisted: %+v", got.Metadata)
	}
	if got.CreatedAt.IsZero() || got.UpdatedAt.IsZero() {
		t.Fatal("expected timestamps")
	}
	if _, err := os.Stat(filepath.Join(cfg.Paths.StoreDir, "a1", ".analysis.lock")); err != nil {
		t.Fatalf("expected lock file: %v", err)
	}
}

func TestGetUnknownAnalysis(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	_, err := store.Get(context.Background(), "missing")
	if !errors.Is(err, analysis.ErrNotFound) || !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestListNewestFirst(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	testsupport.NewAnalysis(t, store, "older", 0, 5)
	time.Sleep(5 * time.Millisecond)
	testsupport.NewAnalysis(t, store, "newer", 0, 3, 6)

	list, err := store.List(context.Background())
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(list) != 2 || list[0].ID != "newer" || list[0].SceneCount != 2 || list[1].Duration != 5 {
		t.Fatalf("unexpected list %+v", list)
	}
}

func TestUpdateRollsBackOnError(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	testsupport.NewAnalysis(t, store, "a1", 0, 4, 9)

	boom := errors.New("render failed")
	_, err := store.Update(ctx, "a1", func(a *analysis.Analysis) error {
		a.Scenes[0].Title = "changed"
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected callback error, got %v", err)
	}
	got, _ := store.Get(ctx, "a1")
	if got.Scenes[0].Title != "Scene 1" {
		t.Fatalf("failed update must not persist, title=%q", got.Scenes[0].Title)
	}
}

func TestUpdateRejectsInvalidScene(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	testsupport.NewAnalysis(t, store, "a1", 0, 4)
	_, err := store.Update(context.Background(), "a1", func(a *analysis.Analysis) error {
		a.Scenes[0].CurrentTrimmedDuration = 0
		return nil
	})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestConcurrentUpdatesSerialize(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	testsupport.NewAnalysis(t, store, "a1", 0, 4)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Update(ctx, "a1", func(a *analysis.Analysis) error {
				a.Scenes[0].Tags = append(a.Scenes[0].Tags, "x")
				return nil
			})
			if err != nil {
				t.Errorf("Update failed: %v", err)
			}
		}()
	}
	wg.Wait()

	got, _ := store.Get(ctx, "a1")
	if len(got.Scenes[0].Tags) != 8 {
		t.Fatalf("expected 8 tags from serialized writers, got %d", len(got.Scenes[0].Tags))
	}
}

func TestEditScene(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	a := testsupport.NewAnalysis(t, store, "a1", 0, 4, 9)
	sceneID := a.Scenes[1].SceneID

	title := " Kitchen "
	edited, err := store.EditScene(ctx, "a1", sceneID, scenes.Edit{Title: &title, Tags: []string{"food", " food", "b-roll"}})
	if err != nil {
		t.Fatalf("EditScene failed: %v", err)
	}
	if edited.Title != "Kitchen" || len(edited.Tags) != 2 || edited.Tags[0] != "b-roll" {
		t.Fatalf("unexpected edit result %+v", edited)
	}
	if edited.StartOriginal != 4 || edited.EndOriginal != 9 {
		t.Fatal("edit must not touch timing")
	}

	if _, err := store.EditScene(ctx, "a1", "nope", scenes.Edit{Title: &title}); !errors.Is(err, analysis.ErrSceneNotFound) {
		t.Fatalf("expected scene not found, got %v", err)
	}
	empty := ""
	if _, err := store.EditScene(ctx, "a1", sceneID, scenes.Edit{Title: &empty}); !errors.Is(err, scenes.ErrEmptyTitle) {
		t.Fatalf("expected empty title error, got %v", err)
	}
}

func TestDelete(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	testsupport.NewAnalysis(t, store, "a1", 0, 4)
	if err := store.Delete(ctx, "a1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := store.Get(ctx, "a1"); !errors.Is(err, analysis.ErrNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
	if err := store.Delete(ctx, "a1"); !errors.Is(err, analysis.ErrNotFound) {
		t.Fatalf("expected not found on second delete, got %v", err)
	}
}

func TestMetricsPersistence(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := services.WithAnalysisID(context.Background(), "a1")
	rec := metrics.NewRecorder(store, nil)

	_ = rec.Measure(ctx, "render", map[string]any{"tier": "proxy"}, func(context.Context) error { return nil })
	_ = rec.Measure(ctx, "export", nil, func(context.Context) error {
		return services.NewError(services.KindNoSegments, "export", "", nil)
	})

	all, err := store.Metrics(context.Background(), analysis.MetricsFilter{})
	if err != nil {
		t.Fatalf("Metrics failed: %v", err)
	}
	if len(all) != 2 || all[0].Operation != "render" || all[0].Metadata["tier"] != "proxy" || all[0].AnalysisID != "a1" {
		t.Fatalf("unexpected metrics %+v", all)
	}
	if all[1].Success || all[1].ErrorKind != "NoSegments" {
		t.Fatalf("unexpected failure metric %+v", all[1])
	}

	exports, err := store.Metrics(context.Background(), analysis.MetricsFilter{Operation: "export"})
	if err != nil || len(exports) != 1 {
		t.Fatalf("expected one export metric, got %d (%v)", len(exports), err)
	}
	latest, err := store.Metrics(context.Background(), analysis.MetricsFilter{Limit: 1})
	if err != nil || len(latest) != 1 || latest[0].Operation != "export" {
		t.Fatalf("expected latest metric only, got %+v (%v)", latest, err)
	}
}

func TestLayout(t *testing.T) {
	layout := analysis.Layout{Root: "/store"}
	if got := layout.SegmentPath("a1", "s1", "proxy"); got != "/store/a1/segments/proxy/scene_s1_proxy.mp4" {
		t.Fatalf("unexpected segment path %q", got)
	}
	if got := analysis.SegmentURL("a1", "s1", "mezzanine"); got != "/api/segment/a1/mezzanine/scene_s1_mezzanine.mp4" {
		t.Fatalf("unexpected url %q", got)
	}
	if got := layout.SourcePath("a1", "../etc/clip.mov"); got != "/store/a1/source/clip.mov" {
		t.Fatalf("unexpected source path %q", got)
	}
}

func TestSchemaMismatch(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	_ = store.Close()

	db, err := sql.Open("sqlite", cfg.DatabasePath())
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if _, err := db.Exec("UPDATE schema_version SET version = 99"); err != nil {
		t.Fatalf("bump version: %v", err)
	}
	_ = db.Close()

	if _, err := analysis.Open(cfg); !errors.Is(err, analysis.ErrSchemaMismatch) {
		t.Fatalf("expected schema mismatch, got %v", err)
	}
}
