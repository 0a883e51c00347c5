package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"scenecut/internal/export"
	"scenecut/internal/metrics"
	"scenecut/internal/pipeline"
	"scenecut/internal/scenes"
	"scenecut/internal/testsupport"
)

func TestConfigInitAndValidate(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"config", "validate"}, env.configPath)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")
	requireContains(t, out, env.cfg.Paths.StoreDir)

	target := filepath.Join(t.TempDir(), "config.toml")
	out, _, err = runCLI(t, []string{"config", "init", "--path", target}, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, ""); err == nil {
		t.Fatal("expected init to refuse overwriting without --overwrite")
	}
}

func TestListAndShow(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"list"}, env.configPath)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	requireContains(t, out, "No analyses stored")

	a := testsupport.NewAnalysis(t, env.store, "a1", 0, 4, 9)

	out, _, err = runCLI(t, []string{"list"}, env.configPath)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	requireContains(t, out, "a1")
	requireContains(t, out, "source.mp4")

	out, _, err = runCLI(t, []string{"show", "a1"}, env.configPath)
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	requireContains(t, out, "1920x1080")
	requireContains(t, out, "Scene 2")

	out, _, err = runCLI(t, []string{"--json", "show", "a1"}, env.configPath)
	if err != nil {
		t.Fatalf("show --json: %v", err)
	}
	var decoded struct {
		ID     string         `json:"analysis_id"`
		Scenes []scenes.Scene `json:"scenes"`
	}
	if err := json.Unmarshal([]byte(out), &decoded); err != nil {
		t.Fatalf("decode show output: %v\n%s", err, out)
	}
	if decoded.ID != a.ID || len(decoded.Scenes) != 2 || decoded.Scenes[1].StartOriginal != 4 {
		t.Fatalf("unexpected show payload %+v", decoded)
	}

	if _, _, err := runCLI(t, []string{"show", "missing"}, env.configPath); err == nil {
		t.Fatal("expected error for unknown analysis")
	}
}

func TestSceneEdit(t *testing.T) {
	env := setupCLITestEnv(t)
	testsupport.NewAnalysis(t, env.store, "a1", 0, 4, 9)

	out, _, err := runCLI(t, []string{"--json", "scene", "edit", "a1", "a1-scene-b",
		"--title", "  Beach & Pier  ", "--tag", "sun", "--tag", "beach", "--tag", "sun"}, env.configPath)
	if err != nil {
		t.Fatalf("scene edit: %v", err)
	}
	requireContains(t, out, `"title": "Beach & Pier"`)
	var scene scenes.Scene
	if err := json.Unmarshal([]byte(out), &scene); err != nil {
		t.Fatalf("decode scene: %v", err)
	}
	if scene.Title != "Beach & Pier" || len(scene.Tags) != 2 || scene.Tags[0] != "beach" || scene.Tags[1] != "sun" {
		t.Fatalf("unexpected edited scene %+v", scene)
	}

	stored, err := env.store.Get(context.Background(), "a1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if stored.Scenes[1].Title != "Beach & Pier" || stored.Scenes[1].StartOriginal != 4 {
		t.Fatalf("edit not persisted or timing changed: %+v", stored.Scenes[1])
	}

	if _, _, err := runCLI(t, []string{"scene", "edit", "a1", "a1-scene-b"}, env.configPath); err == nil {
		t.Fatal("expected error when nothing is edited")
	}
	if _, _, err := runCLI(t, []string{"scene", "edit", "a1", "a1-scene-b", "--title", " "}, env.configPath); err == nil {
		t.Fatal("expected error for blank title")
	}
}

func TestRenderAndExportWithFakeMedia(t *testing.T) {
	env := setupCLITestEnv(t)
	testsupport.NewAnalysis(t, env.store, "a1", 0, 4, 9)
	exec := &testsupport.FakeExecutor{Handle: testsupport.WriteOutput("segment")}
	now := time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC)
	opts := []pipeline.Option{pipeline.WithExecutor(exec), pipeline.WithClock(func() time.Time { return now })}

	out, _, err := runCLI(t, []string{"--json", "render", "a1"}, env.configPath, opts...)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	var report pipeline.Report
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("decode render report: %v", err)
	}
	if report.Rendered != 2 || report.Failed != 0 {
		t.Fatalf("unexpected render report %+v", report)
	}

	out, _, err = runCLI(t, []string{"--json", "export", "a1", "--scene", "a1-scene-b", "--scene", "a1-scene-a", "--name", "Best Of"}, env.configPath, opts...)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	var res export.Result
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("decode export result: %v", err)
	}
	if res.SegmentCount != 2 {
		t.Fatalf("expected 2 segments, got %d", res.SegmentCount)
	}
	if filepath.Base(res.OutputPath) != "Best_Of_20260301_123000.mp4" {
		t.Fatalf("unexpected export name %q", res.OutputPath)
	}
	if _, err := os.Stat(res.OutputPath); err != nil {
		t.Fatalf("export missing on disk: %v", err)
	}

	out, _, err = runCLI(t, []string{"--json", "metrics", "--analysis", "a1"}, env.configPath)
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	var summary metrics.Summary
	if err := json.Unmarshal([]byte(out), &summary); err != nil {
		t.Fatalf("decode metrics: %v", err)
	}
	if summary.Total == 0 || summary.Failures != 0 {
		t.Fatalf("unexpected metrics summary %+v", summary)
	}
}

func TestTrimRequiresDuration(t *testing.T) {
	env := setupCLITestEnv(t)
	testsupport.NewAnalysis(t, env.store, "a1", 0, 4, 9)

	_, _, err := runCLI(t, []string{"trim", "a1", "a1-scene-a", "--start", "1"}, env.configPath)
	if err == nil {
		t.Fatal("expected error without --duration")
	}
	requireContains(t, err.Error(), "--duration")
}

func TestCacheStats(t *testing.T) {
	env := setupCLITestEnv(t)
	testsupport.NewAnalysis(t, env.store, "a1", 0, 4)
	segment := env.store.Layout().SegmentPath("a1", "a1-scene-a", "proxy")
	testsupport.WriteFile(t, segment, 1024)

	out, _, err := runCLI(t, []string{"--json", "cache", "stats"}, env.configPath)
	if err != nil {
		t.Fatalf("cache stats: %v", err)
	}
	var stats struct {
		Entries    int   `json:"entries"`
		TotalBytes int64 `json:"total_bytes"`
	}
	if err := json.Unmarshal([]byte(out), &stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.Entries != 1 || stats.TotalBytes != 1024 {
		t.Fatalf("unexpected cache stats %+v", stats)
	}
}

func TestStatusReady(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"--json", "status"}, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	var report statusReport
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if !report.Ready {
		t.Fatalf("expected ready status, got %+v", report)
	}

	out, _, err = runCLI(t, []string{"status"}, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "Store directory")
	requireContains(t, out, "[OK]")
}
