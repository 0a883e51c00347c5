package scenes_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"

	"scenecut/internal/audioenergy"
	"scenecut/internal/scenes"
)

func sequentialIDs() scenes.IDFunc {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("scene-%d", n)
	}
}

func TestAnnotateAveragesOverlappingSamples(t *testing.T) {
	windows := visualWindows(0, 2, 4)
	samples := []audioenergy.Sample{
		{Start: 0, End: 1, Volume: 0.2},
		{Start: 1, End: 2, Volume: 0.9, HighEnergy: true},
		{Start: 2, End: 3, Volume: 0.1},
		{Start: 3, End: 4, Volume: 0.3},
	}
	got := scenes.Annotate(windows, samples, scenes.MethodCut, sequentialIDs())
	if len(got) != 2 {
		t.Fatalf("expected 2 scenes, got %d", len(got))
	}

	// The sample [2,3] touches the first window's end, so it counts for both.
	first := got[0]
	if first.AvgVolume != 0.4 || !bool(first.HighEnergy) {
		t.Fatalf("unexpected first scene energy: avg=%v high=%v", first.AvgVolume, first.HighEnergy)
	}
	second := got[1]
	if second.AvgVolume != 0.433 || !bool(second.HighEnergy) {
		t.Fatalf("unexpected second scene energy: avg=%v high=%v", second.AvgVolume, second.HighEnergy)
	}

	if first.SceneID != "scene-1" || second.SceneID != "scene-2" {
		t.Fatalf("unexpected ids %q %q", first.SceneID, second.SceneID)
	}
	if second.Title != "Scene 2" || second.Index != 1 {
		t.Fatalf("unexpected title/index %q %d", second.Title, second.Index)
	}
	if second.StartOriginal != 2 || second.EndOriginal != 4 || second.CurrentTrimmedStart != 0 || second.CurrentTrimmedDuration != 2 {
		t.Fatalf("unexpected trim window %+v", second)
	}
	if second.Tags == nil || len(second.Tags) != 0 {
		t.Fatalf("expected empty tags, got %#v", second.Tags)
	}
	if second.SegmentationMethod != scenes.MethodCut {
		t.Fatalf("unexpected method %q", second.SegmentationMethod)
	}
}

func TestAnnotateWithoutSamples(t *testing.T) {
	got := scenes.Annotate(visualWindows(0, 5), nil, scenes.MethodCut, nil)
	if got[0].AvgVolume != 0 || bool(got[0].HighEnergy) {
		t.Fatalf("expected silent scene, got %+v", got[0])
	}
	if len(got[0].SceneID) != 36 {
		t.Fatalf("expected uuid scene id, got %q", got[0].SceneID)
	}
}

func TestAnnotateCarriesTranscriptForAI(t *testing.T) {
	confidence := 0.8
	windows := []scenes.Window{{Start: 0, End: 6, Transition: scenes.TransitionCut, Transcript: "hello world", Topics: []string{"hello world"}, Confidence: &confidence}}
	got := scenes.Annotate(windows, nil, scenes.MethodAI, sequentialIDs())
	if got[0].Transcript != "hello world" || *got[0].Confidence != 0.8 || !reflect.DeepEqual(got[0].Topics, []string{"hello world"}) {
		t.Fatalf("AI fields missing: %+v", got[0])
	}
}

func TestSceneJSONShape(t *testing.T) {
	scene := scenes.Annotate(visualWindows(0, 3), []audioenergy.Sample{{Start: 0, End: 1, Volume: 0.8, HighEnergy: true}}, scenes.MethodCut, sequentialIDs())[0]
	data, err := json.Marshal(scene)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	text := string(data)
	for _, want := range []string{`"sceneId":"scene-1"`, `"high_energy":1`, `"transition_type":"cut"`, `"segmentation_method":"cut-based"`, `"tags":[]`} {
		if !strings.Contains(text, want) {
			t.Fatalf("expected %s in %s", want, text)
		}
	}
	if strings.Contains(text, "transcript") || strings.Contains(text, "proxy_video_url") {
		t.Fatalf("unexpected optional fields in %s", text)
	}

	var decoded scenes.Scene
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !bool(decoded.HighEnergy) {
		t.Fatal("expected high_energy to decode as true")
	}
}

func TestEditApply(t *testing.T) {
	scene := scenes.Annotate(visualWindows(0, 3), nil, scenes.MethodCut, sequentialIDs())[0]

	title := "  Opening shot  "
	if err := (scenes.Edit{Title: &title, Tags: []string{" b", "a", "", "b "}}).Apply(&scene); err != nil {
		t.Fatalf("Apply returned error: %v", err)
	}
	if scene.Title != "Opening shot" {
		t.Fatalf("unexpected title %q", scene.Title)
	}
	if !reflect.DeepEqual(scene.Tags, []string{"a", "b"}) {
		t.Fatalf("unexpected tags %v", scene.Tags)
	}

	blank := "   "
	if err := (scenes.Edit{Title: &blank}).Apply(&scene); !errors.Is(err, scenes.ErrEmptyTitle) {
		t.Fatalf("expected ErrEmptyTitle, got %v", err)
	}
	if scene.Title != "Opening shot" {
		t.Fatal("failed edit must not change the title")
	}

	if err := (scenes.Edit{ReplaceTags: true}).Apply(&scene); err != nil {
		t.Fatalf("Apply returned error: %v", err)
	}
	if len(scene.Tags) != 0 {
		t.Fatalf("expected tags cleared, got %v", scene.Tags)
	}
}

func TestParseMethod(t *testing.T) {
	for input, want := range map[string]scenes.Method{"cut": scenes.MethodCut, "AI": scenes.MethodAI, "ai-based": scenes.MethodAI, "": scenes.MethodCut} {
		got, err := scenes.ParseMethod(input)
		if err != nil || got != want {
			t.Fatalf("ParseMethod(%q) = %q, %v", input, got, err)
		}
	}
	if _, err := scenes.ParseMethod("histogram"); err == nil {
		t.Fatal("expected error for unknown method")
	}
}

func TestSceneValidate(t *testing.T) {
	scene := scenes.Annotate(visualWindows(0, 3), nil, scenes.MethodCut, sequentialIDs())[0]
	if err := scene.Validate(); err != nil {
		t.Fatalf("fresh scene should validate: %v", err)
	}
	scene.EndOriginal = scene.StartOriginal
	if err := scene.Validate(); err == nil {
		t.Fatal("expected error for empty window")
	}
}
