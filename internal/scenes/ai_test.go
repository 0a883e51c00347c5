package scenes_test

import (
	"context"
	"errors"
	"io"
	"os"
	"reflect"
	"testing"

	"scenecut/internal/media/ffmpeg"
	"scenecut/internal/metadata"
	"scenecut/internal/scenes"
	"scenecut/internal/testsupport"
)

type stubDetector struct {
	windows []scenes.Window
}

func (s stubDetector) Detect(context.Context, scenes.Request) ([]scenes.Window, error) {
	return append([]scenes.Window(nil), s.windows...), nil
}

func (stubDetector) Method() scenes.Method { return scenes.MethodCut }

type stubTranscriber struct {
	available  bool
	utterances []scenes.Utterance
	err        error
	seenPath   string
	existed    bool
}

func (s *stubTranscriber) Available(context.Context) bool { return s.available }

func (s *stubTranscriber) Transcribe(_ context.Context, path string) ([]scenes.Utterance, error) {
	s.seenPath = path
	_, err := os.Stat(path)
	s.existed = err == nil
	return s.utterances, s.err
}

func visualWindows(bounds ...float64) []scenes.Window {
	out := make([]scenes.Window, 0, len(bounds)-1)
	for i := 0; i+1 < len(bounds); i++ {
		out = append(out, scenes.Window{Start: bounds[i], End: bounds[i+1], Transition: scenes.TransitionCut})
	}
	return out
}

func newAIDetector(t *testing.T, visual []scenes.Window, tr scenes.Transcriber) (*scenes.AIDetector, *testsupport.FakeExecutor) {
	t.Helper()
	exec := &testsupport.FakeExecutor{Handle: testsupport.WriteOutput("RIFF")}
	runner := ffmpeg.NewRunner("ffmpeg", ffmpeg.WithExecutor(exec))
	return scenes.NewAIDetector(stubDetector{windows: visual}, runner, tr, scenes.AIOptions{ScratchDir: t.TempDir()}), exec
}

var withAudio = scenes.Request{
	Source:   "clip.mp4",
	Metadata: metadata.VideoMetadata{Duration: 12, FPS: 25, Audio: &metadata.AudioInfo{Channels: 2, SampleRate: 48000, Duration: 12}},
}

func TestAIDetectorMergesTopicBoundaries(t *testing.T) {
	tr := &stubTranscriber{available: true, utterances: []scenes.Utterance{
		{Start: 0.5, End: 6.0, Text: " Hello there. "},
		{Start: 6.5, End: 8.0, Text: "and more"},
	}}
	detector, exec := newAIDetector(t, visualWindows(0, 4, 9, 12), tr)

	windows, err := detector.Detect(context.Background(), withAudio)
	if err != nil {
		t.Fatalf("Detect returned error: %v", err)
	}
	wantBounds := [][2]float64{{0, 4}, {4, 6}, {6, 9}, {9, 12}}
	if len(windows) != len(wantBounds) {
		t.Fatalf("expected %d windows, got %+v", len(wantBounds), windows)
	}
	for i, w := range windows {
		if w.Start != wantBounds[i][0] || w.End != wantBounds[i][1] {
			t.Fatalf("window %d = [%v,%v], want %v", i, w.Start, w.End, wantBounds[i])
		}
	}
	if windows[2].Transition != scenes.TransitionTopicChange {
		t.Fatalf("expected topic-change at 6, got %q", windows[2].Transition)
	}
	if windows[0].Transcript != "Hello there." || *windows[0].Confidence != 0.8 {
		t.Fatalf("unexpected first window %+v", windows[0])
	}
	if windows[2].Transcript != "and more" || !reflect.DeepEqual(windows[2].Topics, []string{"and more"}) {
		t.Fatalf("unexpected third window %+v", windows[2])
	}
	if windows[3].Transcript != "" || *windows[3].Confidence != 0.6 || len(windows[3].Topics) != 0 {
		t.Fatalf("unexpected silent window %+v", windows[3])
	}

	if !tr.existed {
		t.Fatal("transcriber should receive an extracted audio file")
	}
	if _, err := os.Stat(tr.seenPath); !os.IsNotExist(err) {
		t.Fatalf("expected extracted audio to be removed, stat err=%v", err)
	}
	call := exec.Calls()[0]
	if call.ArgAfter("-ar") != "16000" || call.ArgAfter("-ac") != "1" || call.ArgAfter("-c:a") != "pcm_s16le" {
		t.Fatalf("unexpected extraction args %v", call.Args)
	}
}

func TestAIDetectorDegradesToVisual(t *testing.T) {
	visual := visualWindows(0, 4, 9, 12)
	cases := map[string]*stubTranscriber{
		"unavailable":   {available: false},
		"transcription": {available: true, err: errors.New("whisperx crashed")},
	}
	for name, tr := range cases {
		t.Run(name, func(t *testing.T) {
			detector, _ := newAIDetector(t, visual, tr)
			windows, err := detector.Detect(context.Background(), withAudio)
			if err != nil {
				t.Fatalf("Detect returned error: %v", err)
			}
			if !reflect.DeepEqual(windows, visual) {
				t.Fatalf("expected visual windows unchanged, got %+v", windows)
			}
		})
	}
}

func TestAIDetectorExtractionFailure(t *testing.T) {
	visual := visualWindows(0, 12)
	tr := &stubTranscriber{available: true}
	exec := &testsupport.FakeExecutor{Handle: func(context.Context, testsupport.Call, io.Writer, io.Writer) error {
		return errors.New("exit status 1")
	}}
	detector := scenes.NewAIDetector(stubDetector{windows: visual}, ffmpeg.NewRunner("ffmpeg", ffmpeg.WithExecutor(exec)), tr, scenes.AIOptions{ScratchDir: t.TempDir()})

	windows, err := detector.Detect(context.Background(), withAudio)
	if err != nil {
		t.Fatalf("Detect returned error: %v", err)
	}
	if !reflect.DeepEqual(windows, visual) {
		t.Fatalf("expected visual windows unchanged, got %+v", windows)
	}
	if tr.seenPath != "" {
		t.Fatal("transcriber should not run when extraction fails")
	}
}

func TestAIDetectorSkipsSilentSource(t *testing.T) {
	visual := visualWindows(0, 12)
	tr := &stubTranscriber{available: true}
	detector, exec := newAIDetector(t, visual, tr)
	req := withAudio
	req.Metadata.Audio = nil
	windows, err := detector.Detect(context.Background(), req)
	if err != nil {
		t.Fatalf("Detect returned error: %v", err)
	}
	if !reflect.DeepEqual(windows, visual) || len(exec.Calls()) != 0 {
		t.Fatalf("expected visual result without extraction, got %+v", windows)
	}
}

func TestTopicBoundaries(t *testing.T) {
	utterances := []scenes.Utterance{
		{Start: 0, End: 3, Text: "Too early."},
		{Start: 3, End: 6, Text: "First topic ends here."},
		{Start: 6, End: 9, Text: "Is this close?"},
		{Start: 9, End: 12, Text: "no punctuation"},
		{Start: 14, End: 16, Text: "after a pause"},
		{Start: 16.5, End: 18, Text: "trailing words"},
	}
	got := scenes.TopicBoundaries(utterances, 20)
	want := []float64{6, 12}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("TopicBoundaries = %v, want %v", got, want)
	}
}

func TestCombineBoundariesMergesShortPieces(t *testing.T) {
	windows := scenes.CombineBoundaries(visualWindows(0, 4, 9, 12), []float64{10}, nil)
	want := [][2]float64{{0, 4}, {4, 10}, {10, 12}}
	if len(windows) != len(want) {
		t.Fatalf("expected %d windows, got %+v", len(want), windows)
	}
	for i, w := range windows {
		if w.Start != want[i][0] || w.End != want[i][1] {
			t.Fatalf("window %d = [%v,%v], want %v", i, w.Start, w.End, want[i])
		}
	}
	if windows[2].Transition != scenes.TransitionTopicChange {
		t.Fatalf("expected topic-change, got %q", windows[2].Transition)
	}
}

func TestCombineBoundariesMergesShortHead(t *testing.T) {
	windows := scenes.CombineBoundaries(visualWindows(0, 1.5, 8), nil, nil)
	if len(windows) != 1 || windows[0].Start != 0 || windows[0].End != 8 {
		t.Fatalf("expected a single [0,8] window, got %+v", windows)
	}
}
