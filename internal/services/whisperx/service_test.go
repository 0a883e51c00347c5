package whisperx_test

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"scenecut/internal/media/ffmpeg"
	"scenecut/internal/services"
	"scenecut/internal/services/whisperx"
	"scenecut/internal/testsupport"
)

func writeTranscript(body string) testsupport.HandlerFunc {
	return func(_ context.Context, call testsupport.Call, _, _ io.Writer) error {
		source := call.Args[indexOf(call.Args, "whisperx")+1]
		base := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
		return os.WriteFile(filepath.Join(call.ArgAfter("--output_dir"), base+".json"), []byte(body), 0o644)
	}
}

func indexOf(args []string, value string) int {
	for i, a := range args {
		if a == value {
			return i
		}
	}
	return -1
}

func TestTranscribeParsesSegments(t *testing.T) {
	exec := &testsupport.FakeExecutor{Handle: writeTranscript(`{"segments":[
		{"start":0.5,"end":2.25,"text":" Welcome back. "},
		{"start":2.5,"end":3.0,"text":"   "},
		{"start":3.1,"end":5.0,"text":"Today we cook?"}
	]}`)}
	workDir := t.TempDir()
	svc := whisperx.NewService(whisperx.Config{
		Model:     "small",
		VADMethod: whisperx.VADMethodPyannote,
		HFToken:   "hf-secret",
		Language:  "eng",
		WorkDir:   workDir,
	}, ffmpeg.NewRunner("uvx", ffmpeg.WithExecutor(exec)), nil)

	utterances, err := svc.Transcribe(context.Background(), "/tmp/transcribe-123.wav")
	if err != nil {
		t.Fatalf("Transcribe returned error: %v", err)
	}
	if len(utterances) != 2 {
		t.Fatalf("expected 2 utterances, got %+v", utterances)
	}
	if utterances[0].Text != "Welcome back." || utterances[1].Start != 3.1 {
		t.Fatalf("unexpected utterances %+v", utterances)
	}

	call := exec.Calls()[0]
	if call.Binary != "uvx" {
		t.Fatalf("expected uvx, got %q", call.Binary)
	}
	checks := map[string]string{
		"--model":         "small",
		"--language":      "en",
		"--vad_method":    "pyannote",
		"--hf_token":      "hf-secret",
		"--device":        "cpu",
		"--output_format": "json",
	}
	for flag, want := range checks {
		if got := call.ArgAfter(flag); got != want {
			t.Fatalf("%s = %q, want %q", flag, got, want)
		}
	}
	entries, _ := os.ReadDir(workDir)
	if len(entries) != 0 {
		t.Fatalf("expected output dir cleanup, found %d entries", len(entries))
	}
}

func TestTranscribeFailure(t *testing.T) {
	exec := &testsupport.FakeExecutor{Handle: func(_ context.Context, _ testsupport.Call, _, stderr io.Writer) error {
		_, _ = io.WriteString(stderr, "CUDA out of memory\n")
		return errors.New("exit status 1")
	}}
	svc := whisperx.NewService(whisperx.Config{WorkDir: t.TempDir(), CUDAEnabled: true}, ffmpeg.NewRunner("uvx", ffmpeg.WithExecutor(exec)), nil)
	_, err := svc.Transcribe(context.Background(), "/tmp/audio.wav")
	if !errors.Is(err, services.ErrTranscodeFailed) {
		t.Fatalf("expected TranscodeFailed, got %v", err)
	}
	if got := exec.Calls()[0].ArgAfter("--device"); got != "cuda" {
		t.Fatalf("expected cuda device, got %q", got)
	}
}

func TestTranscribeMissingOutput(t *testing.T) {
	exec := &testsupport.FakeExecutor{}
	svc := whisperx.NewService(whisperx.Config{WorkDir: t.TempDir()}, ffmpeg.NewRunner("uvx", ffmpeg.WithExecutor(exec)), nil)
	if _, err := svc.Transcribe(context.Background(), "/tmp/audio.wav"); !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
}

func TestAvailable(t *testing.T) {
	runner := ffmpeg.NewRunner("uvx", ffmpeg.WithExecutor(&testsupport.FakeExecutor{}))
	found := whisperx.NewService(whisperx.Config{}, runner, nil, whisperx.WithLookPath(func(string) (string, error) { return "/usr/bin/uvx", nil }))
	if !found.Available(context.Background()) {
		t.Fatal("expected available")
	}
	missing := whisperx.NewService(whisperx.Config{}, runner, nil, whisperx.WithLookPath(func(string) (string, error) { return "", errors.New("not found") }))
	if missing.Available(context.Background()) {
		t.Fatal("expected unavailable")
	}
}

func TestLanguageCode(t *testing.T) {
	cases := map[string]string{
		"":      "",
		"en":    "en",
		"eng":   "en",
		"en-US": "en",
		"de":    "de",
		"xx-!!": "",
	}
	for input, want := range cases {
		if got := whisperx.LanguageCode(input); got != want {
			t.Fatalf("LanguageCode(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestEnviron(t *testing.T) {
	t.Setenv("TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD", "")
	found := false
	for _, kv := range whisperx.Environ() {
		if kv == "TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD=1" {
			found = true
		}
	}
	if !found {
		t.Fatal("expected torch override in environment")
	}
}
