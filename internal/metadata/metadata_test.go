package metadata_test

import (
	"context"
	"errors"
	"io"
	"math"
	"path/filepath"
	"testing"

	"scenecut/internal/media/ffmpeg"
	"scenecut/internal/metadata"
	"scenecut/internal/services"
	"scenecut/internal/testsupport"
)

const sampleBanner = `Input #0, mov,mp4,m4a,3gp,3g2,mj2, from 'clip.mp4':
  Metadata:
    major_brand     : isom
  Duration: 00:00:12.00, start: 0.000000, bitrate: 1205 kb/s
  Stream #0:0[0x1](und): Video: h264 (High) (avc1 / 0x31637661), yuv420p(tv, bt709, progressive), 1920x1080 [SAR 1:1 DAR 16:9], 1070 kb/s, 25 fps, 25 tbr, 12800 tbn (default)
  Stream #0:1[0x2](und): Audio: aac (LC) (mp4a / 0x6134706D), 48000 Hz, stereo, fltp, 128 kb/s (default)
At least one output file must be specified
`

func newExtractor(exec *testsupport.FakeExecutor) *metadata.Extractor {
	probe := ffmpeg.NewRunner("ffprobe", ffmpeg.WithExecutor(exec))
	ff := ffmpeg.NewRunner("ffmpeg", ffmpeg.WithExecutor(exec))
	return metadata.NewExtractor(probe, ff, 0, nil)
}

func TestExtractUsesProbe(t *testing.T) {
	src := filepath.Join(t.TempDir(), "clip.mp4")
	testsupport.WriteFile(t, src, 16)

	exec := &testsupport.FakeExecutor{Handle: func(_ context.Context, call testsupport.Call, stdout, _ io.Writer) error {
		if call.Binary != "ffprobe" {
			t.Fatalf("unexpected binary %s", call.Binary)
		}
		_, _ = io.WriteString(stdout, `{"streams":[
			{"codec_type":"video","width":1280,"height":720,"avg_frame_rate":"30/1","nb_frames":"360"},
			{"codec_type":"audio","sample_rate":"44100","channels":2,"duration":"12.01"}],
			"format":{"duration":"12.05"}}`)
		return nil
	}}

	meta, err := newExtractor(exec).Extract(context.Background(), src)
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	if meta.Duration != 12 {
		t.Fatalf("expected frame-derived duration 12, got %v", meta.Duration)
	}
	if meta.FPS != 30 || meta.FrameCount != 360 || meta.Width != 1280 || meta.Height != 720 {
		t.Fatalf("unexpected metadata %+v", meta)
	}
	if !meta.HasAudio() || meta.Audio.SampleRate != 44100 || meta.Audio.Channels != 2 {
		t.Fatalf("unexpected audio %+v", meta.Audio)
	}
	if meta.Backend != "ffprobe" {
		t.Fatalf("unexpected backend %q", meta.Backend)
	}
}

func TestExtractFallsBackToContainerDuration(t *testing.T) {
	src := filepath.Join(t.TempDir(), "clip.mp4")
	testsupport.WriteFile(t, src, 16)

	exec := &testsupport.FakeExecutor{Handle: func(_ context.Context, _ testsupport.Call, stdout, _ io.Writer) error {
		_, _ = io.WriteString(stdout, `{"streams":[{"codec_type":"video","width":640,"height":360,"r_frame_rate":"24/1"}],"format":{"duration":"10.5"}}`)
		return nil
	}}

	meta, err := newExtractor(exec).Extract(context.Background(), src)
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	if meta.Duration != 10.5 {
		t.Fatalf("expected container duration, got %v", meta.Duration)
	}
	if meta.FrameCount != 252 {
		t.Fatalf("expected estimated frame count 252, got %d", meta.FrameCount)
	}
	if meta.HasAudio() {
		t.Fatal("expected no audio")
	}
}

func TestExtractFallsBackToBanner(t *testing.T) {
	src := filepath.Join(t.TempDir(), "clip.mp4")
	testsupport.WriteFile(t, src, 16)

	exec := &testsupport.FakeExecutor{Handle: func(_ context.Context, call testsupport.Call, _, stderr io.Writer) error {
		if call.Binary == "ffprobe" {
			return errors.New("exit status 1")
		}
		_, _ = io.WriteString(stderr, sampleBanner)
		return errors.New("exit status 1")
	}}

	meta, err := newExtractor(exec).Extract(context.Background(), src)
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	if meta.Backend != "ffmpeg" {
		t.Fatalf("expected ffmpeg backend, got %q", meta.Backend)
	}
	if meta.Duration != 12 || meta.FPS != 25 || meta.FrameCount != 300 {
		t.Fatalf("unexpected metadata %+v", meta)
	}
	if meta.Width != 1920 || meta.Height != 1080 {
		t.Fatalf("unexpected geometry %dx%d", meta.Width, meta.Height)
	}
	if meta.Audio == nil || meta.Audio.SampleRate != 48000 || meta.Audio.Channels != 2 {
		t.Fatalf("unexpected audio %+v", meta.Audio)
	}
}

func TestExtractUnreadableWhenBothBackendsFail(t *testing.T) {
	src := filepath.Join(t.TempDir(), "garbage.bin")
	testsupport.WriteFile(t, src, 16)

	exec := &testsupport.FakeExecutor{Handle: func(_ context.Context, _ testsupport.Call, _, stderr io.Writer) error {
		_, _ = io.WriteString(stderr, "garbage.bin: Invalid data found when processing input\n")
		return errors.New("exit status 1")
	}}

	_, err := newExtractor(exec).Extract(context.Background(), src)
	if !errors.Is(err, services.ErrUnreadableMedia) {
		t.Fatalf("expected UnreadableMedia, got %v", err)
	}
}

func TestExtractMissingSource(t *testing.T) {
	exec := &testsupport.FakeExecutor{}
	_, err := newExtractor(exec).Extract(context.Background(), filepath.Join(t.TempDir(), "missing.mp4"))
	if !errors.Is(err, services.ErrSourceNotFound) {
		t.Fatalf("expected SourceNotFound, got %v", err)
	}
	if len(exec.Calls()) != 0 {
		t.Fatal("no tool should run for a missing source")
	}
}

func TestParseBannerChannelLayouts(t *testing.T) {
	banner := "  Duration: 00:01:00.50, start: 0.0\n" +
		"  Stream #0:0: Video: mpeg4, yuv420p, 640x480, 29.97 fps, 29.97 tbr\n" +
		"  Stream #0:1: Audio: ac3, 48000 Hz, 5.1(side), fltp, 384 kb/s\n"
	meta, err := metadata.ParseBanner(banner)
	if err != nil {
		t.Fatalf("ParseBanner returned error: %v", err)
	}
	if meta.Duration != 60.5 || math.Abs(meta.FPS-29.97) > 1e-9 {
		t.Fatalf("unexpected metadata %+v", meta)
	}
	if meta.Audio == nil || meta.Audio.Channels != 6 {
		t.Fatalf("unexpected audio %+v", meta.Audio)
	}
	if _, err := metadata.ParseBanner("no streams here"); err == nil {
		t.Fatal("expected error without a video stream")
	}
}
