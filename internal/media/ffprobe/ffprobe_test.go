package ffprobe

import (
	"context"
	"errors"
	"io"
	"math"
	"testing"

	"scenecut/internal/media/ffmpeg"
	"scenecut/internal/services"
)

func TestResultHelpers(t *testing.T) {
	result := Result{
		Streams: []Stream{
			{CodecType: "audio", SampleRate: "48000", Channels: 2},
			{CodecType: "video", AvgFrameRate: "30000/1001", RFrameRate: "30/1", NBFrames: "300", Width: 1920, Height: 1080},
			{CodecType: "audio"},
		},
		Format: Format{Duration: "123.45", Size: "1000"},
	}
	if result.VideoStreamCount() != 1 {
		t.Fatalf("expected 1 video stream, got %d", result.VideoStreamCount())
	}
	if result.AudioStreamCount() != 2 {
		t.Fatalf("expected 2 audio streams, got %d", result.AudioStreamCount())
	}
	if result.DurationSeconds() != 123.45 {
		t.Fatalf("unexpected duration: %v", result.DurationSeconds())
	}
	if result.SizeBytes() != 1000 {
		t.Fatalf("unexpected size: %d", result.SizeBytes())
	}
	video, ok := result.VideoStream()
	if !ok {
		t.Fatal("expected video stream")
	}
	if math.Abs(video.FrameRate()-29.97) > 0.01 {
		t.Fatalf("unexpected frame rate %v", video.FrameRate())
	}
	if video.FrameCount() != 300 {
		t.Fatalf("unexpected frame count %d", video.FrameCount())
	}
	audio, ok := result.AudioStream()
	if !ok || audio.SampleRateHz() != 48000 || audio.Channels != 2 {
		t.Fatalf("unexpected audio stream %+v", audio)
	}
}

func TestFrameRateFallsBackToRFrameRate(t *testing.T) {
	s := Stream{AvgFrameRate: "0/0", RFrameRate: "25/1"}
	if s.FrameRate() != 25 {
		t.Fatalf("expected 25, got %v", s.FrameRate())
	}
	if (Stream{}).FrameRate() != 0 {
		t.Fatal("expected unknown frame rate")
	}
}

func TestResultHelpersHandleInvalidNumbers(t *testing.T) {
	result := Result{Format: Format{Duration: "bad", Size: "-1"}}
	if !math.IsNaN(result.DurationSeconds()) {
		t.Fatalf("expected duration NaN, got %v", result.DurationSeconds())
	}
	if result.SizeBytes() != 0 {
		t.Fatalf("expected size 0, got %d", result.SizeBytes())
	}
	if (Stream{NBFrames: "N/A"}).FrameCount() != 0 {
		t.Fatal("expected frame count 0 for N/A")
	}
}

type jsonExecutor struct {
	payload string
	err     error
}

func (j jsonExecutor) Run(_ context.Context, _ string, _ []string, stdout, _ io.Writer) error {
	_, _ = io.WriteString(stdout, j.payload)
	return j.err
}

func TestInspectDecodesJSON(t *testing.T) {
	runner := ffmpeg.NewRunner("ffprobe", ffmpeg.WithExecutor(jsonExecutor{payload: `{"streams":[{"codec_type":"video","width":640,"height":360,"r_frame_rate":"24/1"}],"format":{"duration":"12.0"}}`}))
	result, err := Inspect(context.Background(), runner, "clip.mp4", 0)
	if err != nil {
		t.Fatalf("Inspect returned error: %v", err)
	}
	if result.DurationSeconds() != 12 {
		t.Fatalf("unexpected duration %v", result.DurationSeconds())
	}
	if len(result.RawJSON()) == 0 {
		t.Fatal("expected raw json retained")
	}
}

func TestInspectTagsFailures(t *testing.T) {
	runner := ffmpeg.NewRunner("ffprobe", ffmpeg.WithExecutor(jsonExecutor{err: errors.New("exit status 1")}))
	if _, err := Inspect(context.Background(), runner, "clip.mp4", 0); !errors.Is(err, services.ErrUnreadableMedia) {
		t.Fatalf("expected UnreadableMedia, got %v", err)
	}

	runner = ffmpeg.NewRunner("ffprobe", ffmpeg.WithExecutor(jsonExecutor{payload: "not json"}))
	if _, err := Inspect(context.Background(), runner, "clip.mp4", 0); !errors.Is(err, services.ErrUnreadableMedia) {
		t.Fatalf("expected UnreadableMedia for bad json, got %v", err)
	}
}
