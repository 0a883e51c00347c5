package metadata

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"math"
	"os"
	"time"

	"scenecut/internal/logging"
	"scenecut/internal/media/ffmpeg"
	"scenecut/internal/media/ffprobe"
	"scenecut/internal/services"
)

// AudioInfo describes the primary audio stream.
type AudioInfo struct {
	Channels   int     `json:"channels"`
	SampleRate int     `json:"sample_rate"`
	Duration   float64 `json:"duration"`
}

// VideoMetadata is the immutable summary of a source file.
type VideoMetadata struct {
	Duration   float64    `json:"duration"`
	FPS        float64    `json:"fps"`
	FrameCount int64      `json:"frame_count"`
	Width      int        `json:"width"`
	Height     int        `json:"height"`
	Audio      *AudioInfo `json:"audio,omitempty"`
	// Backend records which tool produced the values (ffprobe or ffmpeg).
	Backend string `json:"backend,omitempty"`
}

// HasAudio reports whether the source carries an audio track.
func (m VideoMetadata) HasAudio() bool {
	return m.Audio != nil
}

// Extractor reads VideoMetadata using ffprobe with an ffmpeg fallback.
type Extractor struct {
	probe   *ffmpeg.Runner
	ffmpeg  *ffmpeg.Runner
	timeout time.Duration
	logger  *slog.Logger
}

// NewExtractor constructs an extractor. timeout bounds each backend call.
func NewExtractor(probe, ff *ffmpeg.Runner, timeout time.Duration, logger *slog.Logger) *Extractor {
	return &Extractor{
		probe:   probe,
		ffmpeg:  ff,
		timeout: timeout,
		logger:  logging.NewComponentLogger(logger, "metadata"),
	}
}

// Extract reads metadata for path. It never modifies the file.
func (e *Extractor) Extract(ctx context.Context, path string) (VideoMetadata, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return VideoMetadata{}, services.NewError(services.KindSourceNotFound, "metadata", path, err)
		}
		return VideoMetadata{}, services.NewError(services.KindUnreadableMedia, "metadata", path, err)
	}
	logger := logging.WithContext(ctx, e.logger)

	meta, probeErr := e.fromProbe(ctx, path)
	if probeErr == nil {
		return meta, nil
	}
	if ctx.Err() != nil {
		return VideoMetadata{}, ctx.Err()
	}
	logging.WarnWithContext(logger, "ffprobe metadata failed; falling back to ffmpeg banner", "metadata_probe_fallback",
		logging.String("source_path", path),
		logging.Error(probeErr),
		logging.String(logging.FieldErrorHint, "verify ffprobe is installed and the file is a complete video"),
		logging.String(logging.FieldImpact, "metadata parsed from ffmpeg output instead"),
	)

	meta, bannerErr := e.fromBanner(ctx, path)
	if bannerErr == nil {
		return meta, nil
	}
	if ctx.Err() != nil {
		return VideoMetadata{}, ctx.Err()
	}
	return VideoMetadata{}, services.NewError(services.KindUnreadableMedia, "metadata", path,
		errors.Join(probeErr, bannerErr))
}

func (e *Extractor) fromProbe(ctx context.Context, path string) (VideoMetadata, error) {
	if e.probe == nil {
		return VideoMetadata{}, errors.New("ffprobe runner not configured")
	}
	result, err := ffprobe.Inspect(ctx, e.probe, path, e.timeout)
	if err != nil {
		return VideoMetadata{}, err
	}
	video, ok := result.VideoStream()
	if !ok {
		return VideoMetadata{}, errors.New("no video stream")
	}
	container := result.DurationSeconds()
	if math.IsNaN(container) {
		container = 0
	}
	if container <= 0 {
		container = video.DurationSeconds()
	}
	meta := VideoMetadata{
		FPS:        video.FrameRate(),
		FrameCount: video.FrameCount(),
		Width:      video.Width,
		Height:     video.Height,
		Backend:    "ffprobe",
	}
	meta.Duration = resolveDuration(meta.FrameCount, meta.FPS, container)
	if meta.FrameCount == 0 && meta.FPS > 0 {
		meta.FrameCount = int64(math.Round(meta.Duration * meta.FPS))
	}
	if audio, ok := result.AudioStream(); ok {
		audioDuration := audio.DurationSeconds()
		if audioDuration <= 0 {
			audioDuration = meta.Duration
		}
		meta.Audio = &AudioInfo{Channels: audio.Channels, SampleRate: audio.SampleRateHz(), Duration: audioDuration}
	}
	return meta, nil
}

func (e *Extractor) fromBanner(ctx context.Context, path string) (VideoMetadata, error) {
	if e.ffmpeg == nil {
		return VideoMetadata{}, errors.New("ffmpeg runner not configured")
	}
	// ffmpeg exits non-zero without an output file; only the banner matters.
	banner, err := e.ffmpeg.Run(ctx, ffmpeg.Invocation{
		Operation:   "ffmpeg banner",
		Args:        []string{"-hide_banner", "-nostdin", "-i", path},
		Timeout:     e.timeout,
		FailKind:    services.KindUnreadableMedia,
		TimeoutKind: services.KindUnreadableMedia,
	})
	if errors.Is(err, services.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return VideoMetadata{}, err
	}
	meta, parseErr := ParseBanner(banner)
	if parseErr != nil {
		if err != nil {
			return VideoMetadata{}, fmt.Errorf("%w (%v)", parseErr, err)
		}
		return VideoMetadata{}, parseErr
	}
	return meta, nil
}

// resolveDuration prefers frame_count / fps when both are known.
func resolveDuration(frames int64, fps, container float64) float64 {
	if frames > 0 && fps > 0 {
		return float64(frames) / fps
	}
	if container > 0 {
		return container
	}
	return 0
}
