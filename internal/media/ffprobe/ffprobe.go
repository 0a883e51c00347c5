package ffprobe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"scenecut/internal/media/ffmpeg"
	"scenecut/internal/services"
)

// Result represents the parsed output from an ffprobe inspection.
type Result struct {
	Streams []Stream `json:"streams"`
	Format  Format   `json:"format"`
	raw     []byte
}

// Stream describes a single stream in the media container.
type Stream struct {
	Index        int    `json:"index"`
	CodecName    string `json:"codec_name"`
	CodecType    string `json:"codec_type"`
	Duration     string `json:"duration"`
	BitRate      string `json:"bit_rate"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	RFrameRate   string `json:"r_frame_rate"`
	AvgFrameRate string `json:"avg_frame_rate"`
	NBFrames     string `json:"nb_frames"`
	SampleRate   string `json:"sample_rate"`
	Channels     int    `json:"channels"`
}

// Format captures container-level metadata extracted by ffprobe.
type Format struct {
	Filename   string `json:"filename"`
	NBStreams  int    `json:"nb_streams"`
	Duration   string `json:"duration"`
	Size       string `json:"size"`
	BitRate    string `json:"bit_rate"`
	FormatName string `json:"format_name"`
}

// Inspect executes ffprobe against the provided path and decodes the JSON
// response. Failures are tagged UnreadableMedia.
func Inspect(ctx context.Context, runner *ffmpeg.Runner, path string, timeout time.Duration) (Result, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return Result{}, errors.New("ffprobe inspect: empty path")
	}

	var stdout bytes.Buffer
	_, err := runner.Run(ctx, ffmpeg.Invocation{
		Operation:   "ffprobe",
		Args:        []string{"-v", "error", "-hide_banner", "-show_format", "-show_streams", "-of", "json", "--", path},
		Timeout:     timeout,
		Stdout:      &stdout,
		FailKind:    services.KindUnreadableMedia,
		TimeoutKind: services.KindUnreadableMedia,
	})
	if err != nil {
		return Result{}, err
	}

	var result Result
	if err := json.Unmarshal(stdout.Bytes(), &result); err != nil {
		return Result{}, services.NewError(services.KindUnreadableMedia, "ffprobe", "parse json", err)
	}
	result.raw = append([]byte(nil), stdout.Bytes()...)
	return result, nil
}

// RawJSON returns the raw ffprobe JSON payload.
func (r Result) RawJSON() []byte {
	return append([]byte(nil), r.raw...)
}

// VideoStream returns the first video stream.
func (r Result) VideoStream() (Stream, bool) {
	return r.firstOfType("video")
}

// AudioStream returns the first audio stream.
func (r Result) AudioStream() (Stream, bool) {
	return r.firstOfType("audio")
}

func (r Result) firstOfType(kind string) (Stream, bool) {
	for _, stream := range r.Streams {
		if strings.EqualFold(stream.CodecType, kind) {
			return stream, true
		}
	}
	return Stream{}, false
}

// VideoStreamCount returns the number of video streams discovered.
func (r Result) VideoStreamCount() int {
	return r.countOfType("video")
}

// AudioStreamCount returns the number of audio streams discovered.
func (r Result) AudioStreamCount() int {
	return r.countOfType("audio")
}

func (r Result) countOfType(kind string) int {
	count := 0
	for _, stream := range r.Streams {
		if strings.EqualFold(stream.CodecType, kind) {
			count++
		}
	}
	return count
}

// DurationSeconds returns the container duration in seconds, or 0 when unavailable.
func (r Result) DurationSeconds() float64 {
	return parseFloat(r.Format.Duration)
}

// SizeBytes returns the reported container size in bytes, or 0 when unavailable.
func (r Result) SizeBytes() int64 {
	size := parseFloat(r.Format.Size)
	if math.IsNaN(size) || size < 0 {
		return 0
	}
	return int64(size)
}

// FrameRate returns the stream frame rate, preferring avg_frame_rate over
// r_frame_rate. Zero means unknown.
func (s Stream) FrameRate() float64 {
	for _, candidate := range []string{s.AvgFrameRate, s.RFrameRate} {
		if rate := ParseRate(candidate); rate > 0 {
			return rate
		}
	}
	return 0
}

// FrameCount returns nb_frames, or 0 when the container does not report it.
func (s Stream) FrameCount() int64 {
	n, err := strconv.ParseInt(strings.TrimSpace(s.NBFrames), 10, 64)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// DurationSeconds returns the stream duration, or 0 when unavailable.
func (s Stream) DurationSeconds() float64 {
	d := parseFloat(s.Duration)
	if math.IsNaN(d) || d < 0 {
		return 0
	}
	return d
}

// SampleRateHz returns the audio sample rate, or 0 when unavailable.
func (s Stream) SampleRateHz() int {
	n, err := strconv.Atoi(strings.TrimSpace(s.SampleRate))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// ParseRate parses "30000/1001" or "25" into frames per second.
func ParseRate(value string) float64 {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	num, den, found := strings.Cut(value, "/")
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0
	}
	if !found {
		return n
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil || d == 0 {
		return 0
	}
	return n / d
}

func parseFloat(value string) float64 {
	cleaned := strings.TrimSpace(value)
	if cleaned == "" {
		return 0
	}
	if parsed, err := strconv.ParseFloat(cleaned, 64); err == nil {
		return parsed
	}
	return math.NaN()
}

// String summarizes the result for debug logs.
func (r Result) String() string {
	return fmt.Sprintf("streams=%d duration=%s format=%s", len(r.Streams), r.Format.Duration, r.Format.FormatName)
}
