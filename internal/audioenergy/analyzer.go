package audioenergy

import (
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"
	"time"

	"scenecut/internal/logging"
	"scenecut/internal/media/ffmpeg"
	"scenecut/internal/media/timecode"
	"scenecut/internal/metadata"
	"scenecut/internal/services"
)

const (
	// DefaultInterval is the sampling window in seconds.
	DefaultInterval = 1.0
	// DefaultThreshold is the volume at or above which an interval is high energy.
	DefaultThreshold = 0.7

	decodeSampleRate = 16000
	// fullScaleRMS maps to volume 1.0; louder intervals are clamped.
	fullScaleRMS = 0.05
	silenceRMS   = 1e-5
)

// Sample is the loudness of one interval.
type Sample struct {
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Volume     float64 `json:"volume"`
	HighEnergy bool    `json:"high_energy"`
}

// Options tunes the analysis. Zero values select the defaults.
type Options struct {
	Interval  float64
	Threshold *float64
}

func (o Options) resolve() (float64, float64, error) {
	interval := o.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	threshold := DefaultThreshold
	if o.Threshold != nil {
		threshold = *o.Threshold
	}
	if threshold < 0 || threshold > 1 || math.IsNaN(threshold) {
		return 0, 0, services.Wrap(services.ErrValidation, "audio", "analyze", fmt.Sprintf("threshold %v outside [0,1]", threshold), nil)
	}
	return interval, threshold, nil
}

// Analyzer decodes audio with ffmpeg and computes per-interval energy.
type Analyzer struct {
	runner  *ffmpeg.Runner
	timeout time.Duration
	logger  *slog.Logger
}

// NewAnalyzer constructs an analyzer. timeout bounds the decode.
func NewAnalyzer(runner *ffmpeg.Runner, timeout time.Duration, logger *slog.Logger) *Analyzer {
	return &Analyzer{runner: runner, timeout: timeout, logger: logging.NewComponentLogger(logger, "audioenergy")}
}

// Analyze returns one sample per non-empty interval covering [0, duration).
// A source without audio yields an empty slice.
func (a *Analyzer) Analyze(ctx context.Context, path string, meta metadata.VideoMetadata, opts Options) ([]Sample, error) {
	interval, threshold, err := opts.resolve()
	if err != nil {
		return nil, err
	}
	if !meta.HasAudio() {
		return []Sample{}, nil
	}
	duration := meta.Audio.Duration
	if duration <= 0 {
		duration = meta.Duration
	}
	if duration <= 0 {
		return []Sample{}, nil
	}

	acc := newAccumulator(duration, interval, decodeSampleRate)
	_, err = a.runner.Run(ctx, ffmpeg.Invocation{
		Operation: "decode audio",
		Args: []string{
			"-hide_banner", "-nostdin", "-v", "error",
			"-i", path,
			"-vn", "-ac", "1", "-ar", fmt.Sprint(decodeSampleRate),
			"-f", "f32le", "pipe:1",
		},
		Timeout:  a.timeout,
		Stdout:   acc,
		FailKind: services.KindUnreadableMedia,
	})
	if err != nil {
		return nil, err
	}

	samples := acc.samples(threshold)
	logging.WithContext(ctx, a.logger).Debug("audio energy computed",
		logging.Int("interval_count", len(samples)),
		logging.Float64("interval_seconds", interval),
	)
	return samples, nil
}

// accumulator folds little-endian float32 PCM into per-interval sums.
type accumulator struct {
	duration   float64
	interval   float64
	rate       float64
	sums       []float64
	counts     []int64
	seen       int64
	carry      []byte
	numWindows int
}

func newAccumulator(duration, interval float64, rate int) *accumulator {
	n := int(math.Ceil(duration/interval - 1e-9))
	if n < 1 {
		n = 1
	}
	return &accumulator{
		duration:   duration,
		interval:   interval,
		rate:       float64(rate),
		sums:       make([]float64, n),
		counts:     make([]int64, n),
		numWindows: n,
	}
}

func (a *accumulator) Write(p []byte) (int, error) {
	data := p
	if len(a.carry) > 0 {
		data = append(a.carry, p...)
		a.carry = nil
	}
	whole := len(data) - len(data)%4
	for off := 0; off < whole; off += 4 {
		v := float64(math.Float32frombits(binary.LittleEndian.Uint32(data[off:])))
		t := float64(a.seen) / a.rate
		a.seen++
		if t >= a.duration {
			continue
		}
		idx := int(t / a.interval)
		if idx >= a.numWindows {
			continue
		}
		a.sums[idx] += v * v
		a.counts[idx]++
	}
	if whole < len(data) {
		a.carry = append([]byte(nil), data[whole:]...)
	}
	return len(p), nil
}

func (a *accumulator) samples(threshold float64) []Sample {
	out := make([]Sample, 0, a.numWindows)
	for i := 0; i < a.numWindows; i++ {
		if a.counts[i] == 0 {
			continue
		}
		start := float64(i) * a.interval
		end := math.Min(float64(i+1)*a.interval, a.duration)
		volume := Volume(math.Sqrt(a.sums[i] / float64(a.counts[i])))
		out = append(out, Sample{
			Start:      timecode.Round(start, 2),
			End:        timecode.Round(end, 2),
			Volume:     timecode.Round(volume, 3),
			HighEnergy: volume >= threshold,
		})
	}
	return out
}

// Volume normalizes an RMS amplitude to [0,1].
func Volume(rms float64) float64 {
	if rms <= silenceRMS || math.IsNaN(rms) {
		return 0
	}
	return math.Min(1, rms/fullScaleRMS)
}
