package scenes

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"scenecut/internal/logging"
	"scenecut/internal/media/ffmpeg"
	"scenecut/internal/media/timecode"
	"scenecut/internal/services"
)

const (
	DefaultContentThreshold = 27.0
	DefaultFadeThreshold    = 5.0
	DefaultMinSceneFrames   = 5

	// Opening fade-in window for the first scene's transition hint.
	fadeInMinStart = 0.2
	fadeInMaxStart = 2.0

	fallbackFPS = 25.0
)

// CutDetector finds hard cuts and fades in a single decode pass.
type CutDetector struct {
	runner  *ffmpeg.Runner
	timeout time.Duration
	logger  *slog.Logger
}

// NewCutDetector constructs a cut-based detector. timeout bounds the decode.
func NewCutDetector(runner *ffmpeg.Runner, timeout time.Duration, logger *slog.Logger) *CutDetector {
	return &CutDetector{runner: runner, timeout: timeout, logger: logging.NewComponentLogger(logger, "scenes")}
}

// Method implements Detector.
func (d *CutDetector) Method() Method { return MethodCut }

// Detect implements Detector.
func (d *CutDetector) Detect(ctx context.Context, req Request) ([]Window, error) {
	content := req.ContentThreshold
	if content <= 0 {
		content = DefaultContentThreshold
	}
	fade := req.FadeThreshold
	if fade <= 0 {
		fade = DefaultFadeThreshold
	}
	minFrames := req.MinSceneFrames
	if minFrames <= 0 {
		minFrames = DefaultMinSceneFrames
	}
	fps := req.Metadata.FPS
	if fps <= 0 {
		fps = fallbackFPS
	}

	filter := fmt.Sprintf(
		"signalstats,metadata=mode=print:key=lavfi.signalstats.YAVG,select='gt(scene,%s)',showinfo",
		strconv.FormatFloat(content/100, 'f', 4, 64),
	)
	parser := &frameParser{}
	_, err := d.runner.Run(ctx, ffmpeg.Invocation{
		Operation: "detect scenes",
		Args: []string{
			"-hide_banner", "-nostdin", "-nostats",
			"-i", req.Source,
			"-map", "0:v:0", "-an", "-sn", "-dn",
			"-vf", filter,
			"-f", "null", "-",
		},
		Timeout:  d.timeout,
		Stderr:   parser,
		FailKind: services.KindUnreadableMedia,
	})
	if err != nil {
		return nil, err
	}
	parser.flush()

	duration := req.Metadata.Duration
	if duration <= 0 {
		duration = parser.lastFrame
	}
	analysis := analyzeFrames(parser.cuts, parser.luma, fade)
	windows := buildWindows(analysis.boundaries, duration, float64(minFrames)/fps)
	if analysis.fadeIn {
		windows[0].Transition = TransitionFadeIn
	}

	logging.WithContext(ctx, d.logger).Debug("cut detection complete",
		logging.Int("content_cuts", len(parser.cuts)),
		logging.Int("fade_boundaries", analysis.fades),
		logging.Int("scene_count", len(windows)),
		logging.Bool("fade_in", analysis.fadeIn),
	)
	return windows, nil
}

type lumaSample struct {
	at    float64
	value float64
}

type frameAnalysis struct {
	boundaries []float64
	fades      int
	fadeIn     bool
}

// analyzeFrames merges content cuts with fade midpoints and evaluates the
// opening fade-in hint.
func analyzeFrames(cuts []float64, luma []lumaSample, threshold float64) frameAnalysis {
	out := frameAnalysis{boundaries: append([]float64(nil), cuts...)}
	if len(luma) == 0 {
		return out
	}

	dark := luma[0].value < threshold
	opening := dark
	fadeOut := -1.0
	for _, sample := range luma[1:] {
		below := sample.value < threshold
		switch {
		case !dark && below:
			fadeOut = sample.at
		case dark && !below:
			if opening {
				opening = false
				out.fadeIn = sample.at > fadeInMinStart && sample.at < fadeInMaxStart
			} else if fadeOut >= 0 {
				out.boundaries = append(out.boundaries, (fadeOut+sample.at)/2)
				out.fades++
			}
			fadeOut = -1
		}
		dark = below
	}
	return out
}

// buildWindows turns candidate boundaries into contiguous windows. A
// boundary closer than minLen to the previous accepted one is dropped.
func buildWindows(candidates []float64, duration, minLen float64) []Window {
	sort.Float64s(candidates)
	end := timecode.Round(duration, 2)
	if end <= 0 {
		end = 0.01
	}

	starts := []float64{0}
	last := 0.0
	for _, c := range candidates {
		c = timecode.Round(c, 2)
		if c <= 0 || c >= end {
			continue
		}
		if c-last < minLen {
			continue
		}
		starts = append(starts, c)
		last = c
	}

	windows := make([]Window, len(starts))
	for i, s := range starts {
		e := end
		if i+1 < len(starts) {
			e = starts[i+1]
		}
		windows[i] = Window{Start: s, End: e, Transition: TransitionCut}
	}
	return windows
}

// frameParser consumes ffmpeg log output from the metadata and showinfo
// filters.
type frameParser struct {
	pending   []byte
	cuts      []float64
	luma      []lumaSample
	frameTime float64
	lastFrame float64
}

func (p *frameParser) Write(b []byte) (int, error) {
	p.pending = append(p.pending, b...)
	for {
		idx := bytes.IndexAny(p.pending, "\r\n")
		if idx < 0 {
			break
		}
		p.line(string(p.pending[:idx]))
		p.pending = p.pending[idx+1:]
	}
	return len(b), nil
}

func (p *frameParser) flush() {
	if len(p.pending) > 0 {
		p.line(string(p.pending))
		p.pending = nil
	}
}

func (p *frameParser) line(line string) {
	switch {
	case strings.Contains(line, "showinfo") && strings.Contains(line, "pts_time:"):
		if t, ok := fieldFloat(line, "pts_time:"); ok {
			p.cuts = append(p.cuts, t)
		}
	case strings.Contains(line, "lavfi.signalstats.YAVG="):
		if v, ok := fieldFloat(line, "lavfi.signalstats.YAVG="); ok {
			p.luma = append(p.luma, lumaSample{at: p.frameTime, value: v})
		}
	case strings.Contains(line, "pts_time:"):
		if t, ok := fieldFloat(line, "pts_time:"); ok {
			p.frameTime = t
			p.lastFrame = math.Max(p.lastFrame, t)
		}
	}
}

// fieldFloat parses the number that follows key, tolerating padding.
func fieldFloat(line, key string) (float64, bool) {
	idx := strings.Index(line, key)
	if idx < 0 {
		return 0, false
	}
	rest := strings.TrimLeft(line[idx+len(key):], " ")
	if end := strings.IndexAny(rest, " \t"); end >= 0 {
		rest = rest[:end]
	}
	v, err := strconv.ParseFloat(rest, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
