package scenes

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"

	"scenecut/internal/logging"
	"scenecut/internal/media/ffmpeg"
	"scenecut/internal/media/timecode"
	"scenecut/internal/services"
)

const (
	// MinTopicSpacing is the minimum distance between accepted topic boundaries.
	MinTopicSpacing = 5.0
	// MinAIScene is the shortest scene kept; shorter pieces are merged.
	MinAIScene = 2.0

	pauseGap       = 1.0
	topicWordCount = 5

	confidenceWithSpeech = 0.8
	confidenceSilent     = 0.6
)

// Utterance is one timed piece of transcribed speech.
type Utterance struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Transcriber turns an audio file into timed utterances.
type Transcriber interface {
	Available(ctx context.Context) bool
	Transcribe(ctx context.Context, audioPath string) ([]Utterance, error)
}

// AIDetector refines visual windows with transcript topic boundaries. Any
// transcription problem degrades to the visual result.
type AIDetector struct {
	visual         Detector
	runner         *ffmpeg.Runner
	transcriber    Transcriber
	scratchDir     string
	extractTimeout time.Duration
	logger         *slog.Logger
}

// AIOptions configures an AIDetector.
type AIOptions struct {
	ScratchDir     string
	ExtractTimeout time.Duration
	Logger         *slog.Logger
}

// NewAIDetector wraps visual with transcript-driven segmentation.
func NewAIDetector(visual Detector, runner *ffmpeg.Runner, transcriber Transcriber, opts AIOptions) *AIDetector {
	return &AIDetector{
		visual:         visual,
		runner:         runner,
		transcriber:    transcriber,
		scratchDir:     opts.ScratchDir,
		extractTimeout: opts.ExtractTimeout,
		logger:         logging.NewComponentLogger(opts.Logger, "scenes.ai"),
	}
}

// Method implements Detector.
func (d *AIDetector) Method() Method { return MethodAI }

// Detect implements Detector.
func (d *AIDetector) Detect(ctx context.Context, req Request) ([]Window, error) {
	visual, err := d.visual.Detect(ctx, req)
	if err != nil {
		return nil, err
	}
	logger := logging.WithContext(ctx, d.logger)

	utterances, ok := d.transcribe(ctx, req, logger)
	if !ok {
		return visual, nil
	}

	duration := visual[len(visual)-1].End
	topics := TopicBoundaries(utterances, duration)
	windows := CombineBoundaries(visual, topics, utterances)
	logger.Info("ai segmentation complete",
		logging.String(logging.FieldEventType, "ai_segmentation_complete"),
		logging.Int("utterances", len(utterances)),
		logging.Int("topic_boundaries", len(topics)),
		logging.Int("visual_scenes", len(visual)),
		logging.Int("scene_count", len(windows)),
	)
	return windows, nil
}

func (d *AIDetector) transcribe(ctx context.Context, req Request, logger *slog.Logger) ([]Utterance, bool) {
	if d.transcriber == nil || !d.transcriber.Available(ctx) {
		logging.WarnWithContext(logger, "transcriber unavailable; using cut-based scenes", "transcriber_unavailable",
			logging.String(logging.FieldErrorHint, "install uv so uvx can run whisperx"),
			logging.String(logging.FieldImpact, "scenes carry no transcript or topic boundaries"),
		)
		return nil, false
	}
	if !req.Metadata.HasAudio() {
		logger.Info("source has no audio; using cut-based scenes",
			logging.Args(logging.DecisionAttrs("ai_segmentation", "skipped", "no audio stream")...)...,
		)
		return nil, false
	}

	audioPath, err := d.extractAudio(ctx, req.Source)
	if err != nil {
		logging.WarnWithContext(logger, "audio extraction failed; using cut-based scenes", "audio_extract_failed",
			logging.String(logging.FieldErrorHint, "check that the source has a decodable audio stream"),
			logging.String(logging.FieldImpact, "scenes carry no transcript"),
			logging.Error(err),
		)
		return nil, false
	}
	defer os.Remove(audioPath)

	utterances, err := d.transcriber.Transcribe(ctx, audioPath)
	if err != nil {
		logging.WarnWithContext(logger, "transcription failed; using cut-based scenes", "transcription_failed",
			logging.String(logging.FieldErrorHint, "run with debug logging to see the whisperx output"),
			logging.String(logging.FieldImpact, "scenes carry no transcript"),
			logging.Error(err),
		)
		return nil, false
	}
	return utterances, true
}

// extractAudio writes mono 16 kHz PCM to a scratch wav file.
func (d *AIDetector) extractAudio(ctx context.Context, source string) (string, error) {
	if d.runner == nil {
		return "", errors.New("no ffmpeg runner configured")
	}
	if d.scratchDir != "" {
		if err := os.MkdirAll(d.scratchDir, 0o755); err != nil {
			return "", err
		}
	}
	tmp, err := os.CreateTemp(d.scratchDir, "transcribe-*.wav")
	if err != nil {
		return "", err
	}
	dest := tmp.Name()
	_ = tmp.Close()

	_, err = d.runner.Run(ctx, ffmpeg.Invocation{
		Operation: "extract audio",
		Args: []string{
			"-y", "-hide_banner", "-nostdin", "-loglevel", "error",
			"-i", source,
			"-vn", "-sn", "-dn",
			"-ac", "1", "-ar", "16000",
			"-c:a", "pcm_s16le",
			dest,
		},
		Timeout:  d.extractTimeout,
		FailKind: services.KindUnreadableMedia,
	})
	if err != nil {
		_ = os.Remove(dest)
		return "", err
	}
	return dest, nil
}

// TopicBoundaries returns utterance end times that close a sentence, ask a
// question or precede a pause, spaced at least MinTopicSpacing apart. The
// start of the source is the first reference point and is not returned.
func TopicBoundaries(utterances []Utterance, duration float64) []float64 {
	var out []float64
	last := 0.0
	for i, u := range utterances {
		text := strings.TrimSpace(u.Text)
		sentenceEnd := strings.HasSuffix(text, ".") || strings.HasSuffix(text, "!") || strings.HasSuffix(text, "?")
		question := strings.Contains(text, "?")
		pause := i < len(utterances)-1 && utterances[i+1].Start-u.End > pauseGap
		if !sentenceEnd && !question && !pause {
			continue
		}
		if u.End-last < MinTopicSpacing {
			continue
		}
		last = u.End
		if b := timecode.Round(u.End, 2); b > 0 && (duration <= 0 || b < duration) {
			out = append(out, b)
		}
	}
	return out
}

// CombineBoundaries unions visual window edges with topic boundaries and
// builds transcript-annotated windows. Pieces shorter than MinAIScene are not
// discarded: they merge into the preceding window (the following one at the
// head) so the result still covers [0, duration) without gaps.
func CombineBoundaries(visual []Window, topics []float64, utterances []Utterance) []Window {
	if len(visual) == 0 {
		return nil
	}
	points := make(map[float64]struct{}, len(visual)*2+len(topics))
	for _, w := range visual {
		points[timecode.Round(w.Start, 2)] = struct{}{}
		points[timecode.Round(w.End, 2)] = struct{}{}
	}
	topicSet := make(map[float64]struct{}, len(topics))
	for _, t := range topics {
		t = timecode.Round(t, 2)
		points[t] = struct{}{}
		topicSet[t] = struct{}{}
	}
	sorted := make([]float64, 0, len(points))
	for p := range points {
		sorted = append(sorted, p)
	}
	sort.Float64s(sorted)

	type piece struct{ start, end float64 }
	var pieces []piece
	pending := -1.0
	for i := 0; i+1 < len(sorted); i++ {
		start, end := sorted[i], sorted[i+1]
		if pending >= 0 {
			start, pending = pending, -1
		}
		if end-start < MinAIScene {
			if n := len(pieces); n > 0 {
				pieces[n-1].end = end
			} else {
				pending = start
			}
			continue
		}
		pieces = append(pieces, piece{start, end})
	}
	if pending >= 0 {
		pieces = append(pieces, piece{pending, sorted[len(sorted)-1]})
	}

	windows := make([]Window, 0, len(pieces))
	for i, p := range pieces {
		transition := TransitionCut
		if _, ok := topicSet[p.start]; ok && p.start > 0 {
			transition = TransitionTopicChange
		} else if i == 0 && visual[0].Transition == TransitionFadeIn {
			transition = TransitionFadeIn
		}
		transcript := overlappingText(utterances, p.start, p.end)
		confidence := confidenceSilent
		topicsOut := []string{}
		if transcript != "" {
			confidence = confidenceWithSpeech
			topicsOut = []string{firstWords(transcript, topicWordCount)}
		}
		windows = append(windows, Window{
			Start:      p.start,
			End:        p.end,
			Transition: transition,
			Transcript: transcript,
			Topics:     topicsOut,
			Confidence: &confidence,
		})
	}
	return windows
}

func overlappingText(utterances []Utterance, start, end float64) string {
	var parts []string
	for _, u := range utterances {
		if u.Start < end && u.End > start {
			if text := strings.TrimSpace(u.Text); text != "" {
				parts = append(parts, text)
			}
		}
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}

func firstWords(text string, n int) string {
	words := strings.Fields(text)
	if len(words) > n {
		words = words[:n]
	}
	return strings.Join(words, " ")
}
