package scenes

import (
	"context"
	"fmt"
	"strings"

	"scenecut/internal/metadata"
)

// Transition hints how a scene begins.
type Transition string

const (
	TransitionCut         Transition = "cut"
	TransitionFadeIn      Transition = "fade-in"
	TransitionTopicChange Transition = "topic-change"
)

// Method identifies the segmentation strategy recorded on each scene.
type Method string

const (
	MethodCut Method = "cut-based"
	MethodAI  Method = "ai-based"
)

// ParseMethod accepts the short config names as well as the recorded labels.
func ParseMethod(value string) (Method, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "cut", "cut-based", "cut_based":
		return MethodCut, nil
	case "ai", "ai-based", "ai_based", "ai-assisted":
		return MethodAI, nil
	default:
		return "", fmt.Errorf("unknown segmentation method %q", value)
	}
}

// Window is one detected scene span in source seconds.
type Window struct {
	Start      float64
	End        float64
	Transition Transition
	// Transcript, Topics and Confidence are set by AIDetector only.
	Transcript string
	Topics     []string
	Confidence *float64
}

// Duration returns End - Start.
func (w Window) Duration() float64 {
	return w.End - w.Start
}

// Request carries the inputs of one detection run.
type Request struct {
	Source   string
	Metadata metadata.VideoMetadata
	// ContentThreshold is on the 0-100 scale; it is divided by 100 for the
	// ffmpeg scene score.
	ContentThreshold float64
	// FadeThreshold is a mean luma level on the 0-255 scale; zero selects
	// DefaultFadeThreshold.
	FadeThreshold  float64
	MinSceneFrames int
}

// Detector produces windows that cover [0, duration) with no gaps or overlaps.
type Detector interface {
	Detect(ctx context.Context, req Request) ([]Window, error)
	Method() Method
}
