package scenes

import (
	"github.com/google/uuid"

	"scenecut/internal/audioenergy"
	"scenecut/internal/media/timecode"
)

// IDFunc issues scene identifiers.
type IDFunc func() string

// NewID returns a random UUID string.
func NewID() string {
	return uuid.NewString()
}

// Annotate converts windows into scene records. A sample contributes to a
// scene when the two spans touch or overlap.
func Annotate(windows []Window, samples []audioenergy.Sample, method Method, ids IDFunc) []Scene {
	if ids == nil {
		ids = NewID
	}
	out := make([]Scene, 0, len(windows))
	for i, w := range windows {
		var sum float64
		var count int
		high := false
		for _, a := range samples {
			if a.Start <= w.End && a.End >= w.Start {
				sum += a.Volume
				count++
				high = high || a.HighEnergy
			}
		}
		avg := 0.0
		if count > 0 {
			avg = timecode.Round(sum/float64(count), 3)
		}

		scene := Scene{
			SceneID:            ids(),
			Index:              i,
			TransitionType:     w.Transition,
			AvgVolume:          avg,
			HighEnergy:         Flag(high),
			SegmentationMethod: method,
			Title:              DefaultTitle(i),
			Tags:               []string{},
		}
		// Detected bounds are reported at centisecond precision.
		scene.Retime(timecode.Round(w.Start, 2), timecode.Round(w.End, 2))
		scene.Duration = timecode.Round(scene.Duration, 2)
		scene.CurrentTrimmedDuration = scene.Duration
		if method == MethodAI {
			scene.Transcript = w.Transcript
			scene.Topics = w.Topics
			scene.Confidence = w.Confidence
		}
		out = append(out, scene)
	}
	return out
}
