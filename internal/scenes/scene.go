package scenes

import (
	"bytes"
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Flag is a boolean that serializes as 0 or 1.
type Flag bool

// MarshalJSON implements json.Marshaler.
func (f Flag) MarshalJSON() ([]byte, error) {
	if f {
		return []byte("1"), nil
	}
	return []byte("0"), nil
}

// UnmarshalJSON accepts 0/1 as well as true/false.
func (f *Flag) UnmarshalJSON(data []byte) error {
	switch string(bytes.TrimSpace(data)) {
	case "1", "true":
		*f = true
	case "0", "false", "null":
		*f = false
	default:
		return fmt.Errorf("invalid flag %s", data)
	}
	return nil
}

// Scene is the persisted record of one scene.
type Scene struct {
	SceneID            string     `json:"sceneId"`
	Index              int        `json:"scene_index"`
	Start              float64    `json:"start"`
	End                float64    `json:"end"`
	Duration           float64    `json:"duration"`
	TransitionType     Transition `json:"transition_type"`
	AvgVolume          float64    `json:"avg_volume"`
	HighEnergy         Flag       `json:"high_energy"`
	SegmentationMethod Method     `json:"segmentation_method"`
	Title              string     `json:"title"`
	Tags               []string   `json:"tags"`

	StartOriginal          float64 `json:"start_original"`
	EndOriginal            float64 `json:"end_original"`
	CurrentTrimmedStart    float64 `json:"current_trimmed_start"`
	CurrentTrimmedDuration float64 `json:"current_trimmed_duration"`

	ProxyURL      string `json:"proxy_video_url,omitempty"`
	MezzanineURL  string `json:"mezzanine_video_url,omitempty"`
	ProxyPath     string `json:"proxy_video_path,omitempty"`
	MezzaninePath string `json:"mezzanine_video_path,omitempty"`

	Transcript string   `json:"transcript,omitempty"`
	Topics     []string `json:"topics,omitempty"`
	Confidence *float64 `json:"confidence_score,omitempty"`
}

// Validate checks the structural invariants of a scene.
func (s Scene) Validate() error {
	if strings.TrimSpace(s.SceneID) == "" {
		return errors.New("scene id is empty")
	}
	if s.EndOriginal <= s.StartOriginal {
		return fmt.Errorf("scene %s: end_original %.2f not after start_original %.2f", s.SceneID, s.EndOriginal, s.StartOriginal)
	}
	if s.CurrentTrimmedDuration <= 0 {
		return fmt.Errorf("scene %s: trimmed duration must be positive", s.SceneID)
	}
	return nil
}

// Retime moves the scene to a new source window and resets the trim window
// to cover it entirely. Bounds are stored as given.
func (s *Scene) Retime(start, end float64) {
	s.Start = start
	s.End = end
	s.StartOriginal = start
	s.EndOriginal = end
	s.Duration = end - start
	s.CurrentTrimmedStart = 0
	s.CurrentTrimmedDuration = s.Duration
}

// Edit carries optional non-structural changes. Nil fields are left alone.
type Edit struct {
	Title *string
	Tags  []string
	// ReplaceTags distinguishes "clear all tags" from "leave tags alone".
	ReplaceTags bool
}

// ErrEmptyTitle rejects edits that would blank the title.
var ErrEmptyTitle = errors.New("title cannot be empty")

// Apply edits title and tags in place.
func (e Edit) Apply(s *Scene) error {
	if e.Title != nil {
		title := strings.TrimSpace(*e.Title)
		if title == "" {
			return ErrEmptyTitle
		}
		s.Title = title
	}
	if e.ReplaceTags || e.Tags != nil {
		s.Tags = NormalizeTags(e.Tags)
	}
	return nil
}

// NormalizeTags trims, drops empties, de-duplicates and sorts.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		if tag = strings.TrimSpace(tag); tag != "" {
			out = append(out, tag)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// DefaultTitle is the title given to a freshly detected scene.
func DefaultTitle(index int) string {
	return fmt.Sprintf("Scene %d", index+1)
}
