package analysis

import (
	"errors"
	"fmt"
	"time"

	"scenecut/internal/audioenergy"
	"scenecut/internal/metadata"
	"scenecut/internal/scenes"
	"scenecut/internal/services"
)

// Analysis is one ingested source and the scenes detected in it.
type Analysis struct {
	ID           string                 `json:"analysis_id"`
	FileName     string                 `json:"file_name"`
	SourcePath   string                 `json:"source_path"`
	Metadata     metadata.VideoMetadata `json:"metadata"`
	Method       scenes.Method          `json:"segmentation_method"`
	Scenes       []scenes.Scene         `json:"scenes"`
	AudioSamples []audioenergy.Sample   `json:"audio_samples"`
	CreatedAt    time.Time              `json:"created_at"`
	UpdatedAt    time.Time              `json:"updated_at"`
}

// Summary is the listing view of an analysis.
type Summary struct {
	ID         string        `json:"analysis_id"`
	FileName   string        `json:"file_name"`
	Method     scenes.Method `json:"segmentation_method"`
	Duration   float64       `json:"duration"`
	SceneCount int           `json:"scene_count"`
	CreatedAt  time.Time     `json:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at"`
}

// ErrSceneNotFound reports an unknown scene id.
var ErrSceneNotFound = fmt.Errorf("%w: scene not found", services.ErrNotFound)

// Scene returns a pointer to the scene with sceneID.
func (a *Analysis) Scene(sceneID string) (*scenes.Scene, error) {
	for i := range a.Scenes {
		if a.Scenes[i].SceneID == sceneID {
			return &a.Scenes[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrSceneNotFound, sceneID)
}

// Validate checks every scene and the analysis identity.
func (a *Analysis) Validate() error {
	if a.ID == "" {
		return errors.New("analysis id is empty")
	}
	seen := make(map[string]struct{}, len(a.Scenes))
	for _, s := range a.Scenes {
		if err := s.Validate(); err != nil {
			return err
		}
		if _, dup := seen[s.SceneID]; dup {
			return fmt.Errorf("duplicate scene id %s", s.SceneID)
		}
		seen[s.SceneID] = struct{}{}
	}
	return nil
}

func (a *Analysis) summary() Summary {
	return Summary{
		ID:         a.ID,
		FileName:   a.FileName,
		Method:     a.Method,
		Duration:   a.Metadata.Duration,
		SceneCount: len(a.Scenes),
		CreatedAt:  a.CreatedAt,
		UpdatedAt:  a.UpdatedAt,
	}
}
