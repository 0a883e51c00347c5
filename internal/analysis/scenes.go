package analysis

import (
	"context"
	"encoding/json"

	"scenecut/internal/scenes"
)

// EditScene applies a title/tag edit to one scene. The edit is
// non-structural: timing and derivatives are untouched.
func (s *Store) EditScene(ctx context.Context, id, sceneID string, edit scenes.Edit) (scenes.Scene, error) {
	var edited scenes.Scene
	_, err := s.Update(ctx, id, func(a *Analysis) error {
		scene, err := a.Scene(sceneID)
		if err != nil {
			return err
		}
		if err := edit.Apply(scene); err != nil {
			return err
		}
		edited = *scene
		return nil
	})
	return edited, err
}

// ClearDerivatives forgets the segment paths and URLs of every scene, after
// the files themselves were removed.
func (s *Store) ClearDerivatives(ctx context.Context, id string) error {
	_, err := s.Update(ctx, id, func(a *Analysis) error {
		for i := range a.Scenes {
			sc := &a.Scenes[i]
			sc.ProxyPath, sc.ProxyURL = "", ""
			sc.MezzaninePath, sc.MezzanineURL = "", ""
		}
		return nil
	})
	return err
}

func decodeScene(raw string) (scenes.Scene, error) {
	var scene scenes.Scene
	if err := json.Unmarshal([]byte(raw), &scene); err != nil {
		return scenes.Scene{}, err
	}
	if scene.Tags == nil {
		scene.Tags = []string{}
	}
	return scene, nil
}

func sceneMethod(value string) scenes.Method {
	method, err := scenes.ParseMethod(value)
	if err != nil {
		return scenes.Method(value)
	}
	return method
}
