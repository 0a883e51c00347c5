package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path"
	"slices"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"scenecut/internal/analysis"
	"scenecut/internal/services"
)

// Clip is one placement on the timeline.
type Clip struct {
	ID            string  `json:"id"`
	Type          string  `json:"type"`
	Src           string  `json:"src"`
	Mezzanine     bool    `json:"is_mezzanine_segment"`
	SceneID       string  `json:"scene_id,omitempty"`
	TimelineStart float64 `json:"timeline_start"`
	TimelineEnd   float64 `json:"timeline_end"`
}

// Exportable reports whether the clip takes part in an export.
func (c Clip) Exportable() bool {
	return c.Type == "video" && c.Mezzanine && strings.TrimSpace(c.Src) != ""
}

// SegmentName is the file name referenced by Src, without query or
// fragment.
func (c Clip) SegmentName() string {
	src := c.Src
	if i := strings.IndexAny(src, "?#"); i >= 0 {
		src = src[:i]
	}
	if strings.HasSuffix(src, "/") {
		return ""
	}
	return path.Base(src)
}

// Timeline is an ordered list of placements.
type Timeline struct {
	Clips []Clip `json:"clips"`
}

// Exportable returns the exportable clips stably sorted by timeline start.
func (t Timeline) Exportable() []Clip {
	out := make([]Clip, 0, len(t.Clips))
	for _, c := range t.Clips {
		if c.Exportable() {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].TimelineStart < out[j].TimelineStart })
	return out
}

type rawItem struct {
	ID      string `json:"id" yaml:"id"`
	Type    string `json:"type" yaml:"type"`
	Details struct {
		Src string `json:"src" yaml:"src"`
	} `json:"details" yaml:"details"`
	Metadata struct {
		IsMezzanineSegment bool   `json:"isMezzanineSegment" yaml:"isMezzanineSegment"`
		SceneID            string `json:"sceneId" yaml:"sceneId"`
	} `json:"metadata" yaml:"metadata"`
	Display struct {
		From float64 `json:"from" yaml:"from"`
		To   float64 `json:"to" yaml:"to"`
	} `json:"display" yaml:"display"`
}

func (r rawItem) clip(fallbackID string) Clip {
	id := r.ID
	if id == "" {
		id = fallbackID
	}
	return Clip{
		ID:            id,
		Type:          r.Type,
		Src:           r.Details.Src,
		Mezzanine:     r.Metadata.IsMezzanineSegment,
		SceneID:       r.Metadata.SceneID,
		TimelineStart: r.Display.From,
		TimelineEnd:   r.Display.To,
	}
}

type rawTimeline struct {
	TrackItemsMap map[string]rawItem `json:"trackItemsMap" yaml:"trackItemsMap"`
	TrackItemIDs  []string           `json:"trackItemIds" yaml:"trackItemIds"`
	Clips         []rawItem          `json:"clips" yaml:"clips"`
}

// ParseTimeline decodes a JSON or YAML timeline. trackItemsMap wins over the
// legacy clips array. Map entries keep the order given by trackItemIds when
// present, otherwise their keys are sorted.
func ParseTimeline(data []byte) (Timeline, error) {
	var raw rawTimeline
	trimmed := bytes.TrimSpace(data)
	var err error
	if len(trimmed) > 0 && trimmed[0] == '{' {
		err = json.Unmarshal(trimmed, &raw)
	} else {
		err = yaml.Unmarshal(trimmed, &raw)
	}
	if err != nil {
		return Timeline{}, services.Wrap(services.ErrValidation, "export", "parse timeline", "", err)
	}

	var t Timeline
	if len(raw.TrackItemsMap) > 0 {
		for _, key := range itemOrder(raw.TrackItemsMap, raw.TrackItemIDs) {
			t.Clips = append(t.Clips, raw.TrackItemsMap[key].clip(key))
		}
		return t, nil
	}
	for i, item := range raw.Clips {
		t.Clips = append(t.Clips, item.clip(fmt.Sprintf("clip-%d", i+1)))
	}
	return t, nil
}

func itemOrder(items map[string]rawItem, ids []string) []string {
	order := make([]string, 0, len(items))
	seen := make(map[string]bool, len(items))
	for _, id := range ids {
		if _, ok := items[id]; ok && !seen[id] {
			order = append(order, id)
			seen[id] = true
		}
	}
	rest := make([]string, 0, len(items)-len(order))
	for key := range items {
		if !seen[key] {
			rest = append(rest, key)
		}
	}
	slices.Sort(rest)
	return append(order, rest...)
}

// TimelineFromScenes lays out the named scenes back to back in the given
// order, referencing their mezzanine segments. With no ids every scene is
// used in scene order.
func TimelineFromScenes(a *analysis.Analysis, sceneIDs []string) (Timeline, error) {
	if len(sceneIDs) == 0 {
		for _, s := range a.Scenes {
			sceneIDs = append(sceneIDs, s.SceneID)
		}
	}
	var (
		t      Timeline
		cursor float64
	)
	for _, id := range sceneIDs {
		s, err := a.Scene(id)
		if err != nil {
			return Timeline{}, err
		}
		t.Clips = append(t.Clips, Clip{
			ID:            s.SceneID,
			Type:          "video",
			Src:           analysis.SegmentURL(a.ID, s.SceneID, "mezzanine"),
			Mezzanine:     true,
			SceneID:       s.SceneID,
			TimelineStart: cursor,
			TimelineEnd:   cursor + s.Duration,
		})
		cursor += s.Duration
	}
	return t, nil
}
