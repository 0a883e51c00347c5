package analysis

import (
	"path/filepath"
	"strings"
)

// Layout maps analysis identifiers to directories under the store root.
//
//	<root>/<id>/source/<file>
//	<root>/<id>/segments/<tier>/scene_<sceneId>_<tier>.mp4
//	<root>/<id>/exports/<name>.mp4
type Layout struct {
	Root string
}

// Dir returns the analysis directory.
func (l Layout) Dir(id string) string {
	return filepath.Join(l.Root, id)
}

// SourceDir holds the master copy of the ingested file.
func (l Layout) SourceDir(id string) string {
	return filepath.Join(l.Dir(id), "source")
}

// SourcePath returns where fileName is stored for id.
func (l Layout) SourcePath(id, fileName string) string {
	return filepath.Join(l.SourceDir(id), filepath.Base(fileName))
}

// SegmentDir returns the directory for one derivative tier.
func (l Layout) SegmentDir(id, tier string) string {
	return filepath.Join(l.Dir(id), "segments", tier)
}

// SegmentPath returns the deterministic derivative path for a scene.
func (l Layout) SegmentPath(id, sceneID, tier string) string {
	return filepath.Join(l.SegmentDir(id, tier), SegmentFileName(sceneID, tier))
}

// ExportDir holds exported timelines.
func (l Layout) ExportDir(id string) string {
	return filepath.Join(l.Dir(id), "exports")
}

// LockPath is the cross-process writer lock for an analysis.
func (l Layout) LockPath(id string) string {
	return filepath.Join(l.Dir(id), ".analysis.lock")
}

// LogPath is the per-analysis log journal.
func (l Layout) LogPath(id string) string {
	return filepath.Join(l.Dir(id), "analysis.log")
}

// SegmentFileName is the file name of a scene derivative.
func SegmentFileName(sceneID, tier string) string {
	return "scene_" + sceneID + "_" + tier + ".mp4"
}

// SegmentURL is the public URL of a scene derivative.
func SegmentURL(id, sceneID, tier string) string {
	return strings.Join([]string{"/api/segment", id, tier, SegmentFileName(sceneID, tier)}, "/")
}
