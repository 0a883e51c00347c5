package export

import (
	"time"

	"scenecut/internal/textutil"
)

const timestampLayout = "20060102_150405"

// FileName names an export. A usable name becomes
// "<name>_<YYYYmmdd_HHMMSS>.mp4", anything else falls back to
// "timeline_export_<first 8 of analysisID>_<timestamp>.mp4".
func FileName(name, analysisID string, now time.Time) string {
	ts := now.Format(timestampLayout)
	if safe := textutil.ExportName(name); safe != "" {
		return safe + "_" + ts + ".mp4"
	}
	short := analysisID
	if len(short) > 8 {
		short = short[:8]
	}
	return "timeline_export_" + short + "_" + ts + ".mp4"
}
