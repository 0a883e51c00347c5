package export

import (
	"fmt"
	"strings"

	"scenecut/internal/media/timecode"
)

// EDLEvent is one source range placed on the record timeline.
type EDLEvent struct {
	ClipName  string
	MediaPath string
	SourceIn  float64
	SourceOut float64
}

// GenerateEDL renders a CMX3600 cut list. Record timecodes run back to back
// from zero in event order.
func GenerateEDL(title string, fps int, events []EDLEvent) string {
	if fps <= 0 {
		fps = 30
	}
	lines := []string{
		"TITLE: " + title,
		"FCM: NON-DROP FRAME",
		"",
	}
	var record float64
	for i, ev := range events {
		duration := ev.SourceOut - ev.SourceIn
		lines = append(lines,
			fmt.Sprintf("%03d  %-8s %-5s C        %s %s %s %s", i+1, "AX", "V",
				timecode.SMPTE(ev.SourceIn, fps), timecode.SMPTE(ev.SourceOut, fps),
				timecode.SMPTE(record, fps), timecode.SMPTE(record+duration, fps)),
			"* FROM CLIP NAME:  "+ev.ClipName,
			"* MEDIA PATH:  "+ev.MediaPath,
		)
		record += duration
	}
	lines = append(lines, "")
	return strings.Join(lines, "\n")
}
