// Package timecode holds the second/frame arithmetic shared by detection,
// rendering and export.
package timecode

import (
	"fmt"
	"math"
)

// Round rounds v to the given number of decimal places, half away from zero.
func Round(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}

// SMPTE formats seconds as a non-drop HH:MM:SS:FF timecode at fps.
func SMPTE(seconds float64, fps int) string {
	if fps <= 0 {
		fps = 30
	}
	if seconds < 0 {
		seconds = 0
	}
	totalFrames := int64(math.Round(seconds * float64(fps)))
	frames := totalFrames % int64(fps)
	totalSeconds := totalFrames / int64(fps)
	return fmt.Sprintf("%02d:%02d:%02d:%02d", totalSeconds/3600, (totalSeconds/60)%60, totalSeconds%60, frames)
}
