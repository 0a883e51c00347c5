package ffmpeg

import (
	"bytes"
	"strconv"
	"strings"
)

// ProgressWriter scans ffmpeg stderr for "time=HH:MM:SS.xx" status updates
// and reports the elapsed output position in seconds.
type ProgressWriter struct {
	OnProgress func(seconds float64)
	pending    []byte
}

func (w *ProgressWriter) Write(p []byte) (int, error) {
	w.pending = append(w.pending, p...)
	for {
		idx := bytes.IndexAny(w.pending, "\r\n")
		if idx < 0 {
			break
		}
		line := string(w.pending[:idx])
		w.pending = w.pending[idx+1:]
		if seconds, ok := parseProgressTime(line); ok && w.OnProgress != nil {
			w.OnProgress(seconds)
		}
	}
	if len(w.pending) > 1024 {
		w.pending = w.pending[len(w.pending)-1024:]
	}
	return len(p), nil
}

func parseProgressTime(line string) (float64, bool) {
	idx := strings.LastIndex(line, "time=")
	if idx < 0 {
		return 0, false
	}
	field := line[idx+len("time="):]
	if end := strings.IndexByte(field, ' '); end >= 0 {
		field = field[:end]
	}
	return ParseClock(field)
}

// ParseClock parses "HH:MM:SS(.frac)" into seconds.
func ParseClock(value string) (float64, bool) {
	parts := strings.Split(strings.TrimSpace(value), ":")
	if len(parts) != 3 {
		return 0, false
	}
	hours, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, false
	}
	minutes, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, false
	}
	seconds, err := strconv.ParseFloat(parts[2], 64)
	if err != nil {
		return 0, false
	}
	return float64(hours)*3600 + float64(minutes)*60 + seconds, true
}

// FormatSeconds renders seconds the way the seek arguments expect them.
func FormatSeconds(seconds float64) string {
	return strconv.FormatFloat(seconds, 'f', 3, 64)
}
