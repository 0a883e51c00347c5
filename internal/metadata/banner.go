package metadata

import (
	"errors"
	"math"
	"regexp"
	"strconv"
	"strings"

	"scenecut/internal/media/ffmpeg"
)

var (
	durationPattern    = regexp.MustCompile(`Duration:\s*(\d+:\d+:\d+(?:\.\d+)?)`)
	videoStreamPattern = regexp.MustCompile(`Stream #\d+:\d+.*?: Video: .*`)
	geometryPattern    = regexp.MustCompile(`(?:^|[\s,])(\d{2,5})x(\d{2,5})(?:[\s,\[]|$)`)
	fpsPattern         = regexp.MustCompile(`([\d.]+)\s*fps`)
	tbrPattern         = regexp.MustCompile(`([\d.]+k?)\s*tbr`)
	audioStreamPattern = regexp.MustCompile(`Stream #\d+:\d+.*?: Audio: .*`)
	sampleRatePattern  = regexp.MustCompile(`(\d+)\s*Hz`)
	channelsPattern    = regexp.MustCompile(`(\d+)\s*channels`)
)

// ParseBanner extracts metadata from the stream listing ffmpeg prints for
// `ffmpeg -i <file>`. A video stream line is required.
func ParseBanner(banner string) (VideoMetadata, error) {
	videoLine := videoStreamPattern.FindString(banner)
	if videoLine == "" {
		return VideoMetadata{}, errors.New("ffmpeg banner: no video stream")
	}
	meta := VideoMetadata{Backend: "ffmpeg"}

	if m := geometryPattern.FindStringSubmatch(videoLine); m != nil {
		meta.Width, _ = strconv.Atoi(m[1])
		meta.Height, _ = strconv.Atoi(m[2])
	}
	if m := fpsPattern.FindStringSubmatch(videoLine); m != nil {
		meta.FPS, _ = strconv.ParseFloat(m[1], 64)
	} else if m := tbrPattern.FindStringSubmatch(videoLine); m != nil && !strings.HasSuffix(m[1], "k") {
		meta.FPS, _ = strconv.ParseFloat(m[1], 64)
	}

	var container float64
	if m := durationPattern.FindStringSubmatch(banner); m != nil {
		container, _ = ffmpeg.ParseClock(m[1])
	}
	meta.Duration = container
	if meta.FPS > 0 && container > 0 {
		meta.FrameCount = int64(math.Round(container * meta.FPS))
	}

	if audioLine := audioStreamPattern.FindString(banner); audioLine != "" {
		info := &AudioInfo{Duration: container, Channels: channelsFromLayout(audioLine)}
		if m := sampleRatePattern.FindStringSubmatch(audioLine); m != nil {
			info.SampleRate, _ = strconv.Atoi(m[1])
		}
		meta.Audio = info
	}
	return meta, nil
}

func channelsFromLayout(line string) int {
	if m := channelsPattern.FindStringSubmatch(line); m != nil {
		n, _ := strconv.Atoi(m[1])
		return n
	}
	lower := strings.ToLower(line)
	switch {
	case strings.Contains(lower, " mono"):
		return 1
	case strings.Contains(lower, " stereo"):
		return 2
	case strings.Contains(lower, "5.1"):
		return 6
	case strings.Contains(lower, "7.1"):
		return 8
	default:
		return 0
	}
}
