package deps

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

// ResolveFFprobe returns the ffprobe binary to use alongside ffmpegCommand.
//
// Static ffmpeg builds ship ffprobe in the same directory. When the
// configured ffprobe is the bare default name, a sibling of the resolved
// ffmpeg wins over whatever ffprobe PATH would find, so both tools come from
// the same build.
func ResolveFFprobe(ffmpegCommand, ffprobeCommand string) string {
	ffprobe := strings.TrimSpace(ffprobeCommand)
	if ffprobe == "" {
		ffprobe = "ffprobe"
	}
	if ffprobe != "ffprobe" {
		return ffprobe
	}
	ffmpeg := strings.TrimSpace(ffmpegCommand)
	if ffmpeg == "" {
		return ffprobe
	}
	resolved, err := exec.LookPath(ffmpeg)
	if err != nil {
		return ffprobe
	}
	candidate := filepath.Join(filepath.Dir(resolved), executableName("ffprobe"))
	if info, err := os.Stat(candidate); err == nil && isExecutable(info) {
		return candidate
	}
	return ffprobe
}

// CheckFFmpegPair reports ffmpeg and ffprobe, resolving ffprobe next to
// ffmpeg when possible.
func CheckFFmpegPair(ffmpegCommand, ffprobeCommand string) []Status {
	results := CheckBinaries([]Requirement{
		{Name: "FFmpeg", Command: ffmpegCommand, Description: "Required for detection, rendering and export"},
		{Name: "FFprobe", Command: ResolveFFprobe(ffmpegCommand, ffprobeCommand), Description: "Required for media inspection"},
	})
	if !results[1].Available && results[0].Available {
		results[1].Detail = fmt.Sprintf("%s; metadata falls back to the ffmpeg banner", results[1].Detail)
	}
	return results
}

func executableName(base string) string {
	if runtime.GOOS == "windows" {
		return base + ".exe"
	}
	return base
}

func isExecutable(info os.FileInfo) bool {
	if info == nil {
		return false
	}
	if info.IsDir() {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	return info.Mode().Perm()&0o111 != 0
}
