package preflight

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"scenecut/internal/config"
	"scenecut/internal/deps"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckSystemDeps evaluates the external tools for the given config. uvx is
// optional: AI-assisted detection degrades to cut detection without it.
func CheckSystemDeps(cfg *config.Config) []deps.Status {
	results := deps.CheckFFmpegPair(cfg.FFmpegBinary(), cfg.FFprobeBinary())
	if cfg.Transcription.Enabled && cfg.Detection.Method == "ai" {
		results = append(results, deps.CheckBinaries([]deps.Requirement{{
			Name:        "uvx",
			Command:     "uvx",
			Description: "Runs WhisperX for AI-assisted detection",
			Optional:    true,
		}})...)
	}
	return results
}

// CheckToolVersion runs `<binary> -version` and reports its first line.
func CheckToolVersion(ctx context.Context, name, binary string) Result {
	if _, err := exec.LookPath(binary); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("binary %q not found", binary)}
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	output, err := exec.CommandContext(ctx, binary, "-version").Output() //nolint:gosec
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("version check failed (%v)", err)}
	}
	first, _, _ := strings.Cut(strings.TrimSpace(string(output)), "\n")
	if first == "" {
		first = "version unknown"
	}
	return Result{Name: name, Passed: true, Detail: strings.TrimSpace(first)}
}
