package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and tool locations.
type Paths struct {
	StoreDir      string `toml:"store_dir"`
	LogDir        string `toml:"log_dir"`
	ScratchDir    string `toml:"scratch_dir"`
	FFmpegBinary  string `toml:"ffmpeg_binary"`
	FFprobeBinary string `toml:"ffprobe_binary"`
}

// Detection contains scene boundary detection settings.
type Detection struct {
	// Method is "cut" or "ai". The AI-assisted method falls back to cut
	// detection when transcription is unavailable.
	Method           string  `toml:"method"`
	ContentThreshold float64 `toml:"content_threshold"`
	FadeThreshold    float64 `toml:"fade_threshold"`
	MinSceneFrames   int     `toml:"min_scene_frames"`
}

// Audio contains audio energy analysis settings.
type Audio struct {
	IntervalSeconds     float64 `toml:"interval_seconds"`
	HighEnergyThreshold float64 `toml:"high_energy_threshold"`
}

// Transcription contains WhisperX settings used by AI-assisted detection.
type Transcription struct {
	Enabled        bool   `toml:"enabled"`
	Model          string `toml:"whisperx_model"`
	CUDAEnabled    bool   `toml:"whisperx_cuda_enabled"`
	VADMethod      string `toml:"whisperx_vad_method"`
	HuggingFace    string `toml:"whisperx_hf_token"`
	Language       string `toml:"language"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Render contains segment rendering settings.
type Render struct {
	Workers        int `toml:"workers"`
	TimeoutSeconds int `toml:"timeout_seconds"`
	ProbeTimeout   int `toml:"probe_timeout_seconds"`
	ProxyWidth     int `toml:"proxy_width"`
	MezzanineWidth int `toml:"mezzanine_width"`
	ProxyCRF       int `toml:"proxy_crf"`
	MezzanineCRF   int `toml:"mezzanine_crf"`
}

// Export contains timeline export settings.
type Export struct {
	TimeoutSeconds int  `toml:"timeout_seconds"`
	WriteEDL       bool `toml:"write_edl"`
	EDLFrameRate   int  `toml:"edl_frame_rate"`
}

// Cache contains derivative cache accounting settings.
type Cache struct {
	MaxGiB int `toml:"max_gib"`
}

// Archive contains settings for the optional AV1 archive encode of exports.
type Archive struct {
	Enabled bool   `toml:"enabled"`
	Dir     string `toml:"dir"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for scenecut.
//
// Configuration sections by subsystem:
//   - Paths: store, log and scratch directories plus tool binaries
//   - Detection: scene boundary detection method and thresholds
//   - Audio: audio energy interval and high-energy threshold
//   - Transcription: WhisperX settings for AI-assisted detection
//   - Render: proxy/mezzanine profiles, worker pool and timeouts
//   - Export: timeline export timeout and EDL sidecar
//   - Cache: derivative store size budget
//   - Archive: optional AV1 archive encode of exports
//   - Logging: log format, level, and retention
type Config struct {
	Paths         Paths         `toml:"paths"`
	Detection     Detection     `toml:"detection"`
	Audio         Audio         `toml:"audio"`
	Transcription Transcription `toml:"transcription"`
	Render        Render        `toml:"render"`
	Export        Export        `toml:"export"`
	Cache         Cache         `toml:"cache"`
	Archive       Archive       `toml:"archive"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized. A .env file in the working directory is loaded
// first so environment fallbacks can come from it.
func Load(path string) (*Config, string, bool, error) {
	_ = godotenv.Load()

	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("scenecut.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the store, log and scratch directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StoreDir, c.Paths.LogDir, c.Paths.ScratchDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if c.Archive.Enabled && strings.TrimSpace(c.Archive.Dir) != "" {
		if err := os.MkdirAll(c.Archive.Dir, 0o755); err != nil {
			return fmt.Errorf("create archive directory %q: %w", c.Archive.Dir, err)
		}
	}
	return nil
}

// FFmpegBinary returns the ffmpeg executable used for decoding and rendering.
func (c *Config) FFmpegBinary() string {
	if c == nil || strings.TrimSpace(c.Paths.FFmpegBinary) == "" {
		return defaultFFmpegBinary
	}
	return c.Paths.FFmpegBinary
}

// FFprobeBinary returns the ffprobe executable name used for metadata extraction.
func (c *Config) FFprobeBinary() string {
	if c == nil || strings.TrimSpace(c.Paths.FFprobeBinary) == "" {
		return defaultFFprobeBinary
	}
	return c.Paths.FFprobeBinary
}

// DatabasePath returns the location of the analysis database.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.StoreDir, "scenecut.db")
}

// RenderTimeout is the ceiling for a single segment render.
func (c *Config) RenderTimeout() time.Duration {
	return time.Duration(c.Render.TimeoutSeconds) * time.Second
}

// ProbeTimeout is the ceiling for short extraction calls (probe, audio extract).
func (c *Config) ProbeTimeout() time.Duration {
	return time.Duration(c.Render.ProbeTimeout) * time.Second
}

// TranscriptionTimeout is the ceiling for one transcription run.
func (c *Config) TranscriptionTimeout() time.Duration {
	return time.Duration(c.Transcription.TimeoutSeconds) * time.Second
}

// ExportTimeout is the ceiling for one timeline export.
func (c *Config) ExportTimeout() time.Duration {
	return time.Duration(c.Export.TimeoutSeconds) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

func defaultScratchDir() string {
	if base, ok := os.LookupEnv("XDG_CACHE_HOME"); ok && strings.TrimSpace(base) != "" {
		return filepath.Join(base, "scenecut", "scratch")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "~/.cache/scenecut/scratch"
	}
	return filepath.Join(home, ".cache", "scenecut", "scratch")
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
