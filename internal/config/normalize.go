package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeDetection()
	c.normalizeAudio()
	c.normalizeTranscription()
	c.normalizeRender()
	c.normalizeExport()
	if err := c.normalizeArchive(); err != nil {
		return err
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	if value, ok := os.LookupEnv("SCENECUT_STORE_DIR"); ok && strings.TrimSpace(value) != "" {
		c.Paths.StoreDir = strings.TrimSpace(value)
	}
	if strings.TrimSpace(c.Paths.StoreDir) == "" {
		c.Paths.StoreDir = defaultStoreDir
	}
	if strings.TrimSpace(c.Paths.ScratchDir) == "" {
		c.Paths.ScratchDir = defaultScratchDir()
	}
	var err error
	if c.Paths.StoreDir, err = expandPath(c.Paths.StoreDir); err != nil {
		return fmt.Errorf("paths.store_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if c.Paths.ScratchDir, err = expandPath(c.Paths.ScratchDir); err != nil {
		return fmt.Errorf("paths.scratch_dir: %w", err)
	}
	c.Paths.FFmpegBinary = strings.TrimSpace(c.Paths.FFmpegBinary)
	if c.Paths.FFmpegBinary == "" {
		c.Paths.FFmpegBinary = defaultFFmpegBinary
	}
	c.Paths.FFprobeBinary = strings.TrimSpace(c.Paths.FFprobeBinary)
	if c.Paths.FFprobeBinary == "" {
		c.Paths.FFprobeBinary = defaultFFprobeBinary
	}
	return nil
}

func (c *Config) normalizeDetection() {
	c.Detection.Method = strings.ToLower(strings.TrimSpace(c.Detection.Method))
	switch c.Detection.Method {
	case "", "cut", "cut-based", "cut_based":
		c.Detection.Method = "cut"
	case "ai", "ai-based", "ai_based", "ai-assisted", "ai_assisted":
		c.Detection.Method = "ai"
	}
	if c.Detection.MinSceneFrames <= 0 {
		c.Detection.MinSceneFrames = defaultMinSceneFrames
	}
}

func (c *Config) normalizeAudio() {
	if c.Audio.IntervalSeconds <= 0 {
		c.Audio.IntervalSeconds = defaultAudioInterval
	}
}

func (c *Config) normalizeTranscription() {
	c.Transcription.Model = strings.TrimSpace(c.Transcription.Model)
	if c.Transcription.Model == "" {
		c.Transcription.Model = defaultWhisperXModel
	}
	c.Transcription.VADMethod = strings.ToLower(strings.TrimSpace(c.Transcription.VADMethod))
	if c.Transcription.VADMethod == "" {
		c.Transcription.VADMethod = defaultWhisperXVADMethod
	}
	c.Transcription.Language = strings.ToLower(strings.TrimSpace(c.Transcription.Language))
	c.Transcription.HuggingFace = strings.TrimSpace(c.Transcription.HuggingFace)
	if c.Transcription.HuggingFace == "" {
		if value, ok := os.LookupEnv("HUGGING_FACE_HUB_TOKEN"); ok {
			c.Transcription.HuggingFace = strings.TrimSpace(value)
		} else if value, ok := os.LookupEnv("HF_TOKEN"); ok {
			c.Transcription.HuggingFace = strings.TrimSpace(value)
		}
	}
	if c.Transcription.TimeoutSeconds <= 0 {
		c.Transcription.TimeoutSeconds = defaultTranscriptionTimeout
	}
}

func (c *Config) normalizeRender() {
	if c.Render.Workers <= 0 {
		c.Render.Workers = 1
	}
	if c.Render.TimeoutSeconds <= 0 {
		c.Render.TimeoutSeconds = defaultRenderTimeout
	}
	if c.Render.ProbeTimeout <= 0 {
		c.Render.ProbeTimeout = defaultProbeTimeout
	}
}

func (c *Config) normalizeExport() {
	if c.Export.TimeoutSeconds <= 0 {
		c.Export.TimeoutSeconds = defaultExportTimeout
	}
	if c.Export.EDLFrameRate <= 0 {
		c.Export.EDLFrameRate = defaultEDLFrameRate
	}
}

func (c *Config) normalizeArchive() error {
	if strings.TrimSpace(c.Archive.Dir) == "" {
		c.Archive.Dir = defaultArchiveDir
	}
	var err error
	if c.Archive.Dir, err = expandPath(c.Archive.Dir); err != nil {
		return fmt.Errorf("archive.dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}
