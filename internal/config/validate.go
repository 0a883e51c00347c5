package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateDetection(); err != nil {
		return err
	}
	if err := c.validateAudio(); err != nil {
		return err
	}
	if err := c.validateRender(); err != nil {
		return err
	}
	if err := c.validateCache(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.StoreDir) == "" {
		return errors.New("paths.store_dir must be set (or set SCENECUT_STORE_DIR)")
	}
	return nil
}

func (c *Config) validateDetection() error {
	switch c.Detection.Method {
	case "cut", "ai":
	default:
		return fmt.Errorf("detection.method: unsupported value %q (want cut or ai)", c.Detection.Method)
	}
	if c.Detection.ContentThreshold <= 0 || c.Detection.ContentThreshold > 100 {
		return errors.New("detection.content_threshold must be between 0 and 100")
	}
	if c.Detection.FadeThreshold <= 0 || c.Detection.FadeThreshold > 255 {
		return errors.New("detection.fade_threshold must be greater than 0 and at most 255")
	}
	return nil
}

func (c *Config) validateAudio() error {
	if c.Audio.HighEnergyThreshold < 0 || c.Audio.HighEnergyThreshold > 1 {
		return errors.New("audio.high_energy_threshold must be between 0 and 1")
	}
	return nil
}

func (c *Config) validateRender() error {
	return ensurePositiveMap(map[string]int{
		"render.workers":                c.Render.Workers,
		"render.timeout_seconds":        c.Render.TimeoutSeconds,
		"render.probe_timeout_seconds":  c.Render.ProbeTimeout,
		"render.proxy_width":            c.Render.ProxyWidth,
		"render.mezzanine_width":        c.Render.MezzanineWidth,
		"render.proxy_crf":              c.Render.ProxyCRF,
		"render.mezzanine_crf":          c.Render.MezzanineCRF,
		"export.timeout_seconds":        c.Export.TimeoutSeconds,
		"transcription.timeout_seconds": c.Transcription.TimeoutSeconds,
	})
}

func (c *Config) validateCache() error {
	if c.Cache.MaxGiB < 0 {
		return errors.New("cache.max_gib must be >= 0 (0 disables pruning)")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if values[key] <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
