package segments

import (
	"fmt"
	"strconv"

	"scenecut/internal/config"
)

// Tier names a derivative quality level.
type Tier string

const (
	TierProxy     Tier = "proxy"
	TierMezzanine Tier = "mezzanine"
)

// Tiers lists every tier in render order.
var Tiers = []Tier{TierProxy, TierMezzanine}

// ParseTier validates a tier name.
func ParseTier(value string) (Tier, error) {
	switch Tier(value) {
	case TierProxy, TierMezzanine:
		return Tier(value), nil
	}
	return "", fmt.Errorf("unknown tier %q (want proxy or mezzanine)", value)
}

// Profile is the encoder setup of one tier. Height follows the source
// aspect ratio, rounded to an even value.
type Profile struct {
	Width        int
	Preset       string
	CRF          int
	Audio        bool
	AudioBitrate string
}

// Args returns the encoder arguments for the profile.
func (p Profile) Args() []string {
	args := []string{
		"-vf", fmt.Sprintf("scale=%d:-2", p.Width),
		"-c:v", "libx264",
		"-preset", p.Preset,
		"-crf", strconv.Itoa(p.CRF),
	}
	if !p.Audio {
		return append(args, "-an")
	}
	bitrate := p.AudioBitrate
	if bitrate == "" {
		bitrate = "128k"
	}
	return append(args, "-c:a", "aac", "-b:a", bitrate)
}

// Profiles maps each tier to its encoder setup.
type Profiles map[Tier]Profile

// DefaultProfiles returns the stock proxy and mezzanine setups.
func DefaultProfiles() Profiles {
	return Profiles{
		TierProxy:     {Width: 640, Preset: "ultrafast", CRF: 28},
		TierMezzanine: {Width: 1280, Preset: "veryfast", CRF: 23, Audio: true, AudioBitrate: "128k"},
	}
}

// ProfilesFromConfig applies configured widths and quality to the defaults.
func ProfilesFromConfig(cfg config.Render) Profiles {
	profiles := DefaultProfiles()
	proxy := profiles[TierProxy]
	if cfg.ProxyWidth > 0 {
		proxy.Width = cfg.ProxyWidth
	}
	if cfg.ProxyCRF > 0 {
		proxy.CRF = cfg.ProxyCRF
	}
	profiles[TierProxy] = proxy

	mezz := profiles[TierMezzanine]
	if cfg.MezzanineWidth > 0 {
		mezz.Width = cfg.MezzanineWidth
	}
	if cfg.MezzanineCRF > 0 {
		mezz.CRF = cfg.MezzanineCRF
	}
	profiles[TierMezzanine] = mezz
	return profiles
}
