// Package config loads, normalizes, and validates scenecut configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// SCENECUT_STORE_DIR and HF_TOKEN, optionally sourced from a local .env file.
// The Config type centralizes every knob the CLI needs so the derivative store,
// detection thresholds and transcode profiles are discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
