// Package services defines shared utilities consumed by the analysis pipeline
// and the external tool integrations.
//
// Key responsibilities:
//   - Context helpers that stamp analysis IDs, scene IDs, stage names, and
//     correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper, and the tagged Error type
//     whose Kind is the stable failure tag reported to callers.
//
// Use these helpers when wiring new pipeline logic so error handling and
// observability stay uniform.
package services
