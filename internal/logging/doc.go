// Package logging assembles structured slog loggers and formatting helpers used
// across scenecut.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so pipeline code can tag log
// lines with analysis IDs, scene IDs, stages, and correlation IDs. AnalysisLog
// tees a logger into a per-analysis JSON journal. The package also provides a
// no-op logger for tests and wiring code that cannot fail.
package logging
