// Package segments materializes scene windows as proxy and mezzanine
// derivatives.
//
// Every derivative lives at a deterministic path derived from the analysis,
// scene and tier, so re-rendering overwrites rather than duplicates. Output is
// written to a hidden temp file in the target directory and renamed into
// place only after ffmpeg exits cleanly and the file is non-empty.
//
// RenderAll fans scenes out over a bounded errgroup. A failed scene never
// cancels its siblings; per-tier outcomes come back in SceneResult values.
package segments
