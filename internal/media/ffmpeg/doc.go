// Package ffmpeg runs the ffmpeg family of tools as black-box subprocesses.
//
// Runner applies a per-invocation timeout, captures the tail of stderr for
// diagnostics, and classifies failures into the tagged error kinds from the
// services package (timeouts are always distinct from non-zero exits). The
// Executor interface is the seam tests use to avoid spawning real processes.
package ffmpeg
