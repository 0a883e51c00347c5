// Package ffprobe provides a typed wrapper around ffprobe JSON output.
//
// Key types:
//   - Result: parsed ffprobe output containing streams and format metadata
//   - Stream: individual audio/video stream properties, including frame rate
//     and frame count helpers
//
// Inspect runs ffprobe through an ffmpeg.Runner so timeouts and failures are
// tagged consistently with the rest of the media layer.
package ffprobe
