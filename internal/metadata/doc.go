// Package metadata extracts basic video properties (duration, frame rate,
// geometry, frame count, audio parameters) from a source file.
//
// ffprobe is the fast path; when it fails the banner printed by `ffmpeg -i`
// is parsed instead. Only when both backends fail is the file reported as
// UnreadableMedia.
package metadata
