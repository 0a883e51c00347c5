// Package export stitches an ordered selection of mezzanine segments into a
// single video file.
//
// A timeline arrives either in the editor's trackItemsMap shape or as a
// legacy clips array, in JSON or YAML. Only video placements flagged as
// mezzanine segments with a source reference take part. Every referenced
// segment must exist before ffmpeg is started; nothing is written otherwise.
// Without a composition the segments are stream-copied through the concat
// demuxer, with one they are scaled and re-encoded.
//
// An export can also emit a CMX3600 EDL describing the cut list and hand the
// result to an archive encoder.
package export
