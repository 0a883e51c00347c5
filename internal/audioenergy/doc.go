// Package audioenergy measures loudness over fixed intervals of a source's
// audio track.
//
// The track is decoded by ffmpeg to mono 32-bit float PCM on stdout and folded
// interval by interval as it streams, so memory use does not grow with the
// source length. Each interval yields a normalized volume in [0,1] and a
// high-energy flag.
package audioenergy
