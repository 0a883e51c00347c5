// Package archive produces an optional AV1 archive copy of exported
// timelines using the Drapto encoder library.
//
// Exports are H.264 for editing and playback; the archive copy trades encode
// time for size. Callers depend on the Encoder interface so tests can swap in
// fakes without running the real encoder.
package archive
