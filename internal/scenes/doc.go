// Package scenes splits a source into contiguous scene windows and turns
// them into scene records.
//
// Two detectors share the Detector interface: CutDetector reads scene-change
// scores and mean luma from a single ffmpeg pass, and AIDetector layers
// transcript topic boundaries on top of it. Annotate merges audio energy
// samples onto the windows.
package scenes
