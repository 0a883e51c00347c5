// Package main hosts the scenecut CLI entrypoint and command graph.
//
// The Cobra command tree loads configuration lazily, opens the analysis
// store per command and hands the work to internal/pipeline. Tables are
// rendered with go-pretty; every listing command also accepts --json.
//
// Keep this package lean: new behaviour belongs in the internal packages
// first and is surfaced here through a command or flag.
package main
