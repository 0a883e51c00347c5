// Package pipeline wires the analysis components into the operations the CLI
// exposes: ingesting a source into a new analysis, re-rendering derivatives,
// trimming one scene and exporting a timeline.
//
// A Pipeline owns no state beyond its collaborators. Every operation stamps
// the analysis ID on the context so logs and metrics from the component
// packages carry it, and each analysis keeps a JSON journal of its own
// operations beside its artifacts.
package pipeline
