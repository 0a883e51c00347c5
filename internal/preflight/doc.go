// Package preflight provides readiness checks for the external tools and
// filesystem paths scenecut depends on.
//
// These checks run in two contexts:
//   - The analysis pipeline calls RunAll before ingesting a source so a
//     missing or read-only store fails fast instead of after a long copy.
//   - The CLI "scenecut status" command uses CheckSystemDeps and
//     CheckToolVersion to display tool health.
//
// Each optional check is gated by its config toggle.
package preflight
