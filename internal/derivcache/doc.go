// Package derivcache accounts for rendered scene segments and prunes them
// when the store outgrows its budget.
//
// # Size Management
//
// The store enforces two constraints on derivatives: a configurable size
// budget (cache.max_gib, 0 disables it) and a 20% free-space floor on the
// underlying volume. When either limit is exceeded the manager removes the
// segments of the least recently touched analyses first. Master sources,
// exports and the database are never pruned; pruned analyses can be
// re-rendered with `scenecut render`.
//
// Use `scenecut cache stats` to inspect current usage before adjusting limits.
package derivcache
