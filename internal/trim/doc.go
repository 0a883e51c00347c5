// Package trim re-cuts a scene from the master source.
//
// A trim is expressed relative to the scene's original window. Both
// derivative tiers are rendered to staging files first; they replace the
// existing segments only when both renders succeed, and the stored scene is
// retimed in the same locked update. Any failure leaves the stored scene and
// its segments as they were.
package trim
