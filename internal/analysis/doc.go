// Package analysis persists analyses and their scenes in SQLite and owns the
// on-disk layout of the derivative store.
//
// The Store is the single source of truth for scene records. Reads are
// concurrent; every mutation goes through Update, which serializes writers of
// one analysis with an in-process mutex plus a flock on the analysis
// directory so separate scenecut processes cannot interleave edits.
//
// Schema changes bump schemaVersion in schema.go; users delete the database
// (it lives next to the store) to adopt the new schema.
package analysis
