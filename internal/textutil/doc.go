// Package textutil sanitizes user-supplied names for use as file names.
//
// SanitizeFileName keeps a name recognizable while removing path separators
// and shell-hostile characters; it is applied to uploaded source names.
// ExportName is stricter: it folds accented letters to their base form and
// keeps only letters, digits, spaces, hyphens and underscores, matching the
// names given to exported timelines.
package textutil
