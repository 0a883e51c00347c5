// Package fileutil holds the file operations that must not leave partial
// results behind: verified copies, staging paths and multi-file commits.
package fileutil
