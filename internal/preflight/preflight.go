package preflight

import (
	"context"
	"errors"
	"fmt"

	"scenecut/internal/config"
	"scenecut/internal/services"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

// RunAll executes all applicable preflight checks for the given config.
func RunAll(_ context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}
	results := []Result{
		CheckDirectoryAccess("Store directory", cfg.Paths.StoreDir),
		CheckDirectoryAccess("Scratch directory", cfg.Paths.ScratchDir),
	}
	if cfg.Archive.Enabled {
		results = append(results, CheckDirectoryAccess("Archive directory", cfg.Archive.Dir))
	}
	for _, status := range CheckSystemDeps(cfg) {
		if status.Optional {
			continue
		}
		results = append(results, Result{Name: status.Name, Passed: status.Available, Detail: status.Detail})
	}
	return results
}

// Err folds failed results into one configuration error, or nil.
func Err(results []Result) error {
	var errs []error
	for _, r := range results {
		if !r.Passed {
			errs = append(errs, fmt.Errorf("%s: %s", r.Name, r.Detail))
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return services.Wrap(services.ErrConfiguration, "preflight", "check environment", "", errors.Join(errs...))
}
