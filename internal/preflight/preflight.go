package preflight

import (
	"context"
	"path/filepath"

	"arcmigrate/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name     string
	Passed   bool
	Optional bool
	Detail   string
}

// RunAll executes all applicable preflight checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	results = append(results, CheckDirectoryAccess("Media root", cfg.Paths.MediaRoot))
	results = append(results, CheckDirectoryAccess("Staging directory", cfg.Paths.StagingDir))
	results = append(results, CheckDirectoryAccess("State directory", cfg.Paths.StateDir))
	results = append(results, CheckDirectoryAccess("Stop file directory", filepath.Dir(cfg.StopFilePath())))
	results = append(results, CheckFreeSpace(ctx, "Staging free space", cfg.Paths.StagingDir, minStagingFreeBytes))
	results = append(results, CheckBinaries(cfg)...)

	if cfg.Catalog.BaseURL != "" {
		results = append(results, CheckEndpoint(ctx, "Catalog", cfg.Catalog.BaseURL, cfg.Catalog.InsecureSkipVerify))
	}
	if cfg.Scan.BaseURL != "" {
		results = append(results, CheckEndpoint(ctx, "Scan service", cfg.Scan.BaseURL, false))
	}
	if cfg.UsesTransferService() {
		results = append(results, CheckEndpoint(ctx, "Transfer service", cfg.Transfer.BaseURL, false))
	}

	return results
}

// Failed returns the required checks that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed && !r.Optional {
			failed = append(failed, r)
		}
	}
	return failed
}
