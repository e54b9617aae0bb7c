package preflight

import (
	"context"
	"strings"

	"keepsake/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
// The liveness probe only runs when a URL is configured.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Archive directory", cfg.Paths.BaseDir),
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckTemplates(cfg.Paths.TemplatesDir),
	}
	if strings.TrimSpace(cfg.Liveness.URL) != "" {
		results = append(results, CheckLiveness(ctx, cfg.Liveness.URL, cfg.LivenessTimeout()))
	}
	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed {
			out = append(out, r)
		}
	}
	return out
}
