package preflight

import (
	"context"
	"fmt"
	"strings"

	"oracletom/internal/config"
	"oracletom/internal/services"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result
	results = append(results, CheckCredentials(cfg))
	results = append(results, CheckModel(ctx, cfg))

	if cfg.Model.WeightsPath != "" {
		results = append(results, CheckReadableFile("Model weights", cfg.Model.WeightsPath))
	}
	if cfg.Model.TaxonomyPath != "" {
		results = append(results, CheckReadableFile("Taxonomy", cfg.Model.TaxonomyPath))
	}

	results = append(results, CheckDirectoryAccess("Output directory", cfg.Output.Dir))
	if cfg.Output.ResultsDB != "" {
		results = append(results, CheckParentWritable("Results database", cfg.Output.ResultsDB))
	}
	return results
}

// Err returns a configuration error listing every failed check, or nil.
func Err(results []Result) error {
	var failed []string
	for _, result := range results {
		if !result.Passed {
			failed = append(failed, fmt.Sprintf("%s: %s", result.Name, result.Detail))
		}
	}
	if len(failed) == 0 {
		return nil
	}
	return services.Wrap(services.ErrConfiguration, "preflight", "", strings.Join(failed, "; "), nil)
}
