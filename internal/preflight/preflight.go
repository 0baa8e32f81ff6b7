package preflight

import (
	"context"

	"metaledger/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// Pinger is satisfied by the ledger store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RunAll executes every applicable check for the given config. A nil ledger
// skips the database check.
func RunAll(ctx context.Context, cfg *config.Config, ledger Pinger) []Result {
	if cfg == nil {
		return nil
	}
	results := RunLocal(ctx, cfg, ledger)
	return append(results, RunIndex(ctx, cfg, cfg.Index.Endpoint != "", cfg.Workflow.TransmitSupplemental)...)
}

// RunLocal checks the directories, input files, and ledger every stage needs.
func RunLocal(ctx context.Context, cfg *config.Config, ledger Pinger) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
		CheckReadableFile("Source file", cfg.Source.File),
		CheckReadableFile("Source validation schema", cfg.Schemas.SourceValidation),
		CheckReadableFile("Target mapping schema", cfg.Schemas.TargetMapping),
		CheckReadableFile("Target validation schema", cfg.Schemas.TargetValidation),
	}
	if ledger != nil {
		results = append(results, CheckLedger(ctx, ledger))
	}
	return results
}

// RunIndex checks the index endpoints the transmit stages post to. Only
// transmission depends on them.
func RunIndex(ctx context.Context, cfg *config.Config, metadata, supplemental bool) []Result {
	if cfg == nil {
		return nil
	}
	var results []Result
	if metadata {
		results = append(results, CheckIndex(ctx, "Index service", cfg.Index.Endpoint))
	}
	if supplemental {
		results = append(results, CheckIndex(ctx, "Supplemental index service", cfg.Index.SupplementalEndpoint))
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
