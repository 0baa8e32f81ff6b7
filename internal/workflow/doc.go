// Package workflow runs the ledger pipeline stages in order.
//
// A Runner holds an exclusive lock file for the duration of a run, tags every
// log line with a fresh run ID, and executes extract, source validation,
// transform, target validation, and transmission one after another. Each
// stage processes its own candidates with a bounded worker group; only the
// transmitter works sequentially over a snapshot. Per-record problems are
// logged and left in the ledger for a later run. Fatal errors (the index
// service being unreachable, a broken configuration) stop the run before the
// next stage starts.
//
// BuildStages wires the concrete handlers from configuration so the CLI can
// run the whole pipeline or a single stage.
package workflow
