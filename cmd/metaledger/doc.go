// Package main hosts the metaledger CLI entrypoint and command graph.
//
// The Cobra command tree loads configuration, opens the ledger, and hands
// work to internal/workflow. `run` executes every stage in order; the
// stage commands (extract, validate, transform, transmit) run one stage under
// the same lock and logging. The ledger and status commands are read-only.
//
// Keep this package lean: behavior belongs in the internal packages, and
// commands here only parse flags and render results.
package main
