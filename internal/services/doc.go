// Package services defines shared utilities consumed by the pipeline stages
// and the index service client.
//
// Key responsibilities:
//   - Context helpers that stamp run IDs, stage names, and ledger record IDs
//     for logging.
//   - Structured error markers plus the Wrap helper so callers can tell a
//     fatal transport failure from a per-record rejection.
//
// Use these helpers when wiring new stage logic so error handling and
// observability stay uniform across the pipeline.
package services
