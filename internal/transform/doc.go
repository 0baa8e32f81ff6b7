// Package transform maps validated source payloads onto the target schema.
//
// A Mapping mirrors the target document: every leaf names the source field
// that feeds it. The Stage writes the mapped target side back onto the same
// ledger row and stores the source fields the mapping never reads as a
// supplemental record.
package transform
