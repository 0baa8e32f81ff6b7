// Package document models the loosely typed metadata payloads that flow
// through the ledger.
//
// A Document is a decoded JSON object. Node is a tagged view over any decoded
// value (scalar, object, list, or null) used by code that walks payloads
// structurally. Canonical encoding sorts object keys so content hashes are
// stable across runs.
package document
