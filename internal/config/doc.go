// Package config loads, normalizes, and validates metaledger configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// METALEDGER_INDEX_ENDPOINT and METALEDGER_STORE_DSN. The Config type gathers
// every knob the pipeline stages and CLI need: ledger storage, the source
// connector, schema file locations, key fields, admin field overrides, and the
// downstream index service.
//
// Always obtain settings through this package so stages receive sanitized
// paths, canonical log formats, and clear validation errors.
package config
