// Package source reads raw records from the upstream feed.
//
// A Connector yields documents lazily as an iterator. The file connector
// understands CSV (header row), JSON (array of objects), and JSON Lines, and
// decodes UTF-8 (with or without BOM), Windows-1252, and Latin-1 input.
// Malformed rows surface as *RecordError so callers can skip them and keep
// going; any other error ends the feed.
package source
