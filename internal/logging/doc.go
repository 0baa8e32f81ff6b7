// Package logging builds the slog loggers the pipeline writes through.
//
// Terminal output goes to stderr as either an operator-facing console layout
// (scope, short record and key ids, bracketed stage outcomes, hint and impact
// lines under warnings) or JSON. The optional metaledger.log file always
// receives JSON with full identifiers and the run id, for log shipping.
//
// Stage code tags lines through RecordID, KeyHash, StageName, StatusCode and
// Outcomes, and reports anomalies through WarnWithContext and
// ErrorWithContext so every warning names its event type and impact.
package logging
