// Package extract pulls raw records from a source connector into the ledger.
//
// Every record is stamped with the configured source system, run through the
// override rules, keyed, and fingerprinted before it is upserted. Records
// sharing a key are applied in feed order by one worker so the last one read
// wins; distinct keys are upserted concurrently.
package extract
