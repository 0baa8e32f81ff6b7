// Package ledger persists versioned metadata records in SQLite or Postgres and
// exposes the status transitions each pipeline stage is allowed to make.
//
// Rows are append-and-supersede: a changed payload under an existing key
// inactivates the current Active row and inserts a new one in the same
// transaction, and nothing is ever deleted. A partial unique index keeps at
// most one Active row per source key hash.
//
// Stages read rows through the candidate queries (one per stage predicate) and
// write only their own columns through the Mark*/Save* methods. Treat this
// package as the single source of truth for ledger semantics; schema changes
// go in a new file under migrations/.
package ledger
