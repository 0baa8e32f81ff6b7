package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"
)

// Kind selects the table a transmission queue operates on.
type Kind string

const (
	KindMetadata     Kind = "metadata"
	KindSupplemental Kind = "supplemental"
)

// Outbound is a row ready to be posted to the index service. RecordID is the
// metadata_ledger row the payload describes; for metadata rows it equals ID.
type Outbound struct {
	ID           string
	RecordID     string
	Metadata     string
	Hash         string
	Key          string
	KeyHash      string
	Transmission Transmission
	Code         int
}

// TransmissionQueue drives the Ready/Failed -> Pending -> Successful/Failed
// state machine for one table.
type TransmissionQueue struct {
	store *Store
	kind  Kind
	table string
	query string
}

// Transmissions returns the queue for kind.
func (s *Store) Transmissions(kind Kind) *TransmissionQueue {
	q := &TransmissionQueue{store: s, kind: kind}
	switch kind {
	case KindSupplemental:
		q.table = "supplemental_ledger"
		// Only rows whose originating record is still Active are sent.
		q.query = `SELECT s.id, s.record_id, s.metadata, s.metadata_hash, s.metadata_key, s.metadata_key_hash, s.transmission, s.transmission_code
            FROM supplemental_ledger s
            JOIN metadata_ledger m ON m.id = s.record_id AND m.lifecycle = s.lifecycle
            WHERE s.lifecycle = ? AND s.transmission IN (?, ?) AND NOT ` + clientRejected("s.") + `
            ORDER BY s.extracted_at, s.id`
	default:
		q.kind = KindMetadata
		q.table = "metadata_ledger"
		q.query = `SELECT id, id, target_metadata, target_hash, target_key, target_key_hash, transmission, transmission_code
            FROM metadata_ledger
            WHERE lifecycle = ? AND target_validation = 'Y' AND transmission IN (?, ?) AND NOT ` + clientRejected("") + `
            ORDER BY extracted_at, id`
	}
	return q
}

// clientRejected matches rows whose last response was a client error other
// than the retryable 408 and 429.
func clientRejected(prefix string) string {
	col := prefix + "transmission_code"
	return "(" + col + " >= 400 AND " + col + " < 500 AND " + col + " NOT IN (408, 429))"
}

// Kind reports which table the queue operates on.
func (q *TransmissionQueue) Kind() Kind { return q.kind }

// Eligible snapshots the rows that may be transmitted now: Active, Ready or
// Failed, not permanently rejected, and for metadata rows target-validated.
func (q *TransmissionQueue) Eligible(ctx context.Context) ([]Outbound, error) {
	rows, err := q.store.queryContext(ctx, q.query, LifecycleActive, TransmissionReady, TransmissionFailed)
	if err != nil {
		return nil, fmt.Errorf("query %s transmission candidates: %w", q.kind, err)
	}
	defer rows.Close()

	var out []Outbound
	for rows.Next() {
		var (
			item     Outbound
			metadata sql.NullString
			status   string
		)
		if err := rows.Scan(&item.ID, &item.RecordID, &metadata, &item.Hash, &item.Key, &item.KeyHash, &status, &item.Code); err != nil {
			return nil, fmt.Errorf("scan %s transmission candidate: %w", q.kind, err)
		}
		item.Metadata = metadata.String
		item.Transmission = Transmission(status)
		out = append(out, item)
	}
	return out, rows.Err()
}

// MarkPending moves a Ready or Failed row to Pending.
func (q *TransmissionQueue) MarkPending(ctx context.Context, id string) error {
	res, err := q.store.execWithRetry(ctx,
		"UPDATE "+q.table+" SET transmission = ? WHERE id = ? AND lifecycle = ? AND transmission IN (?, ?)",
		TransmissionPending, id, LifecycleActive, TransmissionReady, TransmissionFailed,
	)
	if err != nil {
		return fmt.Errorf("mark %s pending: %w", q.kind, err)
	}
	return requireAffected(res, "mark pending", id)
}

// Complete records the response code for a Pending row: 201 is Successful,
// anything else Failed.
func (q *TransmissionQueue) Complete(ctx context.Context, id string, code int, at time.Time) error {
	status := TransmissionFailed
	if code == http.StatusCreated {
		status = TransmissionSuccessful
	}
	res, err := q.store.execWithRetry(ctx,
		"UPDATE "+q.table+" SET transmission = ?, transmission_code = ?, transmitted_at = ? WHERE id = ? AND transmission = ?",
		status, code, formatTime(at), id, TransmissionPending,
	)
	if err != nil {
		return fmt.Errorf("complete %s transmission: %w", q.kind, err)
	}
	return requireAffected(res, "complete transmission", id)
}

// Revert returns a Pending row to its prior status after a transport failure
// so no response-less state is left behind.
func (q *TransmissionQueue) Revert(ctx context.Context, id string, prior Transmission) error {
	if prior != TransmissionReady && prior != TransmissionFailed {
		return fmt.Errorf("revert %s to %s: %w", id, prior, ErrInvalidTransition)
	}
	res, err := q.store.execWithRetry(ctx,
		"UPDATE "+q.table+" SET transmission = ? WHERE id = ? AND transmission = ?",
		prior, id, TransmissionPending,
	)
	if err != nil {
		return fmt.Errorf("revert %s transmission: %w", q.kind, err)
	}
	return requireAffected(res, "revert pending", id)
}
