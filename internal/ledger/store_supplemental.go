package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// UpsertSupplemental stores the unmapped fields of a record under the same
// supersede rule as the main ledger. An unchanged payload only refreshes the
// link to the originating record.
func (s *Store) UpsertSupplemental(ctx context.Context, ex SupplementalExtraction) (Outcome, error) {
	if ex.KeyHash == "" || ex.Hash == "" {
		return "", errors.New("supplemental upsert requires key hash and content hash")
	}
	payload, err := encodeDocument(ex.Metadata)
	if err != nil {
		return "", err
	}
	extractedAt := formatTime(ex.ExtractedAt)
	transformedAt := formatTime(ex.TransformedAt)

	var outcome Outcome
	err = s.withTx(ctx, func(tx *sqlTx) error {
		current, err := scanSupplemental(tx.QueryRowContext(ctx,
			"SELECT "+supplementalColumns+" FROM supplemental_ledger WHERE metadata_key_hash = ? AND lifecycle = ?",
			ex.KeyHash, LifecycleActive,
		))
		switch {
		case errors.Is(err, sql.ErrNoRows):
			outcome = OutcomeInserted
		case err != nil:
			return fmt.Errorf("find active supplemental: %w", err)
		case current.Hash == ex.Hash:
			outcome = OutcomeUnchanged
			if current.RecordID == ex.RecordID {
				return nil
			}
			_, err := tx.ExecContext(ctx,
				"UPDATE supplemental_ledger SET record_id = ? WHERE id = ?", ex.RecordID, current.ID)
			return err
		default:
			outcome = OutcomeSuperseded
			if _, err := tx.ExecContext(ctx,
				"UPDATE supplemental_ledger SET lifecycle = ?, inactivated_at = ? WHERE id = ? AND lifecycle = ?",
				LifecycleInactive, transformedAt, current.ID, LifecycleActive,
			); err != nil {
				return fmt.Errorf("supersede supplemental %s: %w", current.ID, err)
			}
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO supplemental_ledger (id, record_id, metadata, metadata_key, metadata_key_hash, metadata_hash, extracted_at, transformed_at, transmission, transmission_code, lifecycle)
             VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?)`,
			uuid.NewString(), ex.RecordID, payload, ex.Key, ex.KeyHash, ex.Hash, extractedAt, transformedAt,
			TransmissionReady, LifecycleActive,
		)
		if err != nil {
			return fmt.Errorf("insert supplemental: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return outcome, nil
}

// RetireSupplemental inactivates the Active supplemental row for a key, used
// when the mapping now reads every source field. It reports whether a row was
// retired.
func (s *Store) RetireSupplemental(ctx context.Context, keyHash string, at time.Time) (bool, error) {
	res, err := s.execWithRetry(ctx,
		"UPDATE supplemental_ledger SET lifecycle = ?, inactivated_at = ? WHERE metadata_key_hash = ? AND lifecycle = ?",
		LifecycleInactive, formatTime(at), keyHash, LifecycleActive,
	)
	if err != nil {
		return false, fmt.Errorf("retire supplemental: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("retire supplemental: %w", err)
	}
	return n > 0, nil
}

// retireSupplementalFor inactivates the supplemental row linked to a record
// that is leaving the Active set.
func retireSupplementalFor(ctx context.Context, tx *sqlTx, recordID, at string) error {
	if _, err := tx.ExecContext(ctx,
		"UPDATE supplemental_ledger SET lifecycle = ?, inactivated_at = ? WHERE record_id = ? AND lifecycle = ?",
		LifecycleInactive, at, recordID, LifecycleActive,
	); err != nil {
		return fmt.Errorf("retire supplemental for %s: %w", recordID, err)
	}
	return nil
}

// SupplementalFor returns the Active supplemental row linked to a record.
func (s *Store) SupplementalFor(ctx context.Context, recordID string) (*SupplementalRecord, error) {
	rec, err := scanSupplemental(s.queryRowContext(ctx,
		"SELECT "+supplementalColumns+" FROM supplemental_ledger WHERE record_id = ? AND lifecycle = ?",
		recordID, LifecycleActive,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get supplemental: %w", err)
	}
	return rec, nil
}

// SupplementalHistory returns every supplemental version for a key hash, oldest first.
func (s *Store) SupplementalHistory(ctx context.Context, keyHash string) ([]*SupplementalRecord, error) {
	rows, err := s.queryContext(ctx,
		"SELECT "+supplementalColumns+" FROM supplemental_ledger WHERE metadata_key_hash = ? ORDER BY extracted_at, transformed_at, id",
		keyHash,
	)
	if err != nil {
		return nil, fmt.Errorf("query supplemental history: %w", err)
	}
	return collectSupplemental(rows)
}
