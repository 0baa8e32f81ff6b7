package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Upsert records an extracted version under the append-and-supersede rule:
// no Active row inserts, a different content hash supersedes the Active row,
// and an identical content hash writes nothing. Content that already failed
// source validation under the same key is also left alone.
func (s *Store) Upsert(ctx context.Context, ex Extraction) (Outcome, *Record, error) {
	if ex.KeyHash == "" || ex.Hash == "" {
		return "", nil, errors.New("upsert requires key hash and content hash")
	}
	payload, err := encodeDocument(ex.Metadata)
	if err != nil {
		return "", nil, err
	}
	extractedAt := formatTime(ex.ExtractedAt)

	var (
		outcome Outcome
		result  *Record
	)
	err = s.withTx(ctx, func(tx *sqlTx) error {
		current, err := scanRecord(tx.QueryRowContext(ctx,
			"SELECT "+recordColumns+" FROM metadata_ledger WHERE source_key_hash = ? AND lifecycle = ?",
			ex.KeyHash, LifecycleActive,
		))
		switch {
		case errors.Is(err, sql.ErrNoRows):
			rejected, err := scanRecord(tx.QueryRowContext(ctx,
				"SELECT "+recordColumns+" FROM metadata_ledger WHERE source_key_hash = ? AND source_hash = ? AND source_validation = ? ORDER BY extracted_at DESC LIMIT 1",
				ex.KeyHash, ex.Hash, ValidationNo,
			))
			switch {
			case err == nil:
				// Rejected content stays rejected until the payload changes.
				outcome = OutcomeUnchanged
				result = rejected
				return nil
			case !errors.Is(err, sql.ErrNoRows):
				return fmt.Errorf("find rejected record: %w", err)
			}
			outcome = OutcomeInserted
		case err != nil:
			return fmt.Errorf("find active record: %w", err)
		case current.SourceHash == ex.Hash:
			outcome = OutcomeUnchanged
			result = current
			return nil
		default:
			outcome = OutcomeSuperseded
			if _, err := tx.ExecContext(ctx,
				"UPDATE metadata_ledger SET lifecycle = ?, inactivated_at = ? WHERE id = ? AND lifecycle = ?",
				LifecycleInactive, extractedAt, current.ID, LifecycleActive,
			); err != nil {
				return fmt.Errorf("supersede record %s: %w", current.ID, err)
			}
			if err := retireSupplementalFor(ctx, tx, current.ID, extractedAt); err != nil {
				return err
			}
		}

		id := uuid.NewString()
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO metadata_ledger (id, source_metadata, source_key, source_key_hash, source_hash, extracted_at, source_validation, transmission, transmission_code, lifecycle)
             VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, ?)`,
			id, payload, ex.Key, ex.KeyHash, ex.Hash, extractedAt, ValidationUnset, TransmissionReady, LifecycleActive,
		); err != nil {
			return fmt.Errorf("insert record: %w", err)
		}
		result, err = scanRecord(tx.QueryRowContext(ctx, "SELECT "+recordColumns+" FROM metadata_ledger WHERE id = ?", id))
		if err != nil {
			return fmt.Errorf("reload record: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", nil, err
	}
	return outcome, result, nil
}

// Get fetches a record by ID.
func (s *Store) Get(ctx context.Context, id string) (*Record, error) {
	rec, err := scanRecord(s.queryRowContext(ctx, "SELECT "+recordColumns+" FROM metadata_ledger WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get record: %w", err)
	}
	return rec, nil
}

// ActiveByKeyHash returns the Active version for a source key hash.
func (s *Store) ActiveByKeyHash(ctx context.Context, keyHash string) (*Record, error) {
	rec, err := scanRecord(s.queryRowContext(ctx,
		"SELECT "+recordColumns+" FROM metadata_ledger WHERE source_key_hash = ? AND lifecycle = ?",
		keyHash, LifecycleActive,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get active record: %w", err)
	}
	return rec, nil
}

// History returns every version stored under a source key hash, oldest first.
func (s *Store) History(ctx context.Context, keyHash string) ([]*Record, error) {
	rows, err := s.queryContext(ctx,
		"SELECT "+recordColumns+" FROM metadata_ledger WHERE source_key_hash = ? ORDER BY extracted_at, id",
		keyHash,
	)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	return collectRecords(rows)
}

// ListRecords returns records matching filter, most recently extracted first.
func (s *Store) ListRecords(ctx context.Context, filter Filter) ([]*Record, error) {
	var (
		clauses []string
		args    []any
	)
	if filter.Lifecycle != "" {
		clauses = append(clauses, "lifecycle = ?")
		args = append(args, filter.Lifecycle)
	}
	if filter.Transmission != "" {
		clauses = append(clauses, "transmission = ?")
		args = append(args, filter.Transmission)
	}
	if filter.KeyHash != "" {
		clauses = append(clauses, "source_key_hash = ?")
		args = append(args, filter.KeyHash)
	}
	query := "SELECT " + recordColumns + " FROM metadata_ledger"
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY extracted_at DESC, id"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}
	rows, err := s.queryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	return collectRecords(rows)
}

// SourceValidationCandidates returns Active rows not yet source-validated.
func (s *Store) SourceValidationCandidates(ctx context.Context) ([]*Record, error) {
	return s.selectRecords(ctx, "source validation candidates",
		"lifecycle = ? AND source_validation = ?", LifecycleActive, ValidationUnset)
}

// TransformationCandidates returns Active rows that passed source validation.
func (s *Store) TransformationCandidates(ctx context.Context) ([]*Record, error) {
	return s.selectRecords(ctx, "transformation candidates",
		"lifecycle = ? AND source_validation = ?", LifecycleActive, ValidationYes)
}

// TargetValidationCandidates returns Active, transformed rows whose target
// side has not been validated since it last changed.
func (s *Store) TargetValidationCandidates(ctx context.Context) ([]*Record, error) {
	return s.selectRecords(ctx, "target validation candidates",
		"lifecycle = ? AND transformed_at IS NOT NULL AND target_validation = ?", LifecycleActive, ValidationUnset)
}

func (s *Store) selectRecords(ctx context.Context, label, where string, args ...any) ([]*Record, error) {
	rows, err := s.queryContext(ctx, "SELECT "+recordColumns+" FROM metadata_ledger WHERE "+where+" ORDER BY extracted_at, id", args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", label, err)
	}
	return collectRecords(rows)
}
