package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// MarkSourceValidation records the source validation outcome. A failure is a
// terminal rejection of this version: the row becomes Inactive.
func (s *Store) MarkSourceValidation(ctx context.Context, id string, passed bool, at time.Time) error {
	stamp := formatTime(at)
	if passed {
		res, err := s.execWithRetry(ctx,
			"UPDATE metadata_ledger SET source_validation = ?, source_validated_at = ? WHERE id = ? AND lifecycle = ?",
			ValidationYes, stamp, id, LifecycleActive,
		)
		if err != nil {
			return fmt.Errorf("mark source validation: %w", err)
		}
		return requireAffected(res, "mark source validation", id)
	}

	return s.withTx(ctx, func(tx *sqlTx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE metadata_ledger
             SET source_validation = ?, source_validated_at = ?, lifecycle = ?, inactivated_at = ?
             WHERE id = ? AND lifecycle = ?`,
			ValidationNo, stamp, LifecycleInactive, stamp, id, LifecycleActive,
		)
		if err != nil {
			return fmt.Errorf("mark source validation: %w", err)
		}
		if err := requireAffected(res, "mark source validation", id); err != nil {
			return err
		}
		return retireSupplementalFor(ctx, tx, id, stamp)
	})
}

// MarkTargetValidation records the target validation outcome. A failure
// clears the status and keeps the row Active so a later transformation can
// retry it.
func (s *Store) MarkTargetValidation(ctx context.Context, id string, passed bool, at time.Time) error {
	status := ValidationUnset
	if passed {
		status = ValidationYes
	}
	res, err := s.execWithRetry(ctx,
		"UPDATE metadata_ledger SET target_validation = ?, target_validated_at = ? WHERE id = ? AND lifecycle = ?",
		status, formatTime(at), id, LifecycleActive,
	)
	if err != nil {
		return fmt.Errorf("mark target validation: %w", err)
	}
	return requireAffected(res, "mark target validation", id)
}

// SaveTransformation writes the target side of a record. When the target hash
// differs from the stored one, target validation is cleared and transmission
// goes back to Ready so the new content is revalidated and resent. It reports
// whether the target content changed.
func (s *Store) SaveTransformation(ctx context.Context, id string, tf Transformation) (bool, error) {
	payload, err := encodeDocument(tf.Metadata)
	if err != nil {
		return false, err
	}
	var changed bool
	err = s.withTx(ctx, func(tx *sqlTx) error {
		var storedHash string
		var lifecycle string
		if err := tx.QueryRowContext(ctx,
			"SELECT target_hash, lifecycle FROM metadata_ledger WHERE id = ?", id,
		).Scan(&storedHash, &lifecycle); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return fmt.Errorf("load target hash: %w", err)
		}
		if Lifecycle(lifecycle) != LifecycleActive {
			return fmt.Errorf("%w: record %s is %s", ErrInvalidTransition, id, lifecycle)
		}
		changed = storedHash != tf.Hash
		if !changed {
			_, err := tx.ExecContext(ctx,
				"UPDATE metadata_ledger SET target_key = ?, target_key_hash = ?, transformed_at = ? WHERE id = ?",
				tf.Key, tf.KeyHash, formatTime(tf.TransformedAt), id,
			)
			return err
		}
		_, err := tx.ExecContext(ctx,
			`UPDATE metadata_ledger
             SET target_metadata = ?, target_key = ?, target_key_hash = ?, target_hash = ?, transformed_at = ?,
                 target_validation = ?, target_validated_at = NULL, transmission = ?, transmission_code = 0
             WHERE id = ?`,
			payload, tf.Key, tf.KeyHash, tf.Hash, formatTime(tf.TransformedAt),
			ValidationUnset, TransmissionReady, id,
		)
		return err
	})
	if err != nil {
		return false, fmt.Errorf("save transformation: %w", err)
	}
	return changed, nil
}

// MarkPending moves a Ready or Failed metadata row to Pending.
func (s *Store) MarkPending(ctx context.Context, id string) error {
	return s.Transmissions(KindMetadata).MarkPending(ctx, id)
}

// CompleteTransmission records the index service response for a Pending
// metadata row.
func (s *Store) CompleteTransmission(ctx context.Context, id string, code int, at time.Time) error {
	return s.Transmissions(KindMetadata).Complete(ctx, id, code, at)
}

func requireAffected(res sql.Result, op, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", op, id, ErrInvalidTransition)
	}
	return nil
}
