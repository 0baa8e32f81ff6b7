package ledger

import (
	"database/sql"
	"errors"
	"time"

	"metaledger/internal/document"
)

const recordColumns = "id, source_metadata, source_key, source_key_hash, source_hash, extracted_at, source_validation, source_validated_at, transformed_at, target_metadata, target_key, target_key_hash, target_hash, target_validation, target_validated_at, transmission, transmission_code, transmitted_at, lifecycle, inactivated_at"

const supplementalColumns = "id, record_id, metadata, metadata_key, metadata_key_hash, metadata_hash, extracted_at, transformed_at, transmission, transmission_code, transmitted_at, lifecycle, inactivated_at"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(scanner rowScanner) (*Record, error) {
	var (
		rec              Record
		sourceMetadata   string
		extractedRaw     string
		sourceValidation string
		sourceValidated  sql.NullString
		transformedRaw   sql.NullString
		targetMetadata   sql.NullString
		targetValidation string
		targetValidated  sql.NullString
		transmission     string
		transmittedRaw   sql.NullString
		lifecycle        string
		inactivatedRaw   sql.NullString
		transmissionCode sql.NullInt64
	)

	if err := scanner.Scan(
		&rec.ID,
		&sourceMetadata,
		&rec.SourceKey,
		&rec.SourceKeyHash,
		&rec.SourceHash,
		&extractedRaw,
		&sourceValidation,
		&sourceValidated,
		&transformedRaw,
		&targetMetadata,
		&rec.TargetKey,
		&rec.TargetKeyHash,
		&rec.TargetHash,
		&targetValidation,
		&targetValidated,
		&transmission,
		&transmissionCode,
		&transmittedRaw,
		&lifecycle,
		&inactivatedRaw,
	); err != nil {
		return nil, err
	}

	var err error
	if rec.SourceMetadata, err = document.Decode([]byte(sourceMetadata)); err != nil {
		return nil, err
	}
	if targetMetadata.Valid && targetMetadata.String != "" {
		if rec.TargetMetadata, err = document.Decode([]byte(targetMetadata.String)); err != nil {
			return nil, err
		}
	}
	if extracted, err := parseTimeString(extractedRaw); err == nil {
		rec.ExtractedAt = extracted
	}
	rec.SourceValidation = Validation(sourceValidation)
	rec.SourceValidatedAt = parseNullableTime(sourceValidated)
	rec.TransformedAt = parseNullableTime(transformedRaw)
	rec.TargetValidation = Validation(targetValidation)
	rec.TargetValidatedAt = parseNullableTime(targetValidated)
	rec.Transmission = Transmission(transmission)
	rec.TransmissionCode = int(transmissionCode.Int64)
	rec.TransmittedAt = parseNullableTime(transmittedRaw)
	rec.Lifecycle = Lifecycle(lifecycle)
	rec.InactivatedAt = parseNullableTime(inactivatedRaw)
	return &rec, nil
}

func scanSupplemental(scanner rowScanner) (*SupplementalRecord, error) {
	var (
		rec              SupplementalRecord
		metadata         string
		extractedRaw     string
		transformedRaw   sql.NullString
		transmission     string
		transmissionCode sql.NullInt64
		transmittedRaw   sql.NullString
		lifecycle        string
		inactivatedRaw   sql.NullString
	)
	if err := scanner.Scan(
		&rec.ID,
		&rec.RecordID,
		&metadata,
		&rec.Key,
		&rec.KeyHash,
		&rec.Hash,
		&extractedRaw,
		&transformedRaw,
		&transmission,
		&transmissionCode,
		&transmittedRaw,
		&lifecycle,
		&inactivatedRaw,
	); err != nil {
		return nil, err
	}
	var err error
	if rec.Metadata, err = document.Decode([]byte(metadata)); err != nil {
		return nil, err
	}
	if extracted, err := parseTimeString(extractedRaw); err == nil {
		rec.ExtractedAt = extracted
	}
	rec.TransformedAt = parseNullableTime(transformedRaw)
	rec.Transmission = Transmission(transmission)
	rec.TransmissionCode = int(transmissionCode.Int64)
	rec.TransmittedAt = parseNullableTime(transmittedRaw)
	rec.Lifecycle = Lifecycle(lifecycle)
	rec.InactivatedAt = parseNullableTime(inactivatedRaw)
	return &rec, nil
}

func encodeDocument(doc document.Document) (string, error) {
	if doc == nil {
		doc = document.Document{}
	}
	data, err := document.Canonical(doc)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// timeLayout keeps every stamp the same width so text columns sort in time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(value time.Time) string {
	if value.IsZero() {
		value = time.Now()
	}
	return value.UTC().Format(timeLayout)
}

func parseNullableTime(value sql.NullString) *time.Time {
	if !value.Valid {
		return nil
	}
	t, err := parseTimeString(value.String)
	if err != nil {
		return nil
	}
	return &t
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func collectRecords(rows *sql.Rows) ([]*Record, error) {
	defer rows.Close()
	var out []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func collectSupplemental(rows *sql.Rows) ([]*SupplementalRecord, error) {
	defer rows.Close()
	var out []*SupplementalRecord
	for rows.Next() {
		rec, err := scanSupplemental(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
