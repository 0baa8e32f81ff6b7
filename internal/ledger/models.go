package ledger

import (
	"strings"
	"time"

	"metaledger/internal/document"
)

// Validation is a source or target validation outcome.
type Validation string

const (
	ValidationUnset Validation = ""
	ValidationYes   Validation = "Y"
	ValidationNo    Validation = "N"
)

// Transmission tracks delivery of a row to the index service.
type Transmission string

const (
	TransmissionReady      Transmission = "Ready"
	TransmissionPending    Transmission = "Pending"
	TransmissionSuccessful Transmission = "Successful"
	TransmissionFailed     Transmission = "Failed"
)

// ParseTransmission maps a case-insensitive name onto a Transmission value.
func ParseTransmission(value string) (Transmission, bool) {
	for _, status := range []Transmission{TransmissionReady, TransmissionPending, TransmissionSuccessful, TransmissionFailed} {
		if strings.EqualFold(string(status), value) {
			return status, true
		}
	}
	return "", false
}

// Lifecycle marks the authoritative version of a key.
type Lifecycle string

const (
	LifecycleActive   Lifecycle = "Active"
	LifecycleInactive Lifecycle = "Inactive"
)

// ParseLifecycle maps a case-insensitive name onto a Lifecycle value.
func ParseLifecycle(value string) (Lifecycle, bool) {
	for _, status := range []Lifecycle{LifecycleActive, LifecycleInactive} {
		if strings.EqualFold(string(status), value) {
			return status, true
		}
	}
	return "", false
}

// Outcome reports what an upsert did.
type Outcome string

const (
	OutcomeInserted   Outcome = "inserted"
	OutcomeSuperseded Outcome = "superseded"
	OutcomeUnchanged  Outcome = "unchanged"
)

// Record is one version of a metadata_ledger row.
type Record struct {
	ID string

	SourceMetadata    document.Document
	SourceKey         string
	SourceKeyHash     string
	SourceHash        string
	ExtractedAt       time.Time
	SourceValidation  Validation
	SourceValidatedAt *time.Time
	TransformedAt     *time.Time

	TargetMetadata    document.Document
	TargetKey         string
	TargetKeyHash     string
	TargetHash        string
	TargetValidation  Validation
	TargetValidatedAt *time.Time

	Transmission     Transmission
	TransmissionCode int
	TransmittedAt    *time.Time

	Lifecycle     Lifecycle
	InactivatedAt *time.Time
}

// IsActive reports whether the record is the current version of its key.
func (r *Record) IsActive() bool {
	return r != nil && r.Lifecycle == LifecycleActive
}

// SupplementalRecord holds the source fields the target mapping never reads.
type SupplementalRecord struct {
	ID               string
	RecordID         string
	Metadata         document.Document
	Key              string
	KeyHash          string
	Hash             string
	ExtractedAt      time.Time
	TransformedAt    *time.Time
	Transmission     Transmission
	TransmissionCode int
	TransmittedAt    *time.Time
	Lifecycle        Lifecycle
	InactivatedAt    *time.Time
}

// Extraction is the input to Upsert.
type Extraction struct {
	Metadata    document.Document
	Key         string
	KeyHash     string
	Hash        string
	ExtractedAt time.Time
}

// Transformation is the target side written by the transformer.
type Transformation struct {
	Metadata      document.Document
	Key           string
	KeyHash       string
	Hash          string
	TransformedAt time.Time
}

// SupplementalExtraction is the input to UpsertSupplemental.
type SupplementalExtraction struct {
	RecordID      string
	Metadata      document.Document
	Key           string
	KeyHash       string
	Hash          string
	ExtractedAt   time.Time
	TransformedAt time.Time
}

// Filter narrows ListRecords. Zero values match everything.
type Filter struct {
	Lifecycle    Lifecycle
	Transmission Transmission
	KeyHash      string
	Limit        int
}
