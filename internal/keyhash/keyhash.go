// Package keyhash derives business keys and content fingerprints for ledger
// records.
//
// Both digests are lowercase hex MD5. They identify and detect change; they
// are not security primitives.
package keyhash

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"metaledger/internal/document"
)

const (
	FieldLearningResourceIdentifier = "LearningResourceIdentifier"
	FieldSourceSystem               = "SOURCESYSTEM"
)

// ErrMissingKeyField matches any *MissingKeyFieldError.
var ErrMissingKeyField = errors.New("missing key field")

// MissingKeyFieldError reports the first key field absent from a record.
type MissingKeyFieldError struct {
	Field string
}

func (e *MissingKeyFieldError) Error() string {
	return fmt.Sprintf("missing key field %q", e.Field)
}

func (e *MissingKeyFieldError) Is(target error) bool {
	return target == ErrMissingKeyField
}

// KeySpec is the ordered list of fields joined into a business key.
type KeySpec struct {
	Fields    []string
	Separator string
}

// DefaultSourceSpec keys a source record by identifier then source system.
func DefaultSourceSpec() KeySpec {
	return KeySpec{
		Fields:    []string{FieldLearningResourceIdentifier, FieldSourceSystem},
		Separator: "_",
	}
}

// Key is a business key with its fixed-width digest.
type Key struct {
	Value string
	Hash  string
}

// DeriveKey joins the spec's fields in order. Absent, null, non-scalar, or
// blank fields fail with *MissingKeyFieldError; no placeholder is invented.
func DeriveKey(doc document.Document, spec KeySpec) (Key, error) {
	if len(spec.Fields) == 0 {
		return Key{}, errors.New("key spec has no fields")
	}
	parts := make([]string, 0, len(spec.Fields))
	for _, field := range spec.Fields {
		value, ok := doc.LookupString(field)
		if !ok || strings.TrimSpace(value) == "" {
			return Key{}, &MissingKeyFieldError{Field: field}
		}
		parts = append(parts, value)
	}
	value := strings.Join(parts, spec.Separator)
	return Key{Value: value, Hash: Sum(value)}, nil
}

// ContentHash fingerprints the canonical encoding of doc.
func ContentHash(doc document.Document) (string, error) {
	canonical, err := document.Canonical(doc)
	if err != nil {
		return "", err
	}
	return sumBytes(canonical), nil
}

// Sum returns the hex MD5 digest of s.
func Sum(s string) string {
	return sumBytes([]byte(s))
}

func sumBytes(b []byte) string {
	digest := md5.Sum(b)
	return hex.EncodeToString(digest[:])
}
