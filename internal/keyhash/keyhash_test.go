package keyhash_test

import (
	"errors"
	"testing"

	"metaledger/internal/document"
	"metaledger/internal/keyhash"
)

func TestDeriveKeyDefaultSpec(t *testing.T) {
	doc := document.Document{"LearningResourceIdentifier": "C1", "SOURCESYSTEM": "ORG", "Name": "X"}

	key, err := keyhash.DeriveKey(doc, keyhash.DefaultSourceSpec())
	if err != nil {
		t.Fatalf("DeriveKey returned error: %v", err)
	}
	if key.Value != "C1_ORG" {
		t.Fatalf("unexpected key value %q", key.Value)
	}
	if key.Hash != keyhash.Sum("C1_ORG") || len(key.Hash) != 32 {
		t.Fatalf("unexpected key hash %q", key.Hash)
	}

	again, err := keyhash.DeriveKey(doc.Clone(), keyhash.DefaultSourceSpec())
	if err != nil {
		t.Fatalf("DeriveKey returned error: %v", err)
	}
	if again != key {
		t.Fatalf("expected identical key on repeat call, got %+v vs %+v", again, key)
	}
}

func TestSumMatchesKnownDigest(t *testing.T) {
	if got := keyhash.Sum("test_data_JKO"); got != "2e08c9810d5cb3127761ec4a974b2d5d" {
		t.Fatalf("unexpected digest %q", got)
	}
}

func TestDeriveKeyMissingField(t *testing.T) {
	tests := []struct {
		name  string
		doc   document.Document
		field string
	}{
		{"absent system", document.Document{"LearningResourceIdentifier": "C1"}, "SOURCESYSTEM"},
		{"blank identifier", document.Document{"LearningResourceIdentifier": " ", "SOURCESYSTEM": "ORG"}, "LearningResourceIdentifier"},
		{"null identifier", document.Document{"LearningResourceIdentifier": nil, "SOURCESYSTEM": "ORG"}, "LearningResourceIdentifier"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := keyhash.DeriveKey(tc.doc, keyhash.DefaultSourceSpec())
			if !errors.Is(err, keyhash.ErrMissingKeyField) {
				t.Fatalf("expected ErrMissingKeyField, got %v", err)
			}
			var missing *keyhash.MissingKeyFieldError
			if !errors.As(err, &missing) || missing.Field != tc.field {
				t.Fatalf("expected missing field %q, got %v", tc.field, err)
			}
		})
	}
}

func TestDeriveKeyDottedTargetSpec(t *testing.T) {
	doc := document.Document{"Course": map[string]any{"CourseCode": "C1", "CourseProviderName": "ORG"}}
	spec := keyhash.KeySpec{Fields: []string{"Course.CourseCode", "Course.CourseProviderName"}, Separator: "_"}
	key, err := keyhash.DeriveKey(doc, spec)
	if err != nil {
		t.Fatalf("DeriveKey returned error: %v", err)
	}
	if key.Value != "C1_ORG" {
		t.Fatalf("unexpected key %q", key.Value)
	}
}

func TestContentHashIgnoresKeyOrderAndTracksChanges(t *testing.T) {
	a := document.Document{"A": "1", "B": "2"}
	b := document.Document{"B": "2", "A": "1"}
	c := document.Document{"A": "1", "B": "3"}

	ha, err := keyhash.ContentHash(a)
	if err != nil {
		t.Fatalf("ContentHash returned error: %v", err)
	}
	hb, _ := keyhash.ContentHash(b)
	hc, _ := keyhash.ContentHash(c)
	if ha != hb {
		t.Fatalf("expected same hash for same content: %s vs %s", ha, hb)
	}
	if ha == hc {
		t.Fatal("expected different hash for different content")
	}
}
