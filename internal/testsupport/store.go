package testsupport

import (
	"context"
	"testing"
	"time"

	"metaledger/internal/config"
	"metaledger/internal/document"
	"metaledger/internal/keyhash"
	"metaledger/internal/ledger"
)

// MustOpenStore opens a ledger.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *ledger.Store {
	t.Helper()

	store, err := ledger.Open(cfg)
	if err != nil {
		t.Fatalf("ledger.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// MustUpsert keys doc with the default source spec and stores it.
func MustUpsert(t testing.TB, store *ledger.Store, doc document.Document) (ledger.Outcome, *ledger.Record) {
	t.Helper()

	key, err := keyhash.DeriveKey(doc, keyhash.DefaultSourceSpec())
	if err != nil {
		t.Fatalf("DeriveKey: %v", err)
	}
	hash, err := keyhash.ContentHash(doc)
	if err != nil {
		t.Fatalf("ContentHash: %v", err)
	}
	outcome, rec, err := store.Upsert(context.Background(), ledger.Extraction{
		Metadata:    doc,
		Key:         key.Value,
		KeyHash:     key.Hash,
		Hash:        hash,
		ExtractedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("store.Upsert: %v", err)
	}
	return outcome, rec
}
