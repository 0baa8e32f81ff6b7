package ledger_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"metaledger/internal/document"
	"metaledger/internal/keyhash"
	"metaledger/internal/ledger"
	"metaledger/internal/testsupport"
)

func readyForTransmission(t *testing.T, store *ledger.Store, doc document.Document) *ledger.Record {
	t.Helper()
	ctx := context.Background()
	_, rec := testsupport.MustUpsert(t, store, doc)
	if err := store.MarkSourceValidation(ctx, rec.ID, true, time.Now()); err != nil {
		t.Fatalf("MarkSourceValidation failed: %v", err)
	}
	mustTransform(t, store, rec.ID, document.Document{"Course": map[string]any{"CourseCode": doc["LearningResourceIdentifier"]}})
	if err := store.MarkTargetValidation(ctx, rec.ID, true, time.Now()); err != nil {
		t.Fatalf("MarkTargetValidation failed: %v", err)
	}
	return rec
}

func TestTransmissionStateMachine(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	rec := readyForTransmission(t, store, sampleDoc("X"))

	eligible, err := store.Transmissions(ledger.KindMetadata).Eligible(ctx)
	if err != nil {
		t.Fatalf("Eligible failed: %v", err)
	}
	if len(eligible) != 1 || eligible[0].ID != rec.ID {
		t.Fatalf("expected record to be eligible, got %+v", eligible)
	}
	if eligible[0].Metadata != `{"Course":{"CourseCode":"C1"}}` {
		t.Fatalf("unexpected outbound metadata %q", eligible[0].Metadata)
	}

	if err := store.CompleteTransmission(ctx, rec.ID, 201, time.Now()); !errors.Is(err, ledger.ErrInvalidTransition) {
		t.Fatalf("expected completion without pending to be rejected, got %v", err)
	}
	if err := store.MarkPending(ctx, rec.ID); err != nil {
		t.Fatalf("MarkPending failed: %v", err)
	}
	if err := store.MarkPending(ctx, rec.ID); !errors.Is(err, ledger.ErrInvalidTransition) {
		t.Fatalf("expected pending row to refuse MarkPending, got %v", err)
	}
	if err := store.CompleteTransmission(ctx, rec.ID, 201, time.Now()); err != nil {
		t.Fatalf("CompleteTransmission failed: %v", err)
	}

	got, _ := store.Get(ctx, rec.ID)
	if got.Transmission != ledger.TransmissionSuccessful || got.TransmissionCode != 201 || got.TransmittedAt == nil {
		t.Fatalf("unexpected transmission state: %+v", got)
	}
	if err := store.MarkPending(ctx, rec.ID); !errors.Is(err, ledger.ErrInvalidTransition) {
		t.Fatalf("expected successful row to be terminal, got %v", err)
	}
	eligible, _ = store.Transmissions(ledger.KindMetadata).Eligible(ctx)
	if len(eligible) != 0 {
		t.Fatalf("expected no eligible rows after success, got %d", len(eligible))
	}
}

func TestEligibleExcludesClientRejections(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	queue := store.Transmissions(ledger.KindMetadata)

	codes := map[string]int{"C400": 400, "C404": 404, "C429": 429, "C500": 500}
	ids := map[string]string{}
	for name, code := range codes {
		rec := readyForTransmission(t, store, document.Document{"LearningResourceIdentifier": name, "SOURCESYSTEM": "ORG"})
		ids[rec.ID] = name
		if err := queue.MarkPending(ctx, rec.ID); err != nil {
			t.Fatalf("MarkPending failed: %v", err)
		}
		if err := queue.Complete(ctx, rec.ID, code, time.Now()); err != nil {
			t.Fatalf("Complete failed: %v", err)
		}
	}

	eligible, err := queue.Eligible(ctx)
	if err != nil {
		t.Fatalf("Eligible failed: %v", err)
	}
	got := map[string]bool{}
	for _, item := range eligible {
		got[ids[item.ID]] = true
		if item.Transmission != ledger.TransmissionFailed {
			t.Fatalf("expected failed status, got %s", item.Transmission)
		}
	}
	if len(got) != 2 || !got["C429"] || !got["C500"] {
		t.Fatalf("expected only retryable failures to be eligible, got %v", got)
	}
}

func TestRevertRestoresPriorStatus(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	queue := store.Transmissions(ledger.KindMetadata)
	rec := readyForTransmission(t, store, sampleDoc("X"))

	if err := queue.MarkPending(ctx, rec.ID); err != nil {
		t.Fatalf("MarkPending failed: %v", err)
	}
	if err := queue.Revert(ctx, rec.ID, ledger.TransmissionReady); err != nil {
		t.Fatalf("Revert failed: %v", err)
	}
	got, _ := store.Get(ctx, rec.ID)
	if got.Transmission != ledger.TransmissionReady || got.TransmissionCode != 0 {
		t.Fatalf("expected ready row with no code, got %+v", got)
	}
	if err := queue.Revert(ctx, rec.ID, ledger.TransmissionSuccessful); !errors.Is(err, ledger.ErrInvalidTransition) {
		t.Fatalf("expected revert to successful to be rejected, got %v", err)
	}
}

func TestTransformationChangeResetsTransmission(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	rec := readyForTransmission(t, store, sampleDoc("X"))
	if err := store.MarkPending(ctx, rec.ID); err != nil {
		t.Fatalf("MarkPending failed: %v", err)
	}
	if err := store.CompleteTransmission(ctx, rec.ID, 400, time.Now()); err != nil {
		t.Fatalf("CompleteTransmission failed: %v", err)
	}

	mustTransform(t, store, rec.ID, document.Document{"Course": map[string]any{"CourseCode": "fixed"}})
	got, _ := store.Get(ctx, rec.ID)
	if got.Transmission != ledger.TransmissionReady || got.TransmissionCode != 0 {
		t.Fatalf("expected new target content to be retransmittable, got %+v", got)
	}
}

func TestSupplementalUpsertAndQueue(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	_, rec := testsupport.MustUpsert(t, store, sampleDoc("X"))

	upsert := func(doc document.Document) ledger.Outcome {
		t.Helper()
		hash, err := keyhash.ContentHash(doc)
		if err != nil {
			t.Fatalf("ContentHash failed: %v", err)
		}
		outcome, err := store.UpsertSupplemental(ctx, ledger.SupplementalExtraction{
			RecordID:      rec.ID,
			Metadata:      doc,
			Key:           rec.SourceKey,
			KeyHash:       rec.SourceKeyHash,
			Hash:          hash,
			ExtractedAt:   rec.ExtractedAt,
			TransformedAt: time.Now(),
		})
		if err != nil {
			t.Fatalf("UpsertSupplemental failed: %v", err)
		}
		return outcome
	}

	if got := upsert(document.Document{"Name": "X"}); got != ledger.OutcomeInserted {
		t.Fatalf("expected insert, got %s", got)
	}
	if got := upsert(document.Document{"Name": "X"}); got != ledger.OutcomeUnchanged {
		t.Fatalf("expected unchanged, got %s", got)
	}
	if got := upsert(document.Document{"Name": "Y"}); got != ledger.OutcomeSuperseded {
		t.Fatalf("expected superseded, got %s", got)
	}

	history, err := store.SupplementalHistory(ctx, rec.SourceKeyHash)
	if err != nil {
		t.Fatalf("SupplementalHistory failed: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 supplemental versions, got %d", len(history))
	}

	sup, err := store.SupplementalFor(ctx, rec.ID)
	if err != nil {
		t.Fatalf("SupplementalFor failed: %v", err)
	}
	if name, _ := sup.Metadata.LookupString("Name"); name != "Y" {
		t.Fatalf("unexpected active supplemental: %v", sup.Metadata)
	}

	queue := store.Transmissions(ledger.KindSupplemental)
	eligible, err := queue.Eligible(ctx)
	if err != nil {
		t.Fatalf("Eligible failed: %v", err)
	}
	if len(eligible) != 1 || eligible[0].ID != sup.ID || eligible[0].Key != "C1_ORG" {
		t.Fatalf("unexpected supplemental eligibility: %+v", eligible)
	}
	if err := queue.MarkPending(ctx, sup.ID); err != nil {
		t.Fatalf("MarkPending failed: %v", err)
	}
	if err := queue.Complete(ctx, sup.ID, 201, time.Now()); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.Supplemental[ledger.TransmissionSuccessful] != 1 {
		t.Fatalf("unexpected supplemental stats: %+v", stats.Supplemental)
	}
}

func TestSupplementalRetiredWithItsRecord(t *testing.T) {
	tests := []struct {
		name   string
		retire func(t *testing.T, store *ledger.Store, rec *ledger.Record)
	}{
		{
			name: "superseded by new version",
			retire: func(t *testing.T, store *ledger.Store, _ *ledger.Record) {
				if outcome, _ := testsupport.MustUpsert(t, store, sampleDoc("Renamed")); outcome != ledger.OutcomeSuperseded {
					t.Fatalf("expected superseded, got %s", outcome)
				}
			},
		},
		{
			name: "rejected by source validation",
			retire: func(t *testing.T, store *ledger.Store, rec *ledger.Record) {
				if err := store.MarkSourceValidation(context.Background(), rec.ID, false, time.Now()); err != nil {
					t.Fatalf("MarkSourceValidation failed: %v", err)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
			ctx := context.Background()
			_, rec := testsupport.MustUpsert(t, store, sampleDoc("X"))

			doc := document.Document{"Extra": "x"}
			hash, err := keyhash.ContentHash(doc)
			if err != nil {
				t.Fatalf("ContentHash failed: %v", err)
			}
			if _, err := store.UpsertSupplemental(ctx, ledger.SupplementalExtraction{
				RecordID:      rec.ID,
				Metadata:      doc,
				Key:           rec.SourceKey,
				KeyHash:       rec.SourceKeyHash,
				Hash:          hash,
				ExtractedAt:   rec.ExtractedAt,
				TransformedAt: time.Now(),
			}); err != nil {
				t.Fatalf("UpsertSupplemental failed: %v", err)
			}

			tt.retire(t, store, rec)

			if _, err := store.SupplementalFor(ctx, rec.ID); !errors.Is(err, ledger.ErrNotFound) {
				t.Fatalf("expected supplemental to be inactive, got %v", err)
			}
			eligible, err := store.Transmissions(ledger.KindSupplemental).Eligible(ctx)
			if err != nil {
				t.Fatalf("Eligible failed: %v", err)
			}
			if len(eligible) != 0 {
				t.Fatalf("expected no supplemental to send, got %+v", eligible)
			}
			history, err := store.SupplementalHistory(ctx, rec.SourceKeyHash)
			if err != nil {
				t.Fatalf("SupplementalHistory failed: %v", err)
			}
			if len(history) != 1 || history[0].Lifecycle != ledger.LifecycleInactive || history[0].InactivatedAt == nil {
				t.Fatalf("unexpected supplemental history: %+v", history)
			}
		})
	}
}
