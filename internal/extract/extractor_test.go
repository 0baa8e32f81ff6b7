package extract_test

import (
	"context"
	"errors"
	"iter"
	"path/filepath"
	"testing"

	"metaledger/internal/config"
	"metaledger/internal/document"
	"metaledger/internal/extract"
	"metaledger/internal/keyhash"
	"metaledger/internal/ledger"
	"metaledger/internal/logging"
	"metaledger/internal/services"
	"metaledger/internal/source"
	"metaledger/internal/testsupport"
)

func newExtractor(t *testing.T, cfg *config.Config, store *ledger.Store) *extract.Extractor {
	t.Helper()
	ex, err := extract.NewFromConfig(cfg, store, logging.NewNop(), nil)
	if err != nil {
		t.Fatalf("NewFromConfig: %v", err)
	}
	return ex
}

func TestRunStampsSourceSystemAndKeys(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithSourceSystem("ORG"))
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	summary, err := newExtractor(t, cfg, store).Run(ctx, source.Static{
		{"LearningResourceIdentifier": "C1", "Name": "Intro"},
		{"LearningResourceIdentifier": "C2", "Name": "Advanced"},
		{"Name": "no identifier"},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Count(string(ledger.OutcomeInserted)) != 2 || summary.Count(extract.OutcomeSkipped) != 1 {
		t.Fatalf("unexpected summary %+v", summary.Counts)
	}

	rec, err := store.ActiveByKeyHash(ctx, keyhash.Sum("C1_ORG"))
	if err != nil {
		t.Fatalf("ActiveByKeyHash: %v", err)
	}
	if rec.SourceKey != "C1_ORG" || rec.SourceMetadata["SOURCESYSTEM"] != "ORG" {
		t.Fatalf("unexpected record %+v", rec)
	}
}

func TestRunLastRecordForKeyWins(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithSourceSystem("ORG"))
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	summary, err := newExtractor(t, cfg, store).Run(ctx, source.Static{
		{"LearningResourceIdentifier": "C1", "Name": "X"},
		{"LearningResourceIdentifier": "C1", "Name": "X"},
		{"LearningResourceIdentifier": "C1", "Name": "Y"},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	for label, want := range map[string]int{"inserted": 1, "unchanged": 1, "superseded": 1} {
		if got := summary.Count(label); got != want {
			t.Fatalf("%s = %d, want %d (%+v)", label, got, want, summary.Counts)
		}
	}

	history, err := store.History(ctx, keyhash.Sum("C1_ORG"))
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	active := 0
	for _, rec := range history {
		if rec.IsActive() {
			active++
			if name, _ := rec.SourceMetadata.LookupString("Name"); name != "Y" {
				t.Fatalf("expected last record to be active, got %q", name)
			}
		}
	}
	if len(history) != 2 || active != 1 {
		t.Fatalf("expected 2 versions with 1 active, got %d/%d", len(history), active)
	}
}

func TestRunAppliesOverrides(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithSourceSystem("ORG"))
	cfg.Overrides = []config.Override{
		{Field: "Provider", Type: "str", Value: "Acme", Overwrite: false},
		{Field: "Hours", Type: "int", Value: "4", Overwrite: true},
	}
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	if _, err := newExtractor(t, cfg, store).Run(ctx, source.Static{
		{"LearningResourceIdentifier": "C1", "Provider": "Kept", "Hours": "1"},
		{"LearningResourceIdentifier": "C2", "Provider": ""},
	}); err != nil {
		t.Fatalf("Run: %v", err)
	}

	first, _ := store.ActiveByKeyHash(ctx, keyhash.Sum("C1_ORG"))
	if p, _ := first.SourceMetadata.LookupString("Provider"); p != "Kept" {
		t.Fatalf("append rule overwrote existing value: %q", p)
	}
	if h, _ := first.SourceMetadata.LookupString("Hours"); h != "4" {
		t.Fatalf("overwrite rule not applied: %q", h)
	}
	second, _ := store.ActiveByKeyHash(ctx, keyhash.Sum("C2_ORG"))
	if p, _ := second.SourceMetadata.LookupString("Provider"); p != "Acme" {
		t.Fatalf("append rule did not fill empty value: %q", p)
	}
}

func TestRunFromFileSkipsBadLines(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithSourceSystem("ORG"))
	testsupport.WriteFile(t, cfg.Source.File, "{\"LearningResourceIdentifier\":\"C1\"}\nnot json\n{\"LearningResourceIdentifier\":\"C2\"}\n")
	store := testsupport.MustOpenStore(t, cfg)

	conn, err := source.NewFromConfig(cfg)
	if err != nil {
		t.Fatalf("NewFromConfig: %v", err)
	}
	summary, err := newExtractor(t, cfg, store).Run(context.Background(), conn)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Count(string(ledger.OutcomeInserted)) != 2 || summary.Count(extract.OutcomeInvalid) != 1 {
		t.Fatalf("unexpected summary %+v", summary.Counts)
	}
}

func TestRunFailsWhenSourceMissing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Source.File = filepath.Join(t.TempDir(), "missing.jsonl")
	store := testsupport.MustOpenStore(t, cfg)

	conn, err := source.NewFromConfig(cfg)
	if err != nil {
		t.Fatalf("NewFromConfig: %v", err)
	}
	_, err = newExtractor(t, cfg, store).Run(context.Background(), conn)
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

type failingConnector struct{}

func (failingConnector) Name() string { return "failing" }

func (failingConnector) Records(context.Context) iter.Seq2[document.Document, error] {
	return func(yield func(document.Document, error) bool) {
		if !yield(document.Document{"LearningResourceIdentifier": "C1"}, nil) {
			return
		}
		yield(nil, errors.New("feed closed"))
	}
}

func TestRunAbortsOnConnectorFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ex := newExtractor(t, cfg, store)
	if _, err := ex.Stage(failingConnector{}).Run(context.Background()); err == nil {
		t.Fatal("expected connector failure")
	}
	if rows, _ := store.ListRecords(context.Background(), ledger.Filter{}); len(rows) != 0 {
		t.Fatalf("nothing should be written when the feed fails, got %d rows", len(rows))
	}
}
