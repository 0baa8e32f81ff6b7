package validate_test

import (
	"context"
	"testing"
	"time"

	"metaledger/internal/document"
	"metaledger/internal/keyhash"
	"metaledger/internal/ledger"
	"metaledger/internal/logging"
	"metaledger/internal/stage"
	"metaledger/internal/testsupport"
	"metaledger/internal/validate"
)

func TestSourceStageInactivatesFailures(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	_, good := testsupport.MustUpsert(t, store, document.Document{"LearningResourceIdentifier": "C1", "SOURCESYSTEM": "ORG", "Name": "Intro"})
	_, bad := testsupport.MustUpsert(t, store, document.Document{"LearningResourceIdentifier": "C2", "SOURCESYSTEM": "ORG", "Name": " "})

	req := mustRequirements(t, `{"LearningResourceIdentifier": "Required", "Name": "Required"}`)
	st := validate.NewSourceStage(store, req, logging.NewNop(), validate.WithWorkers(2))
	if st.Name() != stage.NameValidateSource {
		t.Fatalf("unexpected stage name %q", st.Name())
	}

	summary, err := st.Run(ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Count(validate.OutcomePassed) != 1 || summary.Count(validate.OutcomeFailed) != 1 {
		t.Fatalf("unexpected summary %+v", summary.Counts)
	}

	got, err := store.Get(ctx, good.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.SourceValidation != ledger.ValidationYes || !got.IsActive() || got.SourceValidatedAt == nil {
		t.Fatalf("expected validated active row, got %+v", got)
	}

	got, err = store.Get(ctx, bad.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.SourceValidation != ledger.ValidationNo || got.IsActive() || got.InactivatedAt == nil {
		t.Fatalf("expected failed inactive row, got %+v", got)
	}

	summary, err = st.Run(ctx)
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if summary.Total() != 0 {
		t.Fatalf("expected no candidates on rerun, got %+v", summary.Counts)
	}
}

func TestTargetStageFailureKeepsRowActive(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	_, rec := testsupport.MustUpsert(t, store, document.Document{"LearningResourceIdentifier": "C1", "SOURCESYSTEM": "ORG"})
	if err := store.MarkSourceValidation(ctx, rec.ID, true, time.Now()); err != nil {
		t.Fatalf("MarkSourceValidation: %v", err)
	}
	target := document.Document{"Course": map[string]any{"CourseCode": "C1", "CourseTitle": ""}}
	hash, err := keyhash.ContentHash(target)
	if err != nil {
		t.Fatalf("ContentHash: %v", err)
	}
	if _, err := store.SaveTransformation(ctx, rec.ID, ledger.Transformation{
		Metadata:      target,
		Key:           "C1_ORG",
		KeyHash:       keyhash.Sum("C1_ORG"),
		Hash:          hash,
		TransformedAt: time.Now(),
	}); err != nil {
		t.Fatalf("SaveTransformation: %v", err)
	}

	req := mustRequirements(t, `{"Course": {"CourseCode": "Required", "CourseTitle": "Required"}}`)
	st := validate.NewTargetStage(store, req, logging.NewNop())

	summary, err := st.Run(ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Count(validate.OutcomeFailed) != 1 {
		t.Fatalf("unexpected summary %+v", summary.Counts)
	}

	got, err := store.Get(ctx, rec.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !got.IsActive() || got.TargetValidation != ledger.ValidationUnset || got.TargetValidatedAt == nil {
		t.Fatalf("expected active row with cleared target status, got %+v", got)
	}

	// Still a candidate: the next run revalidates it.
	summary, err = st.Run(ctx)
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if summary.Count(validate.OutcomeFailed) != 1 {
		t.Fatalf("expected row to be revalidated, got %+v", summary.Counts)
	}
}

func TestStageRequiresRequirements(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	st := validate.NewSourceStage(store, nil, logging.NewNop())
	if health := st.HealthCheck(context.Background()); health.Ready {
		t.Fatal("expected unhealthy stage without requirements")
	}
	if _, err := st.Run(context.Background()); err == nil {
		t.Fatal("expected configuration error")
	}
}
