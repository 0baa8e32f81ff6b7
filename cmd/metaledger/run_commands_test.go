package main

import (
	"encoding/json"
	"testing"
)

func TestRunCommandJSONSummary(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"run", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	var summary runSummaryJSON
	if err := json.Unmarshal([]byte(out), &summary); err != nil {
		t.Fatalf("decode summary: %v\n%s", err, out)
	}
	if summary.RunID == "" {
		t.Fatal("expected run id")
	}
	got := map[string]map[string]int{}
	for _, st := range summary.Stages {
		got[st.Stage] = st.Counts
	}
	if got["extract"]["inserted"] != 2 {
		t.Fatalf("unexpected extract counts %v", got["extract"])
	}
	if got["validate-source"]["passed"] != 1 || got["validate-source"]["failed"] != 1 {
		t.Fatalf("unexpected source validation counts %v", got["validate-source"])
	}
	if got["transmit"]["successful"] != 1 {
		t.Fatalf("unexpected transmit counts %v", got["transmit"])
	}

	out, _, err = runCLI(t, []string{"ledger", "show", "C1_ORG"}, env.configPath)
	if err != nil {
		t.Fatalf("ledger show: %v", err)
	}
	requireContains(t, out, "Successful")
	requireContains(t, out, "CourseTitle")
}

func TestStageCommandsRunIndividually(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"extract"}, env.configPath)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	requireContains(t, out, "inserted=2")

	out, _, err = runCLI(t, []string{"validate", "source"}, env.configPath)
	if err != nil {
		t.Fatalf("validate source: %v", err)
	}
	requireContains(t, out, "failed=1")
	requireContains(t, out, "passed=1")

	out, _, err = runCLI(t, []string{"ledger", "list", "--lifecycle", "inactive", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("ledger list: %v", err)
	}
	var rows []recordView
	if err := json.Unmarshal([]byte(out), &rows); err != nil {
		t.Fatalf("decode rows: %v", err)
	}
	if len(rows) != 1 || rows[0].SourceKey != "C2_ORG" {
		t.Fatalf("expected only C2 inactive, got %+v", rows)
	}

	if _, _, err := runCLI(t, []string{"transmit", "--supplemental"}, env.configPath); err == nil {
		t.Fatal("expected an error when supplemental transmission is not configured")
	}
}
