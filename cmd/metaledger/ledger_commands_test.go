package main

import (
	"testing"
)

func TestLedgerCommandsOnEmptyLedger(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"ledger", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("ledger list: %v", err)
	}
	requireContains(t, out, "No ledger rows match")

	out, _, err = runCLI(t, []string{"ledger", "stats"}, env.configPath)
	if err != nil {
		t.Fatalf("ledger stats: %v", err)
	}
	requireContains(t, out, "Ledger is empty")

	if _, _, err := runCLI(t, []string{"ledger", "show", "missing"}, env.configPath); err == nil {
		t.Fatal("expected show to fail for an unknown key")
	}
}

func TestLedgerListFiltersAndStats(t *testing.T) {
	env := setupCLITestEnv(t)
	if _, _, err := runCLI(t, []string{"run"}, env.configPath); err != nil {
		t.Fatalf("run: %v", err)
	}

	out, _, err := runCLI(t, []string{"ledger", "list", "--status", "successful"}, env.configPath)
	if err != nil {
		t.Fatalf("ledger list: %v", err)
	}
	requireContains(t, out, "C1_ORG")

	if _, _, err := runCLI(t, []string{"ledger", "list", "--status", "sent"}, env.configPath); err == nil {
		t.Fatal("expected unknown status to be rejected")
	}

	out, _, err = runCLI(t, []string{"ledger", "stats"}, env.configPath)
	if err != nil {
		t.Fatalf("ledger stats: %v", err)
	}
	requireContains(t, out, "Transmission (Active)")
	requireContains(t, out, "Successful")
	requireContains(t, out, "Inactive")
}

func TestStatusCommand(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"status"}, env.configPath)
	if err != nil {
		t.Fatalf("status: %v\n%s", err, out)
	}
	requireContains(t, out, "== Preflight ==")
	requireContains(t, out, "[OK]")
	requireContains(t, out, "transmit")
}
