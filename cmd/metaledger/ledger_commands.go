package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"metaledger/internal/config"
	"metaledger/internal/keyhash"
	"metaledger/internal/ledger"
)

func newLedgerCommand(ctx *commandContext) *cobra.Command {
	ledgerCmd := &cobra.Command{
		Use:   "ledger",
		Short: "Inspect ledger rows",
	}
	ledgerCmd.AddCommand(newLedgerListCommand(ctx))
	ledgerCmd.AddCommand(newLedgerShowCommand(ctx))
	ledgerCmd.AddCommand(newLedgerStatsCommand(ctx))
	return ledgerCmd
}

func newLedgerListCommand(ctx *commandContext) *cobra.Command {
	var (
		lifecycle string
		status    string
		key       string
		limit     int
		asJSON    bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List ledger rows, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := ledger.Filter{Limit: limit}
			if lifecycle = strings.TrimSpace(lifecycle); lifecycle != "" {
				value, ok := ledger.ParseLifecycle(lifecycle)
				if !ok {
					return fmt.Errorf("unknown lifecycle %q (use Active or Inactive)", lifecycle)
				}
				filter.Lifecycle = value
			}
			if status = strings.TrimSpace(status); status != "" {
				value, ok := ledger.ParseTransmission(status)
				if !ok {
					return fmt.Errorf("unknown transmission status %q", status)
				}
				filter.Transmission = value
			}
			if key = strings.TrimSpace(key); key != "" {
				filter.KeyHash = keyhash.Sum(key)
			}
			return ctx.withStore(func(_ *config.Config, store *ledger.Store) error {
				records, err := store.ListRecords(cmd.Context(), filter)
				if err != nil {
					return err
				}
				if asJSON {
					views := make([]recordView, 0, len(records))
					for _, rec := range records {
						views = append(views, newRecordView(rec))
					}
					return writeJSON(cmd, views)
				}
				if len(records) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No ledger rows match")
					return nil
				}
				rows := make([][]string, 0, len(records))
				for _, rec := range records {
					rows = append(rows, []string{
						shortID(rec.ID),
						rec.SourceKey,
						string(rec.Lifecycle),
						dash(string(rec.SourceValidation)),
						dash(string(rec.TargetValidation)),
						dash(string(rec.Transmission)),
						formatCode(rec.TransmissionCode),
						rec.ExtractedAt.Local().Format(time.DateTime),
					})
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable(
					[]string{"ID", "Key", "Lifecycle", "Source", "Target", "Transmission", "Code", "Extracted"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
					nil,
				))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&lifecycle, "lifecycle", "", "Filter by lifecycle (Active, Inactive)")
	cmd.Flags().StringVarP(&status, "status", "s", "", "Filter by transmission status (Ready, Pending, Successful, Failed)")
	cmd.Flags().StringVarP(&key, "key", "k", "", "Filter by source key, e.g. C1_JKO")
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Maximum rows to show (0 for all)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print rows as JSON")
	return cmd
}

func newLedgerShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "show <id|key>",
		Short: "Show one ledger row with its supplemental fields and history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref := strings.TrimSpace(args[0])
			return ctx.withStore(func(_ *config.Config, store *ledger.Store) error {
				rec, err := resolveRecord(cmd, store, ref)
				if err != nil {
					return err
				}
				supplemental, err := store.SupplementalFor(cmd.Context(), rec.ID)
				if err != nil && !errors.Is(err, ledger.ErrNotFound) {
					return err
				}
				history, err := store.History(cmd.Context(), rec.SourceKeyHash)
				if err != nil {
					return err
				}
				if asJSON {
					view := newRecordView(rec)
					view.SourceMetadata = rec.SourceMetadata
					view.TargetMetadata = rec.TargetMetadata
					if supplemental != nil {
						view.Supplemental = supplemental.Metadata
					}
					return writeJSON(cmd, view)
				}
				renderRecordDetail(cmd.OutOrStdout(), rec, supplemental, history)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the row as JSON")
	return cmd
}

// resolveRecord accepts a row ID or a source key and returns the matching row,
// preferring the Active version for keys.
func resolveRecord(cmd *cobra.Command, store *ledger.Store, ref string) (*ledger.Record, error) {
	if ref == "" {
		return nil, errors.New("record id or key is required")
	}
	rec, err := store.Get(cmd.Context(), ref)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, ledger.ErrNotFound) {
		return nil, err
	}
	rec, err = store.ActiveByKeyHash(cmd.Context(), keyhash.Sum(ref))
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, ledger.ErrNotFound) {
		return nil, err
	}
	history, err := store.History(cmd.Context(), keyhash.Sum(ref))
	if err != nil {
		return nil, err
	}
	if len(history) == 0 {
		return nil, fmt.Errorf("no ledger row matches %q", ref)
	}
	return history[len(history)-1], nil
}

func renderRecordDetail(w io.Writer, rec *ledger.Record, supplemental *ledger.SupplementalRecord, history []*ledger.Record) {
	fmt.Fprintf(w, "ID:             %s\n", rec.ID)
	fmt.Fprintf(w, "Source key:     %s\n", rec.SourceKey)
	fmt.Fprintf(w, "Target key:     %s\n", dash(rec.TargetKey))
	fmt.Fprintf(w, "Lifecycle:      %s\n", rec.Lifecycle)
	fmt.Fprintf(w, "Extracted:      %s\n", rec.ExtractedAt.Local().Format(time.DateTime))
	fmt.Fprintf(w, "Source valid:   %s\n", formatStep(string(rec.SourceValidation), rec.SourceValidatedAt))
	fmt.Fprintf(w, "Transformed:    %s\n", formatStep("", rec.TransformedAt))
	fmt.Fprintf(w, "Target valid:   %s\n", formatStep(string(rec.TargetValidation), rec.TargetValidatedAt))
	fmt.Fprintf(w, "Transmission:   %s %s\n", formatStep(string(rec.Transmission), rec.TransmittedAt), formatCode(rec.TransmissionCode))
	writeDocument(w, "Source metadata", rec.SourceMetadata)
	writeDocument(w, "Target metadata", rec.TargetMetadata)
	if supplemental != nil {
		writeDocument(w, "Supplemental", supplemental.Metadata)
	}
	if len(history) > 1 {
		fmt.Fprintln(w, "History:")
		for _, h := range history {
			fmt.Fprintf(w, "  %s  %-8s  %s\n", shortID(h.ID), h.Lifecycle, h.ExtractedAt.Local().Format(time.DateTime))
		}
	}
}

func writeDocument(w io.Writer, title string, doc map[string]any) {
	if len(doc) == 0 {
		return
	}
	data, err := json.MarshalIndent(doc, "  ", "  ")
	if err != nil {
		fmt.Fprintf(w, "%s: <unprintable: %v>\n", title, err)
		return
	}
	fmt.Fprintf(w, "%s:\n  %s\n", title, data)
}

func newLedgerStatsCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Count ledger rows by lifecycle, validation, and transmission",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, store *ledger.Store) error {
				stats, err := store.Stats(cmd.Context())
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, stats)
				}
				w := cmd.OutOrStdout()
				if stats.Total == 0 {
					fmt.Fprintln(w, "Ledger is empty")
					return nil
				}
				colorize := shouldColorize(w)
				writeCountSection(w, "Lifecycle", stats.Lifecycle, "-", colorize)
				writeCountSection(w, "Source validation (Active)", stats.SourceValidation, "pending", colorize)
				writeCountSection(w, "Target validation (Active)", stats.TargetValidation, "pending", colorize)
				writeCountSection(w, "Transmission (Active)", stats.Transmission, "not ready", colorize)
				if len(stats.Supplemental) > 0 {
					writeCountSection(w, "Supplemental transmission (Active)", stats.Supplemental, "not ready", colorize)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print counts as JSON")
	return cmd
}

func writeCountSection[K ~string](w io.Writer, title string, counts map[K]int, blank string, colorize bool) {
	for _, line := range renderSectionHeader(title, colorize) {
		fmt.Fprintln(w, line)
	}
	rows, footer := countRows(counts, blank)
	fmt.Fprint(w, renderTable([]string{"Status", "Rows"}, rows, []columnAlignment{alignLeft, alignRight}, footer))
}

type recordView struct {
	ID               string         `json:"id"`
	SourceKey        string         `json:"source_key"`
	TargetKey        string         `json:"target_key,omitempty"`
	Lifecycle        string         `json:"lifecycle"`
	SourceValidation string         `json:"source_validation"`
	TargetValidation string         `json:"target_validation"`
	Transmission     string         `json:"transmission"`
	TransmissionCode int            `json:"transmission_code,omitempty"`
	ExtractedAt      time.Time      `json:"extracted_at"`
	TransmittedAt    *time.Time     `json:"transmitted_at,omitempty"`
	SourceMetadata   map[string]any `json:"source_metadata,omitempty"`
	TargetMetadata   map[string]any `json:"target_metadata,omitempty"`
	Supplemental     map[string]any `json:"supplemental,omitempty"`
}

func newRecordView(rec *ledger.Record) recordView {
	return recordView{
		ID:               rec.ID,
		SourceKey:        rec.SourceKey,
		TargetKey:        rec.TargetKey,
		Lifecycle:        string(rec.Lifecycle),
		SourceValidation: string(rec.SourceValidation),
		TargetValidation: string(rec.TargetValidation),
		Transmission:     string(rec.Transmission),
		TransmissionCode: rec.TransmissionCode,
		ExtractedAt:      rec.ExtractedAt,
		TransmittedAt:    rec.TransmittedAt,
	}
}

func formatStep(status string, at *time.Time) string {
	if at == nil {
		return dash(status)
	}
	stamp := at.Local().Format(time.DateTime)
	if status == "" {
		return stamp
	}
	return status + " at " + stamp
}

func formatCode(code int) string {
	if code == 0 {
		return "-"
	}
	return fmt.Sprintf("%d", code)
}

func dash(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	return value
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
