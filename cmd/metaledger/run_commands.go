package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"metaledger/internal/stage"
	"metaledger/internal/workflow"
)

type runFlags struct {
	json          bool
	skipPreflight bool
}

func (f *runFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&f.json, "json", false, "Print the run summary as JSON")
	cmd.Flags().BoolVar(&f.skipPreflight, "skip-preflight", false, "Skip directory, schema, ledger, and index readiness checks")
}

func (f *runFlags) options() []workflow.RunnerOption {
	if f.skipPreflight {
		return []workflow.RunnerOption{workflow.WithoutPreflight()}
	}
	return nil
}

func newRunCommand(ctx *commandContext) *cobra.Command {
	var flags runFlags
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run every pipeline stage in order",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRunner(flags.options(), func(runner *workflow.Runner) error {
				summary, err := runner.Run(cmd.Context())
				if renderErr := printRunSummary(cmd, summary, flags.json); renderErr != nil {
					return renderErr
				}
				return err
			})
		},
	}
	flags.register(cmd)
	return cmd
}

// newStageCommand builds a command running a single named stage.
func newStageCommand(ctx *commandContext, use, short, stageName string) *cobra.Command {
	var flags runFlags
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSingleStage(cmd, ctx, &flags, stageName)
		},
	}
	flags.register(cmd)
	return cmd
}

func runSingleStage(cmd *cobra.Command, ctx *commandContext, flags *runFlags, stageName string) error {
	return ctx.withRunner(flags.options(), func(runner *workflow.Runner) error {
		summary, err := runner.RunStage(cmd.Context(), stageName)
		if summary.RunID == "" {
			return err
		}
		if renderErr := printRunSummary(cmd, summary, flags.json); renderErr != nil {
			return renderErr
		}
		return err
	})
}

func newExtractCommand(ctx *commandContext) *cobra.Command {
	return newStageCommand(ctx, "extract", "Load the source feed into the ledger", stage.NameExtract)
}

func newValidateCommand(ctx *commandContext) *cobra.Command {
	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate ledger rows against the requirement schemas",
	}
	validateCmd.AddCommand(newStageCommand(ctx, "source", "Validate extracted source metadata", stage.NameValidateSource))
	validateCmd.AddCommand(newStageCommand(ctx, "target", "Validate transformed target metadata", stage.NameValidateTarget))
	return validateCmd
}

func newTransformCommand(ctx *commandContext) *cobra.Command {
	return newStageCommand(ctx, "transform", "Map validated source metadata onto the target shape", stage.NameTransform)
}

func newTransmitCommand(ctx *commandContext) *cobra.Command {
	var flags runFlags
	var supplemental bool
	cmd := &cobra.Command{
		Use:   "transmit",
		Short: "Post ready rows to the index service",
		RunE: func(cmd *cobra.Command, args []string) error {
			name := stage.NameTransmit
			if supplemental {
				name = stage.NameTransmitSupplemental
			}
			return runSingleStage(cmd, ctx, &flags, name)
		},
	}
	flags.register(cmd)
	cmd.Flags().BoolVar(&supplemental, "supplemental", false, "Send the supplemental ledger instead of the metadata ledger")
	return cmd
}

type stageSummaryJSON struct {
	Stage      string         `json:"stage"`
	Counts     map[string]int `json:"counts"`
	DurationMS int64          `json:"duration_ms"`
}

type runSummaryJSON struct {
	RunID      string             `json:"run_id"`
	Started    string             `json:"started"`
	DurationMS int64              `json:"duration_ms"`
	Warnings   int64              `json:"warnings"`
	Errors     int64              `json:"errors"`
	Stages     []stageSummaryJSON `json:"stages"`
}

func printRunSummary(cmd *cobra.Command, summary workflow.Summary, asJSON bool) error {
	if asJSON {
		out := runSummaryJSON{
			RunID:      summary.RunID,
			Started:    summary.Started.Format(time.RFC3339),
			DurationMS: summary.Duration.Milliseconds(),
			Warnings:   summary.Warnings,
			Errors:     summary.Errors,
			Stages:     make([]stageSummaryJSON, 0, len(summary.Stages)),
		}
		for _, st := range summary.Stages {
			counts := st.Counts
			if counts == nil {
				counts = map[string]int{}
			}
			out.Stages = append(out.Stages, stageSummaryJSON{
				Stage:      st.Stage,
				Counts:     counts,
				DurationMS: st.Duration.Milliseconds(),
			})
		}
		return writeJSON(cmd, out)
	}

	w := cmd.OutOrStdout()
	if len(summary.Stages) > 0 {
		rows := make([][]string, 0, len(summary.Stages))
		for _, st := range summary.Stages {
			rows = append(rows, []string{st.Stage, formatCounts(st), fmt.Sprintf("%d", st.Total()), st.Duration.Round(time.Millisecond).String()})
		}
		fmt.Fprint(w, renderTable(
			[]string{"Stage", "Outcomes", "Rows", "Duration"},
			rows,
			[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight},
			nil,
		))
	}
	fmt.Fprintf(w, "Run %s finished in %s with %d warnings and %d errors\n",
		summary.RunID, summary.Duration.Round(time.Millisecond), summary.Warnings, summary.Errors)
	return nil
}

func formatCounts(st stage.Summary) string {
	labels := st.Labels()
	if len(labels) == 0 {
		return "-"
	}
	parts := make([]string, 0, len(labels))
	for _, label := range labels {
		parts = append(parts, fmt.Sprintf("%s=%d", label, st.Count(label)))
	}
	return strings.Join(parts, " ")
}
