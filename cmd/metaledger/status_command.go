package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"metaledger/internal/config"
	"metaledger/internal/ledger"
	"metaledger/internal/preflight"
	"metaledger/internal/stage"
	"metaledger/internal/workflow"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check readiness of directories, schemas, ledger, index, and stages",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := ctx.logger()
			if err != nil {
				return err
			}
			return ctx.withStore(func(cfg *config.Config, store *ledger.Store) error {
				w := cmd.OutOrStdout()
				colorize := shouldColorize(w)

				for _, line := range renderSectionHeader("Configuration", colorize) {
					fmt.Fprintln(w, line)
				}
				path := ctx.configPath
				if !ctx.configSeen {
					path += " (not found, defaults used)"
				}
				fmt.Fprintln(w, renderStatusLine("Config", statusInfo, path, colorize))
				fmt.Fprintln(w, renderStatusLine("Ledger driver", statusInfo, store.Driver(), colorize))
				fmt.Fprintln(w, renderStatusLine("Source system", statusInfo, cfg.Source.SystemName, colorize))
				fmt.Fprintln(w, renderStatusLine("Supplemental", statusInfo, yesNo(cfg.Workflow.TransmitSupplemental), colorize))

				fmt.Fprintln(w)
				for _, line := range renderSectionHeader("Preflight", colorize) {
					fmt.Fprintln(w, line)
				}
				results := preflight.RunAll(cmd.Context(), cfg, store)
				for _, res := range results {
					kind := statusOK
					if !res.Passed {
						kind = statusError
					}
					fmt.Fprintln(w, renderStatusLine(res.Name, kind, res.Detail, colorize))
				}

				fmt.Fprintln(w)
				for _, line := range renderSectionHeader("Stages", colorize) {
					fmt.Fprintln(w, line)
				}
				runner, buildErr := workflow.NewRunner(cfg, store, logger)
				if buildErr != nil {
					fmt.Fprintln(w, renderStatusLine("Stages", statusError, buildErr.Error(), colorize))
				} else {
					for _, h := range runner.Health(cmd.Context()) {
						kind := statusOK
						if !h.Ready {
							kind = statusWarn
						}
						fmt.Fprintln(w, renderStatusLine(h.Name, kind, h.Detail, colorize))
					}
					if _, ok := runner.Stages().Lookup(stage.NameTransmit); !ok {
						fmt.Fprintln(w, renderStatusLine(stage.NameTransmit, statusWarn, "index.endpoint is not set", colorize))
					}
				}

				if failed := preflight.Failed(results); len(failed) > 0 {
					return fmt.Errorf("%d preflight checks failed", len(failed))
				}
				return buildErr
			})
		},
	}
}
