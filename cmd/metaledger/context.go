package main

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"metaledger/internal/config"
	"metaledger/internal/ledger"
	"metaledger/internal/logging"
	"metaledger/internal/metrics"
	"metaledger/internal/workflow"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configPath string
	configSeen bool
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolved, exists, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = resolved
		c.configSeen = exists
	})
	return c.config, c.configErr
}

func (c *commandContext) logger() (*slog.Logger, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return logger, nil
}

func (c *commandContext) withStore(fn func(*config.Config, *ledger.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	store, err := ledger.Open(cfg)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	defer store.Close()
	return fn(cfg, store)
}

// withRunner opens the ledger and builds a workflow runner with metrics
// enabled. Stage construction errors (bad schema files) surface here.
func (c *commandContext) withRunner(opts []workflow.RunnerOption, fn func(*workflow.Runner) error) error {
	logger, err := c.logger()
	if err != nil {
		return err
	}
	return c.withStore(func(cfg *config.Config, store *ledger.Store) error {
		opts = append([]workflow.RunnerOption{workflow.WithMetrics(metrics.New())}, opts...)
		runner, err := workflow.NewRunner(cfg, store, logger, opts...)
		if err != nil {
			return err
		}
		return fn(runner)
	})
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
