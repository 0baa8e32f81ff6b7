package testsupport

import (
	"path/filepath"
	"testing"

	"metaledger/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Schemas.SourceValidation = filepath.Join(base, "schemas", "source_validation.json")
	cfgVal.Schemas.TargetMapping = filepath.Join(base, "schemas", "target_mapping.json")
	cfgVal.Schemas.TargetValidation = filepath.Join(base, "schemas", "target_validation.json")
	cfgVal.Source.File = filepath.Join(base, "source.jsonl")
	cfgVal.Source.Format = "jsonl"
	cfgVal.Index.ProviderName = cfgVal.Source.SystemName
	cfgVal.Workflow.Workers = 2

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithIndexEndpoint points the index client at endpoint, typically an
// httptest server URL.
func WithIndexEndpoint(endpoint string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Index.Endpoint = endpoint
	}
}

// WithSourceSystem sets the source system stamped on extracted records.
func WithSourceSystem(name string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Source.SystemName = name
		b.cfg.Index.ProviderName = name
	}
}

// WithSchemas writes the three schema documents into the config's schema
// paths. Empty strings skip the corresponding file.
func WithSchemas(sourceValidation, targetMapping, targetValidation string) ConfigOption {
	return func(b *configBuilder) {
		for path, content := range map[string]string{
			b.cfg.Schemas.SourceValidation: sourceValidation,
			b.cfg.Schemas.TargetMapping:    targetMapping,
			b.cfg.Schemas.TargetValidation: targetValidation,
		} {
			if content != "" {
				WriteFile(b.t, path, content)
			}
		}
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
