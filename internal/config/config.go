package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir string `toml:"data_dir"`
	LogDir  string `toml:"log_dir"`
}

// Store selects the ledger database backend.
type Store struct {
	Driver string `toml:"driver"`
	DSN    string `toml:"dsn"`
}

// Source describes the upstream record feed.
type Source struct {
	SystemName string `toml:"system_name"`
	File       string `toml:"file"`
	Format     string `toml:"format"`
	Encoding   string `toml:"encoding"`
}

// Schemas lists the schema documents used by validation and transformation.
type Schemas struct {
	SourceValidation string `toml:"source_validation"`
	TargetMapping    string `toml:"target_mapping"`
	TargetValidation string `toml:"target_validation"`
}

// Keys configures the ordered field lists used to derive business keys.
type Keys struct {
	SourceFields []string `toml:"source_fields"`
	TargetFields []string `toml:"target_fields"`
	Separator    string   `toml:"separator"`
}

// Override is an admin-declared field rule applied before key derivation.
type Override struct {
	Field     string `toml:"field"`
	Type      string `toml:"type"`
	Value     string `toml:"value"`
	Overwrite bool   `toml:"overwrite"`
}

// Index contains configuration for the downstream index service.
type Index struct {
	Endpoint             string `toml:"endpoint"`
	SupplementalEndpoint string `toml:"supplemental_endpoint"`
	ProviderName         string `toml:"provider_name"`
	TimeoutSeconds       int    `toml:"timeout_seconds"`
	MaxPasses            int    `toml:"max_passes"`
}

// Workflow contains configuration for stage execution.
type Workflow struct {
	Workers              int  `toml:"workers"`
	TransmitSupplemental bool `toml:"transmit_supplemental"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Metrics controls the batch metrics export.
type Metrics struct {
	Textfile string `toml:"textfile"`
}

// Config encapsulates all configuration values for metaledger.
//
// Configuration sections by subsystem:
//   - Paths: data and log directories
//   - Store: ledger database driver and DSN
//   - Source: source connector file, format, and source-system name
//   - Schemas: validation and mapping schema documents
//   - Keys: business key field lists
//   - Overrides: admin field overwrite/append rules, applied in order
//   - Index: downstream index service endpoints and timeouts
//   - Workflow: per-stage worker count and optional stages
//   - Logging: log format and level
//   - Metrics: node-exporter textfile path
type Config struct {
	Paths     Paths      `toml:"paths"`
	Store     Store      `toml:"store"`
	Source    Source     `toml:"source"`
	Schemas   Schemas    `toml:"schemas"`
	Keys      Keys       `toml:"keys"`
	Overrides []Override `toml:"overrides"`
	Index     Index      `toml:"index"`
	Workflow  Workflow   `toml:"workflow"`
	Logging   Logging    `toml:"logging"`
	Metrics   Metrics    `toml:"metrics"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("metaledger.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the data and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// LedgerDSN returns the DSN used to open the ledger. For SQLite an empty DSN
// resolves to ledger.db inside the data directory.
func (c *Config) LedgerDSN() string {
	if dsn := strings.TrimSpace(c.Store.DSN); dsn != "" {
		return dsn
	}
	return filepath.Join(c.Paths.DataDir, "ledger.db")
}

// LockPath returns the single-flight lock file guarding workflow runs.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "metaledger.lock")
}

// LogPath returns the log file written alongside stdout.
func (c *Config) LogPath() string {
	return filepath.Join(c.Paths.LogDir, "metaledger.log")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
