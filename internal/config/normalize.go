package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeStore()
	if err := c.normalizeSource(); err != nil {
		return err
	}
	if err := c.normalizeSchemas(); err != nil {
		return err
	}
	c.normalizeKeys()
	c.normalizeOverrides()
	c.normalizeIndex()
	if c.Workflow.Workers <= 0 {
		c.Workflow.Workers = defaultWorkflowWorkers
	}
	if err := c.normalizeMetrics(); err != nil {
		return err
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeStore() {
	if c.Store.DSN == "" {
		if value, ok := os.LookupEnv("METALEDGER_STORE_DSN"); ok {
			c.Store.DSN = value
		}
	}
	c.Store.DSN = strings.TrimSpace(c.Store.DSN)
	driver := strings.ToLower(strings.TrimSpace(c.Store.Driver))
	switch driver {
	case "", "sqlite3":
		driver = DriverSQLite
	case "pg", "postgresql", "pgx":
		driver = DriverPostgres
	}
	c.Store.Driver = driver
}

func (c *Config) normalizeSource() error {
	c.Source.SystemName = strings.TrimSpace(c.Source.SystemName)
	c.Source.Format = strings.ToLower(strings.TrimSpace(c.Source.Format))
	if c.Source.Format == "" {
		c.Source.Format = defaultSourceFormat
	}
	c.Source.Encoding = strings.ToLower(strings.TrimSpace(c.Source.Encoding))
	switch c.Source.Encoding {
	case "":
		c.Source.Encoding = defaultSourceEncoding
	case "utf8":
		c.Source.Encoding = "utf-8"
	case "cp1252":
		c.Source.Encoding = "windows-1252"
	}
	if strings.TrimSpace(c.Source.File) != "" {
		var err error
		if c.Source.File, err = expandPath(c.Source.File); err != nil {
			return fmt.Errorf("source.file: %w", err)
		}
	}
	return nil
}

func (c *Config) normalizeSchemas() error {
	var err error
	if c.Schemas.SourceValidation, err = expandPath(strings.TrimSpace(c.Schemas.SourceValidation)); err != nil {
		return fmt.Errorf("schemas.source_validation: %w", err)
	}
	if c.Schemas.TargetMapping, err = expandPath(strings.TrimSpace(c.Schemas.TargetMapping)); err != nil {
		return fmt.Errorf("schemas.target_mapping: %w", err)
	}
	if c.Schemas.TargetValidation, err = expandPath(strings.TrimSpace(c.Schemas.TargetValidation)); err != nil {
		return fmt.Errorf("schemas.target_validation: %w", err)
	}
	return nil
}

func (c *Config) normalizeKeys() {
	c.Keys.SourceFields = trimFields(c.Keys.SourceFields)
	if len(c.Keys.SourceFields) == 0 {
		c.Keys.SourceFields = []string{defaultSourceKeyIDField, defaultSourceKeySysField}
	}
	c.Keys.TargetFields = trimFields(c.Keys.TargetFields)
	if c.Keys.Separator == "" {
		c.Keys.Separator = defaultKeySeparator
	}
}

func (c *Config) normalizeOverrides() {
	for i := range c.Overrides {
		c.Overrides[i].Field = strings.TrimSpace(c.Overrides[i].Field)
		c.Overrides[i].Type = strings.ToLower(strings.TrimSpace(c.Overrides[i].Type))
		if c.Overrides[i].Type == "" {
			c.Overrides[i].Type = "str"
		}
	}
}

func (c *Config) normalizeIndex() {
	if c.Index.Endpoint == "" {
		if value, ok := os.LookupEnv("METALEDGER_INDEX_ENDPOINT"); ok {
			c.Index.Endpoint = value
		}
	}
	c.Index.Endpoint = strings.TrimSpace(c.Index.Endpoint)
	c.Index.SupplementalEndpoint = strings.TrimSpace(c.Index.SupplementalEndpoint)
	c.Index.ProviderName = strings.TrimSpace(c.Index.ProviderName)
	if c.Index.ProviderName == "" {
		c.Index.ProviderName = c.Source.SystemName
	}
	if c.Index.TimeoutSeconds <= 0 {
		c.Index.TimeoutSeconds = defaultIndexTimeout
	}
	if c.Index.MaxPasses <= 0 {
		c.Index.MaxPasses = defaultIndexMaxPasses
	}
}

func (c *Config) normalizeMetrics() error {
	textfile := strings.TrimSpace(c.Metrics.Textfile)
	if textfile == "" {
		c.Metrics.Textfile = ""
		return nil
	}
	var err error
	if c.Metrics.Textfile, err = expandPath(textfile); err != nil {
		return fmt.Errorf("metrics.textfile: %w", err)
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func trimFields(fields []string) []string {
	out := make([]string, 0, len(fields))
	for _, field := range fields {
		if trimmed := strings.TrimSpace(field); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
