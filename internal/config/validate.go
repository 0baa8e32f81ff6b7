package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateStore(); err != nil {
		return err
	}
	if err := c.validateSource(); err != nil {
		return err
	}
	if err := c.validateKeys(); err != nil {
		return err
	}
	if err := c.validateOverrides(); err != nil {
		return err
	}
	if err := c.validateIndex(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateStore() error {
	switch c.Store.Driver {
	case DriverSQLite:
	case DriverPostgres:
		if c.Store.DSN == "" {
			return errors.New("store.dsn is required when store.driver is postgres. Set METALEDGER_STORE_DSN or edit the config file")
		}
	default:
		return fmt.Errorf("store.driver must be sqlite or postgres, got %q", c.Store.Driver)
	}
	return nil
}

func (c *Config) validateSource() error {
	if c.Source.SystemName == "" {
		return errors.New("source.system_name must be set")
	}
	switch c.Source.Format {
	case "csv", "json", "jsonl":
	default:
		return fmt.Errorf("source.format must be csv, json, or jsonl, got %q", c.Source.Format)
	}
	switch c.Source.Encoding {
	case "utf-8", "utf-8-sig", "windows-1252", "latin-1":
	default:
		return fmt.Errorf("source.encoding %q is not supported", c.Source.Encoding)
	}
	return nil
}

func (c *Config) validateKeys() error {
	if len(c.Keys.SourceFields) == 0 {
		return errors.New("keys.source_fields must list at least one field")
	}
	return nil
}

func (c *Config) validateOverrides() error {
	for i, override := range c.Overrides {
		if override.Field == "" {
			return fmt.Errorf("overrides[%d].field must be set", i)
		}
		switch override.Type {
		case "str", "int", "float", "bool":
		default:
			return fmt.Errorf("overrides[%d].type must be one of str, int, float, bool, got %q", i, override.Type)
		}
	}
	return nil
}

func (c *Config) validateIndex() error {
	for name, endpoint := range map[string]string{
		"index.endpoint":              c.Index.Endpoint,
		"index.supplemental_endpoint": c.Index.SupplementalEndpoint,
	} {
		if endpoint == "" {
			continue
		}
		parsed, err := url.Parse(endpoint)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return fmt.Errorf("%s must be an absolute URL, got %q", name, endpoint)
		}
		if parsed.Scheme != "http" && parsed.Scheme != "https" {
			return fmt.Errorf("%s must use http or https", name)
		}
	}
	if c.Workflow.TransmitSupplemental && c.Index.SupplementalEndpoint == "" {
		return errors.New("index.supplemental_endpoint must be set when workflow.transmit_supplemental is enabled")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if c.Workflow.Workers <= 0 {
		return errors.New("workflow.workers must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level %q is not recognized", c.Logging.Level)
	}
	return nil
}
