// Package schema loads the mapping and requirement documents that drive
// validation and transformation. Files may be JSON or YAML; a document whose
// only key is SCHEMA_DEFINITION is unwrapped. Requirement documents may also
// be a plain list of required field names.
package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"metaledger/internal/config"
	"metaledger/internal/document"
)

const (
	definitionKey = "SCHEMA_DEFINITION"
	requiredLevel = "Required"
)

// Load reads one schema document.
func Load(path string) (document.Document, error) {
	raw, err := load(path)
	if err != nil {
		return nil, err
	}
	doc, ok := raw.(document.Document)
	if !ok {
		return nil, fmt.Errorf("schema %s: expected an object, got a field list", path)
	}
	return doc, nil
}

// LoadRequirements reads a requirement document. A top-level list of field
// names marks each of them Required.
func LoadRequirements(path string) (document.Document, error) {
	raw, err := load(path)
	if err != nil {
		return nil, err
	}
	switch val := raw.(type) {
	case document.Document:
		return val, nil
	case []any:
		doc := make(document.Document, len(val))
		for i, item := range val {
			name, ok := item.(string)
			if !ok || strings.TrimSpace(name) == "" {
				return nil, fmt.Errorf("schema %s: entry %d is not a field name", path, i)
			}
			doc[name] = requiredLevel
		}
		return doc, nil
	default:
		return nil, fmt.Errorf("schema %s: unsupported top-level %T", path, raw)
	}
}

// load returns either a document.Document or a top-level []any.
func load(path string) (any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema %s: %w", path, err)
	}

	var raw any
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parse yaml schema %s: %w", path, err)
		}
		raw = normalizeYAML(raw)
	default:
		if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '[' {
			var list []any
			if err := json.Unmarshal(trimmed, &list); err != nil {
				return nil, fmt.Errorf("parse json schema %s: %w", path, err)
			}
			return list, nil
		}
		doc, err := document.Decode(data)
		if err != nil {
			return nil, fmt.Errorf("parse json schema %s: %w", path, err)
		}
		raw = map[string]any(doc)
	}

	switch val := raw.(type) {
	case map[string]any:
		if len(val) == 1 {
			switch inner := val[definitionKey].(type) {
			case map[string]any:
				return document.Document(inner), nil
			case []any:
				return inner, nil
			}
		}
		return document.Document(val), nil
	case []any:
		return val, nil
	default:
		return nil, fmt.Errorf("schema %s: unsupported top-level %T", path, raw)
	}
}

// normalizeYAML turns nil maps into empty ones so callers can rely on the
// same shapes JSON decoding produces.
func normalizeYAML(v any) any {
	switch val := v.(type) {
	case nil:
		return map[string]any{}
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			if item == nil {
				out[k] = nil
				continue
			}
			out[k] = normalizeYAML(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = normalizeYAML(item)
		}
		return out
	default:
		return val
	}
}

// Set bundles the three documents a workflow run needs.
type Set struct {
	SourceRequirements document.Document
	TargetMapping      document.Document
	TargetRequirements document.Document
}

// LoadSet reads every schema named in the [schemas] section.
func LoadSet(cfg *config.Config) (Set, error) {
	var (
		set Set
		err error
	)
	if set.SourceRequirements, err = LoadRequirements(cfg.Schemas.SourceValidation); err != nil {
		return Set{}, err
	}
	if set.TargetMapping, err = Load(cfg.Schemas.TargetMapping); err != nil {
		return Set{}, err
	}
	if set.TargetRequirements, err = LoadRequirements(cfg.Schemas.TargetValidation); err != nil {
		return Set{}, err
	}
	return set, nil
}
