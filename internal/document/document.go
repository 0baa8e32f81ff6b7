package document

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"
)

// Document is a decoded metadata payload keyed by field name.
type Document map[string]any

// Decode parses a JSON object. Numbers are kept as json.Number so re-encoding
// reproduces the original text.
func Decode(data []byte) (Document, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return Document{}, nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc Document
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	if doc == nil {
		doc = Document{}
	}
	return doc, nil
}

// Canonical returns the deterministic JSON encoding of doc: object keys sorted
// at every depth, no HTML escaping, no trailing newline.
func Canonical(doc Document) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(map[string]any(doc)); err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Clone returns a deep copy of doc.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return map[string]any(Document(val).Clone())
	case Document:
		return val.Clone()
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return val
	}
}

// Lookup resolves a field by exact name first, then as a dotted path through
// nested objects.
func (d Document) Lookup(path string) (any, bool) {
	if v, ok := d[path]; ok {
		return v, true
	}
	if !strings.Contains(path, ".") {
		return nil, false
	}
	var current any = map[string]any(d)
	for _, part := range strings.Split(path, ".") {
		obj, ok := asObject(current)
		if !ok {
			return nil, false
		}
		current, ok = obj[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// LookupString resolves path and renders scalar values as text. Null, absent,
// and non-scalar values report false.
func (d Document) LookupString(path string) (string, bool) {
	v, ok := d.Lookup(path)
	if !ok {
		return "", false
	}
	return ScalarString(v)
}

// Set assigns value at path, creating intermediate objects for dotted paths.
func (d Document) Set(path string, value any) {
	parts := strings.Split(path, ".")
	current := map[string]any(d)
	for _, part := range parts[:len(parts)-1] {
		next, ok := asObject(current[part])
		if !ok {
			next = map[string]any{}
			current[part] = next
		}
		current = next
	}
	current[parts[len(parts)-1]] = value
}

// Flatten returns a single-level view where nested object fields are joined
// with dots. Lists are kept as values.
func (d Document) Flatten() map[string]any {
	out := make(map[string]any, len(d))
	flattenInto(out, "", map[string]any(d))
	return out
}

func flattenInto(dst map[string]any, prefix string, obj map[string]any) {
	for k, v := range obj {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if nested, ok := asObject(v); ok && len(nested) > 0 {
			flattenInto(dst, key, nested)
			continue
		}
		dst[key] = v
	}
}

// Keys returns the top-level field names in sorted order.
func (d Document) Keys() []string {
	return slices.Sorted(maps.Keys(d))
}

// ScalarString renders strings, numbers, and booleans as text.
func ScalarString(v any) (string, bool) {
	switch val := v.(type) {
	case string:
		return val, true
	case json.Number:
		return val.String(), true
	case bool:
		if val {
			return "true", true
		}
		return "false", true
	case float64, float32, int, int64, int32:
		return fmt.Sprint(val), true
	default:
		return "", false
	}
}

func asObject(v any) (map[string]any, bool) {
	switch val := v.(type) {
	case map[string]any:
		return val, true
	case Document:
		return map[string]any(val), true
	default:
		return nil, false
	}
}
