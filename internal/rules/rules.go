// Package rules applies admin-declared field overwrite and append rules to
// raw records before their keys are derived.
package rules

import (
	"fmt"
	"strconv"
	"strings"

	"metaledger/internal/config"
	"metaledger/internal/document"
)

// Literal is a typed rule value.
type Literal struct {
	value any
}

// StringLiteral wraps a text value.
func StringLiteral(s string) Literal { return Literal{value: s} }

// IntLiteral wraps an integer value.
func IntLiteral(n int64) Literal { return Literal{value: n} }

// FloatLiteral wraps a floating point value.
func FloatLiteral(f float64) Literal { return Literal{value: f} }

// BoolLiteral wraps a boolean value.
func BoolLiteral(b bool) Literal { return Literal{value: b} }

// ParseLiteral converts the textual admin value into the declared type
// (str, int, float, bool).
func ParseLiteral(kind, raw string) (Literal, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", "str", "string":
		return StringLiteral(raw), nil
	case "int", "integer":
		n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			return Literal{}, fmt.Errorf("parse int literal %q: %w", raw, err)
		}
		return IntLiteral(n), nil
	case "float":
		f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return Literal{}, fmt.Errorf("parse float literal %q: %w", raw, err)
		}
		return FloatLiteral(f), nil
	case "bool", "boolean":
		b, err := strconv.ParseBool(strings.TrimSpace(raw))
		if err != nil {
			return Literal{}, fmt.Errorf("parse bool literal %q: %w", raw, err)
		}
		return BoolLiteral(b), nil
	default:
		return Literal{}, fmt.Errorf("unsupported literal type %q", kind)
	}
}

// Value returns the underlying Go value.
func (l Literal) Value() any { return l.value }

func (l Literal) String() string { return fmt.Sprint(l.value) }

// Rule sets Field to Value. Overwrite replaces any existing value; otherwise
// the field is only filled when absent or empty.
type Rule struct {
	Field     string
	Value     Literal
	Overwrite bool
}

// FromConfig converts [[overrides]] entries into rules, keeping their order.
func FromConfig(overrides []config.Override) ([]Rule, error) {
	out := make([]Rule, 0, len(overrides))
	for i, o := range overrides {
		lit, err := ParseLiteral(o.Type, o.Value)
		if err != nil {
			return nil, fmt.Errorf("overrides[%d] (%s): %w", i, o.Field, err)
		}
		out = append(out, Rule{Field: o.Field, Value: lit, Overwrite: o.Overwrite})
	}
	return out, nil
}

// Apply folds rules over a copy of doc in declaration order. Later rules see
// the fields set by earlier ones. doc itself is never modified.
func Apply(doc document.Document, rules []Rule) document.Document {
	out := doc.Clone()
	if out == nil {
		out = document.Document{}
	}
	for _, rule := range rules {
		out = rule.apply(out)
	}
	return out
}

func (r Rule) apply(doc document.Document) document.Document {
	if r.Field == "" {
		return doc
	}
	if !r.Overwrite {
		if current, ok := doc.Lookup(r.Field); ok && !document.NodeOf(current).Empty() {
			return doc
		}
	}
	doc.Set(r.Field, r.Value.Value())
	return doc
}
