// Package validate checks payloads against nested requirement documents and
// runs the source and target validation stages over the ledger.
package validate

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"metaledger/internal/document"
)

// Level is how strongly a field is expected.
type Level int

const (
	Optional Level = iota
	Recommended
	Required
)

func (l Level) String() string {
	switch l {
	case Required:
		return "Required"
	case Recommended:
		return "Recommended"
	default:
		return "Optional"
	}
}

func parseLevel(value string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "required":
		return Required, nil
	case "recommended":
		return Recommended, nil
	case "optional", "":
		return Optional, nil
	default:
		return Optional, fmt.Errorf("unknown requirement level %q", value)
	}
}

type shape int

const (
	shapeLeaf shape = iota
	shapeObject
	shapeList
)

// Requirement is one node of a requirement tree: a leaf level, an object of
// named children, or a list whose every element matches Elem.
type Requirement struct {
	shape  shape
	level  Level
	fields map[string]*Requirement
	names  []string
	elem   *Requirement
}

// Requirements is the parsed root of a requirement document.
type Requirements = Requirement

// ParseRequirements builds a requirement tree. Leaves are level names; a list
// wrapping an object declares a list of objects; a list of strings names
// fields that are all Required.
func ParseRequirements(doc document.Document) (*Requirements, error) {
	return parseObject(map[string]any(doc), "")
}

func parseObject(obj map[string]any, path string) (*Requirement, error) {
	req := &Requirement{shape: shapeObject, fields: make(map[string]*Requirement, len(obj))}
	for _, name := range slices.Sorted(maps.Keys(obj)) {
		child, err := parseNode(obj[name], joinPath(path, name))
		if err != nil {
			return nil, err
		}
		req.fields[name] = child
	}
	req.names = slices.Sorted(maps.Keys(req.fields))
	return req, nil
}

func parseNode(value any, path string) (*Requirement, error) {
	switch val := value.(type) {
	case nil:
		return &Requirement{shape: shapeLeaf, level: Optional}, nil
	case string:
		level, err := parseLevel(val)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return &Requirement{shape: shapeLeaf, level: level}, nil
	case map[string]any:
		return parseObject(val, path)
	case document.Document:
		return parseObject(map[string]any(val), path)
	case []any:
		return parseList(val, path)
	default:
		return nil, fmt.Errorf("%s: unsupported requirement value %T", path, value)
	}
}

func parseList(items []any, path string) (*Requirement, error) {
	if len(items) == 0 {
		return &Requirement{shape: shapeLeaf, level: Optional}, nil
	}
	if _, isName := items[0].(string); isName {
		obj := make(map[string]any, len(items))
		for _, item := range items {
			name, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%s: mixed field name list", path)
			}
			obj[name] = Required.String()
		}
		return parseObject(obj, path)
	}
	merged := map[string]any{}
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%s: list requirements must wrap objects", path)
		}
		maps.Copy(merged, obj)
	}
	elem, err := parseObject(merged, path+"[]")
	if err != nil {
		return nil, err
	}
	return &Requirement{shape: shapeList, elem: elem}, nil
}

// Fields returns the leaf paths with the given level, in sorted order.
func (r *Requirement) Fields(level Level) []string {
	var out []string
	r.leaves("", func(path string, l Level) {
		if l == level {
			out = append(out, path)
		}
	})
	return out
}

func (r *Requirement) leaves(path string, visit func(string, Level)) {
	switch r.shape {
	case shapeLeaf:
		visit(path, r.level)
	case shapeObject:
		for _, name := range r.names {
			r.fields[name].leaves(joinPath(path, name), visit)
		}
	case shapeList:
		r.elem.leaves(path+"[]", visit)
	}
}

func joinPath(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}
