package transform

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"

	"metaledger/internal/document"
)

// FieldEducationalContext is normalized from Y/N flags to words.
const FieldEducationalContext = "EducationalContext"

const (
	educationalMandatory    = "Mandatory"
	educationalNonMandatory = "Non-Mandatory"
)

type mappingNode struct {
	source   string
	children map[string]*mappingNode
	names    []string
}

func (n *mappingNode) isLeaf() bool { return n.children == nil }

// Mapping is a parsed target mapping document.
type Mapping struct {
	root       *mappingNode
	referenced mapset.Set[string]
}

// ParseMapping builds a Mapping. Leaves must be strings (possibly empty) or
// null; lists are rejected.
func ParseMapping(doc document.Document) (*Mapping, error) {
	if len(doc) == 0 {
		return nil, fmt.Errorf("target mapping is empty")
	}
	referenced := mapset.NewThreadUnsafeSet[string]()
	root, err := parseMappingObject(map[string]any(doc), "", referenced)
	if err != nil {
		return nil, err
	}
	return &Mapping{root: root, referenced: referenced}, nil
}

func parseMappingObject(obj map[string]any, path string, referenced mapset.Set[string]) (*mappingNode, error) {
	node := &mappingNode{children: make(map[string]*mappingNode, len(obj))}
	for _, name := range slices.Sorted(maps.Keys(obj)) {
		childPath := name
		if path != "" {
			childPath = path + "." + name
		}
		switch val := obj[name].(type) {
		case nil:
			node.children[name] = &mappingNode{}
		case string:
			source := strings.TrimSpace(val)
			node.children[name] = &mappingNode{source: source}
			if source != "" {
				referenced.Add(source)
			}
		case map[string]any:
			child, err := parseMappingObject(val, childPath, referenced)
			if err != nil {
				return nil, err
			}
			node.children[name] = child
		default:
			return nil, fmt.Errorf("%s: mapping leaves must name a source field, got %T", childPath, val)
		}
	}
	node.names = slices.Sorted(maps.Keys(node.children))
	return node, nil
}

// Referenced returns the source field names the mapping reads.
func (m *Mapping) Referenced() []string {
	fields := m.referenced.ToSlice()
	slices.Sort(fields)
	return fields
}

// Map builds the target document from source. Absent, null, and blank source
// values become "".
func (m *Mapping) Map(source document.Document) document.Document {
	target := document.Document{}
	fill(map[string]any(target), m.root, source)
	return target
}

func fill(dst map[string]any, node *mappingNode, source document.Document) {
	for _, name := range node.names {
		child := node.children[name]
		if !child.isLeaf() {
			obj := map[string]any{}
			fill(obj, child, source)
			dst[name] = obj
			continue
		}
		dst[name] = leafValue(name, child.source, source)
	}
}

func leafValue(name, field string, source document.Document) any {
	if field == "" {
		return ""
	}
	value, ok := source.Lookup(field)
	if !ok || document.NodeOf(value).Empty() {
		return ""
	}
	if name == FieldEducationalContext {
		if s, isString := value.(string); isString {
			return normalizeEducationalContext(s)
		}
	}
	return value
}

func normalizeEducationalContext(value string) string {
	switch value {
	case "Y", "y":
		return educationalMandatory
	case "N", "n":
		return educationalNonMandatory
	default:
		return value
	}
}

// Supplemental returns the source fields the mapping never reads. Nested
// objects are flattened so a partially mapped object keeps only its unmapped
// members.
func (m *Mapping) Supplemental(source document.Document) document.Document {
	out := document.Document{}
	for field, value := range source.Flatten() {
		if m.covers(field) {
			continue
		}
		if _, exact := source[field]; exact {
			out[field] = value
			continue
		}
		out.Set(field, value)
	}
	return out.Clone()
}

// covers reports whether field, or an object enclosing it, is mapped.
func (m *Mapping) covers(field string) bool {
	if m.referenced.Contains(field) {
		return true
	}
	for prefix := field; ; {
		i := strings.LastIndex(prefix, ".")
		if i < 0 {
			return false
		}
		prefix = prefix[:i]
		if m.referenced.Contains(prefix) {
			return true
		}
	}
}
