package document

import "strings"

// Kind discriminates the variants of Node.
type Kind uint8

const (
	KindNull Kind = iota
	KindScalar
	KindObject
	KindList
)

func (k Kind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindObject:
		return "object"
	case KindList:
		return "list"
	default:
		return "null"
	}
}

// Node is a tagged view over a decoded JSON value.
type Node struct {
	kind  Kind
	value any
}

// NodeOf classifies a decoded value.
func NodeOf(v any) Node {
	switch val := v.(type) {
	case nil:
		return Node{kind: KindNull}
	case map[string]any:
		return Node{kind: KindObject, value: val}
	case Document:
		return Node{kind: KindObject, value: map[string]any(val)}
	case []any:
		return Node{kind: KindList, value: val}
	default:
		return Node{kind: KindScalar, value: val}
	}
}

// Kind reports the variant.
func (n Node) Kind() Kind { return n.kind }

// Field returns the named child of an object node. Missing fields and
// non-object nodes yield a null node and false.
func (n Node) Field(name string) (Node, bool) {
	if n.kind != KindObject {
		return Node{}, false
	}
	v, ok := n.value.(map[string]any)[name]
	if !ok {
		return Node{}, false
	}
	return NodeOf(v), true
}

// Items returns the elements of a list node.
func (n Node) Items() []Node {
	if n.kind != KindList {
		return nil
	}
	raw := n.value.([]any)
	out := make([]Node, len(raw))
	for i, v := range raw {
		out[i] = NodeOf(v)
	}
	return out
}

// Scalar returns the raw scalar value.
func (n Node) Scalar() (any, bool) {
	if n.kind != KindScalar {
		return nil, false
	}
	return n.value, true
}

// Empty reports whether the node carries no usable value: null, a blank
// string, or an empty object or list.
func (n Node) Empty() bool {
	switch n.kind {
	case KindNull:
		return true
	case KindScalar:
		if s, ok := n.value.(string); ok {
			return strings.TrimSpace(s) == ""
		}
		return false
	case KindObject:
		return len(n.value.(map[string]any)) == 0
	case KindList:
		return len(n.value.([]any)) == 0
	}
	return true
}
