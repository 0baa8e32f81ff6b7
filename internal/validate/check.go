package validate

import (
	"fmt"

	"metaledger/internal/document"
)

// Result is the outcome of checking one payload. Recommended gaps never
// affect Passed.
type Result struct {
	Passed             bool
	MissingRequired    []string
	MissingRecommended []string
}

// Check walks the requirement tree against doc. A field counts as present when
// it exists and is non-empty; inside a list every element must satisfy it.
func Check(doc document.Document, req *Requirements) Result {
	var res Result
	if req != nil {
		walk(document.NodeOf(map[string]any(doc)), req, "", &res)
	}
	res.Passed = len(res.MissingRequired) == 0
	return res
}

func walk(node document.Node, req *Requirement, path string, res *Result) {
	switch req.shape {
	case shapeLeaf:
		checkLeaf(node, req.level, path, res)
	case shapeObject:
		switch node.Kind() {
		case document.KindObject:
			for _, name := range req.names {
				child, _ := node.Field(name)
				walk(child, req.fields[name], joinPath(path, name), res)
			}
		case document.KindList:
			items := node.Items()
			if len(items) == 0 {
				missingBelow(req, path, res)
				return
			}
			for i, item := range items {
				walk(item, req, fmt.Sprintf("%s[%d]", path, i), res)
			}
		default:
			missingBelow(req, path, res)
		}
	case shapeList:
		switch node.Kind() {
		case document.KindList:
			items := node.Items()
			if len(items) == 0 {
				missingBelow(req, path, res)
				return
			}
			for i, item := range items {
				walk(item, req.elem, fmt.Sprintf("%s[%d]", path, i), res)
			}
		case document.KindObject:
			walk(node, req.elem, path+"[0]", res)
		default:
			missingBelow(req, path, res)
		}
	}
}

func checkLeaf(node document.Node, level Level, path string, res *Result) {
	if level == Optional {
		return
	}
	if node.Kind() == document.KindList {
		items := node.Items()
		if len(items) == 0 {
			record(level, path, res)
			return
		}
		for i, item := range items {
			if item.Empty() {
				record(level, fmt.Sprintf("%s[%d]", path, i), res)
			}
		}
		return
	}
	if node.Empty() {
		record(level, path, res)
	}
}

func missingBelow(req *Requirement, path string, res *Result) {
	req.leaves(path, func(leafPath string, level Level) {
		record(level, leafPath, res)
	})
}

func record(level Level, path string, res *Result) {
	switch level {
	case Required:
		res.MissingRequired = append(res.MissingRequired, path)
	case Recommended:
		res.MissingRecommended = append(res.MissingRecommended, path)
	}
}
