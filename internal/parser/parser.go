package parser

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/mickamy/queryguard/internal/model"
)

// ParseJSON reads a PostgreSQL EXPLAIN (FORMAT JSON) document and produces an Explain structure.
func ParseJSON(r io.Reader) (*model.Explain, error) {
	decoder := json.NewDecoder(r)
	decoder.UseNumber()

	var payload any
	if err := decoder.Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode explain json: %w", err)
	}

	entry, err := pickFirstEntry(payload)
	if err != nil {
		return nil, err
	}

	planVal, ok := entry["Plan"]
	if !ok {
		return nil, errors.New("explain json: missing Plan root")
	}

	planMap, err := asObject(planVal)
	if err != nil {
		return nil, fmt.Errorf("explain json: invalid Plan node: %w", err)
	}

	root, err := parsePlanNode(planMap, "0")
	if err != nil {
		return nil, err
	}

	explain := &model.Explain{
		Plan:         root,
		PlanningTime: fields(entry).num("Planning Time"),
		Extra:        map[string]any{},
	}
	for k, v := range entry {
		if k == "Plan" || k == "Planning Time" {
			continue
		}
		explain.Extra[k] = v
	}

	return explain, nil
}

// ParseBytes is ParseJSON over an in-memory payload.
func ParseBytes(data []byte) (*model.Explain, error) {
	return ParseJSON(bytes.NewReader(data))
}

func pickFirstEntry(payload any) (map[string]any, error) {
	switch v := payload.(type) {
	case []any:
		if len(v) == 0 {
			return nil, errors.New("explain json: empty payload")
		}
		obj, err := asObject(v[0])
		if err != nil {
			return nil, fmt.Errorf("explain json: invalid entry: %w", err)
		}
		return obj, nil
	case map[string]any:
		return v, nil
	default:
		return nil, fmt.Errorf("explain json: unexpected top-level type %T", payload)
	}
}

var knownNodeKeys = map[string]struct{}{
	"Node Type":           {},
	"Relation Name":       {},
	"Schema":              {},
	"Alias":               {},
	"Parent Relationship": {},
	"Index Name":          {},
	"Filter":              {},
	"Index Cond":          {},
	"Join Type":           {},
	"Hash Cond":           {},
	"Merge Cond":          {},
	"Sort Key":            {},
	"Group Key":           {},
	"Startup Cost":        {},
	"Total Cost":          {},
	"Plan Rows":           {},
	"Plan Width":          {},
	"Plans":               {},
}

func parsePlanNode(data map[string]any, path string) (*model.PlanNode, error) {
	f := fields(data)
	node := &model.PlanNode{
		ID:                 path,
		NodeType:           f.str("Node Type"),
		RelationName:       f.str("Relation Name"),
		Schema:             f.str("Schema"),
		Alias:              f.str("Alias"),
		ParentRelationship: f.str("Parent Relationship"),
		IndexName:          f.str("Index Name"),
		Filter:             f.str("Filter"),
		IndexCond:          f.str("Index Cond"),
		JoinType:           f.str("Join Type"),
		HashCond:           f.str("Hash Cond"),
		MergeCond:          f.str("Merge Cond"),
		SortKey:            f.strs("Sort Key"),
		GroupKey:           f.strs("Group Key"),
		StartupCost:        f.num("Startup Cost"),
		TotalCost:          f.num("Total Cost"),
		PlanRows:           f.num("Plan Rows"),
		PlanWidth:          f.num("Plan Width"),
		Extra:              map[string]any{},
	}

	for i, childVal := range f.list("Plans") {
		childMap, err := asObject(childVal)
		if err != nil {
			return nil, fmt.Errorf("parse child plan (%s.%d): %w", path, i, err)
		}

		child, err := parsePlanNode(childMap, fmt.Sprintf("%s.%d", path, i))
		if err != nil {
			return nil, err
		}
		node.Children = append(node.Children, child)
	}

	for k, v := range data {
		if _, ok := knownNodeKeys[k]; ok {
			continue
		}
		node.Extra[k] = v
	}

	return node, nil
}

func asObject(val any) (map[string]any, error) {
	if val == nil {
		return nil, errors.New("nil object")
	}
	obj, ok := val.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("expected object, got %T", val)
	}
	return obj, nil
}
