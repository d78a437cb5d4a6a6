package model

import "strings"

// Explain represents the root of a PostgreSQL execution plan.
type Explain struct {
	Plan         *PlanNode
	PlanningTime float64
	// Extra carries additional top-level fields that we do not interpret.
	Extra map[string]any
}

// PlanNode captures one node in the estimated execution plan tree.
type PlanNode struct {
	ID                 string
	NodeType           string
	RelationName       string
	Schema             string
	Alias              string
	ParentRelationship string
	IndexName          string
	Filter             string
	IndexCond          string
	JoinType           string
	HashCond           string
	MergeCond          string
	SortKey            []string
	GroupKey           []string
	StartupCost        float64
	TotalCost          float64
	PlanRows           float64
	PlanWidth          float64
	Extra              map[string]any
	Children           []*PlanNode
}

// EstimatedBytes is the planner's row estimate multiplied by the row width.
func (n *PlanNode) EstimatedBytes() float64 {
	return n.PlanRows * n.PlanWidth
}

// IsSort reports whether the node is exactly a Sort operator.
func (n *PlanNode) IsSort() bool {
	return n.NodeType == "Sort"
}

// IsHashFamily reports whether the node is a Hash, Hash Join or HashAggregate.
func (n *PlanNode) IsHashFamily() bool {
	return strings.HasPrefix(n.NodeType, "Hash")
}

// Walk visits the tree in pre-order, passing each node together with its parent.
func (n *PlanNode) Walk(fn func(node, parent *PlanNode)) {
	var walk func(node, parent *PlanNode)
	walk = func(node, parent *PlanNode) {
		if node == nil {
			return
		}
		fn(node, parent)
		for _, child := range node.Children {
			walk(child, node)
		}
	}
	walk(n, nil)
}

// Relations returns the distinct relation names referenced by the tree in pre-order.
func (n *PlanNode) Relations() []string {
	seen := map[string]struct{}{}
	var out []string
	n.Walk(func(node, _ *PlanNode) {
		if node.RelationName == "" {
			return
		}
		if _, ok := seen[node.RelationName]; ok {
			return
		}
		seen[node.RelationName] = struct{}{}
		out = append(out, node.RelationName)
	})
	return out
}
