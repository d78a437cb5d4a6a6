package profile

import (
	"fmt"

	"github.com/mickamy/queryguard/internal/model"
)

const (
	// PageSize is the PostgreSQL block size used to convert bytes into pages.
	PageSize = 8192
	// DefaultWorkMemBytes is used when no positive work_mem is supplied.
	DefaultWorkMemBytes int64 = 64 * 1024 * 1024

	sortMemFactor = 1.2
	hashMemFactor = 1.3
)

// CostProfile aggregates the planner estimates of a whole plan tree.
type CostProfile struct {
	TotalCost      float64    `json:"total_cost"`
	EstRows        float64    `json:"est_rows"`
	EstBytes       float64    `json:"est_bytes"`
	EstPages       float64    `json:"est_pages"`
	EstMemoryBytes float64    `json:"est_memory_bytes"`
	Nodes          []NodeRows `json:"nodes"`
	Warnings       []string   `json:"warnings"`
}

// NodeRows pairs a node type with its row estimate.
type NodeRows struct {
	NodeType string  `json:"node_type"`
	Rows     float64 `json:"rows"`
}

type totals struct {
	rows, bytes, pages, mem float64
}

func (t *totals) add(o totals) {
	t.rows += o.rows
	t.bytes += o.bytes
	t.pages += o.pages
	t.mem += o.mem
}

// Estimate walks the plan and sums rows, bytes, pages and blocking-operator
// memory over every node, root included. Memory is summed across the whole
// tree rather than modelled as peak concurrent usage, so it over-counts for
// deep plans.
func Estimate(root *model.PlanNode, workMemBytes int64) CostProfile {
	if root == nil {
		return CostProfile{}
	}
	if workMemBytes <= 0 {
		workMemBytes = DefaultWorkMemBytes
	}

	var warnings []string
	var walk func(n *model.PlanNode) totals
	walk = func(n *model.PlanNode) totals {
		// A node's warning precedes those of its inputs.
		own := nodeTotals(n)
		if own.mem > float64(workMemBytes) {
			warnings = append(warnings, spillWarning(n.NodeType, own.mem))
		}

		var acc totals
		for _, child := range n.Children {
			acc.add(walk(child))
		}
		acc.add(own)
		return acc
	}
	acc := walk(root)

	totalCost := root.TotalCost
	if totalCost == 0 {
		totalCost = root.PlanRows
	}

	var nodes []NodeRows
	root.Walk(func(n, _ *model.PlanNode) {
		nodes = append(nodes, NodeRows{NodeType: n.NodeType, Rows: n.PlanRows})
	})

	return CostProfile{
		TotalCost:      totalCost,
		EstRows:        acc.rows,
		EstBytes:       acc.bytes,
		EstPages:       acc.pages,
		EstMemoryBytes: acc.mem,
		Nodes:          nodes,
		Warnings:       warnings,
	}
}

func nodeTotals(n *model.PlanNode) totals {
	b := n.EstimatedBytes()
	return totals{rows: n.PlanRows, bytes: b, pages: b / PageSize, mem: NodeMemory(n)}
}

// NodeMemory estimates the working memory of a blocking operator. Only sorts
// and the hash family need memory; every other node reports zero.
func NodeMemory(n *model.PlanNode) float64 {
	switch {
	case n.IsSort():
		return n.EstimatedBytes() * sortMemFactor
	case n.IsHashFamily():
		return n.EstimatedBytes() * hashMemFactor
	}
	return 0
}

func spillWarning(nodeType string, mem float64) string {
	return fmt.Sprintf("%s may spill to disk (~%d MB > work_mem)", nodeType, int64(mem/1e6))
}
