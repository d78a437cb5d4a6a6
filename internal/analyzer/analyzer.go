package analyzer

import (
	"fmt"
	"sort"

	"github.com/mickamy/queryguard/internal/config"
	"github.com/mickamy/queryguard/internal/model"
	"github.com/mickamy/queryguard/internal/profile"
)

// PlanAnalysis contains per-node cost shares derived from planner estimates.
type PlanAnalysis struct {
	Root           *NodeStats
	PlanningTimeMs float64
	TotalCost      float64
	NodeCount      int
	WorkMemBytes   int64
	HotNodes       []*NodeStats
	SpillNodes     []*NodeStats
}

// NodeStats augments a plan node with computed statistics.
type NodeStats struct {
	Node             *model.PlanNode
	Parent           *NodeStats
	Depth            int
	SelfCost         float64
	PercentSelf      float64
	PercentInclusive float64
	EstimatedRows    float64
	EstimatedBytes   float64
	MemoryBytes      float64
	Warnings         []string
	Children         []*NodeStats
}

// Analyze derives cost shares for the provided plan. workMemBytes <= 0 uses
// the configured work_mem.
func Analyze(explain *model.Explain, workMemBytes int64) (*PlanAnalysis, error) {
	if explain == nil || explain.Plan == nil {
		return nil, fmt.Errorf("analyze: missing plan")
	}
	if workMemBytes <= 0 {
		workMemBytes = config.Active().Profile.WorkMemBytes
	}
	if workMemBytes <= 0 {
		workMemBytes = profile.DefaultWorkMemBytes
	}

	root := buildStats(explain.Plan, nil, 0)
	total := explain.Plan.TotalCost
	allNodes := flatten(root)
	for _, n := range allNodes {
		annotate(n, total, workMemBytes)
	}

	return &PlanAnalysis{
		Root:           root,
		PlanningTimeMs: explain.PlanningTime,
		TotalCost:      total,
		NodeCount:      len(allNodes),
		WorkMemBytes:   workMemBytes,
		HotNodes:       selectHotNodes(allNodes),
		SpillNodes:     selectSpillNodes(allNodes, workMemBytes),
	}, nil
}

// SelfCost is the node's total cost minus the total cost of its children,
// floored at zero.
func SelfCost(node *model.PlanNode) float64 {
	cost := node.TotalCost
	for _, child := range node.Children {
		cost -= child.TotalCost
	}
	if cost < 0 {
		return 0
	}
	return cost
}

func buildStats(node *model.PlanNode, parent *NodeStats, depth int) *NodeStats {
	stats := &NodeStats{
		Node:           node,
		Parent:         parent,
		Depth:          depth,
		SelfCost:       SelfCost(node),
		EstimatedRows:  node.PlanRows,
		EstimatedBytes: node.EstimatedBytes(),
		MemoryBytes:    profile.NodeMemory(node),
	}
	for _, childNode := range node.Children {
		stats.Children = append(stats.Children, buildStats(childNode, stats, depth+1))
	}
	return stats
}

func annotate(n *NodeStats, total float64, workMem int64) {
	if total > 0 {
		n.PercentSelf = n.SelfCost / total
		n.PercentInclusive = n.Node.TotalCost / total
	}
	if n.PercentSelf >= 0.20 {
		n.Warnings = append(n.Warnings, fmt.Sprintf("self cost %.1f%% of plan", n.PercentSelf*100))
	}
	if n.MemoryBytes > float64(workMem) {
		n.Warnings = append(n.Warnings, "may exceed work_mem")
	}
}

func flatten(root *NodeStats) []*NodeStats {
	var out []*NodeStats
	var walk func(*NodeStats)
	walk = func(n *NodeStats) {
		out = append(out, n)
		for _, child := range n.Children {
			walk(child)
		}
	}
	walk(root)
	return out
}

func selectHotNodes(nodes []*NodeStats) []*NodeStats {
	candidates := make([]*NodeStats, 0, len(nodes))
	for _, n := range nodes {
		if n.PercentSelf > 0 {
			candidates = append(candidates, n)
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].PercentSelf > candidates[j].PercentSelf
	})

	limit := 5
	if len(candidates) < limit {
		limit = len(candidates)
	}
	cutoff := config.Active().Insights.HotNodeCutoff

	var out []*NodeStats
	for _, candidate := range candidates[:limit] {
		if candidate.PercentSelf < cutoff {
			break
		}
		out = append(out, candidate)
	}
	if len(out) == 0 && limit > 0 {
		out = candidates[:1]
	}
	return out
}

func selectSpillNodes(nodes []*NodeStats, workMem int64) []*NodeStats {
	var out []*NodeStats
	for _, n := range nodes {
		if n.MemoryBytes > float64(workMem) {
			out = append(out, n)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].MemoryBytes > out[j].MemoryBytes
	})
	return out
}
