package analyzer_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mickamy/queryguard/internal/analyzer"
	"github.com/mickamy/queryguard/internal/model"
	"github.com/mickamy/queryguard/test"
)

const eightMiB = 8 * 1024 * 1024

func TestAnalyzeSelfCost(t *testing.T) {
	a := test.LoadSampleAnalysis(t, "seq_scan_users.json", eightMiB)

	assert.Equal(t, 3, a.NodeCount)
	assert.InDelta(t, 24850.25, a.TotalCost, 1e-9)
	assert.InDelta(t, 0.412, a.PlanningTimeMs, 1e-9)
	assert.Equal(t, int64(eightMiB), a.WorkMemBytes)

	limit := a.Root
	require.Len(t, limit.Children, 1)
	sortNode := limit.Children[0]
	require.Len(t, sortNode.Children, 1)
	scan := sortNode.Children[0]

	// Limit is cheaper than its input, so the subtraction floors at zero.
	assert.Zero(t, limit.SelfCost)
	assert.InDelta(t, 4900.0, sortNode.SelfCost, 1e-9)
	assert.InDelta(t, 20000.0, scan.SelfCost, 1e-9)

	assert.InDelta(t, 20000.0/24850.25, scan.PercentSelf, 1e-9)
	assert.InDelta(t, 20000.0/24850.25, scan.PercentInclusive, 1e-9)
	assert.Equal(t, 2, scan.Depth)
	assert.Same(t, sortNode, scan.Parent)
	assert.Equal(t, []string{"self cost 80.5% of plan"}, scan.Warnings)
}

func TestAnalyzeHotAndSpillNodes(t *testing.T) {
	a := test.LoadSampleAnalysis(t, "sort_hash.json", 4*1024*1024)

	assert.Equal(t, 5, a.NodeCount)
	require.Len(t, a.HotNodes, 3)
	assert.Equal(t, "orders", a.HotNodes[0].Node.RelationName)
	assert.Equal(t, "Sort", a.HotNodes[1].Node.NodeType)
	assert.Equal(t, "users", a.HotNodes[2].Node.RelationName)

	require.Len(t, a.SpillNodes, 3)
	assert.Equal(t, "Hash Join", a.SpillNodes[0].Node.NodeType)
	assert.Equal(t, "Sort", a.SpillNodes[1].Node.NodeType)
	assert.Equal(t, "Hash", a.SpillNodes[2].Node.NodeType)
	assert.Contains(t, a.SpillNodes[1].Warnings, "may exceed work_mem")
}

func TestAnalyzeDefaultWorkMem(t *testing.T) {
	plan := &model.PlanNode{
		NodeType:  "Append",
		TotalCost: 100,
		Children: []*model.PlanNode{
			{NodeType: "Seq Scan", RelationName: "a", TotalCost: 95},
			{NodeType: "Seq Scan", RelationName: "b", TotalCost: 0},
		},
	}
	a, err := analyzer.Analyze(&model.Explain{Plan: plan}, 0)
	require.NoError(t, err)

	// The zero-cost scan never counts as hot; Append (5%) falls under the cutoff.
	require.Len(t, a.HotNodes, 1)
	assert.Equal(t, "a", a.HotNodes[0].Node.RelationName)
	assert.Empty(t, a.SpillNodes)
	assert.Equal(t, int64(64*1024*1024), a.WorkMemBytes)
}

func TestSelfCost(t *testing.T) {
	tests := []struct {
		name string
		node *model.PlanNode
		want float64
	}{
		{name: "leaf", node: &model.PlanNode{TotalCost: 12.5}, want: 12.5},
		{
			name: "subtracts children",
			node: &model.PlanNode{TotalCost: 100, Children: []*model.PlanNode{{TotalCost: 30}, {TotalCost: 20}}},
			want: 50,
		},
		{
			name: "floored at zero",
			node: &model.PlanNode{TotalCost: 10, Children: []*model.PlanNode{{TotalCost: 30}}},
			want: 0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, analyzer.SelfCost(tt.node), 1e-9)
		})
	}
}

func TestAnalyzeMissingPlan(t *testing.T) {
	_, err := analyzer.Analyze(nil, 0)
	require.Error(t, err)
	_, err = analyzer.Analyze(&model.Explain{}, 0)
	require.Error(t, err)
}
