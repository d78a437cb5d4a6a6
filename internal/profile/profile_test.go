package profile

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mickamy/queryguard/internal/model"
	"github.com/mickamy/queryguard/internal/parser"
)

func loadPlan(t *testing.T, name string) *model.PlanNode {
	t.Helper()
	f, err := os.Open(filepath.Join("..", "..", "samples", name))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	explain, err := parser.ParseJSON(f)
	require.NoError(t, err)
	return explain.Plan
}

func TestEstimateSingleSortSpills(t *testing.T) {
	root := &model.PlanNode{NodeType: "Sort", PlanRows: 1000, PlanWidth: 1000, TotalCost: 50}

	p := Estimate(root, 1_000_000)

	require.Len(t, p.Warnings, 1)
	assert.Equal(t, "Sort may spill to disk (~1 MB > work_mem)", p.Warnings[0])
	assert.InDelta(t, 1_000_000.0, p.EstBytes, 1e-9)
	assert.InDelta(t, 1_200_000.0, p.EstMemoryBytes, 1e-9)
	assert.InDelta(t, 1_000_000.0/PageSize, p.EstPages, 1e-9)
	assert.InDelta(t, 50.0, p.TotalCost, 1e-9)
}

func TestEstimateMemoryFactors(t *testing.T) {
	cases := []struct {
		nodeType string
		want     float64
	}{
		{nodeType: "Sort", want: 1200},
		{nodeType: "Hash", want: 1300},
		{nodeType: "Hash Join", want: 1300},
		{nodeType: "HashAggregate", want: 1300},
		{nodeType: "Incremental Sort", want: 0},
		{nodeType: "Seq Scan", want: 0},
		{nodeType: "Merge Join", want: 0},
	}
	for _, tc := range cases {
		t.Run(tc.nodeType, func(t *testing.T) {
			n := &model.PlanNode{NodeType: tc.nodeType, PlanRows: 10, PlanWidth: 100}
			assert.InDelta(t, tc.want, NodeMemory(n), 1e-9)
			assert.InDelta(t, tc.want, Estimate(n, 0).EstMemoryBytes, 1e-9)
		})
	}
}

func TestEstimateFallsBackToRootRows(t *testing.T) {
	root := &model.PlanNode{NodeType: "Result", PlanRows: 42, PlanWidth: 4}
	assert.InDelta(t, 42.0, Estimate(root, 0).TotalCost, 1e-9)
}

func TestEstimateTotalCostReadFromRootOnly(t *testing.T) {
	p := Estimate(loadPlan(t, "sort_hash.json"), 0)
	assert.InDelta(t, 90000.0, p.TotalCost, 1e-9)
}

func TestEstimateSumsEveryNode(t *testing.T) {
	root := loadPlan(t, "sort_hash.json")

	var want totals
	root.Walk(func(n, _ *model.PlanNode) {
		want.add(nodeTotals(n))
	})

	p := Estimate(root, 0)
	assert.InDelta(t, want.rows, p.EstRows, 1e-6)
	assert.InDelta(t, want.bytes, p.EstBytes, 1e-6)
	assert.InDelta(t, want.pages, p.EstPages, 1e-6)
	assert.InDelta(t, want.mem, p.EstMemoryBytes, 1e-6)

	// A subtree never outweighs the tree that contains it.
	sub := Estimate(root.Children[0], 0)
	assert.LessOrEqual(t, sub.EstRows, p.EstRows)
	assert.LessOrEqual(t, sub.EstBytes, p.EstBytes)
	assert.LessOrEqual(t, sub.EstPages, p.EstPages)
	assert.LessOrEqual(t, sub.EstMemoryBytes, p.EstMemoryBytes)
}

func TestEstimateNodesInPreOrder(t *testing.T) {
	p := Estimate(loadPlan(t, "sort_hash.json"), 0)

	got := make([]string, 0, len(p.Nodes))
	for _, n := range p.Nodes {
		got = append(got, n.NodeType)
	}
	assert.Equal(t, []string{"Sort", "Hash Join", "Seq Scan", "Hash", "Seq Scan"}, got)
	assert.InDelta(t, 100000.0, p.Nodes[3].Rows, 1e-9)
}

func TestEstimateWarningsPreOrder(t *testing.T) {
	// 4 MiB work_mem: the Sort (72 MB), Hash Join (78 MB) and Hash (5.2 MB) all spill.
	p := Estimate(loadPlan(t, "sort_hash.json"), 4*1024*1024)

	require.Len(t, p.Warnings, 3)
	assert.Contains(t, p.Warnings[0], "Sort may spill")
	assert.Contains(t, p.Warnings[1], "Hash Join may spill")
	assert.Contains(t, p.Warnings[2], "Hash may spill")

	assert.Empty(t, Estimate(loadPlan(t, "sort_hash.json"), 1<<30).Warnings)
}

func TestEstimateParentWarningFirst(t *testing.T) {
	root := &model.PlanNode{
		NodeType: "Sort", PlanRows: 10, PlanWidth: 100,
		Children: []*model.PlanNode{{NodeType: "Hash", PlanRows: 10, PlanWidth: 100}},
	}
	p := Estimate(root, 1000)

	require.Len(t, p.Warnings, 2)
	assert.True(t, strings.HasPrefix(p.Warnings[0], "Sort may spill"))
	assert.True(t, strings.HasPrefix(p.Warnings[1], "Hash may spill"))
	assert.InDelta(t, 1200.0+1300.0, p.EstMemoryBytes, 1e-9)
}

func TestEstimateNil(t *testing.T) {
	assert.Equal(t, CostProfile{}, Estimate(nil, 0))
}

func TestAssess(t *testing.T) {
	th := RiskThresholds{HighPages: 1000, HighMemBytes: 1e9, MediumPages: 100, MediumMemBytes: 1e8}

	cases := []struct {
		name string
		p    CostProfile
		want Risk
	}{
		{name: "low", p: CostProfile{EstPages: 10}, want: RiskLow},
		{name: "medium pages", p: CostProfile{EstPages: 100}, want: RiskMedium},
		{name: "medium memory", p: CostProfile{EstMemoryBytes: 2e8}, want: RiskMedium},
		{name: "high pages", p: CostProfile{EstPages: 5000}, want: RiskHigh},
		{name: "high memory", p: CostProfile{EstPages: 1, EstMemoryBytes: 1e9}, want: RiskHigh},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, note := Assess(tc.p, th)
			assert.Equal(t, tc.want, got)
			assert.NotEmpty(t, note)
		})
	}
}
