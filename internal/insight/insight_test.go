package insight_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mickamy/queryguard/internal/analyzer"
	"github.com/mickamy/queryguard/internal/insight"
	"github.com/mickamy/queryguard/internal/model"
	"github.com/mickamy/queryguard/test"
)

func TestBuildMessagesHotspotAndSpill(t *testing.T) {
	a := test.LoadSampleAnalysis(t, "seq_scan_users.json", 8*1024*1024)
	msgs := insight.BuildMessages(a)
	require.Len(t, msgs, 2)

	assert.Equal(t, insight.SeverityCritical, msgs[0].Severity)
	assert.Equal(t, "Hot spot: Seq Scan users self cost 20000.00 (80.5%), consider an index on the filtered columns", msgs[0].Text)
	assert.Equal(t, "node-0-0-0", msgs[0].Anchor)

	assert.Equal(t, insight.SeverityWarning, msgs[1].Severity)
	assert.Equal(t, "Sort needs ~14.65 MiB, above work_mem 8.00 MiB; increase work_mem or add an index that delivers the order", msgs[1].Text)
	assert.Equal(t, "node-0-0", msgs[1].Anchor)
}

func TestBuildMessagesSpillLimit(t *testing.T) {
	a := test.LoadSampleAnalysis(t, "sort_hash.json", 4*1024*1024)
	msgs := insight.BuildMessages(a)

	// One hotspot plus the two largest of three spilling nodes.
	require.Len(t, msgs, 3)
	assert.Contains(t, msgs[0].Text, "Hot spot: Seq Scan orders (o)")
	assert.Contains(t, msgs[1].Text, "Hash Join needs")
	assert.Contains(t, msgs[1].Text, "reduce the hashed input")
	assert.Equal(t, insight.SeverityCritical, msgs[1].Severity)
	assert.Contains(t, msgs[2].Text, "Sort needs")
}

func TestBuildMessagesNestedLoop(t *testing.T) {
	a := test.LoadSampleAnalysis(t, "nested_loop.json", 0)
	msgs := insight.BuildMessages(a)
	require.Len(t, msgs, 2)

	assert.Equal(t, insight.SeverityCritical, msgs[0].Severity)
	assert.Contains(t, msgs[0].Text, "Hot spot: Nested Loop self cost 49990.00")

	assert.Equal(t, insight.SeverityWarning, msgs[1].Severity)
	assert.Equal(t, "Nested Loop: Nested Loop may run Index Scan events (e) about 5000 times; consider an index on the join key or a hash join", msgs[1].Text)
	assert.Equal(t, "node-0", msgs[1].Anchor)
}

func TestBuildMessagesSmallNestedLoop(t *testing.T) {
	plan := &model.PlanNode{
		NodeType:  "Nested Loop",
		TotalCost: 100,
		Children: []*model.PlanNode{
			{NodeType: "Seq Scan", RelationName: "a", TotalCost: 50, PlanRows: 10},
			{NodeType: "Index Scan", RelationName: "b", TotalCost: 1, PlanRows: 1},
		},
	}
	a, err := analyzer.Analyze(&model.Explain{Plan: plan}, 0)
	require.NoError(t, err)

	for _, msg := range insight.BuildMessages(a) {
		assert.NotContains(t, msg.Text, "may run")
	}
}

func TestBuildMessagesNil(t *testing.T) {
	assert.Nil(t, insight.BuildMessages(nil))
	assert.Nil(t, insight.BuildMessages(&analyzer.PlanAnalysis{}))
}

func TestLabels(t *testing.T) {
	tests := []struct {
		name string
		node *model.PlanNode
		want string
	}{
		{name: "type only", node: &model.PlanNode{NodeType: "Hash"}, want: "Hash"},
		{name: "relation", node: &model.PlanNode{NodeType: "Seq Scan", RelationName: "users", Alias: "users"}, want: "Seq Scan users"},
		{name: "relation and alias", node: &model.PlanNode{NodeType: "Seq Scan", RelationName: "users", Alias: "u"}, want: "Seq Scan users (u)"},
		{name: "alias only", node: &model.PlanNode{NodeType: "Subquery Scan", Alias: "sub"}, want: "Subquery Scan (sub)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, insight.NodeLabel(&analyzer.NodeStats{Node: tt.node}))
		})
	}

	long := &analyzer.NodeStats{Node: &model.PlanNode{NodeType: "Seq Scan", RelationName: "a_really_long_relation_name_that_keeps_going_and_going"}}
	compact := insight.CompactLabel(long)
	assert.Len(t, compact, 60)
	assert.Equal(t, "...", compact[57:])

	assert.Empty(t, insight.NodeLabel(nil))
}

func TestAnchorID(t *testing.T) {
	assert.Equal(t, "node-0-1-2", insight.AnchorID(&analyzer.NodeStats{Node: &model.PlanNode{ID: "0.1.2", NodeType: "Sort"}}))
	assert.Equal(t, "seq-scan-users-u", insight.AnchorID(&analyzer.NodeStats{Node: &model.PlanNode{NodeType: "Seq Scan", RelationName: "users", Alias: "u"}}))
	assert.Empty(t, insight.AnchorID(nil))
}

func TestNormalizeWhitespace(t *testing.T) {
	assert.Equal(t, "SELECT 1 FROM t", insight.NormalizeWhitespace("  SELECT 1\n\t FROM t "))
}
