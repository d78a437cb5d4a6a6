package parser_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mickamy/queryguard/internal/parser"
	"github.com/mickamy/queryguard/test"
)

func TestParseSample(t *testing.T) {
	explain := test.LoadSamplePlan(t, "sort_hash.json")

	root := explain.Plan
	require.NotNil(t, root)
	assert.Equal(t, "Sort", root.NodeType)
	assert.Equal(t, "0", root.ID)
	assert.Equal(t, []string{"o.created_at"}, root.SortKey)
	assert.InDelta(t, 90000.0, root.TotalCost, 1e-9)
	assert.InDelta(t, 1.137, explain.PlanningTime, 1e-9)

	require.Len(t, root.Children, 1)
	join := root.Children[0]
	assert.Equal(t, "0.0", join.ID)
	assert.Equal(t, "Hash Join", join.NodeType)
	assert.Equal(t, "Inner", join.JoinType)
	assert.Equal(t, "(o.user_id = u.id)", join.HashCond)

	require.Len(t, join.Children, 2)
	scan := join.Children[0]
	assert.Equal(t, "orders", scan.RelationName)
	assert.Equal(t, "o", scan.Alias)
	assert.Contains(t, scan.Filter, "created_at >")
	assert.Equal(t, false, scan.Extra["Parallel Aware"])

	assert.Equal(t, []string{"orders", "users"}, root.Relations())
}

func TestParseObjectRoot(t *testing.T) {
	explain := test.LoadSamplePlan(t, "nested_loop.json")
	assert.Equal(t, "Nested Loop", explain.Plan.NodeType)
	assert.Len(t, explain.Plan.Children, 2)
}

func TestParseMissingFieldsReadAsZero(t *testing.T) {
	explain, err := parser.ParseJSON(strings.NewReader(`{"Plan": {"Node Type": "Result"}}`))
	require.NoError(t, err)

	n := explain.Plan
	assert.Equal(t, "Result", n.NodeType)
	assert.Zero(t, n.TotalCost)
	assert.Zero(t, n.PlanRows)
	assert.Empty(t, n.RelationName)
	assert.Nil(t, n.SortKey)
	assert.Empty(t, n.Children)
}

func TestParseNumericStrings(t *testing.T) {
	explain, err := parser.ParseBytes([]byte(`[{"Plan": {"Node Type": "Seq Scan", "Total Cost": "12.5", "Plan Rows": 10, "Plan Width": "8"}}]`))
	require.NoError(t, err)
	assert.InDelta(t, 12.5, explain.Plan.TotalCost, 1e-9)
	assert.InDelta(t, 80.0, explain.Plan.EstimatedBytes(), 1e-9)
}

func TestParseErrors(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  string
	}{
		{name: "invalid json", input: `{`, want: "decode explain json"},
		{name: "empty array", input: `[]`, want: "empty payload"},
		{name: "missing plan", input: `[{"Planning Time": 1}]`, want: "missing Plan root"},
		{name: "plan not object", input: `{"Plan": 3}`, want: "invalid Plan node"},
		{name: "scalar payload", input: `"EXPLAIN"`, want: "unexpected top-level type"},
		{name: "bad child", input: `{"Plan": {"Node Type": "Sort", "Plans": [1]}}`, want: "parse child plan (0.0)"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := parser.ParseJSON(strings.NewReader(tc.input))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestParseTableStats(t *testing.T) {
	stats := test.LoadSampleStats(t, "stats.json")
	assert.Equal(t, int64(2_000_000), stats.Pages("orders"))
	assert.Equal(t, int64(800), stats.Pages("accounts"))
	assert.Zero(t, stats.Pages("missing"))

	_, err := parser.ParseTableStats(strings.NewReader(`{"users": 5}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `table stats "users"`)
}
