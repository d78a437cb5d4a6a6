package report_test

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mickamy/queryguard/internal/model"
	"github.com/mickamy/queryguard/internal/profile"
	"github.com/mickamy/queryguard/internal/report"
	"github.com/mickamy/queryguard/internal/rewrite"
	"github.com/mickamy/queryguard/internal/scorer"
	"github.com/mickamy/queryguard/test"
)

func TestBuild(t *testing.T) {
	r := test.LoadSampleReport(t, "seq_scan_users.json", 0)

	assert.NotEmpty(t, r.ID)
	assert.False(t, r.GeneratedAt.IsZero())
	assert.Equal(t, "seq_scan_users.json", r.Title)
	assert.Equal(t, profile.RiskLow, r.Risk)
	assert.Equal(t, int64(64*1024*1024), r.WorkMemBytes)
	assert.InDelta(t, 0.412, r.PlanningMs, 1e-9)
	assert.InDelta(t, 24850.25, r.Profile.TotalCost, 1e-9)
	require.Len(t, r.Advice, 1)
	assert.Equal(t, "trigram", string(r.Advice[0].IndexType))

	again := test.LoadSampleReport(t, "seq_scan_users.json", 0)
	assert.NotEqual(t, r.ID, again.ID)
}

func TestBuildThresholdOverride(t *testing.T) {
	explain := test.LoadSamplePlan(t, "seq_scan_users.json")
	r, err := report.Build(report.Input{
		Explain:    explain,
		Thresholds: &profile.RiskThresholds{HighPages: 10, HighMemBytes: 1e18, MediumPages: 1, MediumMemBytes: 1e18},
	})
	require.NoError(t, err)
	assert.Equal(t, profile.RiskHigh, r.Risk)
	assert.Equal(t, "queryguard report", r.Title)
	assert.Empty(t, r.Advice, "no stats means no seq-scan advice")
}

func TestBuildMissingPlan(t *testing.T) {
	_, err := report.Build(report.Input{})
	require.Error(t, err)
	_, err = report.Build(report.Input{Explain: &model.Explain{}})
	require.Error(t, err)
}

func TestMarkdown(t *testing.T) {
	r := test.LoadSampleReport(t, "sort_hash.json", 4*1024*1024)
	md := r.Markdown()

	assert.True(t, strings.HasPrefix(md, "# sort_hash.json\n"))
	assert.Contains(t, md, "```sql\nSELECT * FROM users")
	assert.Contains(t, md, "- Total cost: 90000.00")
	assert.Contains(t, md, "- Hash Join may spill to disk")
	assert.Contains(t, md, "| Priority")
	assert.Contains(t, md, `CREATE INDEX ON "orders" USING brin ("created_at");`)
	assert.NotContains(t, md, "### Rewrite candidates")
}

func TestMarkdownWithScoring(t *testing.T) {
	r := test.LoadSampleReport(t, "seq_scan_users.json", 0)
	r.AttachScoring(&scorer.Result{
		Accepted: []scorer.ScoredCandidate{{
			Candidate:   rewrite.Candidate{SQL: "SELECT 1", Explanation: "constant", Tags: []string{"performance"}},
			CCost:       12,
			Improvement: scorer.Improvement{CostPct: 99.9, WeightedGeomRatio: 0.01, WarningsDiff: 1},
		}},
		Outcomes: []scorer.Outcome{
			{Index: 0, Status: scorer.StatusAccepted},
			{Index: 1, Status: scorer.StatusPlanUnavailable, Reason: "relation does not exist"},
		},
	})
	md := r.Markdown()

	assert.Contains(t, md, "### Rewrite candidates")
	assert.Contains(t, md, "#### Candidate 1\n\nconstant")
	assert.Contains(t, md, "- #2 plan_unavailable: relation does not exist")

	// Re-attaching replaces the previous outcome lists.
	r.AttachScoring(&scorer.Result{})
	assert.Empty(t, r.Candidates)
	assert.Empty(t, r.Rejected)

	r.AttachScoring(nil)
	assert.Empty(t, r.Rejected)
}

func TestJSON(t *testing.T) {
	r := test.LoadSampleReport(t, "nested_loop.json", 0)
	payload, err := r.JSON()
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(payload, &decoded))
	assert.Equal(t, r.ID, decoded["id"])
	assert.Equal(t, "LOW", decoded["risk"])
	assert.Contains(t, decoded, "profile")
	assert.NotContains(t, decoded, "Plan")
	assert.NotContains(t, decoded, "candidates")

	var nilReport *report.Report
	_, err = nilReport.JSON()
	require.Error(t, err)
}

func TestManifest(t *testing.T) {
	r := test.LoadSampleReport(t, "sort_hash.json", 0)
	items := []report.IndexItem{
		r.Item("q/orders.sql", "001-orders.html"),
		report.FailedItem("q/broken.sql", "SELEC   1", errors.New("syntax error")),
	}

	dir := filepath.Join(t.TempDir(), "out")
	require.NoError(t, report.WriteManifest(dir, items))

	data, err := os.ReadFile(filepath.Join(dir, report.ManifestFile))
	require.NoError(t, err)
	var decoded []report.IndexItem
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Len(t, decoded, 2)

	assert.Equal(t, "001-orders.html", decoded[0].ReportRel)
	assert.Equal(t, "LOW", decoded[0].Risk)
	assert.InDelta(t, 90000.0, decoded[0].TotalCost, 1e-9)
	assert.Equal(t, len(r.Profile.Warnings), decoded[0].Warnings)

	assert.Equal(t, "broken.sql", decoded[1].Title)
	assert.Equal(t, "ERROR", decoded[1].Risk)
	assert.Equal(t, "SELEC 1", decoded[1].Excerpt)
	assert.Equal(t, "syntax error", decoded[1].Error)

	require.NoError(t, report.WriteManifest(dir, nil))
	data, err = os.ReadFile(filepath.Join(dir, report.ManifestFile))
	require.NoError(t, err)
	assert.Equal(t, "[]", string(data))
}

func TestExcerpt(t *testing.T) {
	assert.Equal(t, "SELECT 1 FROM t", report.Excerpt("SELECT 1\n\tFROM   t"))

	long := strings.Repeat("é", 200)
	got := report.Excerpt(long)
	assert.Equal(t, 161, len([]rune(got)))
	assert.True(t, strings.HasSuffix(got, "…"))
}

func TestHumanBytes(t *testing.T) {
	assert.Equal(t, "0 B", report.HumanBytes(0))
	assert.Equal(t, "0 B", report.HumanBytes(-5))
	assert.Equal(t, "512 B", report.HumanBytes(512))
	assert.Equal(t, "1.50 KiB", report.HumanBytes(1536))
	assert.Equal(t, "64.00 MiB", report.HumanBytes(64*1024*1024))
}

func TestWriteTable(t *testing.T) {
	var b strings.Builder
	report.WriteTable(&b, []string{"Operator", "Cost"}, [][]string{{"Seq Scan", "10.00"}})
	out := b.String()
	assert.Contains(t, out, "| Operator")
	assert.Contains(t, out, "|---")
	assert.Contains(t, out, "Seq Scan")
}
