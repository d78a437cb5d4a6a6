package html_test

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mickamy/queryguard/internal/render/html"
	"github.com/mickamy/queryguard/internal/report"
	"github.com/mickamy/queryguard/internal/rewrite"
	"github.com/mickamy/queryguard/internal/scorer"
	"github.com/mickamy/queryguard/test"
)

func TestRenderSampleHTML(t *testing.T) {
	r := test.LoadSampleReport(t, "seq_scan_users.json", 0)

	var buf bytes.Buffer
	require.NoError(t, html.Render(&buf, r, html.Options{Title: "users by email", IncludeStyles: true}))
	out := buf.String()

	assert.Contains(t, out, "<title>users by email</title>")
	assert.Contains(t, out, "<style>")
	assert.Contains(t, out, `<span class="chip ok">LOW</span>`)
	assert.Contains(t, out, "<h2>Insights</h2>")
	assert.Contains(t, out, "<h2>Index advice</h2>")
	assert.Contains(t, out, "gin_trgm_ops")
	assert.Contains(t, out, `href="#node-0-0-0"`)
	assert.Contains(t, out, `id="node-0-0-0"`)
	assert.Contains(t, out, "expected speedup 3×–20×")
	assert.NotContains(t, out, "<h2>Rewrite candidates</h2>")
}

func TestRenderEscapesUserContent(t *testing.T) {
	r := test.LoadSampleReport(t, "nested_loop.json", 0)
	r.SQL = "SELECT '<script>alert(1)</script>'"
	r.AttachScoring(&scorer.Result{
		Accepted: []scorer.ScoredCandidate{{
			Candidate: rewrite.Candidate{SQL: "SELECT 1 WHERE a < b", Tags: []string{"cte", "readability"}},
			CCost:     10,
		}},
	})

	var buf bytes.Buffer
	require.NoError(t, html.Render(&buf, r, html.Options{}))
	out := buf.String()

	assert.NotContains(t, out, "<script>alert(1)</script>")
	assert.Contains(t, out, "&lt;script&gt;")
	assert.Contains(t, out, "<h2>Rewrite candidates</h2>")
	assert.Contains(t, out, "a &lt; b")
	assert.Contains(t, out, "cte, readability")
	assert.NotContains(t, out, "<style>")
	assert.Contains(t, out, "<title>"+r.Title+"</title>")
}

func TestRenderEmptyReport(t *testing.T) {
	require.Error(t, html.Render(&bytes.Buffer{}, nil, html.Options{}))
	require.Error(t, html.Render(&bytes.Buffer{}, &report.Report{}, html.Options{}))
}

func TestRenderIndex(t *testing.T) {
	r := test.LoadSampleReport(t, "sort_hash.json", 0)
	items := []report.IndexItem{
		r.Item("queries/orders.sql", "001-orders.html"),
		report.FailedItem("queries/broken.sql", "SELEC 1", errors.New(`syntax error at or near "SELEC"`)),
	}

	var buf bytes.Buffer
	require.NoError(t, html.RenderIndex(&buf, items, html.Options{IncludeStyles: true}))
	out := buf.String()

	assert.Contains(t, out, "<title>queryguard reports</title>")
	assert.Contains(t, out, "2 files")
	assert.Contains(t, out, "errors 1")
	assert.Contains(t, out, `<a href="001-orders.html">`)
	assert.Contains(t, out, `<span class="chip err">ERROR</span>`)
	assert.Contains(t, out, "queries/broken.sql")
	assert.Equal(t, 1, strings.Count(out, `class="node-warning"`))
}
