package test

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/mickamy/queryguard/internal/analyzer"
	"github.com/mickamy/queryguard/internal/model"
	"github.com/mickamy/queryguard/internal/parser"
	"github.com/mickamy/queryguard/internal/report"
)

var (
	rootPath string
	once     sync.Once
)

// RootPath resolves the repository root (where go.mod resides).
func RootPath(t *testing.T) string {
	t.Helper()
	once.Do(func() {
		wd, err := os.Getwd()
		if err != nil {
			t.Fatalf("getwd: %v", err)
		}
		for {
			if _, err := os.Stat(filepath.Join(wd, "go.mod")); err == nil {
				rootPath = wd
				break
			}
			next := filepath.Dir(wd)
			if next == wd {
				t.Fatalf("go.mod not found from %s", wd)
			}
			wd = next
		}
	})
	return rootPath
}

// SamplePath returns the absolute path of a file under samples/.
func SamplePath(t *testing.T, rel string) string {
	t.Helper()
	return filepath.Join(RootPath(t), "samples", rel)
}

// LoadSamplePlan parses an EXPLAIN (FORMAT JSON) document under samples/.
func LoadSamplePlan(t *testing.T, rel string) *model.Explain {
	t.Helper()
	f, err := os.Open(SamplePath(t, rel))
	if err != nil {
		t.Fatalf("open plan: %v", err)
	}
	defer func() { _ = f.Close() }()

	plan, err := parser.ParseJSON(f)
	if err != nil {
		t.Fatalf("parse plan: %v", err)
	}
	return plan
}

// LoadSampleStats parses a table statistics document under samples/.
func LoadSampleStats(t *testing.T, rel string) model.TableStats {
	t.Helper()
	f, err := os.Open(SamplePath(t, rel))
	if err != nil {
		t.Fatalf("open stats: %v", err)
	}
	defer func() { _ = f.Close() }()

	stats, err := parser.ParseTableStats(f)
	if err != nil {
		t.Fatalf("parse stats: %v", err)
	}
	return stats
}

// LoadSampleAnalysis loads and analyzes a plan under samples/.
func LoadSampleAnalysis(t *testing.T, rel string, workMemBytes int64) *analyzer.PlanAnalysis {
	t.Helper()
	analysis, err := analyzer.Analyze(LoadSamplePlan(t, rel), workMemBytes)
	if err != nil {
		t.Fatalf("analyze plan: %v", err)
	}
	return analysis
}

// LoadSampleReport builds a report for a plan and the shared sample stats.
func LoadSampleReport(t *testing.T, rel string, workMemBytes int64) *report.Report {
	t.Helper()
	r, err := report.Build(report.Input{
		Title:        rel,
		Source:       rel,
		SQL:          "SELECT * FROM users WHERE email LIKE '%@example.com' ORDER BY created_at",
		Explain:      LoadSamplePlan(t, rel),
		Stats:        LoadSampleStats(t, "stats.json"),
		WorkMemBytes: workMemBytes,
	})
	if err != nil {
		t.Fatalf("build report: %v", err)
	}
	return r
}
