package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ManifestFile is the name of the batch manifest written next to index.html.
const ManifestFile = "manifest.json"

const excerptLen = 160

// IndexItem summarises one checked file in a batch run.
type IndexItem struct {
	Title     string  `json:"title"`
	File      string  `json:"file"`
	ReportRel string  `json:"report_rel,omitempty"`
	Risk      string  `json:"risk"`
	TotalCost float64 `json:"total_cost"`
	EstPages  float64 `json:"est_pages"`
	EstBytes  float64 `json:"est_bytes"`
	Warnings  int     `json:"warnings"`
	Excerpt   string  `json:"excerpt"`
	Error     string  `json:"error,omitempty"`
}

// Item builds the manifest entry for a finished report.
func (r *Report) Item(file, reportRel string) IndexItem {
	return IndexItem{
		Title:     r.Title,
		File:      file,
		ReportRel: reportRel,
		Risk:      string(r.Risk),
		TotalCost: r.Profile.TotalCost,
		EstPages:  r.Profile.EstPages,
		EstBytes:  r.Profile.EstBytes,
		Warnings:  len(r.Profile.Warnings),
		Excerpt:   Excerpt(r.SQL),
	}
}

// FailedItem builds the manifest entry for a file that could not be analysed.
func FailedItem(file, sql string, err error) IndexItem {
	return IndexItem{
		Title:   filepath.Base(file),
		File:    file,
		Risk:    "ERROR",
		Excerpt: Excerpt(sql),
		Error:   err.Error(),
	}
}

// Excerpt collapses whitespace and truncates sql for listings.
func Excerpt(sql string) string {
	s := strings.Join(strings.Fields(sql), " ")
	r := []rune(s)
	if len(r) <= excerptLen {
		return s
	}
	return string(r[:excerptLen]) + "…"
}

// WriteManifest writes items as manifest.json under dir.
func WriteManifest(dir string, items []IndexItem) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("report: create dir: %w", err)
	}
	if items == nil {
		items = []IndexItem{}
	}
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return fmt.Errorf("report: encode manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, ManifestFile), data, 0o644); err != nil {
		return fmt.Errorf("report: write manifest: %w", err)
	}
	return nil
}
