package html

import (
	"fmt"
	"io"

	"github.com/mickamy/queryguard/internal/report"
)

type indexData struct {
	Title         string
	IncludeStyles bool
	Items         []indexRow
	Counts        map[string]int
}

type indexRow struct {
	report.IndexItem
	RiskClass string
	Cost      string
	Data      string
}

// RenderIndex writes the landing page of a batch check, one row per file.
func RenderIndex(w io.Writer, items []report.IndexItem, opts Options) error {
	if opts.Title == "" {
		opts.Title = "queryguard reports"
	}
	data := indexData{
		Title:         opts.Title,
		IncludeStyles: opts.IncludeStyles,
		Counts:        map[string]int{},
	}
	for _, item := range items {
		data.Counts[item.Risk]++
		data.Items = append(data.Items, indexRow{
			IndexItem: item,
			RiskClass: riskClass(item.Risk),
			Cost:      fmt.Sprintf("%.2f", item.TotalCost),
			Data:      fmt.Sprintf("%s (%.0f pages)", report.HumanBytes(item.EstBytes), item.EstPages),
		})
	}
	return execute(w, "index", indexTemplate, data)
}
