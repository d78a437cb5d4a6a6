package html

import (
	"fmt"
	"html/template"
	"io"
	"math"
	"strings"

	"github.com/mickamy/queryguard/internal/analyzer"
	"github.com/mickamy/queryguard/internal/insight"
	"github.com/mickamy/queryguard/internal/profile"
	"github.com/mickamy/queryguard/internal/report"
)

// Options configures the HTML renderer.
type Options struct {
	Title         string
	IncludeStyles bool
}

var funcs = template.FuncMap{
	"join":      strings.Join,
	"riskClass": riskClass,
}

// Render writes an HTML report with the risk summary, advice, accepted
// rewrites and the annotated plan tree.
func Render(w io.Writer, r *report.Report, opts Options) error {
	if r == nil || r.Plan == nil {
		return fmt.Errorf("html render: empty report")
	}
	if opts.Title == "" {
		opts.Title = r.Title
	}
	analysis, err := analyzer.Analyze(r.Explain(), r.WorkMemBytes)
	if err != nil {
		return fmt.Errorf("html render: %w", err)
	}
	return execute(w, "report", reportTemplate, buildTemplateData(r, analysis, opts))
}

func execute(w io.Writer, name, text string, data any) error {
	tpl, err := template.New(name).Funcs(funcs).Parse(styles + text)
	if err != nil {
		return fmt.Errorf("html render: compile template: %w", err)
	}
	if err := tpl.Execute(w, data); err != nil {
		return fmt.Errorf("html render: execute template: %w", err)
	}
	return nil
}

type templateData struct {
	Title         string
	IncludeStyles bool
	Source        string
	SQL           string
	Summary       summaryView
	Warnings      []string
	Insights      []insightView
	Advice        []adviceView
	Candidates    []candidateView
	Rejected      []string
	HotNodes      []listView
	Root          *nodeView
}

type summaryView struct {
	Risk      string
	RiskNote  string
	Cost      string
	Rows      string
	Data      string
	Memory    string
	NodeCount int
	HotCount  int
}

type listView struct {
	Label string
	Self  string
	Share string
	Extra string
}

type insightView struct {
	Icon     string
	Severity string
	Text     string
	Anchor   string
}

type adviceView struct {
	Priority string
	Index    string
	Message  string
	DDL      string
	Speedup  string
	Anchor   string
}

type candidateView struct {
	Number      int
	SQL         string
	Explanation string
	Changes     []string
	Tags        string
	Cost        string
	CostPct     string
	PagesPct    string
	MemoryPct   string
	Score       string
	Warnings    string
}

type nodeView struct {
	Label      string
	Anchor     string
	Self       string
	Share      string
	BarWidth   float64
	Heat       float64
	Rows       string
	Memory     string
	Detail     string
	Warnings   []string
	Children   []*nodeView
	HasWarning bool
}

func buildTemplateData(r *report.Report, analysis *analyzer.PlanAnalysis, opts Options) templateData {
	messages := insight.BuildMessages(analysis)
	insights := make([]insightView, 0, len(messages))
	for _, msg := range messages {
		insights = append(insights, insightView{
			Icon:     severityIcon(msg.Severity),
			Severity: string(msg.Severity),
			Text:     msg.Text,
			Anchor:   msg.Anchor,
		})
	}

	hot := make([]listView, 0, len(analysis.HotNodes))
	for _, node := range analysis.HotNodes {
		hot = append(hot, listView{
			Label: insight.NodeLabel(node),
			Self:  fmt.Sprintf("%.2f", node.SelfCost),
			Share: fmt.Sprintf("%.1f%%", node.PercentSelf*100),
			Extra: fmt.Sprintf("rows %.0f", node.EstimatedRows),
		})
	}

	advice := make([]adviceView, 0, len(r.Advice))
	for _, a := range r.Advice {
		anchor := ""
		if a.NodeID != "" {
			anchor = "node-" + strings.ReplaceAll(a.NodeID, ".", "-")
		}
		advice = append(advice, adviceView{
			Priority: string(a.Priority),
			Index:    string(a.IndexType),
			Message:  a.Message,
			DDL:      a.DDL,
			Speedup:  a.EstSpeedup,
			Anchor:   anchor,
		})
	}

	candidates := make([]candidateView, 0, len(r.Candidates))
	for i, c := range r.Candidates {
		candidates = append(candidates, candidateView{
			Number:      i + 1,
			SQL:         c.SQL,
			Explanation: c.Explanation,
			Changes:     c.Changes,
			Tags:        strings.Join(c.Tags, ", "),
			Cost:        fmt.Sprintf("%.2f", c.CCost),
			CostPct:     fmt.Sprintf("%.1f%%", c.Improvement.CostPct),
			PagesPct:    fmt.Sprintf("%.1f%%", c.Improvement.PagesPct),
			MemoryPct:   fmt.Sprintf("%.1f%%", c.Improvement.MemoryPct),
			Score:       fmt.Sprintf("%.3f", c.Improvement.WeightedGeomRatio),
			Warnings:    fmt.Sprintf("%+d", c.Improvement.WarningsDiff),
		})
	}
	rejected := make([]string, 0, len(r.Rejected))
	for _, out := range r.Rejected {
		text := fmt.Sprintf("#%d %s", out.Index+1, out.Status)
		if out.Reason != "" {
			text += ": " + out.Reason
		}
		rejected = append(rejected, text)
	}

	p := r.Profile
	return templateData{
		Title:         opts.Title,
		IncludeStyles: opts.IncludeStyles,
		Source:        r.Source,
		SQL:           r.SQL,
		Summary: summaryView{
			Risk:      string(r.Risk),
			RiskNote:  r.RiskNote,
			Cost:      fmt.Sprintf("%.2f", p.TotalCost),
			Rows:      fmt.Sprintf("%.0f", p.EstRows),
			Data:      fmt.Sprintf("%s (%.0f pages)", report.HumanBytes(p.EstBytes), p.EstPages),
			Memory:    report.HumanBytes(p.EstMemoryBytes),
			NodeCount: analysis.NodeCount,
			HotCount:  len(analysis.HotNodes),
		},
		Warnings:   p.Warnings,
		Insights:   insights,
		Advice:     advice,
		Candidates: candidates,
		Rejected:   rejected,
		HotNodes:   hot,
		Root:       buildNodeView(analysis.Root),
	}
}

func buildNodeView(node *analyzer.NodeStats) *nodeView {
	view := &nodeView{
		Label:    insight.NodeLabel(node),
		Anchor:   insight.AnchorID(node),
		Self:     fmt.Sprintf("self cost %.2f", node.SelfCost),
		Share:    fmt.Sprintf("%.1f%%", node.PercentSelf*100),
		BarWidth: math.Min(100, math.Max(0, node.PercentSelf*100)),
		Heat:     clamp(node.PercentSelf*2.5, 0, 1),
		Warnings: append([]string(nil), node.Warnings...),
	}
	if node.EstimatedRows > 0 {
		view.Rows = fmt.Sprintf("rows %.0f · width %.0f", node.EstimatedRows, node.Node.PlanWidth)
	}
	if node.MemoryBytes > 0 {
		view.Memory = "memory ~" + report.HumanBytes(node.MemoryBytes)
	}
	view.Detail = nodeDetail(node)
	view.HasWarning = len(view.Warnings) > 0
	for _, child := range node.Children {
		view.Children = append(view.Children, buildNodeView(child))
	}
	return view
}

func nodeDetail(node *analyzer.NodeStats) string {
	n := node.Node
	switch {
	case n.Filter != "":
		return "filter " + insight.NormalizeWhitespace(n.Filter)
	case n.IndexCond != "":
		return "index cond " + insight.NormalizeWhitespace(n.IndexCond)
	case n.HashCond != "":
		return "hash cond " + insight.NormalizeWhitespace(n.HashCond)
	case n.MergeCond != "":
		return "merge cond " + insight.NormalizeWhitespace(n.MergeCond)
	case len(n.SortKey) > 0:
		return "sort key " + strings.Join(n.SortKey, ", ")
	case len(n.GroupKey) > 0:
		return "group key " + strings.Join(n.GroupKey, ", ")
	}
	return ""
}

func clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

func severityIcon(sev insight.Severity) string {
	switch sev {
	case insight.SeverityCritical:
		return "🔥"
	case insight.SeverityWarning:
		return "⚠️"
	default:
		return "ℹ️"
	}
}

func riskClass(risk string) string {
	switch profile.Risk(risk) {
	case profile.RiskHigh:
		return "high"
	case profile.RiskMedium:
		return "med"
	case profile.RiskLow:
		return "ok"
	default:
		return "err"
	}
}
