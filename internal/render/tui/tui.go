package tui

import (
	"errors"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/fatih/color"

	"github.com/mickamy/queryguard/internal/analyzer"
	"github.com/mickamy/queryguard/internal/insight"
	"github.com/mickamy/queryguard/internal/profile"
	"github.com/mickamy/queryguard/internal/report"
)

// Options controls how the TUI renderer behaves.
type Options struct {
	EnableColor  bool
	MaxDepth     int
	ShowWarnings bool
	BarWidth     int
}

// Render prints the report summary followed by an ASCII plan tree that
// highlights the nodes carrying most of the estimated cost.
func Render(w io.Writer, r *report.Report, opts Options) error {
	if w == nil {
		return errors.New("tui: writer is nil")
	}
	if r == nil || r.Plan == nil {
		return errors.New("tui: empty report")
	}
	analysis, err := analyzer.Analyze(r.Explain(), r.WorkMemBytes)
	if err != nil {
		return fmt.Errorf("tui: %w", err)
	}
	if opts.BarWidth <= 0 {
		opts.BarWidth = 20
	}

	p := r.Profile
	_, _ = fmt.Fprintf(w, "Risk %s | cost %.2f | rows %.0f | data %s (%.0f pages) | memory %s\n",
		paint(string(r.Risk), riskColor(r.Risk), opts.EnableColor),
		p.TotalCost, p.EstRows, report.HumanBytes(p.EstBytes), p.EstPages, report.HumanBytes(p.EstMemoryBytes))
	_, _ = fmt.Fprintf(w, "Nodes %d | Hot nodes >=10%% cost %d | Spill warnings %d\n\n",
		analysis.NodeCount, len(analysis.HotNodes), len(p.Warnings))

	renderInsights(w, analysis, opts)

	_, _ = fmt.Fprintf(w, "%s\n", renderLine(analysis.Root, opts))
	printChildren(w, analysis.Root, "", opts)

	renderAdvice(w, r, opts)
	renderCandidates(w, r, opts)
	return nil
}

func printChildren(w io.Writer, parent *analyzer.NodeStats, prefix string, opts Options) {
	for i, child := range parent.Children {
		renderBranch(w, child, prefix, i == len(parent.Children)-1, opts)
	}
}

func renderBranch(w io.Writer, node *analyzer.NodeStats, prefix string, isLast bool, opts Options) {
	connector := "|-- "
	childPrefix := prefix + "|   "
	if isLast {
		connector = "`-- "
		childPrefix = prefix + "    "
	}

	_, _ = fmt.Fprintf(w, "%s%s%s\n", prefix, connector, renderLine(node, opts))

	if opts.MaxDepth > 0 && node.Depth >= opts.MaxDepth {
		if len(node.Children) > 0 {
			_, _ = fmt.Fprintf(w, "%s`-- ... (%d more nodes)\n", childPrefix, countDescendants(node))
		}
		return
	}
	printChildren(w, node, childPrefix, opts)
}

func renderLine(node *analyzer.NodeStats, opts Options) string {
	label := insight.NodeLabel(node)
	self := fmt.Sprintf("self cost %.2f", node.SelfCost)
	share := fmt.Sprintf("%5.1f%%", node.PercentSelf*100)

	bar := drawBar(node.PercentSelf, opts.BarWidth)
	if attr, ok := shareColor(node.PercentSelf); ok {
		bar = paint(bar, attr, opts.EnableColor)
	}

	parts := []string{label, self, share, bar}
	if node.EstimatedRows > 0 {
		parts = append(parts, fmt.Sprintf("rows %.0f", node.EstimatedRows))
	}
	if node.MemoryBytes > 0 {
		parts = append(parts, "mem ~"+report.HumanBytes(node.MemoryBytes))
	}

	warningText := ""
	if len(node.Warnings) > 0 {
		warningText = strings.Join(node.Warnings, "; ")
		if opts.ShowWarnings {
			warningText = paint(warningText, color.FgYellow, opts.EnableColor)
		}
		warningText = " [" + warningText + "]"
	}
	return strings.Join(parts, " | ") + warningText
}

func renderInsights(w io.Writer, analysis *analyzer.PlanAnalysis, opts Options) {
	messages := insight.BuildMessages(analysis)
	if len(messages) == 0 {
		return
	}
	_, _ = fmt.Fprintln(w, "Insights:")
	for _, msg := range messages {
		_, _ = fmt.Fprintf(w, "  - %s %s\n", severityIcon(msg.Severity), msg.Text)
	}
	_, _ = fmt.Fprintln(w)
}

func renderAdvice(w io.Writer, r *report.Report, opts Options) {
	if len(r.Advice) == 0 {
		return
	}
	_, _ = fmt.Fprintln(w, "\nIndex advice:")
	for _, a := range r.Advice {
		_, _ = fmt.Fprintf(w, "  - [%s] %s\n", a.Priority, a.Message)
		if a.DDL != "" {
			_, _ = fmt.Fprintf(w, "      %s\n", paint(a.DDL, color.FgCyan, opts.EnableColor))
		}
	}
}

func renderCandidates(w io.Writer, r *report.Report, opts Options) {
	if len(r.Candidates) == 0 && len(r.Rejected) == 0 {
		return
	}
	_, _ = fmt.Fprintf(w, "\nRewrite candidates: %d accepted, %d rejected\n", len(r.Candidates), len(r.Rejected))
	for i, c := range r.Candidates {
		head := fmt.Sprintf("  #%d cost %.2f (-%.1f%%) score %.3f", i+1, c.CCost, c.Improvement.CostPct, c.Improvement.WeightedGeomRatio)
		_, _ = fmt.Fprintln(w, paint(head, color.FgGreen, opts.EnableColor))
		for _, line := range strings.Split(strings.TrimSpace(c.SQL), "\n") {
			_, _ = fmt.Fprintf(w, "      %s\n", line)
		}
	}
}

func drawBar(ratio float64, width int) string {
	if width <= 0 {
		return ""
	}
	clamped := math.Min(math.Max(ratio, 0), 1)
	fill := int(math.Round(clamped * float64(width)))
	if clamped > 0 && fill == 0 {
		fill = 1
	}
	return strings.Repeat("#", fill) + strings.Repeat("-", width-fill)
}

func shareColor(ratio float64) (color.Attribute, bool) {
	switch {
	case ratio >= 0.40:
		return color.FgRed, true
	case ratio >= 0.20:
		return color.FgYellow, true
	case ratio >= 0.10:
		return color.FgCyan, true
	default:
		return 0, false
	}
}

func riskColor(r profile.Risk) color.Attribute {
	switch r {
	case profile.RiskHigh:
		return color.FgRed
	case profile.RiskMedium:
		return color.FgYellow
	default:
		return color.FgGreen
	}
}

func paint(text string, attr color.Attribute, enabled bool) string {
	c := color.New(attr)
	if enabled {
		c.EnableColor()
	} else {
		c.DisableColor()
	}
	return c.Sprint(text)
}

func countDescendants(node *analyzer.NodeStats) int {
	total := 0
	var walk func(*analyzer.NodeStats)
	walk = func(n *analyzer.NodeStats) {
		for _, child := range n.Children {
			total++
			walk(child)
		}
	}
	walk(node)
	return total
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
