package diff

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/mickamy/queryguard/internal/analyzer"
	"github.com/mickamy/queryguard/internal/config"
	"github.com/mickamy/queryguard/internal/model"
	"github.com/mickamy/queryguard/internal/profile"
	"github.com/mickamy/queryguard/internal/report"
)

// Options configures the diff sensitivity.
type Options struct {
	MinCostDelta     float64
	MinPercentChange float64
	MaxItems         int
	WorkMemBytes     int64
}

// Report summarises the estimate delta between two plans.
type Report struct {
	Summary      SummaryDiff `json:"summary"`
	Regressions  []Entry     `json:"regressions"`
	Improvements []Entry     `json:"improvements"`
	Insights     []Insight   `json:"insights"`
	Options      Options     `json:"-"`
}

// SummaryDiff compares the cost profiles of both plans.
type SummaryDiff struct {
	Base          profile.CostProfile `json:"base"`
	Target        profile.CostProfile `json:"target"`
	PercentCost   float64             `json:"percent_cost"`
	PercentPages  float64             `json:"percent_pages"`
	PercentMemory float64             `json:"percent_memory"`
	PercentRows   float64             `json:"percent_rows"`
}

// Entry captures the delta for all nodes sharing a signature.
type Entry struct {
	Signature      string  `json:"signature"`
	BaseSelfCost   float64 `json:"base_self_cost"`
	TargetSelfCost float64 `json:"target_self_cost"`
	DeltaSelfCost  float64 `json:"delta_self_cost"`
	PercentChange  float64 `json:"percent_change"`
	BaseRows       float64 `json:"base_rows"`
	TargetRows     float64 `json:"target_rows"`
	BaseMemory     float64 `json:"base_memory"`
	TargetMemory   float64 `json:"target_memory"`
}

// Insight is a one-line observation about the comparison.
type Insight struct {
	Severity string `json:"severity"`
	Icon     string `json:"icon"`
	Message  string `json:"message"`
}

// Compare builds a diff report for two estimated plans.
func Compare(base, target *model.PlanNode, opts Options) (*Report, error) {
	if base == nil {
		return nil, fmt.Errorf("diff: base plan missing")
	}
	if target == nil {
		return nil, fmt.Errorf("diff: target plan missing")
	}

	opts = applyDefaults(opts)

	baseAgg := aggregate(base)
	targetAgg := aggregate(target)

	var regressions, improvements []Entry
	for _, sig := range unionKeys(baseAgg, targetAgg) {
		entry := buildEntry(sig, baseAgg[sig], targetAgg[sig])
		if passesRegression(entry, opts) {
			regressions = append(regressions, entry)
		} else if passesImprovement(entry, opts) {
			improvements = append(improvements, entry)
		}
	}

	sort.Slice(regressions, func(i, j int) bool {
		return regressions[i].DeltaSelfCost > regressions[j].DeltaSelfCost
	})
	sort.Slice(improvements, func(i, j int) bool {
		return improvements[i].DeltaSelfCost < improvements[j].DeltaSelfCost
	})

	if opts.MaxItems > 0 {
		if len(regressions) > opts.MaxItems {
			regressions = regressions[:opts.MaxItems]
		}
		if len(improvements) > opts.MaxItems {
			improvements = improvements[:opts.MaxItems]
		}
	}

	bp := profile.Estimate(base, opts.WorkMemBytes)
	tp := profile.Estimate(target, opts.WorkMemBytes)

	r := &Report{
		Summary: SummaryDiff{
			Base:          bp,
			Target:        tp,
			PercentCost:   percentChange(bp.TotalCost, tp.TotalCost),
			PercentPages:  percentChange(bp.EstPages, tp.EstPages),
			PercentMemory: percentChange(bp.EstMemoryBytes, tp.EstMemoryBytes),
			PercentRows:   percentChange(bp.EstRows, tp.EstRows),
		},
		Regressions:  regressions,
		Improvements: improvements,
		Options:      opts,
	}
	r.Insights = synthesizeInsights(r)
	return r, nil
}

// Markdown renders the report as a Markdown document.
func (r *Report) Markdown() string {
	var b strings.Builder
	b.WriteString("# queryguard diff\n\n")
	b.WriteString("## Summary\n")
	s := r.Summary
	_, _ = fmt.Fprintf(&b, "- Cost: %.2f → %.2f (%+.1f%%)\n", s.Base.TotalCost, s.Target.TotalCost, s.PercentCost)
	_, _ = fmt.Fprintf(&b, "- Pages: %.0f → %.0f (%+.1f%%)\n", s.Base.EstPages, s.Target.EstPages, s.PercentPages)
	_, _ = fmt.Fprintf(&b, "- Memory: %s → %s (%+.1f%%)\n", report.HumanBytes(s.Base.EstMemoryBytes), report.HumanBytes(s.Target.EstMemoryBytes), s.PercentMemory)
	_, _ = fmt.Fprintf(&b, "- Warnings: %d → %d\n\n", len(s.Base.Warnings), len(s.Target.Warnings))

	b.WriteString("### Insights\n")
	if len(r.Insights) == 0 {
		b.WriteString("- No notable plan changes detected\n")
	} else {
		for _, insight := range r.Insights {
			_, _ = fmt.Fprintf(&b, "- %s %s\n", insight.Icon, insight.Message)
		}
	}

	b.WriteString("\n### Regressions\n")
	writeEntries(&b, r.Regressions)
	b.WriteString("\n### Improvements\n")
	writeEntries(&b, r.Improvements)
	return b.String()
}

func writeEntries(b *strings.Builder, entries []Entry) {
	if len(entries) == 0 {
		b.WriteString("- None above threshold\n")
		return
	}
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{
			e.Signature,
			fmt.Sprintf("%.2f", e.BaseSelfCost),
			fmt.Sprintf("%.2f", e.TargetSelfCost),
			fmt.Sprintf("%+.2f", e.DeltaSelfCost),
			fmt.Sprintf("%+.1f%%", e.PercentChange),
			fmt.Sprintf("%.0f → %.0f", e.BaseRows, e.TargetRows),
		})
	}
	report.WriteTable(b, []string{"Operator", "Base self cost", "Target self cost", "Δ cost", "Δ %", "Rows (est)"}, rows)
}

// JSON marshals the diff report into an indented JSON document.
func (r *Report) JSON() ([]byte, error) {
	if r == nil {
		return nil, fmt.Errorf("nil report")
	}
	type alias Report
	return json.MarshalIndent((*alias)(r), "", "  ")
}

func synthesizeInsights(r *Report) []Insight {
	if r == nil {
		return nil
	}
	const maxItems = 3
	var insights []Insight

	for i, entry := range r.Regressions {
		if i >= maxItems {
			break
		}
		insights = append(insights, Insight{
			Severity: "warning",
			Icon:     "⚠️",
			Message:  fmt.Sprintf("%s self cost +%.2f (+%.1f%%)", entry.Signature, entry.DeltaSelfCost, entry.PercentChange),
		})
	}
	for i, entry := range r.Improvements {
		if i >= maxItems {
			break
		}
		insights = append(insights, Insight{
			Severity: "improvement",
			Icon:     "✅",
			Message:  fmt.Sprintf("%s self cost %.2f (%.1f%%)", entry.Signature, entry.DeltaSelfCost, entry.PercentChange),
		})
	}

	baseWarn, targetWarn := len(r.Summary.Base.Warnings), len(r.Summary.Target.Warnings)
	switch {
	case targetWarn > baseWarn:
		insights = append(insights, Insight{
			Severity: "critical",
			Icon:     "🔥",
			Message:  fmt.Sprintf("spill warnings grew from %d to %d", baseWarn, targetWarn),
		})
	case targetWarn < baseWarn:
		insights = append(insights, Insight{
			Severity: "improvement",
			Icon:     "✅",
			Message:  fmt.Sprintf("spill warnings dropped from %d to %d", baseWarn, targetWarn),
		})
	}
	return insights
}

type aggregated struct {
	SelfCost float64
	Rows     float64
	Memory   float64
}

func aggregate(root *model.PlanNode) map[string]aggregated {
	result := map[string]aggregated{}
	root.Walk(func(n, _ *model.PlanNode) {
		sig := signature(n)
		entry := result[sig]
		entry.SelfCost += analyzer.SelfCost(n)
		entry.Rows += n.PlanRows
		entry.Memory += profile.NodeMemory(n)
		result[sig] = entry
	})
	return result
}

func signature(node *model.PlanNode) string {
	parts := []string{node.NodeType}
	if node.RelationName != "" {
		parts = append(parts, node.RelationName)
	}
	if node.IndexName != "" {
		parts = append(parts, node.IndexName)
	}
	if node.JoinType != "" {
		parts = append(parts, node.JoinType)
	}
	return strings.Join(parts, " · ")
}

func unionKeys(base, target map[string]aggregated) []string {
	seen := map[string]struct{}{}
	for k := range base {
		seen[k] = struct{}{}
	}
	for k := range target {
		seen[k] = struct{}{}
	}
	all := make([]string, 0, len(seen))
	for k := range seen {
		all = append(all, k)
	}
	sort.Strings(all)
	return all
}

func buildEntry(sig string, base, target aggregated) Entry {
	return Entry{
		Signature:      sig,
		BaseSelfCost:   base.SelfCost,
		TargetSelfCost: target.SelfCost,
		DeltaSelfCost:  target.SelfCost - base.SelfCost,
		PercentChange:  percentChange(base.SelfCost, target.SelfCost),
		BaseRows:       base.Rows,
		TargetRows:     target.Rows,
		BaseMemory:     base.Memory,
		TargetMemory:   target.Memory,
	}
}

func passesRegression(entry Entry, opts Options) bool {
	return entry.DeltaSelfCost >= opts.MinCostDelta && entry.PercentChange >= opts.MinPercentChange
}

func passesImprovement(entry Entry, opts Options) bool {
	return entry.DeltaSelfCost <= -opts.MinCostDelta && entry.PercentChange <= -opts.MinPercentChange
}

func percentChange(base, target float64) float64 {
	const eps = 1e-9
	if math.Abs(base) <= eps {
		if math.Abs(target) <= eps {
			return 0
		}
		if target > 0 {
			return 100
		}
		return -100
	}
	return (target - base) / base * 100
}

func applyDefaults(opts Options) Options {
	cfg := config.Active()
	if opts.MinCostDelta <= 0 {
		opts.MinCostDelta = cfg.Diff.MinCostDelta
	}
	if opts.MinPercentChange <= 0 {
		opts.MinPercentChange = cfg.Diff.MinPercentChange
	}
	if opts.MaxItems <= 0 {
		opts.MaxItems = cfg.Diff.MaxItems
	}
	if opts.WorkMemBytes <= 0 {
		opts.WorkMemBytes = cfg.Profile.WorkMemBytes
	}
	return opts
}
