package report

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mickamy/queryguard/internal/advisor"
	"github.com/mickamy/queryguard/internal/config"
	"github.com/mickamy/queryguard/internal/model"
	"github.com/mickamy/queryguard/internal/profile"
	"github.com/mickamy/queryguard/internal/scorer"
)

// Report is the complete analysis of one statement.
type Report struct {
	ID           string                   `json:"id"`
	GeneratedAt  time.Time                `json:"generated_at"`
	Title        string                   `json:"title"`
	Source       string                   `json:"source,omitempty"`
	SQL          string                   `json:"sql,omitempty"`
	Profile      profile.CostProfile      `json:"profile"`
	Risk         profile.Risk             `json:"risk"`
	RiskNote     string                   `json:"risk_note"`
	Advice       []advisor.Advice         `json:"advice"`
	Candidates   []scorer.ScoredCandidate `json:"candidates,omitempty"`
	Rejected     []scorer.Outcome         `json:"rejected,omitempty"`
	WorkMemBytes int64                    `json:"work_mem_bytes"`
	PlanningMs   float64                  `json:"planning_ms,omitempty"`
	Plan         *model.PlanNode          `json:"-"`
}

// Input gathers everything Build needs.
type Input struct {
	Title        string
	Source       string
	SQL          string
	Explain      *model.Explain
	Stats        model.TableStats
	WorkMemBytes int64
	Advisor      advisor.Options
	Thresholds   *profile.RiskThresholds
	Scoring      *scorer.Result
}

// Build profiles the plan, rates it and collects index advice.
func Build(in Input) (*Report, error) {
	if in.Explain == nil || in.Explain.Plan == nil {
		return nil, fmt.Errorf("report: plan missing")
	}
	thresholds := profile.ThresholdsFromConfig()
	if in.Thresholds != nil {
		thresholds = *in.Thresholds
	}

	workMem := in.WorkMemBytes
	if workMem <= 0 {
		workMem = config.Active().Profile.WorkMemBytes
	}
	if workMem <= 0 {
		workMem = profile.DefaultWorkMemBytes
	}
	cp := profile.Estimate(in.Explain.Plan, workMem)
	risk, note := profile.Assess(cp, thresholds)

	r := &Report{
		ID:           uuid.NewString(),
		GeneratedAt:  time.Now().UTC(),
		Title:        in.Title,
		Source:       in.Source,
		SQL:          in.SQL,
		Profile:      cp,
		Risk:         risk,
		RiskNote:     note,
		Advice:       advisor.Advise(in.Explain.Plan, in.Stats, in.Advisor),
		WorkMemBytes: workMem,
		PlanningMs:   in.Explain.PlanningTime,
		Plan:         in.Explain.Plan,
	}
	if r.Title == "" {
		r.Title = "queryguard report"
	}
	r.AttachScoring(in.Scoring)
	return r, nil
}

// Explain rebuilds the plan document the report was built from.
func (r *Report) Explain() *model.Explain {
	return &model.Explain{Plan: r.Plan, PlanningTime: r.PlanningMs}
}

// AttachScoring records accepted and rejected candidates.
func (r *Report) AttachScoring(res *scorer.Result) {
	if res == nil {
		return
	}
	r.Candidates = res.Accepted
	r.Rejected = r.Rejected[:0]
	for _, out := range res.Outcomes {
		if out.Status != scorer.StatusAccepted {
			r.Rejected = append(r.Rejected, out)
		}
	}
}

// Markdown renders the report as a Markdown document.
func (r *Report) Markdown() string {
	var b strings.Builder
	_, _ = fmt.Fprintf(&b, "# %s\n\n", r.Title)
	if r.Source != "" {
		_, _ = fmt.Fprintf(&b, "_Source: %s_\n\n", r.Source)
	}
	if r.SQL != "" {
		_, _ = fmt.Fprintf(&b, "```sql\n%s\n```\n\n", r.SQL)
	}

	b.WriteString("## Summary\n")
	p := r.Profile
	_, _ = fmt.Fprintf(&b, "- Risk: **%s** (%s)\n", r.Risk, r.RiskNote)
	_, _ = fmt.Fprintf(&b, "- Total cost: %.2f\n", p.TotalCost)
	_, _ = fmt.Fprintf(&b, "- Estimated rows: %.0f\n", p.EstRows)
	_, _ = fmt.Fprintf(&b, "- Estimated data: %s (%.0f pages)\n", HumanBytes(p.EstBytes), p.EstPages)
	_, _ = fmt.Fprintf(&b, "- Estimated memory: %s\n\n", HumanBytes(p.EstMemoryBytes))

	b.WriteString("### Warnings\n")
	if len(p.Warnings) == 0 {
		b.WriteString("- None\n")
	} else {
		for _, w := range p.Warnings {
			_, _ = fmt.Fprintf(&b, "- %s\n", w)
		}
	}

	b.WriteString("\n### Index advice\n")
	if len(r.Advice) == 0 {
		b.WriteString("- No index changes suggested\n")
	} else {
		rows := make([][]string, 0, len(r.Advice))
		for _, a := range r.Advice {
			rows = append(rows, []string{string(a.Priority), string(a.IndexType), a.Message, "`" + a.DDL + "`"})
		}
		WriteTable(&b, []string{"Priority", "Index", "Reason", "DDL"}, rows)
	}

	if len(r.Candidates) > 0 || len(r.Rejected) > 0 {
		b.WriteString("\n### Rewrite candidates\n")
		if len(r.Candidates) == 0 {
			b.WriteString("- No candidate passed the acceptance rule\n")
		} else {
			rows := make([][]string, 0, len(r.Candidates))
			for i, c := range r.Candidates {
				rows = append(rows, []string{
					fmt.Sprintf("%d", i+1),
					fmt.Sprintf("%.2f", c.CCost),
					fmt.Sprintf("%.1f%%", c.Improvement.CostPct),
					fmt.Sprintf("%.3f", c.Improvement.WeightedGeomRatio),
					fmt.Sprintf("%+d", c.Improvement.WarningsDiff),
					strings.Join(c.Tags, ", "),
				})
			}
			WriteTable(&b, []string{"#", "Cost", "Cost drop", "Score", "Warnings Δ", "Tags"}, rows)
			for i, c := range r.Candidates {
				_, _ = fmt.Fprintf(&b, "\n#### Candidate %d\n\n%s\n\n```sql\n%s\n```\n", i+1, c.Explanation, c.SQL)
			}
		}
		if len(r.Rejected) > 0 {
			b.WriteString("\n#### Rejected\n")
			for _, out := range r.Rejected {
				_, _ = fmt.Fprintf(&b, "- #%d %s", out.Index+1, out.Status)
				if out.Reason != "" {
					_, _ = fmt.Fprintf(&b, ": %s", out.Reason)
				}
				b.WriteString("\n")
			}
		}
	}
	return b.String()
}

// JSON marshals the report into an indented JSON document.
func (r *Report) JSON() ([]byte, error) {
	if r == nil {
		return nil, fmt.Errorf("nil report")
	}
	type alias Report
	return json.MarshalIndent((*alias)(r), "", "  ")
}
