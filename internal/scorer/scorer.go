package scorer

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/mickamy/queryguard/internal/config"
	"github.com/mickamy/queryguard/internal/model"
	"github.com/mickamy/queryguard/internal/profile"
	"github.com/mickamy/queryguard/internal/rewrite"
)

// PlanProvider returns the estimated plan for a statement. Implementations
// must be safe for concurrent use.
type PlanProvider interface {
	Explain(ctx context.Context, sql string) (*model.Explain, error)
}

// CandidateSource produces rewrite candidates for a statement.
type CandidateSource interface {
	Generate(ctx context.Context, req rewrite.Request) ([]rewrite.Candidate, error)
}

// Options controls candidate generation and the acceptance rule. The
// thresholds are used as given, zero included; start from DefaultOptions
// for the configured values.
type Options struct {
	Provider    string
	Dialect     string
	Temperature float64
	Variants    int

	WorkMemBytes              int64
	MinCostImprovement        float64
	MinWeightedImprovement    float64
	WarnRelaxCostDrop         float64
	Weights                   MetricSet
	AllowSemanticsChange      bool

	Concurrency      int
	CandidateTimeout time.Duration
}

// DefaultOptions returns options built from the active configuration.
func DefaultOptions() Options {
	cfg := config.Active()
	sc := cfg.Scorer
	return Options{
		Provider:                  cfg.LLM.Provider,
		Dialect:                   cfg.LLM.Dialect,
		Temperature:               cfg.LLM.Temperature,
		Variants:                  cfg.LLM.Variants,
		WorkMemBytes:              cfg.Profile.WorkMemBytes,
		MinCostImprovement:        sc.MinCostImprovement,
		MinWeightedImprovement:    sc.MinWeightedImprovement,
		WarnRelaxCostDrop:         sc.WarnRelaxCostDrop,
		Weights:                   MetricSet{Cost: sc.WeightCost, Pages: sc.WeightPages, Memory: sc.WeightMemory, Rows: sc.WeightRows},
		AllowSemanticsChange:      !sc.RequirePreservedSemantics,
		Concurrency:               sc.Concurrency,
		CandidateTimeout:          sc.CandidateTimeout(),
	}
}

const (
	defaultConcurrency      = 4
	defaultCandidateTimeout = 30 * time.Second
)

var defaultWeights = MetricSet{Cost: 0.6, Pages: 0.2, Memory: 0.15, Rows: 0.05}

func applyDefaults(opts Options) Options {
	if opts.WorkMemBytes <= 0 {
		opts.WorkMemBytes = profile.DefaultWorkMemBytes
	}
	if opts.Weights.Sum() <= 0 {
		opts.Weights = defaultWeights
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultConcurrency
	}
	if opts.CandidateTimeout <= 0 {
		opts.CandidateTimeout = defaultCandidateTimeout
	}
	return opts
}

func validate(opts Options) error {
	thresholds := []struct {
		name  string
		value float64
	}{
		{"min cost improvement", opts.MinCostImprovement},
		{"min weighted improvement", opts.MinWeightedImprovement},
		{"warning relax cost drop", opts.WarnRelaxCostDrop},
	}
	for _, th := range thresholds {
		if math.IsNaN(th.value) || th.value < 0 {
			return fmt.Errorf("scorer: %s must be a non-negative number, got %v", th.name, th.value)
		}
	}
	return nil
}

// Status is the result of evaluating one candidate.
type Status string

const (
	StatusAccepted        Status = "accepted"
	StatusEmptySQL        Status = "empty_sql"
	StatusSemantics       Status = "semantics_changed"
	StatusPlanUnavailable Status = "plan_unavailable"
	StatusWarnings        Status = "warning_regression"
	StatusNoImprovement   Status = "no_improvement"
	StatusCancelled       Status = "cancelled"
)

// PlanUnavailableError records that a candidate could not be explained.
type PlanUnavailableError struct {
	SQL string
	Err error
}

func (e *PlanUnavailableError) Error() string {
	return fmt.Sprintf("scorer: plan unavailable for %q: %v", excerpt(e.SQL), e.Err)
}

func (e *PlanUnavailableError) Unwrap() error {
	return e.Err
}

// Improvement describes how a candidate compares to the baseline.
type Improvement struct {
	CostPct           float64 `json:"cost_pct"`
	PagesPct          float64 `json:"pages_pct"`
	MemoryPct         float64 `json:"memory_pct"`
	RowsPct           float64 `json:"rows_pct"`
	WarningsDiff      int     `json:"warnings_diff"`
	WeightedGeomRatio float64 `json:"weighted_geom_ratio"`
}

// ScoredCandidate is an accepted candidate with its own metrics.
type ScoredCandidate struct {
	rewrite.Candidate
	CCost       float64     `json:"c_cost"`
	CPages      float64     `json:"c_pages"`
	CMem        float64     `json:"c_mem"`
	CRows       float64     `json:"c_rows"`
	CWarnings   int         `json:"c_warnings"`
	Improvement Improvement `json:"improvement"`
}

// Outcome records what happened to one generated candidate.
type Outcome struct {
	Index     int               `json:"index"`
	Candidate rewrite.Candidate `json:"candidate"`
	Status    Status            `json:"status"`
	Reason    string            `json:"reason,omitempty"`
	Err       error             `json:"-"`
	Scored    *ScoredCandidate  `json:"-"`
}

// Result is the output of FilterAndRank.
type Result struct {
	Accepted []ScoredCandidate `json:"accepted"`
	Outcomes []Outcome         `json:"outcomes"`
}

// RankByScore returns a copy of the accepted candidates ordered by ascending
// weighted score.
func (r *Result) RankByScore() []ScoredCandidate {
	if r == nil {
		return nil
	}
	out := make([]ScoredCandidate, len(r.Accepted))
	copy(out, r.Accepted)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Improvement.WeightedGeomRatio < out[j].Improvement.WeightedGeomRatio
	})
	return out
}

// Scorer evaluates rewrite candidates against a baseline profile.
type Scorer struct {
	source  CandidateSource
	logger  log.Logger
	metrics *Metrics
}

// New creates a scorer. A nil logger discards output and nil metrics are
// created unregistered.
func New(source CandidateSource, logger log.Logger, metrics *Metrics) *Scorer {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &Scorer{
		source:  source,
		logger:  log.With(logger, "component", "scorer"),
		metrics: metrics,
	}
}

// FilterAndRank generates candidates for baselineSQL, explains and profiles
// each one, and keeps those that pass the acceptance rule. Accepted
// candidates are returned in source order. When ctx ends early, the
// candidates accepted so far are returned together with ctx.Err().
func (s *Scorer) FilterAndRank(ctx context.Context, provider PlanProvider, baselineSQL string, base profile.CostProfile, opts Options) (*Result, error) {
	if strings.TrimSpace(baselineSQL) == "" {
		return nil, &rewrite.GenerationError{Kind: rewrite.KindInput, Err: errors.New("empty sql statement")}
	}
	if provider == nil {
		return nil, errors.New("scorer: nil plan provider")
	}
	if err := validate(opts); err != nil {
		return nil, err
	}
	opts = applyDefaults(opts)

	candidates, err := s.source.Generate(ctx, rewrite.Request{
		SQL:         baselineSQL,
		Dialect:     opts.Dialect,
		NVariants:   opts.Variants,
		Temperature: opts.Temperature,
		Provider:    opts.Provider,
	})
	if err != nil {
		return nil, err
	}
	s.metrics.CandidatesGenerated.Add(float64(len(candidates)))
	level.Info(s.logger).Log("msg", "candidates generated", "count", len(candidates))

	outcomes := make([]Outcome, len(candidates))
	sem := make(chan struct{}, opts.Concurrency)
	var wg sync.WaitGroup

	for i, cand := range candidates {
		outcomes[i] = Outcome{Index: i, Candidate: cand, Status: StatusCancelled}
		wg.Add(1)
		go func(i int, cand rewrite.Candidate) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				return
			}
			defer func() { <-sem }()
			if ctx.Err() != nil {
				return
			}
			outcomes[i] = s.evaluate(ctx, provider, i, cand, base, opts)
		}(i, cand)
	}
	wg.Wait()

	res := &Result{Outcomes: outcomes}
	for _, out := range outcomes {
		s.metrics.Outcomes.WithLabelValues(string(out.Status)).Inc()
		if out.Scored != nil {
			res.Accepted = append(res.Accepted, *out.Scored)
		}
	}
	if err := ctx.Err(); err != nil {
		level.Warn(s.logger).Log("msg", "scoring interrupted", "accepted", len(res.Accepted), "err", err)
		return res, err
	}
	return res, nil
}

func (s *Scorer) evaluate(ctx context.Context, provider PlanProvider, idx int, cand rewrite.Candidate, base profile.CostProfile, opts Options) Outcome {
	out := Outcome{Index: idx, Candidate: cand}
	logger := log.With(s.logger, "candidate", idx)

	sqlText := strings.TrimSpace(cand.SQL)
	if sqlText == "" {
		out.Status = StatusEmptySQL
		out.Reason = "candidate has no sql"
		level.Debug(logger).Log("msg", "candidate rejected", "status", out.Status)
		return out
	}
	if !opts.AllowSemanticsChange {
		if sem := cand.NormalizedSemantics(); sem != "" && sem != rewrite.SemanticsPreserved {
			out.Status = StatusSemantics
			out.Reason = fmt.Sprintf("semantics %q", sem)
			level.Debug(logger).Log("msg", "candidate rejected", "status", out.Status, "semantics", sem)
			return out
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, opts.CandidateTimeout)
	defer cancel()

	started := time.Now()
	explain, err := provider.Explain(callCtx, sqlText)
	s.metrics.EvaluationSeconds.Observe(time.Since(started).Seconds())
	if err == nil && (explain == nil || explain.Plan == nil) {
		err = errors.New("empty plan")
	}
	if err != nil && ctx.Err() != nil {
		out.Status = StatusCancelled
		out.Err = ctx.Err()
		level.Debug(logger).Log("msg", "candidate abandoned", "err", err)
		return out
	}
	if err != nil {
		out.Status = StatusPlanUnavailable
		out.Err = &PlanUnavailableError{SQL: sqlText, Err: err}
		out.Reason = out.Err.Error()
		level.Warn(logger).Log("msg", "candidate skipped", "status", out.Status, "err", err)
		return out
	}

	cp := profile.Estimate(explain.Plan, opts.WorkMemBytes)
	scored, status, reason := judge(cand, base, cp, opts)
	out.Status = status
	out.Reason = reason
	out.Scored = scored
	level.Debug(logger).Log("msg", "candidate evaluated", "status", status,
		"cost", cp.TotalCost, "warnings", len(cp.Warnings))
	return out
}

// judge applies the acceptance rule to a profiled candidate.
func judge(cand rewrite.Candidate, base, cp profile.CostProfile, opts Options) (*ScoredCandidate, Status, string) {
	ratios := MetricSet{
		Cost:   safeRatio(cp.TotalCost, base.TotalCost),
		Pages:  safeRatio(cp.EstPages, base.EstPages),
		Memory: safeRatio(cp.EstMemoryBytes, base.EstMemoryBytes),
		Rows:   safeRatio(cp.EstRows, base.EstRows),
	}
	score := weightedGeomRatio(ratios, opts.Weights)
	drop := costDrop(base.TotalCost, cp.TotalCost)

	baseWarn, candWarn := len(base.Warnings), len(cp.Warnings)
	if candWarn > baseWarn && drop < opts.WarnRelaxCostDrop {
		return nil, StatusWarnings, fmt.Sprintf("warnings %d > %d with cost drop %.1f%%", candWarn, baseWarn, drop*100)
	}

	costBetter := drop >= opts.MinCostImprovement
	weightedBetter := score <= 1-opts.MinWeightedImprovement
	if !costBetter && !weightedBetter {
		return nil, StatusNoImprovement, fmt.Sprintf("cost drop %.1f%%, weighted ratio %.3f", drop*100, score)
	}

	return &ScoredCandidate{
		Candidate: cand,
		CCost:     cp.TotalCost,
		CPages:    cp.EstPages,
		CMem:      cp.EstMemoryBytes,
		CRows:     cp.EstRows,
		CWarnings: candWarn,
		Improvement: Improvement{
			CostPct:           improvementPct(base.TotalCost, cp.TotalCost),
			PagesPct:          improvementPct(base.EstPages, cp.EstPages),
			MemoryPct:         improvementPct(base.EstMemoryBytes, cp.EstMemoryBytes),
			RowsPct:           improvementPct(base.EstRows, cp.EstRows),
			WarningsDiff:      baseWarn - candWarn,
			WeightedGeomRatio: score,
		},
	}, StatusAccepted, ""
}

func excerpt(s string) string {
	const limit = 200
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
