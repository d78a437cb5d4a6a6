package scorer

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus metrics for candidate scoring.
type Metrics struct {
	CandidatesGenerated prometheus.Counter
	Outcomes            *prometheus.CounterVec
	EvaluationSeconds   prometheus.Histogram
}

// NewMetrics creates the scoring metrics and registers them with reg when it is non-nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	generated := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "queryguard_candidates_generated_total",
		Help: "Total rewrite candidates returned by the candidate source",
	})

	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "queryguard_candidate_outcomes_total",
		Help: "Candidate evaluation outcomes by status",
	}, []string{"status"})

	evaluation := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "queryguard_candidate_evaluation_seconds",
		Help:    "Time spent explaining and profiling one candidate",
		Buckets: prometheus.ExponentialBuckets(0.005, 4, 8),
	})

	if reg != nil {
		reg.MustRegister(generated, outcomes, evaluation)
	}

	return &Metrics{
		CandidatesGenerated: generated,
		Outcomes:            outcomes,
		EvaluationSeconds:   evaluation,
	}
}
