package scorer

import "math"

// MetricSet holds one value per scored metric.
type MetricSet struct {
	Cost   float64 `json:"cost"`
	Pages  float64 `json:"pages"`
	Memory float64 `json:"memory"`
	Rows   float64 `json:"rows"`
}

// Sum returns the total of all four values.
func (m MetricSet) Sum() float64 {
	return m.Cost + m.Pages + m.Memory + m.Rows
}

// safeRatio returns num/den with a negative numerator clamped to zero. A
// non-positive denominator means there is nothing to compare against, so the
// ratio is 1.
func safeRatio(num, den float64) float64 {
	if den <= 0 {
		return 1.0
	}
	return math.Max(num, 0) / den
}

// weightedGeomRatio combines per-metric ratios as exp(Σ w·ln r). Ratios that
// are not positive count as 1.
func weightedGeomRatio(ratios, weights MetricSet) float64 {
	pairs := [4][2]float64{
		{ratios.Cost, weights.Cost},
		{ratios.Pages, weights.Pages},
		{ratios.Memory, weights.Memory},
		{ratios.Rows, weights.Rows},
	}
	var sum float64
	for _, p := range pairs {
		r := p[0]
		if r <= 0 || math.IsNaN(r) {
			r = 1.0
		}
		sum += p[1] * math.Log(r)
	}
	return math.Exp(sum)
}

// improvementPct is the percentage drop from baseline to current, floored at zero.
func improvementPct(baseline, current float64) float64 {
	if baseline <= 0 {
		return 0
	}
	return math.Max(0, (baseline-current)/baseline*100)
}

// costDrop is the relative cost reduction; zero when the baseline is not positive.
func costDrop(baseline, current float64) float64 {
	if baseline <= 0 {
		return 0
	}
	return (baseline - current) / baseline
}
