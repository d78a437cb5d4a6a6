package scorer

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSafeRatio(t *testing.T) {
	for _, num := range []float64{-5, 0, 1, 42, 1e12} {
		assert.Equal(t, 1.0, safeRatio(num, 0), "num=%v", num)
		assert.Equal(t, 1.0, safeRatio(num, -3), "num=%v", num)
	}
	assert.Equal(t, 0.0, safeRatio(0, 10))
	assert.Equal(t, 0.0, safeRatio(-4, 10))
	assert.InDelta(t, 0.85, safeRatio(850, 1000), 1e-12)
}

func TestWeightedGeomRatioOfOnesIsOne(t *testing.T) {
	ones := MetricSet{Cost: 1, Pages: 1, Memory: 1, Rows: 1}
	for _, w := range []MetricSet{
		defaultWeights,
		{Cost: 1},
		{Cost: 0.25, Pages: 0.25, Memory: 0.25, Rows: 0.25},
		{Cost: 3, Pages: 7, Memory: 0, Rows: 11},
		{},
	} {
		assert.InDelta(t, 1.0, weightedGeomRatio(ones, w), 1e-12, "weights=%+v", w)
	}
}

func TestWeightedGeomRatio(t *testing.T) {
	ratios := MetricSet{Cost: 0.5, Pages: 0.25, Memory: 1, Rows: 2}
	want := math.Exp(0.6*math.Log(0.5) + 0.2*math.Log(0.25) + 0.05*math.Log(2))
	assert.InDelta(t, want, weightedGeomRatio(ratios, defaultWeights), 1e-12)

	// Non-positive ratios are neutral.
	withZero := MetricSet{Cost: 0.5, Pages: 0, Memory: -1, Rows: math.NaN()}
	assert.InDelta(t, math.Pow(0.5, 0.6), weightedGeomRatio(withZero, defaultWeights), 1e-12)
}

func TestImprovementPct(t *testing.T) {
	assert.InDelta(t, 15.0, improvementPct(1000, 850), 1e-9)
	assert.Equal(t, 0.0, improvementPct(1000, 1200), "regressions are floored")
	assert.Equal(t, 100.0, improvementPct(1000, 0))
	assert.Equal(t, 0.0, improvementPct(0, 10))

	for _, cand := range []float64{0, 1, 500, 999.9, 1000, 5000} {
		got := improvementPct(1000, cand)
		assert.GreaterOrEqual(t, got, 0.0)
		assert.LessOrEqual(t, got, 100.0)
		assert.InDelta(t, math.Max(0, (1000-cand)/1000*100), got, 1e-9)
	}
}

func TestCostDrop(t *testing.T) {
	assert.InDelta(t, 0.15, costDrop(1000, 850), 1e-12)
	assert.InDelta(t, -0.2, costDrop(1000, 1200), 1e-12)
	assert.Equal(t, 0.0, costDrop(0, 10))
}
