package profile

import "github.com/mickamy/queryguard/internal/config"

// Risk is a coarse rating of how heavy a plan looks.
type Risk string

const (
	RiskLow    Risk = "LOW"
	RiskMedium Risk = "MED"
	RiskHigh   Risk = "HIGH"
)

// RiskThresholds bounds the page and memory estimates for each rating.
type RiskThresholds struct {
	HighPages      float64
	HighMemBytes   float64
	MediumPages    float64
	MediumMemBytes float64
}

// ThresholdsFromConfig reads the thresholds from the active configuration.
func ThresholdsFromConfig() RiskThresholds {
	cfg := config.Active().Profile
	return RiskThresholds{
		HighPages:      cfg.RiskHighPages,
		HighMemBytes:   cfg.RiskHighMemBytes,
		MediumPages:    cfg.RiskMediumPages,
		MediumMemBytes: cfg.RiskMediumMemBytes,
	}
}

// Assess rates the profile and returns a short explanation.
func Assess(p CostProfile, t RiskThresholds) (Risk, string) {
	switch {
	case p.EstPages >= t.HighPages || p.EstMemoryBytes >= t.HighMemBytes:
		return RiskHigh, "high estimate: many pages or memory above ~1 GB"
	case p.EstPages >= t.MediumPages || p.EstMemoryBytes >= t.MediumMemBytes:
		return RiskMedium, "medium estimate: noticeable data or memory volume"
	default:
		return RiskLow, "low estimate: moderate forecast"
	}
}
