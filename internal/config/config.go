package config

import (
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mickamy/queryguard/internal/rewrite"
)

// Config holds tunable thresholds for profiling, advice, scoring and rewrite generation.
type Config struct {
	Profile  ProfileConfig  `json:"profile"`
	Advisor  AdvisorConfig  `json:"advisor"`
	Scorer   ScorerConfig   `json:"scorer"`
	LLM      LLMConfig      `json:"llm"`
	Diff     DiffConfig     `json:"diff"`
	Insights InsightsConfig `json:"insights"`
}

// ProfileConfig defines the cost-profile estimator settings.
type ProfileConfig struct {
	WorkMemBytes       int64   `json:"work_mem_bytes"`
	RiskHighPages      float64 `json:"risk_high_pages"`
	RiskHighMemBytes   float64 `json:"risk_high_mem_bytes"`
	RiskMediumPages    float64 `json:"risk_medium_pages"`
	RiskMediumMemBytes float64 `json:"risk_medium_mem_bytes"`
}

// AdvisorConfig defines thresholds for index advice.
type AdvisorConfig struct {
	SeqScanMinPages int64 `json:"seq_scan_min_pages"`
	BRINMinPages    int64 `json:"brin_min_pages"`
}

// ScorerConfig defines the candidate acceptance rule.
type ScorerConfig struct {
	MinCostImprovement        float64 `json:"min_cost_improvement"`
	MinWeightedImprovement    float64 `json:"min_weighted_improvement"`
	WarnRelaxCostDrop         float64 `json:"warn_relax_cost_drop"`
	WeightCost                float64 `json:"weight_cost"`
	WeightPages               float64 `json:"weight_pages"`
	WeightMemory              float64 `json:"weight_memory"`
	WeightRows                float64 `json:"weight_rows"`
	RequirePreservedSemantics bool    `json:"require_preserved_semantics"`
	Concurrency               int     `json:"concurrency"`
	CandidateTimeoutSeconds   float64 `json:"candidate_timeout_seconds"`
}

// InsightsConfig defines thresholds for plan observations.
type InsightsConfig struct {
	HotNodeCutoff          float64 `json:"hot_node_cutoff"`
	HotspotWarningPercent  float64 `json:"hotspot_warning_percent"`
	HotspotCriticalPercent float64 `json:"hotspot_critical_percent"`
	NestedLoopWarnRows     float64 `json:"nested_loop_warn_rows"`
	NestedLoopCriticalRows float64 `json:"nested_loop_critical_rows"`
}

// DiffConfig defines thresholds for plan-to-plan comparisons.
type DiffConfig struct {
	MinCostDelta     float64 `json:"min_cost_delta"`
	MinPercentChange float64 `json:"min_percent_change"`
	MaxItems         int     `json:"max_items"`
}

// LLMConfig defines how rewrite candidates are requested.
type LLMConfig struct {
	Provider       string                    `json:"provider"`
	Dialect        string                    `json:"dialect"`
	Temperature    float64                   `json:"temperature"`
	Variants       int                       `json:"variants"`
	TimeoutSeconds float64                   `json:"timeout_seconds"`
	Providers      map[string]ProviderConfig `json:"providers"`
}

// ProviderConfig describes one chat-completions endpoint. The key itself is
// never stored in the file, only the environment variable holding it.
type ProviderConfig struct {
	URL       string `json:"url"`
	Model     string `json:"model"`
	APIKeyEnv string `json:"api_key_env"`
}

var (
	mu     sync.RWMutex
	active = Default()
)

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Profile: ProfileConfig{
			WorkMemBytes:       64 * 1024 * 1024,
			RiskHighPages:      500_000,
			RiskHighMemBytes:   1_000_000_000,
			RiskMediumPages:    100_000,
			RiskMediumMemBytes: 256_000_000,
		},
		Advisor: AdvisorConfig{
			SeqScanMinPages: 10_000,
			BRINMinPages:    1_000_000,
		},
		Scorer: ScorerConfig{
			MinCostImprovement:        0.10,
			MinWeightedImprovement:    0.15,
			WarnRelaxCostDrop:         0.20,
			WeightCost:                0.6,
			WeightPages:               0.2,
			WeightMemory:              0.15,
			WeightRows:                0.05,
			RequirePreservedSemantics: true,
			Concurrency:               4,
			CandidateTimeoutSeconds:   30,
		},
		Diff: DiffConfig{
			MinCostDelta:     10,
			MinPercentChange: 5,
			MaxItems:         10,
		},
		Insights: InsightsConfig{
			HotNodeCutoff:          0.10,
			HotspotWarningPercent:  0.20,
			HotspotCriticalPercent: 0.40,
			NestedLoopWarnRows:     1_000,
			NestedLoopCriticalRows: 100_000,
		},
		LLM: LLMConfig{
			Provider:       "openai",
			Dialect:        "PostgreSQL 15",
			Temperature:    0.7,
			Variants:       3,
			TimeoutSeconds: 60,
			Providers: map[string]ProviderConfig{
				"openai": {
					URL:       "https://api.openai.com/v1/chat/completions",
					Model:     "gpt-4.1-mini",
					APIKeyEnv: "OPENAI_API_KEY",
				},
				"deepseek": {
					URL:       "https://api.deepseek.com/chat/completions",
					Model:     "deepseek-chat",
					APIKeyEnv: "DEEPSEEK_API_KEY",
				},
			},
		},
	}
}

// Active returns the currently applied configuration.
func Active() Config {
	mu.RLock()
	defer mu.RUnlock()
	return active
}

// Use replaces the active configuration.
func Use(cfg Config) {
	mu.Lock()
	active = cfg
	mu.Unlock()
}

// Apply loads configuration from the provided path (JSON). Empty path resets to default.
func Apply(path string) error {
	if path == "" {
		Use(Default())
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	cfg := Default()
	if err := json.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	Use(cfg)
	return nil
}

// ProviderNames lists the configured LLM providers in sorted order.
func (c LLMConfig) ProviderNames() []string {
	names := make([]string, 0, len(c.Providers))
	for name := range c.Providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CheckProvider fails when name (or the default provider when name is empty)
// is not configured.
func (c LLMConfig) CheckProvider(name string) error {
	if name == "" {
		name = c.Provider
	}
	names := c.ProviderNames()
	if slices.Contains(names, name) {
		return nil
	}
	return fmt.Errorf("unknown llm provider %q (configured: %s)", name, strings.Join(names, ", "))
}

// ResolveProviders turns the configured endpoints into rewrite providers,
// reading each API key through lookup (usually os.Getenv).
func (c LLMConfig) ResolveProviders(lookup func(string) string) map[string]rewrite.Provider {
	out := make(map[string]rewrite.Provider, len(c.Providers))
	for name, p := range c.Providers {
		var key string
		if lookup != nil && p.APIKeyEnv != "" {
			key = lookup(p.APIKeyEnv)
		}
		out[name] = rewrite.Provider{URL: p.URL, Model: p.Model, APIKey: key}
	}
	return out
}

// Timeout returns the request timeout for one generation call.
func (c LLMConfig) Timeout() time.Duration {
	return seconds(c.TimeoutSeconds)
}

// CandidateTimeout returns the per-candidate evaluation budget.
func (c ScorerConfig) CandidateTimeout() time.Duration {
	return seconds(c.CandidateTimeoutSeconds)
}

func seconds(v float64) time.Duration {
	if v <= 0 {
		return 0
	}
	return time.Duration(v * float64(time.Second))
}
