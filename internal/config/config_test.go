package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyDefaultAndFile(t *testing.T) {
	Use(Default())
	t.Cleanup(func() { Use(Default()) })

	require.NotZero(t, Active().Insights.HotspotCriticalPercent)

	path := filepath.Join("..", "..", "samples", "config.example.json")
	require.NoError(t, Apply(path))

	cfg := Active()
	assert.Equal(t, 0.5, cfg.Insights.HotspotCriticalPercent)
	assert.Equal(t, 12, cfg.Diff.MaxItems)
	assert.Equal(t, int64(4*1024*1024), cfg.Profile.WorkMemBytes)
	assert.Equal(t, int64(20_000), cfg.Advisor.SeqScanMinPages)
	assert.Equal(t, 0.12, cfg.Scorer.MinCostImprovement)
	assert.Equal(t, "deepseek", cfg.LLM.Provider)
	assert.Equal(t, 5, cfg.LLM.Variants)

	// Fields absent from the file keep their defaults.
	assert.Equal(t, int64(1_000_000), cfg.Advisor.BRINMinPages)
	assert.Equal(t, 0.6, cfg.Scorer.WeightCost)
	assert.True(t, cfg.Scorer.RequirePreservedSemantics)
	assert.Equal(t, []string{"deepseek", "local", "openai"}, cfg.LLM.ProviderNames())

	require.NoError(t, Apply(""))
	assert.Equal(t, Default().Diff.MaxItems, Active().Diff.MaxItems)
	assert.Equal(t, "openai", Active().LLM.Provider)
}

func TestApplyMissingFile(t *testing.T) {
	err := Apply(filepath.Join(os.TempDir(), "does-not-exist.json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config")
}

func TestApplyInvalidJSON(t *testing.T) {
	t.Cleanup(func() { Use(Default()) })

	path := filepath.Join(t.TempDir(), "broken.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"scorer": `), 0o600))

	err := Apply(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config")
}

func TestResolveProviders(t *testing.T) {
	cfg := Default().LLM
	env := map[string]string{"OPENAI_API_KEY": "sk-test"}

	providers := cfg.ResolveProviders(func(name string) string { return env[name] })
	require.Len(t, providers, 2)

	openai := providers["openai"]
	assert.Equal(t, "https://api.openai.com/v1/chat/completions", openai.URL)
	assert.Equal(t, "sk-test", openai.APIKey)
	assert.Empty(t, providers["deepseek"].APIKey)

	assert.Empty(t, cfg.ResolveProviders(nil)["openai"].APIKey)
}

func TestDurations(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 60*time.Second, cfg.LLM.Timeout())
	assert.Equal(t, 30*time.Second, cfg.Scorer.CandidateTimeout())

	cfg.Scorer.CandidateTimeoutSeconds = 1.5
	assert.Equal(t, 1500*time.Millisecond, cfg.Scorer.CandidateTimeout())

	cfg.LLM.TimeoutSeconds = -3
	assert.Zero(t, cfg.LLM.Timeout())
}

func TestCheckProvider(t *testing.T) {
	llm := Default().LLM

	require.NoError(t, llm.CheckProvider("deepseek"))
	require.NoError(t, llm.CheckProvider(""), "empty name falls back to the default provider")

	err := llm.CheckProvider("anthropic")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"anthropic"`)
	assert.Contains(t, err.Error(), "deepseek, openai")

	llm.Provider = "missing"
	require.Error(t, llm.CheckProvider(""))
}
