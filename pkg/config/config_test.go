package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fullConfig = `
providers:
  - vendor: anthropic
    model: claude-sonnet-4-5
    api_key_env: ANTHROPIC_API_KEY
  - vendor: openai
    api_key_env: OPENAI_API_KEY
  - vendor: ollama
    host: http://localhost:11434
cycle:
  max_iterations: 8
  stagnation:
    enabled: true
    window: 3
    min_improvement_percent: 2.5
llm:
  call_timeout_seconds: 45
runner:
  timeout_seconds: 60
storage:
  db_path: /var/lib/autoqa/audit.db
metrics:
  enabled: true
  listen_addr: ":9091"
`

func TestParseFullConfig(t *testing.T) {
	cfg, err := Parse([]byte(fullConfig))
	require.NoError(t, err)

	require.Len(t, cfg.Providers, 3)
	assert.Equal(t, VendorAnthropic, cfg.Providers[0].Vendor)
	assert.Equal(t, "claude-sonnet-4-5", cfg.Providers[0].Model)
	assert.Equal(t, "http://localhost:11434", cfg.Providers[2].Host)

	assert.Equal(t, 8, cfg.Cycle.MaxIterations)
	assert.True(t, cfg.Cycle.Stagnation.Enabled)
	assert.Equal(t, 3, cfg.Cycle.Stagnation.Window)
	assert.InDelta(t, 2.5, cfg.Cycle.Stagnation.MinImprovementPercent, 0.001)

	assert.Equal(t, 60, cfg.Runner.TimeoutSeconds)
	assert.Equal(t, "45s", cfg.LLM.CallTimeout().String())
	assert.Equal(t, "/var/lib/autoqa/audit.db", cfg.Storage.DBPath)
	assert.True(t, cfg.Metrics.Enabled)
}

func TestParseAppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
providers:
  - vendor: ollama
`))
	require.NoError(t, err)

	assert.Equal(t, DefaultMaxIterations, cfg.Cycle.MaxIterations)
	assert.False(t, cfg.Cycle.Stagnation.Enabled)
	assert.Equal(t, DefaultStagnationWindow, cfg.Cycle.Stagnation.Window)
	assert.InDelta(t, DefaultMinImprovementPct, cfg.Cycle.Stagnation.MinImprovementPercent, 0.001)
	assert.Equal(t, DefaultTestTimeoutSecs, cfg.Runner.TimeoutSeconds)
	assert.Equal(t, DefaultModelTimeoutSecs, cfg.LLM.CallTimeoutSeconds)
	assert.Equal(t, DefaultDBPath, cfg.Storage.DBPath)
}

func TestValidateRejectsEmptyProviders(t *testing.T) {
	_, err := Parse([]byte(`providers: []`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least one provider")
}

func TestValidateRejectsUnknownVendor(t *testing.T) {
	_, err := Parse([]byte(`
providers:
  - vendor: cohere
    api_key_env: COHERE_API_KEY
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown vendor")
}

func TestValidateRequiresAPIKeyEnvForHostedVendors(t *testing.T) {
	_, err := Parse([]byte(`
providers:
  - vendor: anthropic
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api_key_env")
}

func TestOllamaNeedsNoAPIKey(t *testing.T) {
	cfg, err := Parse([]byte(`
providers:
  - vendor: ollama
`))
	require.NoError(t, err)
	assert.Empty(t, cfg.Providers[0].APIKey())
}

func TestAPIKeyResolvesFromEnv(t *testing.T) {
	t.Setenv("TEST_AUTOQA_KEY", "sk-test-123")

	p := ProviderConfig{Vendor: VendorAnthropic, APIKeyEnv: "TEST_AUTOQA_KEY"}
	assert.Equal(t, "sk-test-123", p.APIKey())
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(fullConfig), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, cfg.Providers, 3)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestRunnerTimeoutDuration(t *testing.T) {
	cfg, err := Parse([]byte(`
providers:
  - vendor: ollama
runner:
  timeout_seconds: 30
`))
	require.NoError(t, err)
	assert.Equal(t, "30s", cfg.Runner.Timeout().String())
}
