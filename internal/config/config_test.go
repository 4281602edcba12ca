package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// chdirTemp moves into an empty directory so no config.yaml or .env is found.
func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "gpt-4o", cfg.OpenAI.Model)
	assert.Equal(t, "https://api.openai.com/v1", cfg.OpenAI.BaseURL)
	assert.Equal(t, "claude-sonnet-4-5-20250929", cfg.Anthropic.Model)
	assert.Equal(t, "https://api.perplexity.ai", cfg.Perplexity.BaseURL)
	assert.Equal(t, "sonar", cfg.Perplexity.Model)
	assert.Equal(t, int64(2048), cfg.LLM.MaxTokens)
	assert.Equal(t, 3*time.Minute, cfg.LLM.Timeout())
	assert.False(t, cfg.LLM.WebSearch)
	assert.Nil(t, cfg.LLM.Temperature)
	assert.Nil(t, cfg.LLM.TopP)
	assert.Nil(t, cfg.LLM.Seed)
	assert.Equal(t, 5, cfg.Audit.BatchSize)
	assert.Equal(t, ModeStructured, cfg.Audit.Mode)
	assert.Equal(t, KnownSurfaces, cfg.Audit.Surfaces)
	assert.InDelta(t, 2, cfg.Audit.RequestsPerSecond, 0.001)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, 1000, cfg.Retry.InitialBackoffMs)
	assert.Equal(t, 20000, cfg.Retry.MaxBackoffMs)
	assert.Equal(t, 5, cfg.Circuit.FailureThreshold)
	assert.Equal(t, 60, cfg.Circuit.ResetTimeoutSecs)
	assert.Empty(t, cfg.Monitoring.WebhookURL)
	assert.InDelta(t, 0.10, cfg.Monitoring.FailureRateThreshold, 0.001)
	assert.InDelta(t, 0.25, cfg.Monitoring.FallbackRateThreshold, 0.001)
	assert.Zero(t, cfg.Monitoring.CostThresholdUSD)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
log:
  level: debug
  format: console
llm:
  temperature: 0
  top_p: 0.9
  seed: 42
  web_search: true
audit:
  mode: natural
  surfaces: [openai, perplexity]
  batch_size: 10
pricing:
  openai:
    models:
      gpt-5:
        input: 1.25
        output: 10
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	require.NotNil(t, cfg.LLM.Temperature)
	assert.Zero(t, *cfg.LLM.Temperature)
	require.NotNil(t, cfg.LLM.TopP)
	assert.InDelta(t, 0.9, *cfg.LLM.TopP, 0.001)
	require.NotNil(t, cfg.LLM.Seed)
	assert.Equal(t, int64(42), *cfg.LLM.Seed)
	assert.True(t, cfg.LLM.WebSearch)
	assert.Equal(t, ModeNatural, cfg.Audit.Mode)
	assert.Equal(t, []string{"openai", "perplexity"}, cfg.Audit.Surfaces)
	assert.Equal(t, 10, cfg.Audit.BatchSize)
	assert.InDelta(t, 1.25, cfg.Pricing.OpenAI.Models["gpt-5"].Input, 0.001)
	// Defaults still apply for unset values
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
log:
  level: debug
audit:
  mode: natural
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("GEO_LOG_LEVEL", "warn")
	t.Setenv("GEO_AUDIT_MODE", "structured")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, ModeStructured, cfg.Audit.Mode)
}

func TestLoadProviderKeys(t *testing.T) {
	chdirTemp(t)

	t.Setenv("GEO_OPENAI_KEY", "sk-geo")
	t.Setenv("OPENAI_API_KEY", "sk-sdk")
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sk-geo", cfg.OpenAI.Key)
	assert.Equal(t, "sk-ant", cfg.Anthropic.Key)
}

func TestLoadDotEnv(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("GEO_PERPLEXITY_KEY=pplx-dotenv\n"), 0644))
	t.Cleanup(func() { os.Unsetenv("GEO_PERPLEXITY_KEY") }) //nolint:errcheck

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "pplx-dotenv", cfg.Perplexity.Key)
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config that passes validation.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Audit.Mode = ModeStructured
	cfg.Audit.Surfaces = []string{"openai", "anthropic"}
	cfg.Audit.BatchSize = 5
	cfg.OpenAI.Key = "sk-openai"
	cfg.Anthropic.Key = "sk-ant"
	return cfg
}

func ptrFloat64(v float64) *float64 { return &v }

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"natural mode", func(c *Config) { c.Audit.Mode = ModeNatural }, ""},
		{"bad mode", func(c *Config) { c.Audit.Mode = "hybrid" }, "audit.mode"},
		{"no surfaces", func(c *Config) { c.Audit.Surfaces = nil }, "at least one surface"},
		{"unknown surface", func(c *Config) { c.Audit.Surfaces = []string{"gemini"} }, `unknown surface "gemini"`},
		{"missing key", func(c *Config) { c.Audit.Surfaces = []string{"perplexity"} }, "perplexity.key is required"},
		{"zero batch", func(c *Config) { c.Audit.BatchSize = 0 }, "batch_size"},
		{"negative rate", func(c *Config) { c.Audit.RequestsPerSecond = -1 }, "requests_per_second"},
		{"temperature range", func(c *Config) { c.LLM.Temperature = ptrFloat64(3) }, "llm.temperature"},
		{"top_p range", func(c *Config) { c.LLM.TopP = ptrFloat64(0) }, "llm.top_p"},
		{"failure rate range", func(c *Config) { c.Monitoring.FailureRateThreshold = 1.5 }, "failure_rate_threshold"},
		{"fallback rate range", func(c *Config) { c.Monitoring.FallbackRateThreshold = -0.1 }, "fallback_rate_threshold"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validDefaults()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateReportsAllErrors(t *testing.T) {
	cfg := &Config{}
	cfg.Audit.Surfaces = []string{"openai"}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "audit.mode")
	assert.Contains(t, err.Error(), "openai.key is required")
	assert.Contains(t, err.Error(), "batch_size")
}
