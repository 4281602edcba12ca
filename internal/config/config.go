package config

import (
	"errors"
	"fmt"
	"io/fs"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/geo-audit/internal/cost"
)

// Audit modes.
const (
	ModeStructured = "structured"
	ModeNatural    = "natural"
)

// Surface names accepted in audit.surfaces.
var KnownSurfaces = []string{"openai", "anthropic", "perplexity"}

// Config holds the full application configuration.
type Config struct {
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
	OpenAI     OpenAIConfig     `yaml:"openai" mapstructure:"openai"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Perplexity PerplexityConfig `yaml:"perplexity" mapstructure:"perplexity"`
	LLM        LLMConfig        `yaml:"llm" mapstructure:"llm"`
	Audit      AuditConfig      `yaml:"audit" mapstructure:"audit"`
	Retry      RetryConfig      `yaml:"retry" mapstructure:"retry"`
	Circuit    CircuitConfig    `yaml:"circuit" mapstructure:"circuit"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	// Pricing overrides the built-in rate table.
	Pricing cost.Rates `yaml:"pricing" mapstructure:"pricing"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// OpenAIConfig holds OpenAI API settings.
type OpenAIConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	Model   string `yaml:"model" mapstructure:"model"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	Model   string `yaml:"model" mapstructure:"model"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	// MaxTokens overrides llm.max_tokens for Anthropic, which requires it.
	MaxTokens int64 `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// PerplexityConfig holds Perplexity API settings.
type PerplexityConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Model   string `yaml:"model" mapstructure:"model"`
}

// LLMConfig holds sampling settings shared by every surface. Unset
// sampling values are left to the provider.
type LLMConfig struct {
	Temperature *float64 `yaml:"temperature" mapstructure:"temperature"`
	TopP        *float64 `yaml:"top_p" mapstructure:"top_p"`
	Seed        *int64   `yaml:"seed" mapstructure:"seed"`
	MaxTokens   int64    `yaml:"max_tokens" mapstructure:"max_tokens"`
	TimeoutSecs int      `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	WebSearch   bool     `yaml:"web_search" mapstructure:"web_search"`
}

// Timeout returns the per-call timeout.
func (c LLMConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// AuditConfig configures audit runs.
type AuditConfig struct {
	// BatchSize bounds the number of surface calls in flight.
	BatchSize int      `yaml:"batch_size" mapstructure:"batch_size"`
	Mode      string   `yaml:"mode" mapstructure:"mode"`
	Surfaces  []string `yaml:"surfaces" mapstructure:"surfaces"`
	// RequestsPerSecond caps job starts across all surfaces. 0 disables.
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
}

// RetryConfig configures retries of transient surface errors.
type RetryConfig struct {
	MaxAttempts      int `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
}

// CircuitConfig configures the per-surface circuit breakers.
type CircuitConfig struct {
	FailureThreshold int `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeoutSecs int `yaml:"reset_timeout_secs" mapstructure:"reset_timeout_secs"`
}

// MonitoringConfig configures post-run alerting.
type MonitoringConfig struct {
	WebhookURL            string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	FailureRateThreshold  float64 `yaml:"failure_rate_threshold" mapstructure:"failure_rate_threshold"`
	FallbackRateThreshold float64 `yaml:"fallback_rate_threshold" mapstructure:"fallback_rate_threshold"`
	// MinVisibilityPct alerts when the brand appears in fewer answers. 0 disables.
	MinVisibilityPct float64 `yaml:"min_visibility_pct" mapstructure:"min_visibility_pct"`
	CostThresholdUSD float64 `yaml:"cost_threshold_usd" mapstructure:"cost_threshold_usd"`
}

// Load reads configuration from .env, config.yaml and the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, eris.Wrap(err, "config: load .env")
	}

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("GEO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Provider keys also come from the variables the SDKs use.
	_ = v.BindEnv("openai.key", "GEO_OPENAI_KEY", "OPENAI_API_KEY")
	_ = v.BindEnv("anthropic.key", "GEO_ANTHROPIC_KEY", "ANTHROPIC_API_KEY")
	_ = v.BindEnv("perplexity.key", "GEO_PERPLEXITY_KEY", "PERPLEXITY_API_KEY")

	// Unset sampling values must stay nil, so they are bound without
	// defaults.
	_ = v.BindEnv("llm.temperature")
	_ = v.BindEnv("llm.top_p")
	_ = v.BindEnv("llm.seed")

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("openai.model", "gpt-4o")
	v.SetDefault("openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("perplexity.base_url", "https://api.perplexity.ai")
	v.SetDefault("perplexity.model", "sonar")
	v.SetDefault("llm.max_tokens", 2048)
	v.SetDefault("llm.timeout_secs", 180)
	v.SetDefault("llm.web_search", false)
	v.SetDefault("audit.batch_size", 5)
	v.SetDefault("audit.mode", ModeStructured)
	v.SetDefault("audit.surfaces", KnownSurfaces)
	v.SetDefault("audit.requests_per_second", 2)
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.initial_backoff_ms", 1000)
	v.SetDefault("retry.max_backoff_ms", 20000)
	v.SetDefault("circuit.failure_threshold", 5)
	v.SetDefault("circuit.reset_timeout_secs", 60)
	v.SetDefault("monitoring.failure_rate_threshold", 0.10)
	v.SetDefault("monitoring.fallback_rate_threshold", 0.25)
	v.SetDefault("monitoring.min_visibility_pct", 0)
	v.SetDefault("monitoring.cost_threshold_usd", 0)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings an audit run depends on.
func (c *Config) Validate() error {
	var errs []string

	switch c.Audit.Mode {
	case ModeStructured, ModeNatural:
	default:
		errs = append(errs, fmt.Sprintf("audit.mode must be %q or %q, got %q", ModeStructured, ModeNatural, c.Audit.Mode))
	}

	if len(c.Audit.Surfaces) == 0 {
		errs = append(errs, "audit.surfaces must name at least one surface")
	}
	for _, s := range c.Audit.Surfaces {
		if !slices.Contains(KnownSurfaces, s) {
			errs = append(errs, fmt.Sprintf("audit.surfaces: unknown surface %q", s))
			continue
		}
		if c.key(s) == "" {
			errs = append(errs, fmt.Sprintf("%s.key is required when %s is an audit surface", s, s))
		}
	}

	if c.Audit.BatchSize <= 0 {
		errs = append(errs, "audit.batch_size must be > 0")
	}
	if c.Audit.RequestsPerSecond < 0 {
		errs = append(errs, "audit.requests_per_second must be >= 0")
	}
	if t := c.LLM.Temperature; t != nil && (*t < 0 || *t > 2) {
		errs = append(errs, "llm.temperature must be between 0 and 2")
	}
	if r := c.Monitoring.FailureRateThreshold; r < 0 || r > 1 {
		errs = append(errs, "monitoring.failure_rate_threshold must be between 0 and 1")
	}
	if r := c.Monitoring.FallbackRateThreshold; r < 0 || r > 1 {
		errs = append(errs, "monitoring.fallback_rate_threshold must be between 0 and 1")
	}
	if p := c.LLM.TopP; p != nil && (*p <= 0 || *p > 1) {
		errs = append(errs, "llm.top_p must be in (0, 1]")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) key(surface string) string {
	switch surface {
	case "openai":
		return c.OpenAI.Key
	case "anthropic":
		return c.Anthropic.Key
	case "perplexity":
		return c.Perplexity.Key
	}
	return ""
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
