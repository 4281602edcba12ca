package main

import (
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/geo-audit/internal/audit"
	"github.com/sells-group/geo-audit/internal/config"
	"github.com/sells-group/geo-audit/internal/connector"
	"github.com/sells-group/geo-audit/internal/cost"
	"github.com/sells-group/geo-audit/internal/resilience"
	"github.com/sells-group/geo-audit/pkg/anthropic"
	"github.com/sells-group/geo-audit/pkg/openai"
	"github.com/sells-group/geo-audit/pkg/perplexity"
)

// surfaceEnv holds the connectors for every configured surface and the
// breakers guarding them.
type surfaceEnv struct {
	Surfaces []audit.Surface
	Breakers *resilience.Breakers
	Costs    *cost.Tracker
}

// initSurfaces builds a provider client, surface adapter and both
// connectors for each name in c.Audit.Surfaces.
func initSurfaces(c *config.Config) (*surfaceEnv, error) {
	breakers := resilience.NewBreakers(resilience.FromCircuitConfig(c.Circuit.FailureThreshold, c.Circuit.ResetTimeoutSecs))
	retry := resilience.FromRetryConfig(c.Retry.MaxAttempts, c.Retry.InitialBackoffMs, c.Retry.MaxBackoffMs)
	costs := cost.NewCalculator(cost.DefaultRates().Merge(c.Pricing))

	env := &surfaceEnv{Breakers: breakers, Costs: cost.NewTracker()}
	for _, name := range c.Audit.Surfaces {
		s, model, maxTokens, err := newSurface(c, name)
		if err != nil {
			return nil, err
		}
		if maxTokens <= 0 {
			maxTokens = c.LLM.MaxTokens
		}

		opts := connector.Options{
			Model:       model,
			Temperature: c.LLM.Temperature,
			TopP:        c.LLM.TopP,
			Seed:        c.LLM.Seed,
			MaxTokens:   maxTokens,
			Timeout:     c.LLM.Timeout(),
			WebSearch:   c.LLM.WebSearch,
			Retry:       retry,
			Breaker:     breakers.Get(name),
			Costs:       costs,
			Tracker:     env.Costs,
		}
		env.Surfaces = append(env.Surfaces, audit.Surface{
			Name:       name,
			Structured: connector.NewConnector(s, opts),
			Natural:    connector.NewNaturalConnector(s, opts),
		})
		zap.L().Debug("surface ready", zap.String("surface", name), zap.String("model", model))
	}
	return env, nil
}

// newSurface returns the adapter for name with its model and any
// surface-specific max token override.
func newSurface(c *config.Config, name string) (connector.Surface, string, int64, error) {
	switch name {
	case connector.SurfaceOpenAI:
		client := openai.NewClient(c.OpenAI.Key,
			openai.WithBaseURL(c.OpenAI.BaseURL),
			openai.WithModel(c.OpenAI.Model),
		)
		return connector.NewOpenAISurface(client), c.OpenAI.Model, 0, nil
	case connector.SurfaceAnthropic:
		client := anthropic.NewClient(c.Anthropic.Key, anthropic.WithBaseURL(c.Anthropic.BaseURL))
		return connector.NewAnthropicSurface(client), c.Anthropic.Model, c.Anthropic.MaxTokens, nil
	case connector.SurfacePerplexity:
		client := perplexity.NewClient(c.Perplexity.Key,
			perplexity.WithBaseURL(c.Perplexity.BaseURL),
			perplexity.WithModel(c.Perplexity.Model),
		)
		return connector.NewPerplexitySurface(client), c.Perplexity.Model, 0, nil
	default:
		return nil, "", 0, eris.Errorf("unknown surface %q", name)
	}
}
