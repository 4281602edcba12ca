package connector

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/geo-audit/internal/cost"
	"github.com/sells-group/geo-audit/internal/resilience"
)

// DefaultTimeout bounds a single surface call, retries included.
const DefaultTimeout = 3 * time.Minute

// DefaultMaxTokens is used when Options.MaxTokens is unset.
const DefaultMaxTokens = 2048

// Options are the per-surface call settings, populated by the config layer.
type Options struct {
	Model       string
	Temperature *float64
	TopP        *float64
	Seed        *int64
	MaxTokens   int64
	Timeout     time.Duration
	// WebSearch enables native web search on surfaces that support it.
	WebSearch bool

	Retry   resilience.RetryConfig
	Breaker *resilience.CircuitBreaker
	Costs   *cost.Calculator
	// Tracker, when set, accumulates estimated costs across calls.
	Tracker *cost.Tracker
}

func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.MaxTokens <= 0 {
		o.MaxTokens = DefaultMaxTokens
	}
	return o
}

// caller runs surface calls under the shared timeout, retry, breaker and
// cost-logging policy.
type caller struct {
	surface Surface
	opts    Options
}

func newCaller(s Surface, opts Options) caller {
	return caller{surface: s, opts: opts.withDefaults()}
}

func (c caller) name() string { return c.surface.Name() }

// complete sends req with the connector options applied.
func (c caller) complete(ctx context.Context, op string, req Request) (*Completion, error) {
	req.Model = c.opts.Model
	req.MaxTokens = c.opts.MaxTokens
	req.Temperature = c.opts.Temperature
	req.TopP = c.opts.TopP
	req.Seed = c.opts.Seed

	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	retry := c.opts.Retry
	if retry.OnRetry == nil {
		retry.OnRetry = resilience.RetryLogger(c.name(), op)
	}

	comp, err := resilience.Call(ctx, retry, c.opts.Breaker, func(ctx context.Context) (*Completion, error) {
		return c.surface.Complete(ctx, req)
	})
	if err != nil {
		return nil, eris.Wrapf(err, "connector: %s %s", c.name(), op)
	}

	c.logCost(op, comp)
	return comp, nil
}

// completeSearching tries req with web search when enabled and supported,
// then falls back to a plain completion if the search call fails.
func (c caller) completeSearching(ctx context.Context, op string, req Request) (*Completion, error) {
	if !c.opts.WebSearch || !c.surface.SupportsWebSearch() {
		return c.complete(ctx, op, req)
	}

	req.WebSearch = true
	comp, err := c.complete(ctx, op+"_web_search", req)
	if err == nil {
		return comp, nil
	}
	if ctx.Err() != nil {
		return nil, err
	}

	zap.L().Warn("connector: web search failed, retrying without it",
		zap.String("surface", c.name()),
		zap.String("operation", op),
		zap.Error(err),
	)
	req.WebSearch = false
	comp, err = c.complete(ctx, op, req)
	if err != nil {
		return nil, err
	}
	comp.UsedWebSearch = false
	return comp, nil
}

func (c caller) logCost(op string, comp *Completion) {
	fields := []zap.Field{
		zap.String("surface", c.name()),
		zap.String("operation", op),
		zap.String("model", comp.Model),
		zap.Int64("input_tokens", comp.InputTokens),
		zap.Int64("output_tokens", comp.OutputTokens),
		zap.Bool("web_search", comp.UsedWebSearch),
	}
	if c.opts.Costs != nil {
		usd := c.opts.Costs.Estimate(c.name(), comp.Model, comp.InputTokens, comp.OutputTokens, comp.UsedWebSearch)
		fields = append(fields, zap.Float64("estimated_cost_usd", usd))
		if c.opts.Tracker != nil {
			c.opts.Tracker.Record(c.name(), comp.InputTokens, comp.OutputTokens, usd)
		}
	}
	zap.L().Info("cost attribution", fields...)
}
