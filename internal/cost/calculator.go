// Package cost estimates the dollar cost of answer surface calls.
package cost

import "strings"

// Rates holds pricing for every answer surface.
type Rates struct {
	OpenAI     SurfaceRate `yaml:"openai" mapstructure:"openai"`
	Anthropic  SurfaceRate `yaml:"anthropic" mapstructure:"anthropic"`
	Perplexity SurfaceRate `yaml:"perplexity" mapstructure:"perplexity"`
}

// SurfaceRate is the pricing of one surface.
type SurfaceRate struct {
	// Models maps a model name (or a model name prefix) to its token rate.
	Models map[string]ModelRate `yaml:"models" mapstructure:"models"`
	// PerRequest is a flat fee charged on every call.
	PerRequest float64 `yaml:"per_request" mapstructure:"per_request"`
	// WebSearch is charged on calls that used native web search.
	WebSearch float64 `yaml:"web_search" mapstructure:"web_search"`
}

// ModelRate holds token pricing in dollars per million tokens.
type ModelRate struct {
	Input  float64 `yaml:"input" mapstructure:"input"`
	Output float64 `yaml:"output" mapstructure:"output"`
}

// Calculator computes call costs from a rate table.
type Calculator struct {
	rates Rates
}

// NewCalculator creates a Calculator with the given rates.
func NewCalculator(rates Rates) *Calculator {
	return &Calculator{rates: rates}
}

// Estimate returns the cost of one call. Unknown surfaces cost nothing and
// unknown models contribute no token cost.
func (c *Calculator) Estimate(surface, model string, input, output int64, webSearch bool) float64 {
	sr, ok := c.surface(surface)
	if !ok {
		return 0
	}

	total := sr.PerRequest
	if webSearch {
		total += sr.WebSearch
	}
	if rate, ok := sr.lookup(model); ok {
		total += (float64(input)/1e6)*rate.Input + (float64(output)/1e6)*rate.Output
	}
	return total
}

func (c *Calculator) surface(name string) (SurfaceRate, bool) {
	switch strings.ToLower(name) {
	case "openai":
		return c.rates.OpenAI, true
	case "anthropic":
		return c.rates.Anthropic, true
	case "perplexity":
		return c.rates.Perplexity, true
	default:
		return SurfaceRate{}, false
	}
}

// lookup finds the exact model, else the longest configured prefix so dated
// snapshots ("gpt-4o-2024-08-06") price like their family.
func (sr SurfaceRate) lookup(model string) (ModelRate, bool) {
	if rate, ok := sr.Models[model]; ok {
		return rate, true
	}
	var (
		best    ModelRate
		bestLen int
	)
	for name, rate := range sr.Models {
		if len(name) > bestLen && strings.HasPrefix(model, name) {
			best, bestLen = rate, len(name)
		}
	}
	return best, bestLen > 0
}

// DefaultRates returns list pricing for the default models of each surface.
func DefaultRates() Rates {
	return Rates{
		OpenAI: SurfaceRate{
			Models: map[string]ModelRate{
				"gpt-4o":      {Input: 2.50, Output: 10.00},
				"gpt-4o-mini": {Input: 0.15, Output: 0.60},
				"gpt-4.1":     {Input: 2.00, Output: 8.00},
			},
			WebSearch: 0.025,
		},
		Anthropic: SurfaceRate{
			Models: map[string]ModelRate{
				"claude-haiku-4-5-20251001":  {Input: 0.80, Output: 4.00},
				"claude-sonnet-4-5-20250929": {Input: 3.00, Output: 15.00},
				"claude-opus-4-6":            {Input: 15.00, Output: 75.00},
			},
			WebSearch: 0.01,
		},
		Perplexity: SurfaceRate{
			Models: map[string]ModelRate{
				"sonar":     {Input: 1.00, Output: 1.00},
				"sonar-pro": {Input: 3.00, Output: 15.00},
			},
			PerRequest: 0.005,
		},
	}
}

// Merge returns r overlaid with every rate set in o. Models in o replace
// models of the same name; zero fees in o keep the fees of r.
func (r Rates) Merge(o Rates) Rates {
	return Rates{
		OpenAI:     r.OpenAI.merge(o.OpenAI),
		Anthropic:  r.Anthropic.merge(o.Anthropic),
		Perplexity: r.Perplexity.merge(o.Perplexity),
	}
}

func (sr SurfaceRate) merge(o SurfaceRate) SurfaceRate {
	out := SurfaceRate{
		Models:     make(map[string]ModelRate, len(sr.Models)+len(o.Models)),
		PerRequest: sr.PerRequest,
		WebSearch:  sr.WebSearch,
	}
	for name, rate := range sr.Models {
		out.Models[name] = rate
	}
	for name, rate := range o.Models {
		out.Models[name] = rate
	}
	if o.PerRequest > 0 {
		out.PerRequest = o.PerRequest
	}
	if o.WebSearch > 0 {
		out.WebSearch = o.WebSearch
	}
	return out
}
