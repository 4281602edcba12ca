package connector

import (
	"context"

	"github.com/sells-group/geo-audit/internal/domains"
	"github.com/sells-group/geo-audit/internal/model"
	"github.com/sells-group/geo-audit/pkg/anthropic"
)

// anthropicSearchMaxUses caps server-side searches per message.
const anthropicSearchMaxUses = 5

// AnthropicSurface answers through the Messages API.
type AnthropicSurface struct {
	client anthropic.Client
}

// NewAnthropicSurface wraps an Anthropic client as a Surface.
func NewAnthropicSurface(client anthropic.Client) *AnthropicSurface {
	return &AnthropicSurface{client: client}
}

func (s *AnthropicSurface) Name() string { return SurfaceAnthropic }

func (s *AnthropicSurface) SupportsWebSearch() bool { return true }

// Complete sends a single user message. The Messages API has no response
// schema parameter, so req.Schema is expressed only through the prompt.
func (s *AnthropicSurface) Complete(ctx context.Context, req Request) (*Completion, error) {
	msg := anthropic.MessageRequest{
		Model:       req.Model,
		MaxTokens:   req.MaxTokens,
		System:      req.System,
		Messages:    []anthropic.Message{{Role: "user", Content: req.Prompt}},
		Temperature: req.Temperature,
		TopP:        req.TopP,
	}
	if req.WebSearch {
		msg.WebSearch = &anthropic.WebSearchTool{MaxUses: anthropicSearchMaxUses}
	}

	resp, err := s.client.CreateMessage(ctx, msg)
	if err != nil {
		return nil, err
	}

	var set sourceSet
	searched := false
	for _, b := range resp.Content {
		for _, r := range b.Results {
			searched = true
			set.add(model.SearchSource{
				URL:    r.URL,
				Title:  r.Title,
				Domain: domains.NormalizeDomain(r.URL),
			})
		}
		for _, c := range b.Citations {
			set.add(model.SearchSource{
				URL:     c.URL,
				Title:   c.Title,
				Domain:  domains.NormalizeDomain(c.URL),
				Snippet: c.CitedText,
			})
		}
	}

	return &Completion{
		Text:          resp.Text(),
		Model:         resp.Model,
		InputTokens:   resp.Usage.InputTokens,
		OutputTokens:  resp.Usage.OutputTokens,
		Sources:       set.sources(),
		UsedWebSearch: resp.Usage.WebSearchRequests > 0 || searched,
		Raw:           resp,
	}, nil
}
