package connector

import (
	"context"
	"regexp"
	"strings"

	"github.com/sells-group/geo-audit/internal/domains"
	"github.com/sells-group/geo-audit/internal/model"
	"github.com/sells-group/geo-audit/pkg/perplexity"
)

// Reasoning models prefix answers with a <think> block.
var thinkBlock = regexp.MustCompile(`(?s)<think>.*?</think>`)

// PerplexitySurface answers through Perplexity's chat completions, which
// search the web unless told not to.
type PerplexitySurface struct {
	client perplexity.Client
}

// NewPerplexitySurface wraps a Perplexity client as a Surface.
func NewPerplexitySurface(client perplexity.Client) *PerplexitySurface {
	return &PerplexitySurface{client: client}
}

func (s *PerplexitySurface) Name() string { return SurfacePerplexity }

func (s *PerplexitySurface) SupportsWebSearch() bool { return true }

func (s *PerplexitySurface) Complete(ctx context.Context, req Request) (*Completion, error) {
	var msgs []perplexity.Message
	if req.System != "" {
		msgs = append(msgs, perplexity.Message{Role: "system", Content: req.System})
	}
	msgs = append(msgs, perplexity.Message{Role: "user", Content: req.Prompt})

	chat := perplexity.ChatCompletionRequest{
		Model:         req.Model,
		Messages:      msgs,
		Temperature:   req.Temperature,
		TopP:          req.TopP,
		DisableSearch: !req.WebSearch,
	}
	if req.MaxTokens > 0 {
		n := int(req.MaxTokens)
		chat.MaxTokens = &n
	}
	if req.Schema != nil {
		chat.ResponseFormat = perplexity.JSONSchemaFormat(req.Schema.Doc)
	}

	resp, err := s.client.ChatCompletion(ctx, chat)
	if err != nil {
		return nil, err
	}

	var set sourceSet
	for _, r := range resp.SearchResults {
		set.add(model.SearchSource{
			URL:     r.URL,
			Title:   r.Title,
			Domain:  domains.NormalizeDomain(r.URL),
			Snippet: r.Snippet,
		})
	}
	for _, u := range resp.Citations {
		set.add(model.SearchSource{URL: u, Domain: domains.NormalizeDomain(u)})
	}
	sources := set.sources()

	return &Completion{
		Text:          strings.TrimSpace(thinkBlock.ReplaceAllString(resp.Content(), "")),
		Model:         resp.Model,
		InputTokens:   int64(resp.Usage.PromptTokens),
		OutputTokens:  int64(resp.Usage.CompletionTokens),
		Sources:       sources,
		UsedWebSearch: len(sources) > 0,
		Raw:           resp,
	}, nil
}
