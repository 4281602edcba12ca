package connector

import (
	"context"

	"github.com/sells-group/geo-audit/internal/domains"
	"github.com/sells-group/geo-audit/internal/model"
	"github.com/sells-group/geo-audit/pkg/openai"
)

// OpenAISurface answers through Chat Completions, or through the Responses
// API when web search is requested.
type OpenAISurface struct {
	client openai.Client
}

// NewOpenAISurface wraps an OpenAI client as a Surface.
func NewOpenAISurface(client openai.Client) *OpenAISurface {
	return &OpenAISurface{client: client}
}

func (s *OpenAISurface) Name() string { return SurfaceOpenAI }

func (s *OpenAISurface) SupportsWebSearch() bool { return true }

func (s *OpenAISurface) Complete(ctx context.Context, req Request) (*Completion, error) {
	if req.WebSearch {
		return s.webSearch(ctx, req)
	}

	chat := openai.ChatRequest{
		Model:       req.Model,
		System:      req.System,
		Prompt:      req.Prompt,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		Seed:        req.Seed,
		MaxTokens:   req.MaxTokens,
	}
	if req.Schema != nil {
		chat.Schema = &openai.JSONSchema{
			Name:        req.Schema.Name,
			Description: req.Schema.Description,
			Schema:      req.Schema.Doc,
		}
	}

	resp, err := s.client.ChatCompletion(ctx, chat)
	if err != nil {
		return nil, err
	}
	return &Completion{
		Text:         resp.Content,
		Model:        resp.Model,
		InputTokens:  resp.InputTokens,
		OutputTokens: resp.OutputTokens,
		Sources:      []model.SearchSource{},
		Raw:          resp,
	}, nil
}

// webSearch uses the Responses API, which does not combine the search tool
// with a response schema; the prompt carries the JSON instructions instead.
func (s *OpenAISurface) webSearch(ctx context.Context, req Request) (*Completion, error) {
	resp, err := s.client.WebSearch(ctx, openai.WebSearchRequest{
		Model:        req.Model,
		Instructions: req.System,
		Input:        req.Prompt,
		Temperature:  req.Temperature,
		TopP:         req.TopP,
		MaxTokens:    req.MaxTokens,
	})
	if err != nil {
		return nil, err
	}

	var set sourceSet
	for _, c := range resp.Citations() {
		set.add(model.SearchSource{
			URL:    c.URL,
			Title:  c.Title,
			Domain: domains.NormalizeDomain(c.URL),
		})
	}
	sources := set.sources()

	return &Completion{
		Text:          resp.Text(),
		Model:         resp.Model,
		InputTokens:   resp.Usage.InputTokens,
		OutputTokens:  resp.Usage.OutputTokens,
		Sources:       sources,
		UsedWebSearch: resp.SearchCalls() > 0 || len(sources) > 0,
		Raw:           resp,
	}, nil
}
