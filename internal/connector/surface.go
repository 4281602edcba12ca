// Package connector turns a query into an answer record by calling one AI
// answer surface, in either structured (single prompt, JSON answer) or
// natural (unprimed prose, then a separate analysis pass) mode.
package connector

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/geo-audit/internal/model"
)

// Surface names.
const (
	SurfaceOpenAI     = "openai"
	SurfaceAnthropic  = "anthropic"
	SurfacePerplexity = "perplexity"
)

var (
	// ErrNotJSON means the analyzer answered with no parseable JSON.
	ErrNotJSON = eris.New("analyzer response is not valid JSON")
	// ErrSchemaInvalid means the analyzer's JSON could not be coerced into a
	// valid extraction envelope.
	ErrSchemaInvalid = eris.New("analyzer response failed schema validation")
	// ErrNoContent means the surface returned an empty answer.
	ErrNoContent = eris.New("surface returned no content")
)

// Surface is one AI answer provider. Implementations translate a Request
// into the provider's API and normalize the reply, including any web
// search sources, into a Completion.
type Surface interface {
	Name() string
	SupportsWebSearch() bool
	Complete(ctx context.Context, req Request) (*Completion, error)
}

// Request is a provider-neutral single-turn completion request.
type Request struct {
	Model  string
	System string
	Prompt string
	// Schema asks for schema-constrained output where the surface supports it.
	Schema      *Schema
	WebSearch   bool
	MaxTokens   int64
	Temperature *float64
	TopP        *float64
	Seed        *int64
}

// Schema names a JSON Schema document for structured output.
type Schema struct {
	Name        string
	Description string
	Doc         map[string]any
}

// Completion is a normalized surface reply.
type Completion struct {
	Text          string
	Model         string
	InputTokens   int64
	OutputTokens  int64
	Sources       []model.SearchSource
	UsedWebSearch bool
	// Raw is the provider's own response value.
	Raw any
}

// sourceSet collects search sources in first-seen order, keyed by URL.
type sourceSet struct {
	list  []model.SearchSource
	index map[string]int
}

func (s *sourceSet) add(src model.SearchSource) {
	if src.URL == "" {
		return
	}
	if s.index == nil {
		s.index = make(map[string]int)
	}
	if i, ok := s.index[src.URL]; ok {
		cur := &s.list[i]
		if cur.Title == "" {
			cur.Title = src.Title
		}
		if cur.Snippet == "" {
			cur.Snippet = src.Snippet
		}
		return
	}
	s.index[src.URL] = len(s.list)
	s.list = append(s.list, src)
}

func (s *sourceSet) sources() []model.SearchSource {
	if s.list == nil {
		return []model.SearchSource{}
	}
	return s.list
}
