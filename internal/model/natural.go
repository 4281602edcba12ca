package model

import "github.com/invopop/jsonschema"

// SearchSource is a web-search result a surface consulted while answering,
// normalized from the provider's own citation or annotation format.
type SearchSource struct {
	URL     string `json:"url"`
	Title   string `json:"title,omitempty"`
	Domain  string `json:"domain"`
	Snippet string `json:"snippet,omitempty"`
}

// NaturalResponse is the phase-one output of natural mode: the model's
// unprimed prose answer. It is only ever used as analyzer input.
type NaturalResponse struct {
	Text          string         `json:"text"`
	Model         string         `json:"model"`
	TokensUsed    int64          `json:"tokens_used"`
	UsedWebSearch bool           `json:"used_web_search"`
	SearchSources []SearchSource `json:"search_sources"`
}

// Prominence is the qualitative strength of a mention.
type Prominence string

const (
	ProminencePrimary   Prominence = "primary"
	ProminenceSecondary Prominence = "secondary"
	ProminenceMinor     Prominence = "minor"
)

var prominences = []Prominence{ProminencePrimary, ProminenceSecondary, ProminenceMinor}

// ParseProminence returns the prominence named s, or false when unknown.
func ParseProminence(s string) (Prominence, bool) {
	for _, p := range prominences {
		if string(p) == s {
			return p, true
		}
	}
	return "", false
}

// JSONSchema restricts the type to its enum values.
func (Prominence) JSONSchema() *jsonschema.Schema {
	return &jsonschema.Schema{Type: "string", Enum: []any{
		string(ProminencePrimary), string(ProminenceSecondary), string(ProminenceMinor),
	}}
}

// CitationType says whether a citation appeared verbatim in the answer or was
// inferred by the analyzer.
type CitationType string

const (
	CitationExplicit CitationType = "explicit"
	CitationInferred CitationType = "inferred"
)

// JSONSchema restricts the type to its enum values.
func (CitationType) JSONSchema() *jsonschema.Schema {
	return &jsonschema.Schema{Type: "string", Enum: []any{string(CitationExplicit), string(CitationInferred)}}
}

// NaturalEntity is the analyzer's richer per-entity record.
type NaturalEntity struct {
	Name              string     `json:"name" jsonschema:"minLength=1"`
	Domain            string     `json:"domain"`
	Position          int        `json:"position" jsonschema:"minimum=1"`
	Prominence        Prominence `json:"prominence"`
	MentionCount      int        `json:"mention_count" jsonschema:"minimum=0"`
	FirstMentionQuote string     `json:"first_mention_quote"`
}

// NaturalCitation is a citation found in a natural-mode answer.
type NaturalCitation struct {
	URL          string       `json:"url" jsonschema:"minLength=1"`
	Domain       string       `json:"domain"`
	CitationType CitationType `json:"citation_type"`
}

// BrandAnalysis describes how the tracked brand showed up in the answer.
// Nil fields mean the analyzer could not tell.
type BrandAnalysis struct {
	Mentioned       bool        `json:"mentioned"`
	Position        *int        `json:"position" jsonschema:"nullable,minimum=1"`
	LocationStated  *string     `json:"location_stated" jsonschema:"nullable"`
	LocationCorrect *bool       `json:"location_correct" jsonschema:"nullable"`
	Prominence      *Prominence `json:"prominence" jsonschema:"nullable"`
}

// NaturalAnalysis is the analyzer's detailed reading of a natural answer.
type NaturalAnalysis struct {
	Entities             []NaturalEntity   `json:"entities"`
	Citations            []NaturalCitation `json:"citations"`
	BrandAnalysis        BrandAnalysis     `json:"brand_analysis"`
	ExtractionConfidence float64           `json:"extraction_confidence" jsonschema:"minimum=0,maximum=100"`
}

// NaturalExtractionEnvelope is the two-phase output. AnswerBlock must be
// valid on its own.
type NaturalExtractionEnvelope struct {
	AnswerBlock AnswerBlock     `json:"answer_block"`
	Analysis    NaturalAnalysis `json:"analysis"`
}
