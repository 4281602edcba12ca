package model

import "github.com/invopop/jsonschema"

// QueryType classifies the intent behind an audit query.
type QueryType string

const (
	QueryBranded     QueryType = "branded"
	QueryCategory    QueryType = "category"
	QueryComparison  QueryType = "comparison"
	QueryLocal       QueryType = "local"
	QueryFAQ         QueryType = "faq"
	QueryVoiceSearch QueryType = "voice_search"
)

var queryTypes = []QueryType{
	QueryBranded, QueryCategory, QueryComparison, QueryLocal, QueryFAQ, QueryVoiceSearch,
}

// Valid reports whether t is one of the known query types.
func (t QueryType) Valid() bool {
	for _, known := range queryTypes {
		if t == known {
			return true
		}
	}
	return false
}

// JSONSchema restricts the type to its enum values.
func (QueryType) JSONSchema() *jsonschema.Schema {
	enum := make([]any, len(queryTypes))
	for i, t := range queryTypes {
		enum[i] = string(t)
	}
	return &jsonschema.Schema{Type: "string", Enum: enum}
}

// Query is one natural-language question sent to every audited surface.
// It is immutable input to the pipeline.
type Query struct {
	ID     string    `json:"id" yaml:"id"`
	Text   string    `json:"text" yaml:"text"`
	Type   QueryType `json:"type" yaml:"type"`
	Weight float64   `json:"weight" yaml:"weight"`
	Geo    string    `json:"geo,omitempty" yaml:"geo,omitempty"`
}
