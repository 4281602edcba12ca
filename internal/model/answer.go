package model

import "github.com/invopop/jsonschema"

// Flag marks a quality concern the model raised about its own answer.
type Flag string

const (
	FlagNoSources             Flag = "no_sources"
	FlagPossibleHallucination Flag = "possible_hallucination"
	FlagOutdatedInfo          Flag = "outdated_info"
	FlagNAPMismatch           Flag = "nap_mismatch"
	FlagConflictingPrices     Flag = "conflicting_prices"
)

// Flags lists every recognized flag in a stable order.
var Flags = []Flag{
	FlagNoSources, FlagPossibleHallucination, FlagOutdatedInfo, FlagNAPMismatch, FlagConflictingPrices,
}

// ParseFlag returns the flag named s, or false when s is not a recognized flag.
func ParseFlag(s string) (Flag, bool) {
	for _, f := range Flags {
		if string(f) == s {
			return f, true
		}
	}
	return "", false
}

// JSONSchema restricts the type to its enum values.
func (Flag) JSONSchema() *jsonschema.Schema {
	enum := make([]any, len(Flags))
	for i, f := range Flags {
		enum[i] = string(f)
	}
	return &jsonschema.Schema{Type: "string", Enum: enum}
}

// AnswerEntity is one brand or provider the model mentioned, in the model's
// stated order of prominence. Domain is empty when unknown.
type AnswerEntity struct {
	Name      string `json:"name" jsonschema:"minLength=1"`
	Domain    string `json:"domain"`
	Rationale string `json:"rationale"`
	Position  int    `json:"position" jsonschema:"minimum=1"`
}

// AnswerCitation is a link the model cited. EntityRef loosely ties the
// citation to an entity name.
type AnswerCitation struct {
	URL       string `json:"url" jsonschema:"minLength=1"`
	Domain    string `json:"domain"`
	EntityRef string `json:"entity_ref,omitempty"`
}

// Notes carries answer-level metadata.
type Notes struct {
	Flags []Flag `json:"flags"`
}

// AnswerBlock is the normalized structured record of one LLM answer.
// Position values follow the model's stated order; they are neither unique
// nor contiguous, and rank matching takes the first occurrence in array order.
type AnswerBlock struct {
	OrderedEntities []AnswerEntity   `json:"ordered_entities"`
	Citations       []AnswerCitation `json:"citations"`
	AnswerSummary   string           `json:"answer_summary"`
	Notes           Notes            `json:"notes"`
}

// FallbackSummary is the summary carried by FallbackAnswer.
const FallbackSummary = "No structured sources returned"

// FallbackAnswer returns the fixed answer substituted when a structured
// surface call fails for any reason. Each call returns a fresh value.
func FallbackAnswer() AnswerBlock {
	return AnswerBlock{
		OrderedEntities: []AnswerEntity{},
		Citations:       []AnswerCitation{},
		AnswerSummary:   FallbackSummary,
		Notes:           Notes{Flags: []Flag{FlagNoSources}},
	}
}

// HasFlag reports whether the block carries f.
func (a AnswerBlock) HasFlag(f Flag) bool {
	for _, got := range a.Notes.Flags {
		if got == f {
			return true
		}
	}
	return false
}
