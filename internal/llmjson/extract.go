// Package llmjson recovers schema-conforming answer records from raw LLM
// output. Every function here is total: failure is reported as a nil or
// false result, never a panic.
package llmjson

import (
	"encoding/json"
	"strings"
)

// Step identifies which rung of the extraction ladder produced a value.
type Step int

const (
	StepNone Step = iota
	StepDirect
	StepFenced
	StepBraces
	StepTrailing
)

func (s Step) String() string {
	switch s {
	case StepDirect:
		return "direct"
	case StepFenced:
		return "fenced"
	case StepBraces:
		return "braces"
	case StepTrailing:
		return "trailing"
	default:
		return "none"
	}
}

// Extract decodes the JSON value embedded in text. It returns false when no
// rung of the ladder yields a non-null value.
func Extract(text string) (any, bool) {
	v, step := ExtractStep(text)
	return v, step != StepNone
}

// ExtractStep is Extract that also reports the rung that succeeded. The
// ladder is: the whole text, the text with markdown fences stripped, the
// span from the first '{' to the last '}', and finally the trailing object
// that starts at a later '{' and ends at the last '}'.
func ExtractStep(text string) (any, Step) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, StepNone
	}

	if v, ok := decode(text); ok {
		return v, StepDirect
	}

	if stripped, ok := stripFences(text); ok {
		if v, ok := decode(stripped); ok {
			return v, StepFenced
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, StepNone
	}
	if v, ok := decode(text[start : end+1]); ok {
		return v, StepBraces
	}

	// Prose before the answer sometimes carries its own braces; walk the
	// later openings until one parses through to the final '}'.
	for i := start + 1; i < end; i++ {
		next := strings.IndexByte(text[i:end], '{')
		if next < 0 {
			break
		}
		i += next
		if v, ok := decode(text[i : end+1]); ok {
			return v, StepTrailing
		}
	}

	return nil, StepNone
}

// stripFences removes a leading ```json or ``` fence and a trailing ```.
func stripFences(text string) (string, bool) {
	switch {
	case strings.HasPrefix(text, "```json"):
		text = strings.TrimPrefix(text, "```json")
	case strings.HasPrefix(text, "```"):
		text = strings.TrimPrefix(text, "```")
	default:
		return "", false
	}
	text = strings.TrimSpace(text)
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text), true
}

func decode(s string) (any, bool) {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, false
	}
	if v == nil {
		return nil, false
	}
	return v, true
}
