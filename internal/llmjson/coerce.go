package llmjson

import (
	"encoding/json"
	"math"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/geo-audit/internal/domains"
	"github.com/sells-group/geo-audit/internal/model"
)

// DefaultRationale fills entities that arrive without a rationale.
const DefaultRationale = "No rationale provided"

// Alternate keys some models use for the entity list, in lookup order.
var entityKeys = []string{"ordered_entities", "results", "providers"}

// ParseAnswerBlock extracts and coerces an answer block from raw model text.
func ParseAnswerBlock(text string) *model.AnswerBlock {
	v, step := ExtractStep(text)
	if step == StepNone {
		return nil
	}
	zap.L().Debug("llmjson: extracted answer block", zap.Stringer("step", step))
	return CoerceAnswerBlock(v)
}

// CoerceAnswerBlock turns a decoded JSON value into a valid answer block.
// Every value is normalized item by item, strictly valid input included,
// and the result is validated against the strict schema. It returns nil
// when no usable answer (at least one entity or a non-empty summary) can be
// recovered.
func CoerceAnswerBlock(v any) *model.AnswerBlock {
	obj, ok := v.(map[string]any)
	if !ok {
		return nil
	}

	block := &model.AnswerBlock{
		OrderedEntities: coerceEntities(firstArray(obj, entityKeys...)),
		Citations:       coerceCitations(firstArray(obj, "citations")),
		AnswerSummary:   strings.TrimSpace(firstString(obj, "answer_summary", "summary")),
		Notes:           model.Notes{Flags: coerceFlags(obj)},
	}
	if !usable(block) || !revalidate(block, ValidateAnswerBlock) {
		return nil
	}
	return block
}

// CoerceEnvelope is CoerceAnswerBlock for the natural extraction envelope.
// The inner answer block is coerced on its own terms and must be usable.
func CoerceEnvelope(v any) *model.NaturalExtractionEnvelope {
	obj, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	block := CoerceAnswerBlock(obj["answer_block"])
	if block == nil {
		return nil
	}
	rawAnalysis, ok := obj["analysis"].(map[string]any)
	if !ok {
		return nil
	}

	env := &model.NaturalExtractionEnvelope{
		AnswerBlock: *block,
		Analysis:    coerceAnalysis(rawAnalysis),
	}
	if !revalidate(env, ValidateEnvelope) {
		return nil
	}
	return env
}

func usable(b *model.AnswerBlock) bool {
	return len(b.OrderedEntities) > 0 || strings.TrimSpace(b.AnswerSummary) != ""
}

// revalidate round-trips a coerced value through JSON and checks it against
// the strict schema again.
func revalidate(v any, check func(any) error) bool {
	raw, err := json.Marshal(v)
	if err != nil {
		return false
	}
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return false
	}
	return check(decoded) == nil
}

func coerceEntities(items []any) []model.AnswerEntity {
	out := make([]model.AnswerEntity, 0, len(items))
	for i, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		name, domain, ok := entityIdentity(m)
		if !ok {
			continue
		}
		rationale := strings.TrimSpace(stringValue(m["rationale"]))
		if rationale == "" {
			rationale = DefaultRationale
		}
		out = append(out, model.AnswerEntity{
			Name:      name,
			Domain:    domain,
			Rationale: rationale,
			Position:  positionOr(m["position"], i+1),
		})
	}
	return out
}

// entityIdentity returns the trimmed name and domain of an entity object.
// A missing or null domain is legal and becomes empty; a domain of any
// other non-string type marks the entity as malformed.
func entityIdentity(m map[string]any) (name, domain string, ok bool) {
	name = strings.TrimSpace(stringValue(m["name"]))
	if name == "" {
		return "", "", false
	}
	switch d := m["domain"].(type) {
	case nil:
	case string:
		domain = strings.TrimSpace(d)
	default:
		return "", "", false
	}
	return name, domain, true
}

func coerceCitations(items []any) []model.AnswerCitation {
	out := make([]model.AnswerCitation, 0, len(items))
	for _, item := range items {
		url, domain, ref, ok := citationFields(item)
		if !ok {
			continue
		}
		out = append(out, model.AnswerCitation{URL: url, Domain: domain, EntityRef: ref})
	}
	return out
}

// citationFields accepts a citation object or a bare URL string.
func citationFields(item any) (url, domain, ref string, ok bool) {
	switch c := item.(type) {
	case string:
		url = strings.TrimSpace(c)
	case map[string]any:
		url = strings.TrimSpace(stringValue(c["url"]))
		domain = strings.TrimSpace(stringValue(c["domain"]))
		ref = strings.TrimSpace(stringValue(c["entity_ref"]))
	default:
		return "", "", "", false
	}
	if url == "" {
		return "", "", "", false
	}
	if domain == "" {
		domain = domains.NormalizeDomain(url)
	}
	return url, domain, ref, true
}

// coerceFlags reads notes.flags, falling back to a top-level flags list, and
// keeps only known flags in first-seen order.
func coerceFlags(obj map[string]any) []model.Flag {
	var raw []any
	if notes, ok := obj["notes"].(map[string]any); ok {
		raw, _ = notes["flags"].([]any)
	}
	if raw == nil {
		raw, _ = obj["flags"].([]any)
	}

	out := make([]model.Flag, 0, len(raw))
	seen := make(map[model.Flag]bool, len(raw))
	for _, r := range raw {
		s, ok := r.(string)
		if !ok {
			continue
		}
		f, ok := model.ParseFlag(strings.TrimSpace(s))
		if !ok || seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	return out
}

func coerceAnalysis(m map[string]any) model.NaturalAnalysis {
	analysis := model.NaturalAnalysis{
		Entities:  make([]model.NaturalEntity, 0),
		Citations: make([]model.NaturalCitation, 0),
	}

	entities, _ := m["entities"].([]any)
	for i, item := range entities {
		em, ok := item.(map[string]any)
		if !ok {
			continue
		}
		name, domain, ok := entityIdentity(em)
		if !ok {
			continue
		}
		prominence, ok := model.ParseProminence(stringValue(em["prominence"]))
		if !ok {
			prominence = model.ProminenceSecondary
		}
		mentions := 1
		if n, ok := number(em["mention_count"]); ok && n >= 0 && n <= math.MaxInt32 {
			mentions = int(n)
		}
		analysis.Entities = append(analysis.Entities, model.NaturalEntity{
			Name:              name,
			Domain:            domain,
			Position:          positionOr(em["position"], i+1),
			Prominence:        prominence,
			MentionCount:      mentions,
			FirstMentionQuote: stringValue(em["first_mention_quote"]),
		})
	}

	citations, _ := m["citations"].([]any)
	for _, item := range citations {
		url, domain, _, ok := citationFields(item)
		if !ok {
			continue
		}
		ct := model.CitationInferred
		if cm, ok := item.(map[string]any); ok && stringValue(cm["citation_type"]) == string(model.CitationExplicit) {
			ct = model.CitationExplicit
		}
		analysis.Citations = append(analysis.Citations, model.NaturalCitation{URL: url, Domain: domain, CitationType: ct})
	}

	if ba, ok := m["brand_analysis"].(map[string]any); ok {
		analysis.BrandAnalysis = coerceBrandAnalysis(ba)
	}

	if n, ok := number(m["extraction_confidence"]); ok {
		analysis.ExtractionConfidence = math.Max(0, math.Min(100, n))
	}
	return analysis
}

func coerceBrandAnalysis(m map[string]any) model.BrandAnalysis {
	var ba model.BrandAnalysis
	ba.Mentioned, _ = m["mentioned"].(bool)
	if n, ok := number(m["position"]); ok && n >= 1 && n == math.Trunc(n) {
		p := int(n)
		ba.Position = &p
	}
	if s, ok := m["location_stated"].(string); ok {
		ba.LocationStated = &s
	}
	if b, ok := m["location_correct"].(bool); ok {
		ba.LocationCorrect = &b
	}
	if p, ok := model.ParseProminence(stringValue(m["prominence"])); ok {
		ba.Prominence = &p
	}
	return ba
}

func firstArray(obj map[string]any, keys ...string) []any {
	for _, k := range keys {
		if arr, ok := obj[k].([]any); ok {
			return arr
		}
	}
	return nil
}

func firstString(obj map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := obj[k].(string); ok && strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}

func stringValue(v any) string {
	s, _ := v.(string)
	return s
}

// positionOr returns v as a 1-based position, or def when v is not a
// positive whole number.
func positionOr(v any, def int) int {
	n, ok := number(v)
	if !ok || n < 1 || n != math.Trunc(n) || n > math.MaxInt32 {
		return def
	}
	return int(n)
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, !math.IsNaN(n) && !math.IsInf(n, 0)
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
