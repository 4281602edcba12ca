package llmjson

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/geo-audit/internal/model"
)

func mustExtract(t *testing.T, text string) any {
	t.Helper()
	v, ok := Extract(text)
	require.True(t, ok, "extract %q", text)
	return v
}

func TestCoerceAnswerBlock_StrictPassThrough(t *testing.T) {
	block := CoerceAnswerBlock(validBlock())
	require.NotNil(t, block)
	require.Len(t, block.OrderedEntities, 1)
	assert.Equal(t, "Acme", block.OrderedEntities[0].Name)
	assert.Equal(t, 1, block.OrderedEntities[0].Position)
	assert.Equal(t, "Acme is a good choice.", block.AnswerSummary)
	assert.Empty(t, block.Notes.Flags)
}

func TestCoerceAnswerBlock_DropsMalformedEntities(t *testing.T) {
	v := mustExtract(t, `{
		"ordered_entities": [
			{"domain": "noname.com"},
			{"name": "", "domain": "blank.com"},
			{"name": "Bad Domain", "domain": 42},
			{"name": "Good One", "domain": "good.com", "rationale": "solid", "position": 3},
			{"name": "No Domain"},
			"just a string"
		],
		"citations": [],
		"answer_summary": "Summary"
	}`)

	block := CoerceAnswerBlock(v)
	require.NotNil(t, block)
	require.Len(t, block.OrderedEntities, 2)

	assert.Equal(t, model.AnswerEntity{Name: "Good One", Domain: "good.com", Rationale: "solid", Position: 3}, block.OrderedEntities[0])
	assert.Equal(t, model.AnswerEntity{Name: "No Domain", Domain: "", Rationale: DefaultRationale, Position: 5}, block.OrderedEntities[1])
}

func TestCoerceAnswerBlock_AlternateKeys(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"results", `{"results":[{"name":"Acme"}],"summary":"s"}`},
		{"providers", `{"providers":[{"name":"Acme"}],"summary":"s"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			block := CoerceAnswerBlock(mustExtract(t, tt.text))
			require.NotNil(t, block)
			require.Len(t, block.OrderedEntities, 1)
			assert.Equal(t, "Acme", block.OrderedEntities[0].Name)
			assert.Equal(t, 1, block.OrderedEntities[0].Position)
			assert.Equal(t, "s", block.AnswerSummary)
			assert.NotNil(t, block.Citations)
			assert.NotNil(t, block.Notes.Flags)
		})
	}
}

func TestCoerceAnswerBlock_OrderedEntitiesWinOverResults(t *testing.T) {
	block := CoerceAnswerBlock(mustExtract(t, `{"ordered_entities":[{"name":"First"}],"results":[{"name":"Second"}]}`))
	require.NotNil(t, block)
	require.Len(t, block.OrderedEntities, 1)
	assert.Equal(t, "First", block.OrderedEntities[0].Name)
}

func TestCoerceAnswerBlock_FiltersUnknownFlags(t *testing.T) {
	block := CoerceAnswerBlock(mustExtract(t, `{
		"ordered_entities": [{"name": "Acme", "domain": "acme.com"}],
		"answer_summary": "ok",
		"notes": {"flags": ["outdated_info", "totally_invented", 7, "outdated_info", "no_sources"]}
	}`))
	require.NotNil(t, block)
	assert.Equal(t, []model.Flag{model.FlagOutdatedInfo, model.FlagNoSources}, block.Notes.Flags)
}

func TestCoerceAnswerBlock_TopLevelFlags(t *testing.T) {
	block := CoerceAnswerBlock(mustExtract(t, `{"answer_summary":"ok","flags":["possible_hallucination"]}`))
	require.NotNil(t, block)
	assert.Equal(t, []model.Flag{model.FlagPossibleHallucination}, block.Notes.Flags)
}

func TestCoerceAnswerBlock_Citations(t *testing.T) {
	block := CoerceAnswerBlock(mustExtract(t, `{
		"answer_summary": "ok",
		"citations": [
			"https://www.acme.com/page",
			{"url": "https://other.org/x", "entity_ref": "Other"},
			{"url": "https://given.net", "domain": "given.net"},
			{"domain": "nourl.com"},
			{"url": ""},
			12
		]
	}`))
	require.NotNil(t, block)
	require.Len(t, block.Citations, 3)
	assert.Equal(t, model.AnswerCitation{URL: "https://www.acme.com/page", Domain: "acme.com"}, block.Citations[0])
	assert.Equal(t, model.AnswerCitation{URL: "https://other.org/x", Domain: "other.org", EntityRef: "Other"}, block.Citations[1])
	assert.Equal(t, "given.net", block.Citations[2].Domain)
}

func TestCoerceAnswerBlock_InvalidPositionUsesIndex(t *testing.T) {
	block := CoerceAnswerBlock(mustExtract(t, `{"ordered_entities":[
		{"name":"A","position":0},
		{"name":"B","position":"2"},
		{"name":"C","position":1.5},
		{"name":"D","position":7}
	]}`))
	require.NotNil(t, block)
	require.Len(t, block.OrderedEntities, 4)
	got := []int{}
	for _, e := range block.OrderedEntities {
		got = append(got, e.Position)
	}
	assert.Equal(t, []int{1, 2, 3, 7}, got)
}

func TestCoerceAnswerBlock_Unusable(t *testing.T) {
	tests := []struct {
		name string
		v    any
	}{
		{"nil", nil},
		{"string", "hello"},
		{"array", []any{map[string]any{"name": "A"}}},
		{"empty object", map[string]any{}},
		{"only nameless entities", map[string]any{"ordered_entities": []any{map[string]any{"domain": "a.com"}}}},
		{"blank summary", map[string]any{"answer_summary": "   "}},
		{"strictly valid but empty", map[string]any{
			"ordered_entities": []any{},
			"citations":        []any{},
			"answer_summary":   "",
			"notes":            map[string]any{"flags": []any{}},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Nil(t, CoerceAnswerBlock(tt.v))
		})
	}
}

func TestParseAnswerBlock(t *testing.T) {
	block := ParseAnswerBlock("Sure!\n```json\n{\"results\":[{\"name\":\"Acme\",\"domain\":\"acme.com\"}],\"summary\":\"Acme leads\"}\n```")
	require.NotNil(t, block)
	assert.Equal(t, "acme.com", block.OrderedEntities[0].Domain)

	assert.Nil(t, ParseAnswerBlock("no json here"))
}

func TestCoerceAnswerBlock_Deterministic(t *testing.T) {
	text := `{"results":[{"name":"A"},{"name":"B","domain":"b.com"}],"citations":["https://b.com"],"summary":"x","flags":["nap_mismatch"]}`
	first := CoerceAnswerBlock(mustExtract(t, text))
	second := CoerceAnswerBlock(mustExtract(t, text))
	assert.Equal(t, first, second)
}

const envelopeText = `Here is my analysis:
{
  "answer_block": {
    "ordered_entities": [
      {"name": "Acme Apartments", "domain": "acme.com", "rationale": "named first", "position": 1},
      {"name": "Rival Homes", "domain": "rival.com", "rationale": "also named", "position": 2}
    ],
    "citations": [{"url": "https://acme.com", "domain": "acme.com"}],
    "answer_summary": "Acme Apartments is recommended.",
    "notes": {"flags": []}
  },
  "analysis": {
    "entities": [
      {"name": "Acme Apartments", "domain": "acme.com", "position": 1, "prominence": "primary", "mention_count": 3, "first_mention_quote": "Acme Apartments offers"},
      {"name": "Rival Homes", "position": 2, "prominence": "huge", "mention_count": -2}
    ],
    "citations": [
      {"url": "https://acme.com", "citation_type": "explicit"},
      {"url": "https://rival.com/x", "citation_type": "guessed"}
    ],
    "brand_analysis": {"mentioned": true, "position": 1, "location_stated": "Austin, TX", "prominence": "primary"},
    "extraction_confidence": 140
  }
}`

func TestCoerceEnvelope_Lenient(t *testing.T) {
	env := CoerceEnvelope(mustExtract(t, envelopeText))
	require.NotNil(t, env)

	assert.Len(t, env.AnswerBlock.OrderedEntities, 2)

	require.Len(t, env.Analysis.Entities, 2)
	assert.Equal(t, model.ProminencePrimary, env.Analysis.Entities[0].Prominence)
	assert.Equal(t, 3, env.Analysis.Entities[0].MentionCount)
	assert.Equal(t, model.ProminenceSecondary, env.Analysis.Entities[1].Prominence)
	assert.Equal(t, 1, env.Analysis.Entities[1].MentionCount)
	assert.Equal(t, "", env.Analysis.Entities[1].Domain)

	require.Len(t, env.Analysis.Citations, 2)
	assert.Equal(t, model.CitationExplicit, env.Analysis.Citations[0].CitationType)
	assert.Equal(t, "acme.com", env.Analysis.Citations[0].Domain)
	assert.Equal(t, model.CitationInferred, env.Analysis.Citations[1].CitationType)

	ba := env.Analysis.BrandAnalysis
	assert.True(t, ba.Mentioned)
	require.NotNil(t, ba.Position)
	assert.Equal(t, 1, *ba.Position)
	require.NotNil(t, ba.LocationStated)
	assert.Equal(t, "Austin, TX", *ba.LocationStated)
	assert.Nil(t, ba.LocationCorrect)
	require.NotNil(t, ba.Prominence)
	assert.Equal(t, model.ProminencePrimary, *ba.Prominence)

	assert.Equal(t, 100.0, env.Analysis.ExtractionConfidence)
}

func TestCoerceEnvelope_StrictPassThrough(t *testing.T) {
	v := map[string]any{
		"answer_block": validBlock(),
		"analysis": map[string]any{
			"entities":  []any{},
			"citations": []any{},
			"brand_analysis": map[string]any{
				"mentioned":        false,
				"position":         nil,
				"location_stated":  nil,
				"location_correct": nil,
				"prominence":       nil,
			},
			"extraction_confidence": float64(80),
		},
	}
	require.NoError(t, ValidateEnvelope(v))

	env := CoerceEnvelope(v)
	require.NotNil(t, env)
	assert.False(t, env.Analysis.BrandAnalysis.Mentioned)
	assert.Nil(t, env.Analysis.BrandAnalysis.Position)
	assert.Equal(t, 80.0, env.Analysis.ExtractionConfidence)
}

func TestCoerceEnvelope_Rejects(t *testing.T) {
	tests := []struct {
		name string
		v    any
	}{
		{"not object", "x"},
		{"missing answer block", map[string]any{"analysis": map[string]any{}}},
		{"unusable answer block", map[string]any{"answer_block": map[string]any{}, "analysis": map[string]any{}}},
		{"missing analysis", map[string]any{"answer_block": validBlock()}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Nil(t, CoerceEnvelope(tt.v))
			assert.Error(t, ValidateEnvelope(tt.v))
		})
	}
}

func TestCoerceAnswerBlock_NormalizesStrictlyValidInput(t *testing.T) {
	strict := map[string]any{
		"ordered_entities": []any{
			map[string]any{"name": "   ", "domain": "blank.com", "rationale": "r", "position": float64(1)},
			map[string]any{"name": "Acme", "domain": "acme.com", "rationale": "r", "position": float64(2)},
		},
		"citations": []any{
			map[string]any{"url": "https://acme.com/x", "domain": ""},
		},
		"answer_summary": "Acme is close by.",
		"notes":          map[string]any{"flags": []any{"no_sources", "no_sources"}},
	}
	require.NoError(t, ValidateAnswerBlock(strict))

	lenient := map[string]any{
		"ordered_entities": strict["ordered_entities"],
		"citations":        strict["citations"],
		"answer_summary":   strict["answer_summary"],
		"flags":            []any{"no_sources", "no_sources"},
	}
	require.Error(t, ValidateAnswerBlock(lenient))

	got := CoerceAnswerBlock(strict)
	require.NotNil(t, got)
	assert.Equal(t, CoerceAnswerBlock(lenient), got)

	require.Len(t, got.OrderedEntities, 1)
	assert.Equal(t, "Acme", got.OrderedEntities[0].Name)
	require.Len(t, got.Citations, 1)
	assert.Equal(t, "acme.com", got.Citations[0].Domain)
	assert.Equal(t, []model.Flag{model.FlagNoSources}, got.Notes.Flags)
}

func TestCoerceEnvelope_NormalizesStrictlyValidAnswerBlock(t *testing.T) {
	block := validBlock()
	block["citations"] = []any{map[string]any{"url": "https://www.acme.com/about", "domain": ""}}
	v := map[string]any{
		"answer_block": block,
		"analysis": map[string]any{
			"entities":  []any{},
			"citations": []any{},
			"brand_analysis": map[string]any{
				"mentioned":        true,
				"position":         nil,
				"location_stated":  nil,
				"location_correct": nil,
				"prominence":       nil,
			},
			"extraction_confidence": float64(90),
		},
	}
	require.NoError(t, ValidateEnvelope(v))

	env := CoerceEnvelope(v)
	require.NotNil(t, env)
	require.Len(t, env.AnswerBlock.Citations, 1)
	assert.Equal(t, "acme.com", env.AnswerBlock.Citations[0].Domain)
}

func TestCoerceEnvelope_OutOfRangeMentionCount(t *testing.T) {
	v := map[string]any{
		"answer_block": validBlock(),
		"analysis": map[string]any{
			"entities": []any{
				map[string]any{"name": "Acme", "position": float64(1), "prominence": "primary", "mention_count": 1e20},
			},
		},
	}

	env := CoerceEnvelope(v)
	require.NotNil(t, env)
	require.Len(t, env.Analysis.Entities, 1)
	assert.Equal(t, 1, env.Analysis.Entities[0].MentionCount)
}
