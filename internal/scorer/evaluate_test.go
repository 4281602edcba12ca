package scorer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/geo-audit/internal/model"
)

func ptrInt(v int) *int             { return &v }
func ptrFloat64(v float64) *float64 { return &v }

func acmeContext() EvaluationContext {
	return EvaluationContext{
		BrandName:    "Acme Apartments",
		BrandDomains: []string{"https://www.acme.com/"},
		Competitors:  []string{"Beta Living", "Gamma Homes"},
	}
}

func entity(name, domain string, pos int) model.AnswerEntity {
	return model.AnswerEntity{Name: name, Domain: domain, Rationale: "r", Position: pos}
}

func citation(url, domain string) model.AnswerCitation {
	return model.AnswerCitation{URL: url, Domain: domain}
}

func TestEvaluateAnswer_LLMRankTiers(t *testing.T) {
	tests := []struct {
		name     string
		entities []model.AnswerEntity
		want     *int
	}{
		{"domain match", []model.AnswerEntity{entity("Other", "other.com", 1), entity("Something", "leasing.acme.com", 4)}, ptrInt(4)},
		{"full name case-insensitive", []model.AnswerEntity{entity("ACME APARTMENTS Downtown", "", 2)}, ptrInt(2)},
		{"loose first word", []model.AnswerEntity{entity("Acme Riverside", "", 3)}, ptrInt(3)},
		{"first match wins", []model.AnswerEntity{entity("Acme West", "", 5), entity("Acme Apartments", "acme.com", 1)}, ptrInt(5)},
		{"no match", []model.AnswerEntity{entity("Beta Living", "beta.com", 1)}, nil},
		{"empty", nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := EvaluateAnswer(model.AnswerBlock{OrderedEntities: tt.entities}, acmeContext())
			assert.Equal(t, tt.want, ev.LLMRank)
			assert.Equal(t, tt.want != nil, ev.Presence)
		})
	}
}

func TestEvaluateAnswer_GenericFirstWordIsNotLoose(t *testing.T) {
	ec := EvaluationContext{BrandName: "Homes of Austin"}
	answer := model.AnswerBlock{OrderedEntities: []model.AnswerEntity{entity("Homes Plus", "", 1)}}

	assert.Nil(t, EvaluateAnswer(answer, ec).LLMRank)

	ec.GenericWords = []string{}
	assert.Equal(t, ptrInt(1), EvaluateAnswer(answer, ec).LLMRank)
}

func TestEvaluateAnswer_ShortFirstWordSkipped(t *testing.T) {
	ec := EvaluationContext{BrandName: "The Grand Lofts"}
	answer := model.AnswerBlock{OrderedEntities: []model.AnswerEntity{
		entity("The Palms", "", 1),
		entity("Grand Tower", "", 2),
	}}

	assert.Equal(t, ptrInt(2), EvaluateAnswer(answer, ec).LLMRank)
}

func TestEvaluateAnswer_UnicodeFolding(t *testing.T) {
	ec := EvaluationContext{BrandName: "Café Élan"}
	answer := model.AnswerBlock{OrderedEntities: []model.AnswerEntity{entity("CAFÉ ÉLAN Suites", "", 1)}}

	assert.Equal(t, ptrInt(1), EvaluateAnswer(answer, ec).LLMRank)
}

func TestEvaluateAnswer_Citations(t *testing.T) {
	tests := []struct {
		name      string
		citations []model.AnswerCitation
		linkRank  *int
		sov       *float64
	}{
		{"none", nil, nil, nil},
		{"no brand", []model.AnswerCitation{citation("https://beta.com", "beta.com")}, nil, ptrFloat64(0)},
		{
			"second and third",
			[]model.AnswerCitation{
				citation("https://beta.com", "beta.com"),
				citation("https://acme.com/a", "acme.com"),
				citation("https://blog.acme.com/b", "blog.acme.com"),
				citation("https://notacme.com", "notacme.com"),
			},
			ptrInt(2), ptrFloat64(0.5),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := EvaluateAnswer(model.AnswerBlock{Citations: tt.citations}, acmeContext())
			assert.Equal(t, tt.linkRank, ev.LinkRank)
			if tt.sov == nil {
				assert.Nil(t, ev.SOV)
				return
			}
			require.NotNil(t, ev.SOV)
			assert.InDelta(t, *tt.sov, *ev.SOV, 1e-9)
		})
	}
}

func TestEvaluateAnswer_PresenceFromSummary(t *testing.T) {
	answer := model.AnswerBlock{AnswerSummary: "Many renters like acme apartments for its pool."}
	ev := EvaluateAnswer(answer, acmeContext())

	assert.True(t, ev.Presence)
	assert.Nil(t, ev.LLMRank)
}

func TestEvaluateAnswer_EmptyBrandNeverMatches(t *testing.T) {
	answer := model.AnswerBlock{
		OrderedEntities: []model.AnswerEntity{entity("Anything", "", 1)},
		AnswerSummary:   "Anything goes.",
	}
	ev := EvaluateAnswer(answer, EvaluationContext{})

	assert.False(t, ev.Presence)
	assert.Nil(t, ev.LLMRank)
}

func TestEvaluateAnswer_FlagsPassThrough(t *testing.T) {
	answer := model.AnswerBlock{Notes: model.Notes{Flags: []model.Flag{model.FlagOutdatedInfo}}}
	assert.Equal(t, []model.Flag{model.FlagOutdatedInfo}, EvaluateAnswer(answer, acmeContext()).Flags)
	assert.NotNil(t, EvaluateAnswer(model.AnswerBlock{}, acmeContext()).Flags)
}

func TestCompetitorMentions(t *testing.T) {
	answer := model.AnswerBlock{OrderedEntities: []model.AnswerEntity{
		entity("Acme Apartments", "acme.com", 1),
		entity("BETA LIVING at the Park", "", 2),
	}}

	assert.Equal(t, []string{"Beta Living"}, CompetitorMentions(answer, acmeContext()))
	assert.Empty(t, CompetitorMentions(model.AnswerBlock{}, acmeContext()))
}
