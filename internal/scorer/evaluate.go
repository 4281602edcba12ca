// Package scorer turns an answer block into brand visibility metrics, a
// fixed-weight composite score, and batch aggregates.
package scorer

import (
	"github.com/sells-group/geo-audit/internal/domains"
	"github.com/sells-group/geo-audit/internal/model"
)

// EvaluationContext identifies the tracked brand.
type EvaluationContext struct {
	BrandName    string
	BrandDomains []string
	Competitors  []string
	// GenericWords overrides DefaultGenericWords when non-nil.
	GenericWords []string
}

// EvaluateAnswer measures where and how often the brand appears in answer.
func EvaluateAnswer(answer model.AnswerBlock, ec EvaluationContext) model.EvaluatedAnswer {
	m := newBrandMatcher(ec.BrandName, ec.BrandDomains, ec.GenericWords)

	ev := model.EvaluatedAnswer{
		LLMRank: llmRank(answer.OrderedEntities, m),
		Flags:   answer.Notes.Flags,
	}
	if ev.Flags == nil {
		ev.Flags = []model.Flag{}
	}

	if len(answer.Citations) > 0 {
		brand := 0
		for i, c := range answer.Citations {
			if !domains.IsBrandDomain(c.Domain, m.domains) {
				continue
			}
			if ev.LinkRank == nil {
				rank := i + 1
				ev.LinkRank = &rank
			}
			brand++
		}
		sov := float64(brand) / float64(len(answer.Citations))
		ev.SOV = &sov
	}

	ev.Presence = ev.LLMRank != nil || m.matchesText(answer.AnswerSummary)
	return ev
}

// llmRank returns the stated position of the first entity naming the brand.
func llmRank(entities []model.AnswerEntity, m brandMatcher) *int {
	for _, e := range entities {
		if m.matchesEntity(e) {
			pos := e.Position
			return &pos
		}
	}
	return nil
}

// CompetitorMentions lists the competitors named by any entity in answer,
// in the order they appear in ec.Competitors.
func CompetitorMentions(answer model.AnswerBlock, ec EvaluationContext) []string {
	found := []string{}
	seen := make(map[string]struct{})
	for _, name := range ec.Competitors {
		m := newBrandMatcher(name, nil, ec.GenericWords)
		if m.name == "" {
			continue
		}
		if _, ok := seen[m.name]; ok {
			continue
		}
		for _, e := range answer.OrderedEntities {
			if m.matchesEntity(e) {
				seen[m.name] = struct{}{}
				found = append(found, name)
				break
			}
		}
	}
	return found
}
