package scorer

import "github.com/sells-group/geo-audit/internal/model"

// AggregateScores summarizes results. Overall score and visibility use
// every result; the rank and SOV averages skip results where the metric is
// absent and stay nil when no result has it.
func AggregateScores(results []model.ScoredAnswer) model.AggregateScores {
	var agg model.AggregateScores
	if len(results) == 0 {
		return agg
	}

	var (
		total, present float64
		llm, link, sov mean
	)
	for _, r := range results {
		total += r.Score
		if r.Presence {
			present++
		}
		if r.LLMRank != nil {
			llm.add(float64(*r.LLMRank))
		}
		if r.LinkRank != nil {
			link.add(float64(*r.LinkRank))
		}
		if r.SOV != nil {
			sov.add(*r.SOV)
		}
	}

	n := float64(len(results))
	agg.OverallScore = total / n
	agg.VisibilityPct = 100 * present / n
	agg.AvgLLMRank = llm.value()
	agg.AvgLinkRank = link.value()
	agg.AvgSOV = sov.value()
	return agg
}

type mean struct {
	sum float64
	n   int
}

func (m *mean) add(v float64) {
	m.sum += v
	m.n++
}

func (m *mean) value() *float64 {
	if m.n == 0 {
		return nil
	}
	v := m.sum / float64(m.n)
	return &v
}
