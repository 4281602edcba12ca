package scorer

import (
	"math"

	"github.com/sells-group/geo-audit/internal/model"
)

// Composite weights. These are fixed so scores stay comparable across runs.
const (
	WeightPosition = 0.45
	WeightLink     = 0.25
	WeightSOV      = 0.20
	WeightAccuracy = 0.10
)

// MaxRank is the rank beyond which position and link credit stop falling.
const MaxRank = 10

// Accuracy component values.
const (
	accuracyClean         = 100
	accuracyHallucination = 0
	accuracyNoSources     = 25
	accuracyOtherFlag     = 60
)

// WeightSum returns the sum of the composite weights.
func WeightSum() float64 {
	return WeightPosition + WeightLink + WeightSOV + WeightAccuracy
}

// ScoreAnswer evaluates and scores answer for the brand in ec.
func ScoreAnswer(answer model.AnswerBlock, ec EvaluationContext) model.ScoredAnswer {
	return ScoreEvaluated(EvaluateAnswer(answer, ec))
}

// ScoreEvaluated computes the score breakdown and composite for ev.
func ScoreEvaluated(ev model.EvaluatedAnswer) model.ScoredAnswer {
	b := model.ScoreBreakdown{
		Position: scoreRank(ev.LLMRank),
		Link:     scoreRank(ev.LinkRank),
		SOV:      scoreSOV(ev.SOV),
		Accuracy: scoreAccuracy(ev.Flags),
	}
	return model.ScoredAnswer{
		EvaluatedAnswer: ev,
		Score:           composite(b),
		Breakdown:       b,
	}
}

func composite(b model.ScoreBreakdown) float64 {
	total := WeightPosition*b.Position +
		WeightLink*b.Link +
		WeightSOV*b.SOV +
		WeightAccuracy*b.Accuracy
	return clamp(total, 0, 100)
}

// scoreRank maps rank 1 to 100 and rank MaxRank or worse to 10; absent is 0.
func scoreRank(rank *int) float64 {
	if rank == nil {
		return 0
	}
	r := min(*rank, MaxRank)
	return clamp(float64(MaxRank-r+1)/MaxRank*100, 0, 100)
}

func scoreSOV(sov *float64) float64 {
	if sov == nil || math.IsNaN(*sov) {
		return 0
	}
	return clamp(*sov*100, 0, 100)
}

// scoreAccuracy penalizes flagged answers. A hallucination flag dominates
// every other flag.
func scoreAccuracy(flags []model.Flag) float64 {
	if len(flags) == 0 {
		return accuracyClean
	}
	var noSources bool
	for _, f := range flags {
		switch f {
		case model.FlagPossibleHallucination:
			return accuracyHallucination
		case model.FlagNoSources:
			noSources = true
		}
	}
	if noSources {
		return accuracyNoSources
	}
	return accuracyOtherFlag
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
