package model

// EvaluatedAnswer holds the raw visibility metrics of one answer for one brand.
// Nil ranks and SOV mean "absent", never zero.
type EvaluatedAnswer struct {
	Presence bool     `json:"presence"`
	LLMRank  *int     `json:"llm_rank"`
	LinkRank *int     `json:"link_rank"`
	SOV      *float64 `json:"sov"`
	Flags    []Flag   `json:"flags"`
}

// ScoreBreakdown holds the four normalized components, each in [0,100].
type ScoreBreakdown struct {
	Position float64 `json:"position"`
	Link     float64 `json:"link"`
	SOV      float64 `json:"sov"`
	Accuracy float64 `json:"accuracy"`
}

// ScoredAnswer is an evaluated answer with its composite score.
type ScoredAnswer struct {
	EvaluatedAnswer
	Score     float64        `json:"score"`
	Breakdown ScoreBreakdown `json:"breakdown"`
}

// AggregateScores summarizes a batch of scored answers. The per-metric
// averages only count samples where the metric is present.
type AggregateScores struct {
	OverallScore  float64  `json:"overall_score"`
	VisibilityPct float64  `json:"visibility_pct"`
	AvgLLMRank    *float64 `json:"avg_llm_rank"`
	AvgLinkRank   *float64 `json:"avg_link_rank"`
	AvgSOV        *float64 `json:"avg_sov"`
}

// Bucket is a coarse label for a score.
type Bucket string

const (
	BucketExcellent Bucket = "excellent"
	BucketGood      Bucket = "good"
	BucketFair      Bucket = "fair"
	BucketPoor      Bucket = "poor"
)
