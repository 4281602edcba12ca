package scorer

import "github.com/sells-group/geo-audit/internal/model"

// Bucket lower bounds, inclusive.
const (
	excellentMin = 75
	goodMin      = 50
	fairMin      = 25
)

// ScoreBucket labels a 0-100 score.
func ScoreBucket(score float64) model.Bucket {
	switch {
	case score >= excellentMin:
		return model.BucketExcellent
	case score >= goodMin:
		return model.BucketGood
	case score >= fairMin:
		return model.BucketFair
	default:
		return model.BucketPoor
	}
}
