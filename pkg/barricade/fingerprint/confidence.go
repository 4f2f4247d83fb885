package fingerprint

import "math"

const (
	sigmoidSteepness = 20.0
	sigmoidMidpoint  = 0.15 // match ratio scoring 50%
	strongRatio      = 0.30
	minReliableCount = 5
)

// Confidence turns an aligned vote count into a percentage. The ratio is taken
// against the smaller of the query and track fingerprint counts so a short clip
// of a long song is not penalised, then squashed through a logistic curve.
func Confidence(matchCount, queryCount, trackCount int) float64 {
	if matchCount == 0 || queryCount == 0 || trackCount == 0 {
		return 0.0
	}

	ref := min(queryCount, trackCount)
	ratio := float64(matchCount) / float64(ref)

	confidence := 100.0 / (1.0 + math.Exp(-sigmoidSteepness*(ratio-sigmoidMidpoint)))

	if ratio > strongRatio {
		confidence = math.Min(100.0, confidence+(ratio-strongRatio)*50)
	}

	if matchCount < minReliableCount {
		confidence *= float64(matchCount) / minReliableCount
	}
	return confidence
}
