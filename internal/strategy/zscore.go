package strategy

import (
	"fmt"
	"math"
)

// ZScoreScorer is the default outlier model: it scores the latest return
// by its z-score against the trailing returns in the feature vector,
// squashed into [-1, 1]. Feature layout follows OutlierReversal: trailing
// returns first, then bar range and volume ratio.
type ZScoreScorer struct{}

func NewZScoreScorer() *ZScoreScorer {
	return &ZScoreScorer{}
}

func (z *ZScoreScorer) Predict(features []float64) (float64, error) {
	if len(features) < 5 {
		return 0, fmt.Errorf("zscore scorer needs at least 5 features, got %d", len(features))
	}

	returns := features[:len(features)-2]
	latest := returns[len(returns)-1]
	trailing := returns[:len(returns)-1]

	mean := 0.0
	for _, r := range trailing {
		mean += r
	}
	mean /= float64(len(trailing))

	variance := 0.0
	for _, r := range trailing {
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(len(trailing))
	stdDev := math.Sqrt(variance)
	if stdDev == 0 {
		return 0, nil
	}

	zscore := (latest - mean) / stdDev
	return math.Tanh(zscore / 3), nil
}
