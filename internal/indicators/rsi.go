package indicators

import (
	"github.com/quantfold/strategy-engine/pkg/types"
)

// RSISeries computes the Relative Strength Index over closes using
// Wilder's smoothing. Warm-up is period bars.
func RSISeries(data []types.OHLCV, period int) Series {
	s := newSeries(len(data), period)
	if len(data) < period+1 || period <= 0 {
		s.ValidFrom = len(s.Values)
		return s
	}

	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		change := data[i].Close - data[i-1].Close
		if change > 0 {
			avgGain += change
		} else {
			avgLoss -= change
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)
	s.Values[period] = rsiValue(avgGain, avgLoss)

	for i := period + 1; i < len(data); i++ {
		change := data[i].Close - data[i-1].Close
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
		s.Values[i] = rsiValue(avgGain, avgLoss)
	}
	return s
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs))
}
