package indicators

import (
	"math"

	"github.com/quantfold/strategy-engine/pkg/types"
)

// ATRSeries computes the Average True Range over the window using
// Wilder's smoothing. The warm-up is period bars: the true range needs a
// previous close, and the first ATR value is the simple average of the
// first period true ranges.
func ATRSeries(data []types.OHLCV, period int) Series {
	s := newSeries(len(data), period)
	if len(data) < period+1 || period <= 0 {
		s.ValidFrom = len(s.Values)
		return s
	}

	sum := 0.0
	for i := 1; i <= period; i++ {
		sum += trueRange(data[i], data[i-1].Close)
	}
	atr := sum / float64(period)
	s.Values[period] = atr

	for i := period + 1; i < len(data); i++ {
		tr := trueRange(data[i], data[i-1].Close)
		atr = (atr*float64(period-1) + tr) / float64(period)
		s.Values[i] = atr
	}
	return s
}

// trueRange is max(High-Low, |High-PrevClose|, |Low-PrevClose|).
func trueRange(bar types.OHLCV, prevClose float64) float64 {
	hl := bar.High - bar.Low
	hc := math.Abs(bar.High - prevClose)
	lc := math.Abs(bar.Low - prevClose)
	return math.Max(hl, math.Max(hc, lc))
}
