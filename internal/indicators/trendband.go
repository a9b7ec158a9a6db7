package indicators

import (
	"github.com/quantfold/strategy-engine/pkg/types"
)

// TrendBand is a volatility-scaled support/resistance band around the
// bar midpoint. The final bands are sticky: a band value carries over
// from the previous bar unless the new raw band is tighter, or the
// previous close already traded through the old band. That keeps the
// band from whipsawing inside an established trend. Line holds the
// active anchor (upper band in a downtrend, lower band in an uptrend)
// and Up the trend direction per bar.
type TrendBand struct {
	Upper Series
	Lower Series
	Line  Series
	Up    []bool
}

// TrendBandSeries computes the sticky band from an ATR offset of
// multiplier x ATR(period) around the HL2 midpoint. Warm-up matches the
// underlying ATR.
func TrendBandSeries(data []types.OHLCV, period int, multiplier float64) TrendBand {
	atr := ATRSeries(data, period)
	upper := newSeries(len(data), atr.ValidFrom)
	lower := newSeries(len(data), atr.ValidFrom)
	line := newSeries(len(data), atr.ValidFrom)
	up := make([]bool, len(data))

	var finalUpper, finalLower float64
	upTrend := true
	for i := atr.ValidFrom; i < len(data); i++ {
		median := (data[i].High + data[i].Low) / 2.0
		basicUpper := median + multiplier*atr.Values[i]
		basicLower := median - multiplier*atr.Values[i]

		if i == atr.ValidFrom {
			finalUpper = basicUpper
			finalLower = basicLower
			upTrend = data[i].Close >= basicLower
		} else {
			prevClose := data[i-1].Close
			if basicUpper < finalUpper || prevClose > finalUpper {
				finalUpper = basicUpper
			}
			if basicLower > finalLower || prevClose < finalLower {
				finalLower = basicLower
			}

			// The active anchor flips only when the close trades through
			// it; on a bar where both bands were eligible to update, the
			// sticky rule above has already narrowed the active side.
			if upTrend && data[i].Close < finalLower {
				upTrend = false
			} else if !upTrend && data[i].Close > finalUpper {
				upTrend = true
			}
		}

		upper.Values[i] = finalUpper
		lower.Values[i] = finalLower
		up[i] = upTrend
		if upTrend {
			line.Values[i] = finalLower
		} else {
			line.Values[i] = finalUpper
		}
	}

	return TrendBand{Upper: upper, Lower: lower, Line: line, Up: up}
}
