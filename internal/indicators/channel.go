package indicators

import (
	"github.com/quantfold/strategy-engine/pkg/types"
)

// RollingHighSeries computes the highest high over the trailing period.
func RollingHighSeries(data []types.OHLCV, period int) Series {
	return rollingExtreme(data, period, true)
}

// RollingLowSeries computes the lowest low over the trailing period.
func RollingLowSeries(data []types.OHLCV, period int) Series {
	return rollingExtreme(data, period, false)
}

func rollingExtreme(data []types.OHLCV, period int, high bool) Series {
	s := newSeries(len(data), period-1)
	if len(data) < period || period <= 0 {
		s.ValidFrom = len(s.Values)
		return s
	}

	for i := period - 1; i < len(data); i++ {
		extreme := 0.0
		for j := i - period + 1; j <= i; j++ {
			v := data[j].Low
			if high {
				v = data[j].High
			}
			if j == i-period+1 || (high && v > extreme) || (!high && v < extreme) {
				extreme = v
			}
		}
		s.Values[i] = extreme
	}
	return s
}
