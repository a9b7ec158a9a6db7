package indicators

import (
	"github.com/quantfold/strategy-engine/pkg/types"
)

// SMASeries computes the simple moving average of closes. Warm-up is
// period-1 bars.
func SMASeries(data []types.OHLCV, period int) Series {
	return rollingMean(len(data), period, func(i int) float64 { return data[i].Close })
}

// VolumeSMASeries computes the simple moving average of volume.
func VolumeSMASeries(data []types.OHLCV, period int) Series {
	return rollingMean(len(data), period, func(i int) float64 { return data[i].Volume })
}

// EMASeries computes the exponential moving average of closes, seeded
// with the SMA of the first period bars.
func EMASeries(data []types.OHLCV, period int) Series {
	s := newSeries(len(data), period-1)
	if len(data) < period || period <= 0 {
		s.ValidFrom = len(s.Values)
		return s
	}

	sum := 0.0
	for i := 0; i < period; i++ {
		sum += data[i].Close
	}
	ema := sum / float64(period)
	s.Values[period-1] = ema

	multiplier := 2.0 / float64(period+1)
	for i := period; i < len(data); i++ {
		ema = (data[i].Close-ema)*multiplier + ema
		s.Values[i] = ema
	}
	return s
}

func rollingMean(n, period int, value func(int) float64) Series {
	s := newSeries(n, period-1)
	if n < period || period <= 0 {
		s.ValidFrom = len(s.Values)
		return s
	}

	sum := 0.0
	for i := 0; i < n; i++ {
		sum += value(i)
		if i >= period {
			sum -= value(i - period)
		}
		if i >= period-1 {
			s.Values[i] = sum / float64(period)
		}
	}
	return s
}
