package indicators

import "math"

// Series is an indicator series aligned one-to-one with the OHLCV window
// it was computed from. Entries before ValidFrom belong to the
// indicator's warm-up and hold NaN, never zero.
type Series struct {
	Values    []float64
	ValidFrom int
}

func newSeries(n, validFrom int) Series {
	values := make([]float64, n)
	for i := range values {
		values[i] = math.NaN()
	}
	if validFrom > n {
		validFrom = n
	}
	return Series{Values: values, ValidFrom: validFrom}
}

// Len returns the number of defined values: window length minus warm-up.
func (s Series) Len() int {
	return len(s.Values) - s.ValidFrom
}

// At returns the value at index i and whether it is defined.
func (s Series) At(i int) (float64, bool) {
	if i < s.ValidFrom || i >= len(s.Values) {
		return 0, false
	}
	return s.Values[i], true
}

// Last returns the most recent value and whether it is defined.
func (s Series) Last() (float64, bool) {
	return s.At(len(s.Values) - 1)
}

// Prev returns the value one bar before the most recent one.
func (s Series) Prev() (float64, bool) {
	return s.At(len(s.Values) - 2)
}
