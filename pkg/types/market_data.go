package types

import "time"

// OHLCV is a single price bar. Bars within one instrument's series are
// strictly increasing by timestamp with no duplicates.
type OHLCV struct {
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
	Timestamp time.Time
}
