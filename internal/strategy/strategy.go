package strategy

import (
	"fmt"
	"time"

	"github.com/quantfold/strategy-engine/internal/indicators"
	"github.com/quantfold/strategy-engine/pkg/types"
)

// Strategy is the contract every trading rule-set implements. Signal
// generation is pure with respect to account and portfolio state: a
// strategy never reads or mutates positions.
type Strategy interface {
	// ID returns the stable identifier used to key positions and config
	ID() string

	// MinHistory returns the minimum number of bars the strategy needs
	// before it can produce signals
	MinHistory() int

	// GenerateSignals evaluates the rule-set against the window and
	// returns zero or more signals. Insufficient or malformed history is
	// an expected condition: it yields an empty result with a diagnostic,
	// not an error. A non-nil error indicates a broken contract and
	// aborts the strategy's evaluation for the tick.
	GenerateSignals(instrument string, window []types.OHLCV, cache *indicators.Cache) (*Result, error)
}

// Result is what one strategy produced for one (instrument, tick) unit.
type Result struct {
	Signals     []types.Signal
	Diagnostics []Diagnostic
}

// Diagnostic reports a recoverable input condition the strategy skipped
// over, e.g. a window shorter than its declared minimum.
type Diagnostic struct {
	StrategyID string
	Instrument string
	Code       string
	Message    string
}

const (
	DiagInsufficientHistory = "INSUFFICIENT_HISTORY"
	DiagNonMonotonicWindow  = "NON_MONOTONIC_WINDOW"
	DiagWindowGap           = "WINDOW_GAP"
)

// ValidateWindow checks a price window against a strategy's minimum
// history and basic integrity rules. interval of zero disables the gap
// check. A nil return means the window is usable.
func ValidateWindow(strategyID, instrument string, window []types.OHLCV, minBars int, interval time.Duration) *Diagnostic {
	if len(window) < minBars {
		return &Diagnostic{
			StrategyID: strategyID,
			Instrument: instrument,
			Code:       DiagInsufficientHistory,
			Message:    fmt.Sprintf("need %d bars, have %d", minBars, len(window)),
		}
	}
	for i := 1; i < len(window); i++ {
		if !window[i].Timestamp.After(window[i-1].Timestamp) {
			return &Diagnostic{
				StrategyID: strategyID,
				Instrument: instrument,
				Code:       DiagNonMonotonicWindow,
				Message:    fmt.Sprintf("bar %d timestamp %s not after %s", i, window[i].Timestamp, window[i-1].Timestamp),
			}
		}
		if interval > 0 && window[i].Timestamp.Sub(window[i-1].Timestamp) > 2*interval {
			return &Diagnostic{
				StrategyID: strategyID,
				Instrument: instrument,
				Code:       DiagWindowGap,
				Message:    fmt.Sprintf("gap of %s before bar %d", window[i].Timestamp.Sub(window[i-1].Timestamp), i),
			}
		}
	}
	return nil
}

func emptyResult(diag *Diagnostic) *Result {
	if diag == nil {
		return &Result{}
	}
	return &Result{Diagnostics: []Diagnostic{*diag}}
}
