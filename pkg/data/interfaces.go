package data

import (
	"context"
	"errors"

	"github.com/quantfold/strategy-engine/pkg/types"
)

// ErrInsufficientHistory reports that fewer bars exist than requested.
// It is a recoverable condition, not a failure: callers skip the tick.
var ErrInsufficientHistory = errors.New("insufficient history")

// MarketDataSource supplies OHLCV windows to the engine. Implementations
// must return bars in strictly increasing timestamp order.
type MarketDataSource interface {
	// GetWindow returns the most recent lookback bars for the
	// instrument. Returns ErrInsufficientHistory (possibly wrapped) when
	// fewer bars exist than requested.
	GetWindow(ctx context.Context, instrument string, lookback int) ([]types.OHLCV, error)
}

// Cache stores loaded bar series keyed by instrument.
type Cache interface {
	Get(key string) ([]types.OHLCV, bool)
	Set(key string, data []types.OHLCV)
	Clear()
	Size() int
}
