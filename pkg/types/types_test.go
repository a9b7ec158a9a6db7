package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// TestSignalHash_BucketsNearbyPrices verifies near-identical re-fires
// collapse onto one key while distinct prices do not
func TestSignalHash_BucketsNearbyPrices(t *testing.T) {
	base := Signal{
		Instrument:     "BTCUSDT",
		Action:         ActionBuy,
		ReferencePrice: 100.00,
		ReasonCode:     "BAND_BREAKOUT_LONG",
		StrategyID:     "s1",
	}
	near := base
	near.ReferencePrice = 100.02
	far := base
	far.ReferencePrice = 105.00

	assert.Equal(t, base.Hash(), near.Hash())
	assert.NotEqual(t, base.Hash(), far.Hash())

	otherAction := base
	otherAction.Action = ActionSell
	assert.NotEqual(t, base.Hash(), otherAction.Hash())
}

// TestPosition_EffectiveStop verifies trailing-vs-static stop selection on both sides
func TestPosition_EffectiveStop(t *testing.T) {
	long := Position{Quantity: 10, StopLossPrice: 97}
	assert.Equal(t, 97.0, long.EffectiveStop())
	long.TrailingStopPrice = 102.9
	assert.Equal(t, 102.9, long.EffectiveStop())

	short := Position{Quantity: -10, StopLossPrice: 103}
	assert.Equal(t, 103.0, short.EffectiveStop())
	short.TrailingStopPrice = 98.0
	assert.Equal(t, 98.0, short.EffectiveStop())
}

// TestPosition_UnrealizedPnL verifies signed quantity drives the sign of PnL
func TestPosition_UnrealizedPnL(t *testing.T) {
	long := Position{Quantity: 10, EntryPrice: 100}
	assert.InDelta(t, 50.0, long.UnrealizedPnL(105), 1e-9)

	short := Position{Quantity: -10, EntryPrice: 100}
	assert.InDelta(t, 50.0, short.UnrealizedPnL(95), 1e-9)
	assert.InDelta(t, -50.0, short.UnrealizedPnL(105), 1e-9)
}

// TestPositionState_Strings verifies lifecycle labels used in logs
func TestPositionState_Strings(t *testing.T) {
	assert.Equal(t, "PENDING", PositionPending.String())
	assert.Equal(t, "OPEN", PositionOpen.String())
	assert.Equal(t, "CLOSING", PositionClosing.String())
	assert.Equal(t, "CLOSED", PositionClosed.String())
}

// TestSignalAction_Strings verifies action labels
func TestSignalAction_Strings(t *testing.T) {
	assert.Equal(t, "BUY", ActionBuy.String())
	assert.Equal(t, "SELL", ActionSell.String())
	assert.Equal(t, "EXIT", ActionExit.String())
}

// TestOHLCV_Fields sanity-checks the bar value object
func TestOHLCV_Fields(t *testing.T) {
	ts := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	bar := OHLCV{Timestamp: ts, Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 100}
	assert.True(t, bar.High >= bar.Low)
	assert.Equal(t, ts, bar.Timestamp)
}
