package gateway

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfold/strategy-engine/pkg/types"
)

func marketOrder(action types.SignalAction, qty, notional float64) types.OrderRequest {
	return types.OrderRequest{
		Instrument:       "BTCUSDT",
		Action:           action,
		Quantity:         qty,
		NotionalEstimate: notional,
		StrategyID:       "s1",
		ClientOrderID:    "order-1",
	}
}

// TestPaperGateway_FillsAtEstimateWithSlippage verifies buys fill above
// and sells below the reference price
func TestPaperGateway_FillsAtEstimateWithSlippage(t *testing.T) {
	gw := NewPaperGateway(0.001)
	ctx := context.Background()

	result, err := gw.Submit(ctx, marketOrder(types.ActionBuy, 2, 200))
	require.NoError(t, err)
	assert.Equal(t, types.OrderAccepted, result.Status)
	assert.InDelta(t, 100.1, result.FillPrice, 1e-9)
	assert.Equal(t, 2.0, result.FillQuantity)

	sell := marketOrder(types.ActionSell, 2, 200)
	sell.ClientOrderID = "order-2"
	result, err = gw.Submit(ctx, sell)
	require.NoError(t, err)
	assert.InDelta(t, 99.9, result.FillPrice, 1e-9)
}

// TestPaperGateway_LimitPriceWins verifies an explicit limit price overrides the estimate
func TestPaperGateway_LimitPriceWins(t *testing.T) {
	gw := NewPaperGateway(0)
	limit := 95.0
	order := marketOrder(types.ActionBuy, 2, 200)
	order.LimitPrice = &limit

	result, err := gw.Submit(context.Background(), order)
	require.NoError(t, err)
	assert.InDelta(t, 95.0, result.FillPrice, 1e-9)
}

// TestPaperGateway_RejectsBadQuantity verifies non-positive quantities are rejected, not errored
func TestPaperGateway_RejectsBadQuantity(t *testing.T) {
	gw := NewPaperGateway(0)
	result, err := gw.Submit(context.Background(), marketOrder(types.ActionBuy, 0, 0))
	require.NoError(t, err)
	assert.Equal(t, types.OrderRejected, result.Status)
}

// TestPaperGateway_CheckOrderReplays verifies late polls see the stored outcome
func TestPaperGateway_CheckOrderReplays(t *testing.T) {
	gw := NewPaperGateway(0)
	ctx := context.Background()

	submitted, err := gw.Submit(ctx, marketOrder(types.ActionBuy, 2, 200))
	require.NoError(t, err)

	checked, err := gw.CheckOrder(ctx, "BTCUSDT", "order-1")
	require.NoError(t, err)
	assert.Equal(t, submitted, checked)

	unknown, err := gw.CheckOrder(ctx, "BTCUSDT", "no-such-order")
	require.NoError(t, err)
	assert.Equal(t, types.OrderRejected, unknown.Status)
}
