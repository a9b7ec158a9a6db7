package gateway

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/quantfold/strategy-engine/pkg/types"
)

// PaperGateway fills every valid order immediately at the estimated
// price plus configurable slippage. It keeps submitted results so
// CheckOrder answers consistently for late polls.
type PaperGateway struct {
	mu          sync.Mutex
	slippagePct float64
	results     map[string]types.OrderResult
}

func NewPaperGateway(slippagePct float64) *PaperGateway {
	return &PaperGateway{
		slippagePct: slippagePct,
		results:     make(map[string]types.OrderResult),
	}
}

func (g *PaperGateway) Submit(_ context.Context, order types.OrderRequest) (types.OrderResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if order.Quantity <= 0 {
		result := types.OrderResult{
			Status: types.OrderRejected,
			Reason: fmt.Sprintf("invalid quantity %.4f", order.Quantity),
		}
		g.results[order.ClientOrderID] = result
		return result, nil
	}

	price := order.NotionalEstimate / order.Quantity
	if order.LimitPrice != nil {
		price = *order.LimitPrice
	}
	switch order.Action {
	case types.ActionBuy:
		price *= 1 + g.slippagePct
	case types.ActionSell:
		price *= 1 - g.slippagePct
	}

	result := types.OrderResult{
		Status:       types.OrderAccepted,
		FillPrice:    price,
		FillQuantity: order.Quantity,
	}
	g.results[order.ClientOrderID] = result
	return result, nil
}

func (g *PaperGateway) CheckOrder(_ context.Context, _, clientOrderID string) (types.OrderResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if result, ok := g.results[clientOrderID]; ok {
		return result, nil
	}
	return types.OrderResult{
		Status: types.OrderRejected,
		Reason: fmt.Sprintf("unknown order %s as of %s", clientOrderID, time.Now().Format(time.RFC3339)),
	}, nil
}
