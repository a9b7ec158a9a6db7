package gateway

import (
	"context"

	"github.com/quantfold/strategy-engine/pkg/types"
)

// OrderGateway is the execution boundary. The engine only ever hands it
// gate-approved orders and consumes the tri-state result: ACCEPTED with
// fill details, REJECTED with a reason, or PENDING, which the engine
// resolves later through CheckOrder before transitioning the position.
type OrderGateway interface {
	Submit(ctx context.Context, order types.OrderRequest) (types.OrderResult, error)

	// CheckOrder polls the status of a previously submitted order by its
	// client order id.
	CheckOrder(ctx context.Context, instrument, clientOrderID string) (types.OrderResult, error)
}
