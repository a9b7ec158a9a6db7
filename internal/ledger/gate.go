package ledger

import (
	"fmt"

	"github.com/quantfold/strategy-engine/pkg/types"
)

// GateConfig holds the per-order policy checks applied before the
// ledger's caps.
type GateConfig struct {
	PerTradeNotionalCap float64
}

// Gate is the final admission-control checkpoint in front of the
// execution boundary. Every candidate order passes through it; the
// outcome is either a held reservation or a rejection naming the limit
// that fired.
type Gate struct {
	cfg    GateConfig
	ledger *Ledger
}

func NewGate(cfg GateConfig, l *Ledger) *Gate {
	return &Gate{cfg: cfg, ledger: l}
}

// AdmitEntry validates an exposure-increasing order. The position-count
// and notional limits are enforced inside the ledger's reservation so
// they stay atomic under parallel admission. On success the returned
// reservation id must later be resolved via Confirm or Release; the
// gate never leaks a reservation.
func (g *Gate) AdmitEntry(order types.OrderRequest) (string, *Rejection) {
	if g.cfg.PerTradeNotionalCap > 0 && order.NotionalEstimate > g.cfg.PerTradeNotionalCap {
		return "", &Rejection{
			Code: RejectPerTradeCap,
			Message: fmt.Sprintf("per-trade cap: order notional %.2f exceeds %.2f",
				order.NotionalEstimate, g.cfg.PerTradeNotionalCap),
		}
	}
	return g.ledger.Reserve(order.Instrument, order.NotionalEstimate)
}

// AdmitExit validates an exposure-reducing order. Exits bypass the
// notional caps but require an existing position and still take a
// reservation for audit symmetry.
func (g *Gate) AdmitExit(order types.OrderRequest, hasPosition bool) (string, *Rejection) {
	if !hasPosition {
		return "", &Rejection{
			Code:    RejectNoPosition,
			Message: fmt.Sprintf("no open position in %s to exit", order.Instrument),
		}
	}
	return g.ledger.ReserveExit(order.Instrument), nil
}
