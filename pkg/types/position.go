package types

import "time"

// PositionState tracks a position through its lifecycle.
// Transitions only move forward: PENDING -> OPEN -> CLOSING -> CLOSED.
type PositionState int

const (
	PositionPending PositionState = iota
	PositionOpen
	PositionClosing
	PositionClosed
)

func (s PositionState) String() string {
	switch s {
	case PositionPending:
		return "PENDING"
	case PositionOpen:
		return "OPEN"
	case PositionClosing:
		return "CLOSING"
	case PositionClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// ExitReason says why a position was closed. The risk manager evaluates
// exit conditions in a fixed priority order, so on a tick where several
// conditions coincide the highest-priority reason is recorded.
type ExitReason string

const (
	ExitStopLoss    ExitReason = "STOP_LOSS"
	ExitTakeProfit  ExitReason = "TAKE_PROFIT"
	ExitMaxHolding  ExitReason = "MAX_HOLDING"
	ExitTrendChange ExitReason = "TREND_CHANGE"
)

// Position is the exposure held for one (instrument, strategy) pair.
// Quantity is signed: positive for long, negative for short. Only the
// risk manager that opened a position may mutate it.
type Position struct {
	Instrument         string
	StrategyID         string
	State              PositionState
	Quantity           float64
	EntryPrice         float64
	EntryTime          time.Time
	StopLossPrice      float64
	TakeProfitPrice    float64
	TrailingStopPrice  float64 // zero until the ratchet first engages
	MaxHoldingDeadline time.Time
	ReservationID      string
	ExitReason         ExitReason
	ExitPrice          float64
	ExitTime           time.Time
}

// IsLong reports whether the position is on the long side.
func (p *Position) IsLong() bool {
	return p.Quantity > 0
}

// UnrealizedPnL returns the open profit at the given price.
func (p *Position) UnrealizedPnL(price float64) float64 {
	return (price - p.EntryPrice) * p.Quantity
}

// EffectiveStop returns the stop level currently in force: the trailing
// stop once it has ratcheted past the static stop, the static stop
// otherwise.
func (p *Position) EffectiveStop() float64 {
	if p.IsLong() {
		if p.TrailingStopPrice > p.StopLossPrice {
			return p.TrailingStopPrice
		}
		return p.StopLossPrice
	}
	if p.TrailingStopPrice > 0 && p.TrailingStopPrice < p.StopLossPrice {
		return p.TrailingStopPrice
	}
	return p.StopLossPrice
}
