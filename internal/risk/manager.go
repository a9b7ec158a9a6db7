package risk

import (
	"sync"
	"time"

	"github.com/quantfold/strategy-engine/internal/errors"
	"github.com/quantfold/strategy-engine/pkg/types"
)

// Config holds the exit thresholds attached to every position the
// manager opens.
type Config struct {
	StopLossPct       float64
	TakeProfitPct     float64
	TrailingStopPct   float64 // 0 disables the ratchet
	MaxHoldingPeriods int     // forced-exit horizon in bars; 0 disables
	BarInterval       time.Duration
}

func DefaultConfig() Config {
	return Config{
		StopLossPct:       0.03,
		TakeProfitPct:     0.06,
		TrailingStopPct:   0.02,
		MaxHoldingPeriods: 0,
		BarInterval:       time.Minute,
	}
}

// ExitDecision is one exit condition that fired for an open position.
type ExitDecision struct {
	Position *types.Position
	Reason   types.ExitReason
	Price    float64
	Time     time.Time
}

// Manager owns the position table, keyed by (instrument, strategy).
// Positions move PENDING -> OPEN -> CLOSING -> CLOSED and never re-enter
// OPEN; a new position for a pair is admitted only after the prior one
// is CLOSED. Nothing outside this package mutates a position.
type Manager struct {
	mu        sync.Mutex
	cfg       Config
	overrides map[string]Config
	positions map[positionKey]*types.Position

	// completed trades displaced from the table when their pair reopens,
	// kept so session reporting sees every closed position
	history []*types.Position
}

type positionKey struct {
	instrument string
	strategyID string
}

func NewManager(cfg Config) *Manager {
	return &Manager{
		cfg:       cfg,
		overrides: make(map[string]Config),
		positions: make(map[positionKey]*types.Position),
	}
}

// SetStrategyConfig installs per-strategy exit thresholds. Strategies
// without an override use the manager's defaults.
func (m *Manager) SetStrategyConfig(strategyID string, cfg Config) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.overrides[strategyID] = cfg
}

func (m *Manager) cfgFor(strategyID string) Config {
	if cfg, ok := m.overrides[strategyID]; ok {
		return cfg
	}
	return m.cfg
}

// OpenPending records a new PENDING position for an admitted order.
// Quantity is signed: BUY positive, SELL negative.
func (m *Manager) OpenPending(sig types.Signal, quantity float64, reservationID string) (*types.Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := positionKey{sig.Instrument, sig.StrategyID}
	if existing, ok := m.positions[key]; ok {
		if existing.State != types.PositionClosed {
			return nil, errors.Newf(errors.ErrorCategoryContract, "risk", "OpenPending",
				"position for %s/%s still %s", sig.Instrument, sig.StrategyID, existing.State)
		}
		// cancelled pendings carry no fill and are not trades
		if !existing.ExitTime.IsZero() {
			m.history = append(m.history, existing)
		}
	}

	if sig.Action == types.ActionSell {
		quantity = -quantity
	}
	pos := &types.Position{
		Instrument:    sig.Instrument,
		StrategyID:    sig.StrategyID,
		State:         types.PositionPending,
		Quantity:      quantity,
		ReservationID: reservationID,
	}
	m.positions[key] = pos
	return pos, nil
}

// MarkOpen transitions a PENDING position to OPEN on fill confirmation
// and attaches its stop-loss, take-profit and holding-deadline state.
func (m *Manager) MarkOpen(instrument, strategyID string, fillPrice, fillQuantity float64, fillTime time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	pos, ok := m.positions[positionKey{instrument, strategyID}]
	if !ok || pos.State != types.PositionPending {
		return errors.Newf(errors.ErrorCategoryContract, "risk", "MarkOpen",
			"no pending position for %s/%s", instrument, strategyID)
	}

	if fillQuantity > 0 {
		if pos.Quantity < 0 {
			pos.Quantity = -fillQuantity
		} else {
			pos.Quantity = fillQuantity
		}
	}
	pos.State = types.PositionOpen
	pos.EntryPrice = fillPrice
	pos.EntryTime = fillTime

	cfg := m.cfgFor(strategyID)
	if pos.IsLong() {
		pos.StopLossPrice = fillPrice * (1 - cfg.StopLossPct)
		pos.TakeProfitPrice = fillPrice * (1 + cfg.TakeProfitPct)
	} else {
		pos.StopLossPrice = fillPrice * (1 + cfg.StopLossPct)
		pos.TakeProfitPrice = fillPrice * (1 - cfg.TakeProfitPct)
	}
	if cfg.MaxHoldingPeriods > 0 {
		pos.MaxHoldingDeadline = fillTime.Add(time.Duration(cfg.MaxHoldingPeriods) * cfg.BarInterval)
	}
	return nil
}

// CancelPending retires a PENDING position whose order was rejected or
// cancelled. Calling it for a pair with no pending position is a no-op.
func (m *Manager) CancelPending(instrument, strategyID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := positionKey{instrument, strategyID}
	if pos, ok := m.positions[key]; ok && pos.State == types.PositionPending {
		pos.State = types.PositionClosed
	}
}

// EvaluateExits runs the per-tick exit checks for every OPEN position on
// the instrument. Conditions are evaluated in a fixed priority so the
// outcome is deterministic when several coincide on one tick:
// stop-loss (including an engaged trailing stop), take-profit, holding
// deadline, then an opposing signal from the owning strategy. Matched
// positions transition to CLOSING; re-evaluating the same tick is a
// no-op for them.
func (m *Manager) EvaluateExits(instrument string, bar types.OHLCV, signals []types.Signal) []ExitDecision {
	m.mu.Lock()
	defer m.mu.Unlock()

	var decisions []ExitDecision
	for key, pos := range m.positions {
		if key.instrument != instrument || pos.State != types.PositionOpen {
			continue
		}

		cfg := m.cfgFor(pos.StrategyID)
		m.ratchetTrailingStop(pos, bar.Close, cfg)

		reason, ok := m.exitReason(pos, bar, signals, cfg)
		if !ok {
			continue
		}
		pos.State = types.PositionClosing
		pos.ExitReason = reason
		decisions = append(decisions, ExitDecision{
			Position: pos,
			Reason:   reason,
			Price:    bar.Close,
			Time:     bar.Timestamp,
		})
	}
	return decisions
}

// ratchetTrailingStop tightens the trailing stop while the position is
// in profit. The ratchet never loosens.
func (m *Manager) ratchetTrailingStop(pos *types.Position, price float64, cfg Config) {
	if cfg.TrailingStopPct <= 0 || pos.UnrealizedPnL(price) <= 0 {
		return
	}
	if pos.IsLong() {
		candidate := price * (1 - cfg.TrailingStopPct)
		if candidate > pos.TrailingStopPrice {
			pos.TrailingStopPrice = candidate
		}
	} else {
		candidate := price * (1 + cfg.TrailingStopPct)
		if pos.TrailingStopPrice == 0 || candidate < pos.TrailingStopPrice {
			pos.TrailingStopPrice = candidate
		}
	}
}

func (m *Manager) exitReason(pos *types.Position, bar types.OHLCV, signals []types.Signal, cfg Config) (types.ExitReason, bool) {
	stop := pos.EffectiveStop()
	if pos.IsLong() {
		if bar.Close <= stop {
			return types.ExitStopLoss, true
		}
		if bar.Close >= pos.TakeProfitPrice {
			return types.ExitTakeProfit, true
		}
	} else {
		if bar.Close >= stop {
			return types.ExitStopLoss, true
		}
		if bar.Close <= pos.TakeProfitPrice {
			return types.ExitTakeProfit, true
		}
	}

	if cfg.MaxHoldingPeriods > 0 && !bar.Timestamp.Before(pos.MaxHoldingDeadline) {
		return types.ExitMaxHolding, true
	}

	for _, sig := range signals {
		if sig.StrategyID != pos.StrategyID || sig.Instrument != pos.Instrument {
			continue
		}
		opposing := sig.Action == types.ActionExit ||
			(pos.IsLong() && sig.Action == types.ActionSell) ||
			(!pos.IsLong() && sig.Action == types.ActionBuy)
		if opposing {
			return types.ExitTrendChange, true
		}
	}
	return "", false
}

// MarkClosed finalizes a CLOSING (or PENDING-cancelled) position.
func (m *Manager) MarkClosed(instrument, strategyID string, price float64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	pos, ok := m.positions[positionKey{instrument, strategyID}]
	if !ok || pos.State != types.PositionClosing {
		return errors.Newf(errors.ErrorCategoryContract, "risk", "MarkClosed",
			"no closing position for %s/%s", instrument, strategyID)
	}
	pos.State = types.PositionClosed
	pos.ExitPrice = price
	pos.ExitTime = at
	return nil
}

// Position returns the tracked position for a pair, if any.
func (m *Manager) Position(instrument, strategyID string) (*types.Position, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pos, ok := m.positions[positionKey{instrument, strategyID}]
	return pos, ok
}

// CanOpen reports whether a new position may be admitted for the pair:
// either none exists yet or the prior one reached CLOSED.
func (m *Manager) CanOpen(instrument, strategyID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	pos, ok := m.positions[positionKey{instrument, strategyID}]
	return !ok || pos.State == types.PositionClosed
}

// OpenPositions returns all positions currently OPEN.
func (m *Manager) OpenPositions() []*types.Position {
	m.mu.Lock()
	defer m.mu.Unlock()

	var open []*types.Position
	for _, pos := range m.positions {
		if pos.State == types.PositionOpen {
			open = append(open, pos)
		}
	}
	return open
}

// ClosingPositions returns the instrument's positions stuck in CLOSING,
// so the runner can retry their exit orders.
func (m *Manager) ClosingPositions(instrument string) []*types.Position {
	m.mu.Lock()
	defer m.mu.Unlock()

	var closing []*types.Position
	for key, pos := range m.positions {
		if key.instrument == instrument && pos.State == types.PositionClosing {
			closing = append(closing, pos)
		}
	}
	return closing
}

// ClosedPositions returns every position that completed its lifecycle,
// for end-of-session reporting: displaced history plus the latest
// closed position still in the table for each pair.
func (m *Manager) ClosedPositions() []*types.Position {
	m.mu.Lock()
	defer m.mu.Unlock()

	closed := make([]*types.Position, 0, len(m.history))
	closed = append(closed, m.history...)
	for _, pos := range m.positions {
		if pos.State == types.PositionClosed && !pos.ExitTime.IsZero() {
			closed = append(closed, pos)
		}
	}
	return closed
}

// OpenCount returns the number of OPEN positions across instruments.
func (m *Manager) OpenCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	for _, pos := range m.positions {
		if pos.State == types.PositionOpen {
			count++
		}
	}
	return count
}
