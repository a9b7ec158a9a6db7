package ledger

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/quantfold/strategy-engine/pkg/types"
)

// RejectionCode distinguishes which limit fired, so callers can branch
// on the specific cap without parsing messages.
type RejectionCode string

const (
	RejectPerTradeCap   RejectionCode = "PER_TRADE_CAP"
	RejectInstrumentCap RejectionCode = "PER_INSTRUMENT_CAP"
	RejectPortfolioCap  RejectionCode = "PORTFOLIO_CAP"
	RejectMaxPositions  RejectionCode = "MAX_ACTIVE_POSITIONS"
	RejectNoPosition    RejectionCode = "NO_POSITION_TO_EXIT"
)

// Rejection is a policy outcome, not an error: a candidate order failed
// an admission check. Message is human-readable for operators.
type Rejection struct {
	Code    RejectionCode
	Message string
}

func (r *Rejection) String() string {
	return fmt.Sprintf("%s: %s", r.Code, r.Message)
}

// Config holds the caps the ledger enforces.
type Config struct {
	PerInstrumentCap   float64
	PortfolioCap       float64
	MaxActivePositions int
}

type entry struct {
	instrument string
	notional   float64
	exit       bool
}

// Ledger tracks committed notional per instrument and portfolio-wide:
// confirmed position exposure plus in-flight reservations. It is the
// one shared mutable resource in the engine, so every operation takes
// the mutex; portfolio caps need a consistent global view.
type Ledger struct {
	mu        sync.Mutex
	cfg       Config
	pending   map[string]entry
	confirmed map[string]entry
}

func NewLedger(cfg Config) *Ledger {
	return &Ledger{
		cfg:       cfg,
		pending:   make(map[string]entry),
		confirmed: make(map[string]entry),
	}
}

// Reserve atomically checks the position-count and notional caps and,
// only on success, records the reservation and returns its id. Every
// non-exit record corresponds to one admitted position (in-flight or
// filled), so counting records here makes the max-positions limit
// atomic with admission: concurrent entries cannot race past it.
func (l *Ledger) Reserve(instrument string, notional float64) (string, *Rejection) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.cfg.MaxActivePositions > 0 {
		if active := l.activePositionsLocked(); active >= l.cfg.MaxActivePositions {
			return "", &Rejection{
				Code: RejectMaxPositions,
				Message: fmt.Sprintf("max active positions: already holding %d of %d",
					active, l.cfg.MaxActivePositions),
			}
		}
	}

	instrumentTotal := l.committedLocked(instrument)
	if l.cfg.PerInstrumentCap > 0 && instrumentTotal+notional > l.cfg.PerInstrumentCap {
		return "", &Rejection{
			Code: RejectInstrumentCap,
			Message: fmt.Sprintf("per-instrument cap: %s committed %.2f + %.2f exceeds %.2f",
				instrument, instrumentTotal, notional, l.cfg.PerInstrumentCap),
		}
	}

	portfolioTotal := l.totalCommittedLocked()
	if l.cfg.PortfolioCap > 0 && portfolioTotal+notional > l.cfg.PortfolioCap {
		return "", &Rejection{
			Code: RejectPortfolioCap,
			Message: fmt.Sprintf("portfolio cap: committed %.2f + %.2f exceeds %.2f",
				portfolioTotal, notional, l.cfg.PortfolioCap),
		}
	}

	id := uuid.NewString()
	l.pending[id] = entry{instrument: instrument, notional: notional}
	return id, nil
}

// ReserveExit records a reservation for an exposure-reducing order.
// Exits bypass the notional caps but keep the same bookkeeping so every
// order that reaches the gateway has a resolvable reservation.
func (l *Ledger) ReserveExit(instrument string) string {
	l.mu.Lock()
	defer l.mu.Unlock()

	id := uuid.NewString()
	l.pending[id] = entry{instrument: instrument, exit: true}
	return id
}

// Release drops a pending reservation. It is idempotent: releasing an
// already-released or unknown id is a no-op, so late or duplicate cancel
// notifications from the execution boundary are harmless.
func (l *Ledger) Release(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.pending, id)
}

// Confirm converts a reservation into durable position exposure. When
// the actual filled notional differs from the reserved estimate, the
// ledger adjusts to the actual value.
func (l *Ledger) Confirm(id string, actualNotional float64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.pending[id]
	if !ok {
		return fmt.Errorf("confirm: unknown reservation %s", id)
	}
	delete(l.pending, id)
	if e.exit {
		return nil
	}
	e.notional = actualNotional
	l.confirmed[id] = e
	return nil
}

// CloseExposure removes the durable exposure recorded under a
// reservation id when its position closes. Idempotent.
func (l *Ledger) CloseExposure(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.confirmed, id)
}

// Committed returns the committed notional for one instrument.
func (l *Ledger) Committed(instrument string) float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.committedLocked(instrument)
}

// TotalCommitted returns the committed notional across all instruments.
func (l *Ledger) TotalCommitted() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.totalCommittedLocked()
}

// Snapshot returns per-instrument exposure records as of now.
func (l *Ledger) Snapshot() []types.ExposureRecord {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	byInstrument := make(map[string]float64)
	for _, e := range l.pending {
		byInstrument[e.instrument] += e.notional
	}
	for _, e := range l.confirmed {
		byInstrument[e.instrument] += e.notional
	}

	records := make([]types.ExposureRecord, 0, len(byInstrument))
	for instrument, notional := range byInstrument {
		records = append(records, types.ExposureRecord{
			Instrument:        instrument,
			CommittedNotional: notional,
			AsOf:              now,
		})
	}
	return records
}

// activePositionsLocked counts admitted entry positions: in-flight
// entry reservations plus confirmed exposure not yet closed. Exit
// reservations reduce exposure and never count.
func (l *Ledger) activePositionsLocked() int {
	count := len(l.confirmed)
	for _, e := range l.pending {
		if !e.exit {
			count++
		}
	}
	return count
}

func (l *Ledger) committedLocked(instrument string) float64 {
	total := 0.0
	for _, e := range l.pending {
		if e.instrument == instrument {
			total += e.notional
		}
	}
	for _, e := range l.confirmed {
		if e.instrument == instrument {
			total += e.notional
		}
	}
	return total
}

func (l *Ledger) totalCommittedLocked() float64 {
	total := 0.0
	for _, e := range l.pending {
		total += e.notional
	}
	for _, e := range l.confirmed {
		total += e.notional
	}
	return total
}
