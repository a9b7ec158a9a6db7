package reporting

import (
	"time"

	"github.com/quantfold/strategy-engine/pkg/types"
)

// SessionSummary aggregates one engine run for reporting.
type SessionSummary struct {
	Session   string
	StartedAt time.Time
	EndedAt   time.Time

	Ticks      int
	Signals    int
	Entries    int
	Exits      int
	Drops      int
	Rejections int

	ClosedPositions []*types.Position
	Exposure        []types.ExposureRecord
}

// RealizedPnL sums closing profit and loss across the session.
func (s *SessionSummary) RealizedPnL() float64 {
	total := 0.0
	for _, pos := range s.ClosedPositions {
		total += pos.UnrealizedPnL(pos.ExitPrice)
	}
	return total
}

// WinningTrades counts closed positions with positive PnL.
func (s *SessionSummary) WinningTrades() int {
	wins := 0
	for _, pos := range s.ClosedPositions {
		if pos.UnrealizedPnL(pos.ExitPrice) > 0 {
			wins++
		}
	}
	return wins
}
