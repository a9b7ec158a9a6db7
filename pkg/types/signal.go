package types

import (
	"fmt"
	"time"
)

// SignalAction represents the type of trading action a strategy requests
type SignalAction int

const (
	ActionBuy SignalAction = iota
	ActionSell
	ActionExit
)

func (a SignalAction) String() string {
	switch a {
	case ActionBuy:
		return "BUY"
	case ActionSell:
		return "SELL"
	case ActionExit:
		return "EXIT"
	default:
		return "UNKNOWN"
	}
}

// Signal is an immutable trading intent produced by a strategy.
// It carries no side effects until consumed by the position sizer.
type Signal struct {
	Instrument     string
	Action         SignalAction
	Strength       float64
	ReferencePrice float64
	ReasonCode     string
	StrategyID     string
	GeneratedAt    time.Time
}

// Hash identifies a signal for cooldown/dedupe purposes. The reference
// price is bucketed so near-identical re-fires collapse onto one key.
func (s Signal) Hash() string {
	bucket := int64(s.ReferencePrice*100) / 5
	return fmt.Sprintf("%s|%s|%s|%s|%d", s.StrategyID, s.Instrument, s.Action, s.ReasonCode, bucket)
}
