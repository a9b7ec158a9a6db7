package types

import "time"

// OrderRequest is a sized, gate-approved order on its way to the
// execution boundary. It is transient: it exists between gate acceptance
// and gateway acknowledgment.
type OrderRequest struct {
	Instrument       string
	Action           SignalAction
	Quantity         float64
	LimitPrice       *float64
	NotionalEstimate float64
	StrategyID       string
	ClientOrderID    string
	SubmittedAt      time.Time
}

// OrderStatus is the gateway's answer for a submitted order.
type OrderStatus int

const (
	OrderAccepted OrderStatus = iota
	OrderRejected
	OrderPending
)

func (s OrderStatus) String() string {
	switch s {
	case OrderAccepted:
		return "ACCEPTED"
	case OrderRejected:
		return "REJECTED"
	case OrderPending:
		return "PENDING"
	default:
		return "UNKNOWN"
	}
}

// OrderResult carries the gateway outcome. FillPrice and FillQuantity
// are meaningful only when Status is OrderAccepted.
type OrderResult struct {
	Status       OrderStatus
	FillPrice    float64
	FillQuantity float64
	Reason       string
}

// ExposureRecord is a derived snapshot of committed notional for one
// instrument: open positions plus in-flight reservations.
type ExposureRecord struct {
	Instrument        string
	CommittedNotional float64
	AsOf              time.Time
}
