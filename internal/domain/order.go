package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	SideBuy  = "BUY"
	SideSell = "SELL"

	OrderTypeMarket     = "MARKET"
	OrderTypeStopMarket = "STOP_MARKET"
)

// OrderIntent is the abstract order the core hands to the execution
// collaborator. It carries no exchange-specific detail.
type OrderIntent struct {
	ID           uint64
	Symbol       string
	Side         string // "BUY", "SELL"
	Type         string // "MARKET", "STOP_MARKET"
	Qty          decimal.Decimal
	TriggerPrice decimal.Decimal // zero for market orders
	ReduceOnly   bool
	Simulated    bool // marked by the emitter in dry-run mode
	CreatedAt    time.Time
}

// OutcomeKind enumerates the terminal results of an order intent.
type OutcomeKind int

const (
	OutcomeFilled OutcomeKind = iota + 1
	OutcomeRejected
	OutcomeTimeout
)

// String returns the string representation of OutcomeKind
func (k OutcomeKind) String() string {
	switch k {
	case OutcomeFilled:
		return "FILLED"
	case OutcomeRejected:
		return "REJECTED"
	case OutcomeTimeout:
		return "TIMEOUT"
	default:
		return "UNKNOWN"
	}
}

// ExecutionOutcome reports how an emitted intent resolved. The execution
// boundary returns these explicit variants instead of raising errors, so
// the risk state machine consumes them deterministically.
type ExecutionOutcome struct {
	IntentID uint64
	Kind     OutcomeKind
	Price    decimal.Decimal // average fill price, filled only
	Qty      decimal.Decimal // cumulative filled quantity
	Reason   string          // rejected only
	Ts       time.Time
}
