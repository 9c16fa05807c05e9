package event

import (
	"time"

	"github.com/shopspring/decimal"

	"tradepulse/internal/domain"
)

// Kind identifies the event variant without reflection.
type Kind int

const (
	KindBookUpdate Kind = iota + 1
	KindTrade
	KindTicker
	KindExecution
)

// String returns the string representation of Kind
func (k Kind) String() string {
	switch k {
	case KindBookUpdate:
		return "BOOK_UPDATE"
	case KindTrade:
		return "TRADE"
	case KindTicker:
		return "TICKER"
	case KindExecution:
		return "EXECUTION"
	default:
		return "UNKNOWN"
	}
}

// Event is a normalized market or account event consumed by the engine.
// The core never parses raw wire formats; ingestion workers translate
// exchange payloads into these variants.
type Event interface {
	EventKind() Kind
}

// Level is one price level of the visible book, best-first ordering.
type Level struct {
	Price decimal.Decimal
	Qty   decimal.Decimal
}

// BookUpdate replaces the visible top-N ladders. Sequence is the exchange
// update id; updates with sequence at or below the last applied one are
// stale and must be dropped by the store.
type BookUpdate struct {
	Sequence uint64
	Bids     []Level // best (highest) first
	Asks     []Level // best (lowest) first
	Ts       time.Time
}

func (e *BookUpdate) EventKind() Kind { return KindBookUpdate }

// Trade is a single executed trade from the tape. Immutable once recorded.
// ID is the exchange trade id (monotonic per instrument); the store uses it
// to drop redelivered trades. Zero means no identity is available.
type Trade struct {
	ID        uint64
	Price     decimal.Decimal
	Qty       decimal.Decimal
	Aggressor string // domain.SideBuy if buyer-initiated, domain.SideSell otherwise
	Ts        time.Time
}

func (e *Trade) EventKind() Kind { return KindTrade }

// Ticker carries the latest traded price.
type Ticker struct {
	LastPrice decimal.Decimal
	Ts        time.Time
}

func (e *Ticker) EventKind() Kind { return KindTicker }

// Execution delivers an order intent outcome from the execution collaborator.
type Execution struct {
	Outcome domain.ExecutionOutcome
}

func (e *Execution) EventKind() Kind { return KindExecution }
