// Package risk drives the position state machine: entries, exits, and the
// trailing stop. Transitions are serialized by the engine loop; the
// manager itself performs no I/O — it returns order intents for the
// emitter and consumes execution outcomes.
package risk

import (
	"time"

	"github.com/shopspring/decimal"

	"tradepulse/internal/domain"
)

// State is the position machine state.
type State int

const (
	StateFlat State = iota
	StateEntering
	StateLong
	StateShort
	StateExiting
)

// String returns the string representation of State
func (s State) String() string {
	switch s {
	case StateFlat:
		return "FLAT"
	case StateEntering:
		return "ENTERING"
	case StateLong:
		return "IN_POSITION_LONG"
	case StateShort:
		return "IN_POSITION_SHORT"
	case StateExiting:
		return "EXITING"
	default:
		return "UNKNOWN"
	}
}

// Config holds the validated risk parameters. Fractions are plain ratios
// (0.02 = 2%).
type Config struct {
	Symbol        string
	Leverage      int
	RiskPerTrade  decimal.Decimal // fraction of balance risked per entry
	InitialSL     decimal.Decimal // initial stop distance from entry
	DynamicSL     decimal.Decimal // trailing distance once the stop ratchets
	MinNotional   decimal.Decimal // exchange minimum order value
	IntentTimeout time.Duration   // unconfirmed intents fail after this wait
}

type purpose int

const (
	purposeEntry purpose = iota + 1
	purposeExit
)

// pending tracks the single in-flight intent. Only one transition may be
// in flight at a time; signals arriving meanwhile are ignored, not queued.
type pending struct {
	intent   domain.OrderIntent
	purpose  purpose
	side     string // target position side for entries
	prior    State  // stable state to revert to on failure
	deadline time.Time
}

// Manager owns the Position and the trailing stop.
type Manager struct {
	cfg     Config
	state   State
	balance decimal.Decimal
	pos     domain.Position
	pending *pending
	nextID  uint64
}

// NewManager creates a flat manager with the given paper/account balance.
func NewManager(cfg Config, balance decimal.Decimal) *Manager {
	return &Manager{
		cfg:     cfg,
		state:   StateFlat,
		balance: balance,
		pos:     domain.Position{Side: domain.PositionFlat},
	}
}

// State returns the current machine state.
func (m *Manager) State() State { return m.state }

// Position returns a copy of the current position.
func (m *Manager) Position() domain.Position { return m.pos }

// Balance returns the tracked account balance.
func (m *Manager) Balance() decimal.Decimal { return m.balance }

// OnSignal consumes one evaluated signal. It may return an entry intent
// (from FLAT) or a reversal exit intent (from an open position). While a
// transition is in flight the signal is dropped.
func (m *Manager) OnSignal(sig domain.Signal, price decimal.Decimal, now time.Time) *domain.OrderIntent {
	if sig == domain.SignalHold || price.IsZero() {
		return nil
	}

	switch m.state {
	case StateFlat:
		return m.enter(sig, price, now)
	case StateLong:
		if sig == domain.SignalSell {
			return m.exit(domain.OrderTypeMarket, decimal.Decimal{}, now)
		}
	case StateShort:
		if sig == domain.SignalBuy {
			return m.exit(domain.OrderTypeMarket, decimal.Decimal{}, now)
		}
	case StateEntering, StateExiting:
		// One transition in flight at a time.
	}
	return nil
}

// OnPrice consumes a price update while in position: it advances the
// water mark, ratchets the trailing stop (never backward), and emits an
// exit intent when the price crosses the stop.
func (m *Manager) OnPrice(price decimal.Decimal, now time.Time) *domain.OrderIntent {
	if price.IsZero() {
		return nil
	}

	one := decimal.NewFromInt(1)
	switch m.state {
	case StateLong:
		if price.GreaterThan(m.pos.WaterMark) {
			m.pos.WaterMark = price
		}
		candidate := price.Mul(one.Sub(m.cfg.DynamicSL))
		if candidate.GreaterThan(m.pos.Stop) {
			m.pos.Stop = candidate
			m.pos.TrailArmed = true
		}
		if price.LessThanOrEqual(m.pos.Stop) {
			return m.exit(domain.OrderTypeStopMarket, m.pos.Stop, now)
		}

	case StateShort:
		if price.LessThan(m.pos.WaterMark) {
			m.pos.WaterMark = price
		}
		candidate := price.Mul(one.Add(m.cfg.DynamicSL))
		if candidate.LessThan(m.pos.Stop) {
			m.pos.Stop = candidate
			m.pos.TrailArmed = true
		}
		if price.GreaterThanOrEqual(m.pos.Stop) {
			return m.exit(domain.OrderTypeStopMarket, m.pos.Stop, now)
		}
	}
	return nil
}

// OnExecution resolves the in-flight intent. Entry fills open the
// position and arm the initial stop; exit fills flatten it and return the
// closed round trip. Rejections and timeouts revert to the prior stable
// state — FLAT for entries, the open position for exits — and are never
// retried without a fresh qualifying trigger.
func (m *Manager) OnExecution(out domain.ExecutionOutcome, now time.Time) *domain.ClosedTrade {
	p := m.pending
	if p == nil || p.intent.ID != out.IntentID {
		return nil
	}
	m.pending = nil

	if out.Kind != domain.OutcomeFilled {
		m.state = p.prior
		return nil
	}

	switch p.purpose {
	case purposeEntry:
		if out.Price.IsZero() {
			// A fill the machine cannot account for is treated as failed;
			// under-trading beats duplicate exposure.
			m.state = p.prior
			return nil
		}
		m.openPosition(p, out, now)
		return nil
	case purposeExit:
		if out.Price.IsZero() {
			// Booking PnL against a zero exit price would corrupt the
			// balance; treat the fill as failed and keep the position.
			m.state = p.prior
			return nil
		}
		return m.closePosition(out, now)
	}
	return nil
}

// CheckTimeout fails the in-flight intent once its bounded wait expires.
// The synthesized outcome is applied to the machine and returned so the
// caller can surface the failure exactly once.
func (m *Manager) CheckTimeout(now time.Time) *domain.ExecutionOutcome {
	p := m.pending
	if p == nil || now.Before(p.deadline) {
		return nil
	}
	out := domain.ExecutionOutcome{
		IntentID: p.intent.ID,
		Kind:     domain.OutcomeTimeout,
		Ts:       now,
	}
	m.OnExecution(out, now)
	return &out
}

func (m *Manager) enter(sig domain.Signal, price decimal.Decimal, now time.Time) *domain.OrderIntent {
	qty := m.sizeFor(price)
	if qty.IsZero() {
		return nil
	}

	side := domain.SideBuy
	posSide := domain.PositionLong
	if sig == domain.SignalSell {
		side = domain.SideSell
		posSide = domain.PositionShort
	}

	intent := m.newIntent(side, domain.OrderTypeMarket, qty, decimal.Decimal{}, false, now)
	m.pending = &pending{
		intent:   intent,
		purpose:  purposeEntry,
		side:     posSide,
		prior:    StateFlat,
		deadline: now.Add(m.cfg.IntentTimeout),
	}
	m.state = StateEntering
	return &intent
}

func (m *Manager) exit(orderType string, trigger decimal.Decimal, now time.Time) *domain.OrderIntent {
	side := domain.SideSell
	prior := StateLong
	if m.pos.Side == domain.PositionShort {
		side = domain.SideBuy
		prior = StateShort
	}

	intent := m.newIntent(side, orderType, m.pos.Qty, trigger, true, now)
	m.pending = &pending{
		intent:   intent,
		purpose:  purposeExit,
		prior:    prior,
		deadline: now.Add(m.cfg.IntentTimeout),
	}
	m.state = StateExiting
	return &intent
}

func (m *Manager) openPosition(p *pending, out domain.ExecutionOutcome, now time.Time) {
	entry := out.Price
	qty := out.Qty
	if qty.IsZero() {
		qty = p.intent.Qty
	}

	one := decimal.NewFromInt(1)
	var stop decimal.Decimal
	if p.side == domain.PositionLong {
		stop = entry.Mul(one.Sub(m.cfg.InitialSL))
		m.state = StateLong
	} else {
		stop = entry.Mul(one.Add(m.cfg.InitialSL))
		m.state = StateShort
	}

	m.pos = domain.Position{
		Side:        p.side,
		Entry:       entry,
		Qty:         qty,
		Leverage:    m.cfg.Leverage,
		InitialStop: stop,
		Stop:        stop,
		WaterMark:   entry,
		OpenedAt:    now,
	}
}

func (m *Manager) closePosition(out domain.ExecutionOutcome, now time.Time) *domain.ClosedTrade {
	exit := out.Price
	qty := m.pos.Qty

	pnl := exit.Sub(m.pos.Entry).Mul(qty)
	if m.pos.Side == domain.PositionShort {
		pnl = pnl.Neg()
	}
	m.balance = m.balance.Add(pnl)

	closed := &domain.ClosedTrade{
		Symbol:   m.cfg.Symbol,
		Side:     m.pos.Side,
		Entry:    m.pos.Entry,
		Exit:     exit,
		Qty:      qty,
		Pnl:      pnl,
		OpenedAt: m.pos.OpenedAt,
		ClosedAt: now,
	}

	m.pos = domain.Position{Side: domain.PositionFlat}
	m.state = StateFlat
	return closed
}

// sizeFor computes the entry quantity: balance x risk fraction x leverage
// at the given price, rounded to the lot precision. Returns zero when the
// resulting notional would sit under the exchange minimum.
func (m *Manager) sizeFor(price decimal.Decimal) decimal.Decimal {
	notional := m.balance.Mul(m.cfg.RiskPerTrade).Mul(decimal.NewFromInt(int64(m.cfg.Leverage)))
	qty := notional.Div(price).Round(3)
	if qty.Mul(price).LessThan(m.cfg.MinNotional) {
		return decimal.Decimal{}
	}
	return qty
}

func (m *Manager) newIntent(side, orderType string, qty, trigger decimal.Decimal, reduceOnly bool, now time.Time) domain.OrderIntent {
	m.nextID++
	return domain.OrderIntent{
		ID:           m.nextID,
		Symbol:       m.cfg.Symbol,
		Side:         side,
		Type:         orderType,
		Qty:          qty,
		TriggerPrice: trigger,
		ReduceOnly:   reduceOnly,
		CreatedAt:    now,
	}
}
