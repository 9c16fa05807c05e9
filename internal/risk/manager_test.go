package risk

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradepulse/internal/domain"
)

func testConfig() Config {
	return Config{
		Symbol:        "LTCUSDT",
		Leverage:      20,
		RiskPerTrade:  decimal.NewFromFloat(0.9),
		InitialSL:     decimal.NewFromFloat(0.02),
		DynamicSL:     decimal.NewFromFloat(0.03),
		MinNotional:   decimal.NewFromInt(20),
		IntentTimeout: 5 * time.Second,
	}
}

func dec(v float64) decimal.Decimal { return decimal.NewFromFloat(v) }

func fill(id uint64, price, qty float64, ts time.Time) domain.ExecutionOutcome {
	return domain.ExecutionOutcome{
		IntentID: id,
		Kind:     domain.OutcomeFilled,
		Price:    dec(price),
		Qty:      dec(qty),
		Ts:       ts,
	}
}

// openLong drives the machine FLAT -> ENTERING -> IN_POSITION_LONG at the
// given entry price.
func openLong(t *testing.T, m *Manager, entry float64, now time.Time) *domain.OrderIntent {
	t.Helper()
	intent := m.OnSignal(domain.SignalBuy, dec(entry), now)
	require.NotNil(t, intent, "entry intent expected")
	require.Equal(t, StateEntering, m.State())

	m.OnExecution(fill(intent.ID, entry, 0, now), now)
	require.Equal(t, StateLong, m.State())
	return intent
}

func TestManager_EntrySizing(t *testing.T) {
	m := NewManager(testConfig(), decimal.NewFromInt(1000))
	now := time.Unix(1000, 0)

	intent := m.OnSignal(domain.SignalBuy, dec(100), now)
	require.NotNil(t, intent)

	// 1000 * 0.9 * 20 / 100 = 180
	assert.True(t, intent.Qty.Equal(dec(180)), "qty = %s", intent.Qty)
	assert.Equal(t, domain.SideBuy, intent.Side)
	assert.Equal(t, domain.OrderTypeMarket, intent.Type)
	assert.False(t, intent.ReduceOnly)
}

func TestManager_MinNotionalGuard(t *testing.T) {
	m := NewManager(testConfig(), dec(0.05)) // 0.05 * 0.9 * 20 = 0.9 notional
	now := time.Unix(1000, 0)

	intent := m.OnSignal(domain.SignalBuy, dec(100), now)
	assert.Nil(t, intent, "sub-minimum notional must not produce an intent")
	assert.Equal(t, StateFlat, m.State())
}

func TestManager_InitialStop(t *testing.T) {
	m := NewManager(testConfig(), decimal.NewFromInt(1000))
	now := time.Unix(1000, 0)

	openLong(t, m, 100, now)

	pos := m.Position()
	assert.Equal(t, domain.PositionLong, pos.Side)
	// entry 100, INITIAL_SL 2% -> stop 98
	assert.True(t, pos.Stop.Equal(dec(98)), "stop = %s, want 98", pos.Stop)
	assert.False(t, pos.TrailArmed)
}

func TestManager_TrailingStopRatchet(t *testing.T) {
	m := NewManager(testConfig(), decimal.NewFromInt(1000))
	now := time.Unix(1000, 0)
	openLong(t, m, 100, now)

	// Price rises to 110: stop ratchets to 110 * 0.97 = 106.7.
	intent := m.OnPrice(dec(110), now)
	assert.Nil(t, intent, "favorable move must not exit")
	pos := m.Position()
	require.True(t, pos.TrailArmed)
	assert.True(t, pos.Stop.Equal(dec(106.7)), "stop = %s, want 106.7", pos.Stop)
	assert.True(t, pos.WaterMark.Equal(dec(110)))

	// Dip to 105: the stop must not loosen, and crossing it exits.
	intent = m.OnPrice(dec(105), now)
	pos = m.Position()
	assert.True(t, pos.Stop.Equal(dec(106.7)), "stop loosened to %s", pos.Stop)
	require.NotNil(t, intent, "stop cross must emit an exit intent")
	assert.Equal(t, domain.OrderTypeStopMarket, intent.Type)
	assert.True(t, intent.TriggerPrice.Equal(dec(106.7)))
	assert.True(t, intent.ReduceOnly)
	assert.Equal(t, StateExiting, m.State())
}

func TestManager_TrailingStopMonotonicOverPath(t *testing.T) {
	m := NewManager(testConfig(), decimal.NewFromInt(1000))
	now := time.Unix(1000, 0)
	openLong(t, m, 100, now)

	path := []float64{101, 104, 103, 108, 107.5, 112, 111}
	prevStop := m.Position().Stop
	for _, p := range path {
		if m.State() != StateLong {
			break
		}
		m.OnPrice(dec(p), now)
		stop := m.Position().Stop
		assert.True(t, stop.GreaterThanOrEqual(prevStop),
			"stop loosened at price %.1f: %s -> %s", p, prevStop, stop)
		prevStop = stop
	}
}

func TestManager_ShortSideMirror(t *testing.T) {
	m := NewManager(testConfig(), decimal.NewFromInt(1000))
	now := time.Unix(1000, 0)

	intent := m.OnSignal(domain.SignalSell, dec(100), now)
	require.NotNil(t, intent)
	assert.Equal(t, domain.SideSell, intent.Side)

	m.OnExecution(fill(intent.ID, 100, 0, now), now)
	require.Equal(t, StateShort, m.State())

	pos := m.Position()
	// entry 100, INITIAL_SL 2% -> stop 102 for a short
	assert.True(t, pos.Stop.Equal(dec(102)), "stop = %s, want 102", pos.Stop)

	// Favorable move down ratchets the stop down: 90 * 1.03 = 92.7.
	m.OnPrice(dec(90), now)
	pos = m.Position()
	assert.True(t, pos.Stop.Equal(dec(92.7)), "stop = %s, want 92.7", pos.Stop)

	// Bounce through the stop exits with a buy.
	exit := m.OnPrice(dec(93), now)
	require.NotNil(t, exit)
	assert.Equal(t, domain.SideBuy, exit.Side)
}

func TestManager_EntryTimeoutRevertsFlat(t *testing.T) {
	m := NewManager(testConfig(), decimal.NewFromInt(1000))
	now := time.Unix(1000, 0)

	intent := m.OnSignal(domain.SignalBuy, dec(100), now)
	require.NotNil(t, intent)
	require.Equal(t, StateEntering, m.State())

	// Before the deadline nothing happens.
	assert.Nil(t, m.CheckTimeout(now.Add(time.Second)))
	assert.Equal(t, StateEntering, m.State())

	// Past the bounded wait the intent fails and the machine reverts.
	out := m.CheckTimeout(now.Add(6 * time.Second))
	require.NotNil(t, out, "timeout outcome must be surfaced")
	assert.Equal(t, domain.OutcomeTimeout, out.Kind)
	assert.Equal(t, intent.ID, out.IntentID)
	assert.Equal(t, StateFlat, m.State())
	pos := m.Position()
	assert.False(t, pos.IsOpen(), "no position may be created")

	// Surfaced exactly once.
	assert.Nil(t, m.CheckTimeout(now.Add(7*time.Second)))
}

func TestManager_ExitFailureRevertsToPosition(t *testing.T) {
	m := NewManager(testConfig(), decimal.NewFromInt(1000))
	now := time.Unix(1000, 0)
	openLong(t, m, 100, now)
	posBefore := m.Position()

	exit := m.OnSignal(domain.SignalSell, dec(101), now)
	require.NotNil(t, exit)
	require.Equal(t, StateExiting, m.State())

	m.OnExecution(domain.ExecutionOutcome{
		IntentID: exit.ID,
		Kind:     domain.OutcomeRejected,
		Reason:   "insufficient margin",
		Ts:       now,
	}, now)

	assert.Equal(t, StateLong, m.State(), "exit failure must revert to the open position")
	assert.True(t, m.Position().Stop.Equal(posBefore.Stop), "stop state must be retained")
}

func TestManager_SignalReversalExits(t *testing.T) {
	m := NewManager(testConfig(), decimal.NewFromInt(1000))
	now := time.Unix(1000, 0)
	openLong(t, m, 100, now)

	// Reversal exits even though the move is favorable.
	exit := m.OnSignal(domain.SignalSell, dec(104), now)
	require.NotNil(t, exit)
	assert.Equal(t, domain.OrderTypeMarket, exit.Type)
	assert.True(t, exit.ReduceOnly)
	assert.Equal(t, StateExiting, m.State())

	closed := m.OnExecution(fill(exit.ID, 104, 0, now), now)
	require.NotNil(t, closed, "closed round trip expected")
	assert.Equal(t, StateFlat, m.State())
	assert.Equal(t, domain.PositionLong, closed.Side)
	assert.True(t, closed.Pnl.GreaterThan(decimal.Zero))
}

func TestManager_IgnoresSignalsWhileInFlight(t *testing.T) {
	m := NewManager(testConfig(), decimal.NewFromInt(1000))
	now := time.Unix(1000, 0)

	first := m.OnSignal(domain.SignalBuy, dec(100), now)
	require.NotNil(t, first)

	// Second BUY while ENTERING is ignored, not queued.
	assert.Nil(t, m.OnSignal(domain.SignalBuy, dec(100), now))
	assert.Nil(t, m.OnSignal(domain.SignalSell, dec(100), now))

	m.OnExecution(fill(first.ID, 100, 0, now), now)
	assert.Equal(t, StateLong, m.State())

	// Continuation signal in the held direction does nothing.
	assert.Nil(t, m.OnSignal(domain.SignalBuy, dec(101), now))
}

func TestManager_PnlUpdatesBalance(t *testing.T) {
	m := NewManager(testConfig(), decimal.NewFromInt(1000))
	now := time.Unix(1000, 0)

	entry := m.OnSignal(domain.SignalBuy, dec(100), now)
	require.NotNil(t, entry)
	m.OnExecution(fill(entry.ID, 100, 0, now), now)

	exit := m.OnSignal(domain.SignalSell, dec(110), now)
	require.NotNil(t, exit)
	closed := m.OnExecution(fill(exit.ID, 110, 0, now), now)
	require.NotNil(t, closed)

	// qty 180, +10 per unit -> +1800 on a 1000 balance.
	assert.True(t, closed.Pnl.Equal(dec(1800)), "pnl = %s", closed.Pnl)
	assert.True(t, m.Balance().Equal(dec(2800)), "balance = %s", m.Balance())
}

func TestManager_ZeroPriceExitFillKeepsPosition(t *testing.T) {
	m := NewManager(testConfig(), decimal.NewFromInt(1000))
	now := time.Unix(1000, 0)
	openLong(t, m, 100, now)
	posBefore := m.Position()

	exit := m.OnSignal(domain.SignalSell, dec(104), now)
	require.NotNil(t, exit)
	require.Equal(t, StateExiting, m.State())

	// A filled exit with no price would book PnL as if the position
	// closed at 0. It must be treated like a failed exit instead.
	closed := m.OnExecution(fill(exit.ID, 0, 0, now), now)
	assert.Nil(t, closed, "no round trip may be booked without an exit price")
	assert.Equal(t, StateLong, m.State())
	assert.True(t, m.Balance().Equal(dec(1000)), "balance = %s, must be untouched", m.Balance())
	assert.True(t, m.Position().Stop.Equal(posBefore.Stop), "stop state must be retained")
}

func TestManager_StaleOutcomeIgnored(t *testing.T) {
	m := NewManager(testConfig(), decimal.NewFromInt(1000))
	now := time.Unix(1000, 0)

	openLong(t, m, 100, now)

	// An outcome for an unknown intent id must not disturb the machine.
	closed := m.OnExecution(fill(999, 100, 1, now), now)
	assert.Nil(t, closed)
	assert.Equal(t, StateLong, m.State())
}
