// Package engine runs the decision loop: one goroutine owns the market
// store, indicator trackers, signal strategy, and risk manager, so every
// mutation and every transition is serialized through a single point.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"tradepulse/internal/domain"
	"tradepulse/internal/event"
	"tradepulse/internal/execution"
	"tradepulse/internal/indicator"
	"tradepulse/internal/infra"
	"tradepulse/internal/market"
	"tradepulse/internal/risk"
	"tradepulse/internal/strategy"
)

// Journal receives the structured events the core emits for the external
// log/trade-history sink. All methods must tolerate being called from the
// engine goroutine only.
type Journal interface {
	SaveIntent(intent domain.OrderIntent) error
	SaveOutcome(out domain.ExecutionOutcome) error
	SaveClosedTrade(tr domain.ClosedTrade) error
}

// Config tunes the decision loop.
type Config struct {
	DominanceWindow time.Duration // trade look-back for the dominance ratio
	ZScoreSamples   int           // K closed buckets for the volume z-score
	EMAFastPeriod   int
	EMASlowPeriod   int
	RSIPeriod       int

	// DecisionBatch bounds burst coalescing: after the first event the
	// engine drains up to this many queued events before evaluating once.
	DecisionBatch int

	// TickInterval drives bucket rollover and intent-timeout checks even
	// when the market is silent.
	TickInterval time.Duration
}

// DefaultConfig matches the strategy's tuned windows.
func DefaultConfig() Config {
	return Config{
		DominanceWindow: time.Minute,
		ZScoreSamples:   20,
		EMAFastPeriod:   12,
		EMASlowPeriod:   26,
		RSIPeriod:       14,
		DecisionBatch:   64,
		TickInterval:    time.Second,
	}
}

// Status is a point-in-time external view of the engine.
type Status struct {
	State        string          `json:"state"`
	Position     domain.Position `json:"position"`
	Balance      decimal.Decimal `json:"balance"`
	LastSignal   string          `json:"last_signal"`
	BookSequence uint64          `json:"book_sequence"`
	LastCycle    time.Time       `json:"last_cycle"`
}

// Engine is the single-threaded decision core.
type Engine struct {
	cfg     Config
	inbox   chan event.Event
	store   *market.Store
	strat   strategy.Strategy
	mgr     *risk.Manager
	emitter *execution.Emitter
	journal Journal

	emaFast *indicator.EMA
	emaSlow *indicator.EMA
	rsi     *indicator.RSI

	mu     sync.RWMutex // external status reads only
	status Status
}

// New creates an engine. journal may be nil.
func New(cfg Config, inboxSize int, store *market.Store, strat strategy.Strategy, mgr *risk.Manager, emitter *execution.Emitter, journal Journal) *Engine {
	return &Engine{
		cfg:     cfg,
		inbox:   make(chan event.Event, inboxSize),
		store:   store,
		strat:   strat,
		mgr:     mgr,
		emitter: emitter,
		journal: journal,
		emaFast: indicator.NewEMA(cfg.EMAFastPeriod),
		emaSlow: indicator.NewEMA(cfg.EMASlowPeriod),
		rsi:     indicator.NewRSI(cfg.RSIPeriod),
	}
}

// Inbox returns the event channel. Ingestion workers send here.
func (e *Engine) Inbox() chan<- event.Event {
	return e.inbox
}

// SubmitOutcome feeds an execution outcome back into the serialized event
// stream. Executors use this as their sink.
func (e *Engine) SubmitOutcome(out domain.ExecutionOutcome) {
	e.inbox <- &event.Execution{Outcome: out}
}

// Run starts the decision loop. This MUST be run in a single goroutine.
// On cancellation the in-flight cycle completes before Run returns, so a
// position or stop level is never abandoned mid-transition.
func (e *Engine) Run(ctx context.Context) {
	slog.Info("engine started (single-writer decision loop)")

	defer func() {
		if r := recover(); r != nil {
			slog.Error("CRITICAL_PANIC_DETECTED", slog.Any("panic", r))
			e.DumpState("panic_dump.json")
			panic(fmt.Sprintf("HALTED: %v", r))
		}
	}()

	ticker := time.NewTicker(e.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("engine stopping")
			return
		case now := <-ticker.C:
			// Silent market: buckets still close and pending intents
			// still time out.
			e.decide(ctx, now)
		case ev := <-e.inbox:
			changed := e.apply(ev)
			// Coalesce bursts: drain a bounded batch before deciding so
			// n queued events produce one evaluation, deterministically.
			for i := 0; i < e.cfg.DecisionBatch; i++ {
				var more event.Event
				select {
				case more = <-e.inbox:
				default:
				}
				if more == nil {
					break
				}
				if e.apply(more) {
					changed = true
				}
			}
			if changed {
				e.decide(ctx, time.Now())
			}
		}
	}
}

// apply folds one event into the store or the risk manager. It reports
// whether the event changed state a decision could depend on.
func (e *Engine) apply(ev event.Event) bool {
	infra.EventsTotal.WithLabelValues(ev.EventKind().String()).Inc()

	switch ev := ev.(type) {
	case *event.BookUpdate:
		ok := e.store.ApplyBookUpdate(ev)
		if !ok {
			// Data-integrity guard, not an error.
			infra.StaleDropsTotal.Inc()
		}
		event.ReleaseBookUpdate(ev)
		return ok

	case *event.Trade:
		ok := e.store.RecordTrade(ev)
		if !ok {
			infra.StaleDropsTotal.Inc()
		}
		event.ReleaseTrade(ev)
		return ok

	case *event.Ticker:
		e.store.SetLastPrice(ev.LastPrice, ev.Ts)
		return true

	case *event.Execution:
		e.applyOutcome(ev.Outcome, time.Now())
		return true

	default:
		slog.Warn("unknown event kind", slog.Any("kind", ev.EventKind()))
		return false
	}
}

func (e *Engine) applyOutcome(out domain.ExecutionOutcome, now time.Time) {
	infra.OutcomesTotal.WithLabelValues(out.Kind.String()).Inc()
	if e.journal != nil {
		if err := e.journal.SaveOutcome(out); err != nil {
			slog.Error("journal outcome failed", slog.Any("error", err))
		}
	}

	closed := e.mgr.OnExecution(out, now)
	switch out.Kind {
	case domain.OutcomeFilled:
		slog.Info("intent filled",
			slog.Uint64("id", out.IntentID),
			slog.String("price", out.Price.String()),
			slog.String("state", e.mgr.State().String()))
	default:
		slog.Warn("intent failed",
			slog.Uint64("id", out.IntentID),
			slog.String("kind", out.Kind.String()),
			slog.String("reason", out.Reason),
			slog.String("state", e.mgr.State().String()))
	}

	if closed != nil {
		slog.Info("round trip closed",
			slog.String("side", closed.Side),
			slog.String("entry", closed.Entry.String()),
			slog.String("exit", closed.Exit.String()),
			slog.String("pnl", closed.Pnl.String()))
		if e.journal != nil {
			if err := e.journal.SaveClosedTrade(*closed); err != nil {
				slog.Error("journal trade failed", slog.Any("error", err))
			}
		}
	}
}

// decide runs one full cycle: bucket rollover, timeout check, snapshot,
// evaluation, and at most one risk transition.
func (e *Engine) decide(ctx context.Context, now time.Time) {
	start := time.Now()

	for _, b := range e.store.Tick(now) {
		if b.Close.IsZero() {
			continue
		}
		c, _ := b.Close.Float64()
		e.emaFast.Update(c)
		e.emaSlow.Update(c)
		e.rsi.Update(c)
	}

	if out := e.mgr.CheckTimeout(now); out != nil {
		e.applyOutcome(*out, now)
	}

	snap := e.store.Snapshot()
	reading := e.buildReading(snap, now)
	sig := e.strat.Evaluate(reading)
	infra.SignalsTotal.WithLabelValues(sig.String()).Inc()

	price := snap.LastPrice

	// Stop maintenance first: risk control outranks signal continuation.
	if intent := e.mgr.OnPrice(price, now); intent != nil {
		e.emitIntent(ctx, *intent)
	}
	if intent := e.mgr.OnSignal(sig, price, now); intent != nil {
		e.emitIntent(ctx, *intent)
	}

	e.mu.Lock()
	e.status = Status{
		State:        e.mgr.State().String(),
		Position:     e.mgr.Position(),
		Balance:      e.mgr.Balance(),
		LastSignal:   sig.String(),
		BookSequence: snap.BookSequence,
		LastCycle:    now,
	}
	e.mu.Unlock()

	infra.DecisionSeconds.Observe(time.Since(start).Seconds())
}

func (e *Engine) emitIntent(ctx context.Context, intent domain.OrderIntent) {
	stamped := e.emitter.Emit(ctx, intent)
	if e.journal != nil {
		if err := e.journal.SaveIntent(stamped); err != nil {
			slog.Error("journal intent failed", slog.Any("error", err))
		}
	}
}

func (e *Engine) buildReading(snap market.Snapshot, now time.Time) domain.Reading {
	fast, fastReady := e.emaFast.Value()
	slow, slowReady := e.emaSlow.Value()
	rsiV, _ := e.rsi.Value()
	vwapDev, vwapReady := indicator.VWAPDeviation(snap.LastPrice, snap.VWAPNotional, snap.VWAPVolume)
	last, _ := snap.LastPrice.Float64()

	return domain.Reading{
		Pressure:  indicator.Pressure(snap.BidVolume, snap.AskVolume),
		Dominance: indicator.Dominance(snap.Trades, e.cfg.DominanceWindow, now),
		VolumeZ:   indicator.VolumeZScore(snap.ClosedVolumes, snap.CurrentVolume, e.cfg.ZScoreSamples),
		EMAFast:   fast,
		EMASlow:   slow,
		EMAReady:  fastReady && slowReady,
		RSI:       rsiV,
		VWAPDev:   vwapDev,
		VWAPReady: vwapReady,
		LastPrice: last,
		Ts:        now,
	}
}

// Status returns the current external view (safe from any goroutine).
func (e *Engine) Status() Status {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.status
}

// DumpState writes the engine's view to a file (for post-mortem).
func (e *Engine) DumpState(filename string) {
	slog.Info("dumping engine state", slog.String("file", filename))

	b, err := json.MarshalIndent(e.Status(), "", "  ")
	if err != nil {
		slog.Error("failed to marshal state", slog.Any("error", err))
		return
	}
	if err := os.WriteFile(filename, b, 0644); err != nil {
		slog.Error("failed to write state dump", slog.Any("error", err))
	}
}
