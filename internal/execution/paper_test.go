package execution

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"tradepulse/internal/domain"
)

type fixedPrice struct{ p decimal.Decimal }

func (f fixedPrice) LastPrice() decimal.Decimal { return f.p }

func collectOutcome(t *testing.T, ch <-chan domain.ExecutionOutcome) domain.ExecutionOutcome {
	t.Helper()
	select {
	case out := <-ch:
		return out
	case <-time.After(time.Second):
		t.Fatal("no outcome delivered")
		return domain.ExecutionOutcome{}
	}
}

func TestPaperExecutor_MarketFillsAtLastPrice(t *testing.T) {
	outs := make(chan domain.ExecutionOutcome, 1)
	p := NewPaperExecutor(fixedPrice{decimal.NewFromInt(104)}, func(o domain.ExecutionOutcome) { outs <- o }, 0)

	p.Execute(context.Background(), domain.OrderIntent{
		ID:   7,
		Side: domain.SideBuy,
		Type: domain.OrderTypeMarket,
		Qty:  decimal.NewFromInt(2),
	})

	out := collectOutcome(t, outs)
	if out.Kind != domain.OutcomeFilled {
		t.Fatalf("outcome = %s, want FILLED", out.Kind)
	}
	if out.IntentID != 7 {
		t.Errorf("intent id = %d, want 7", out.IntentID)
	}
	if !out.Price.Equal(decimal.NewFromInt(104)) {
		t.Errorf("fill price = %s, want 104", out.Price)
	}
	if !out.Qty.Equal(decimal.NewFromInt(2)) {
		t.Errorf("fill qty = %s, want 2", out.Qty)
	}
}

func TestPaperExecutor_StopFillsAtTrigger(t *testing.T) {
	outs := make(chan domain.ExecutionOutcome, 1)
	p := NewPaperExecutor(fixedPrice{decimal.NewFromInt(104)}, func(o domain.ExecutionOutcome) { outs <- o }, 0)

	p.Execute(context.Background(), domain.OrderIntent{
		ID:           8,
		Side:         domain.SideSell,
		Type:         domain.OrderTypeStopMarket,
		Qty:          decimal.NewFromInt(2),
		TriggerPrice: decimal.NewFromFloat(106.7),
	})

	out := collectOutcome(t, outs)
	if !out.Price.Equal(decimal.NewFromFloat(106.7)) {
		t.Errorf("fill price = %s, want trigger 106.7", out.Price)
	}
}

func TestPaperExecutor_RejectsWithoutPrice(t *testing.T) {
	outs := make(chan domain.ExecutionOutcome, 1)
	p := NewPaperExecutor(fixedPrice{}, func(o domain.ExecutionOutcome) { outs <- o }, 0)

	p.Execute(context.Background(), domain.OrderIntent{ID: 9, Type: domain.OrderTypeMarket})

	out := collectOutcome(t, outs)
	if out.Kind != domain.OutcomeRejected {
		t.Fatalf("outcome = %s, want REJECTED", out.Kind)
	}
	if out.Reason == "" {
		t.Error("rejection must carry a reason")
	}
}

func TestPaperExecutor_LatencyRespectsCancel(t *testing.T) {
	outs := make(chan domain.ExecutionOutcome, 1)
	p := NewPaperExecutor(fixedPrice{decimal.NewFromInt(100)}, func(o domain.ExecutionOutcome) { outs <- o }, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	p.Execute(ctx, domain.OrderIntent{ID: 10, Type: domain.OrderTypeMarket})
	cancel()

	select {
	case out := <-outs:
		t.Fatalf("no outcome expected after cancel, got %s", out.Kind)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestEmitter_MarksDryRunIntents(t *testing.T) {
	outs := make(chan domain.ExecutionOutcome, 1)
	exec := NewPaperExecutor(fixedPrice{decimal.NewFromInt(100)}, func(o domain.ExecutionOutcome) { outs <- o }, 0)
	em := NewEmitter(exec, true)

	stamped := em.Emit(context.Background(), domain.OrderIntent{
		ID:   1,
		Side: domain.SideBuy,
		Type: domain.OrderTypeMarket,
		Qty:  decimal.NewFromInt(1),
	})

	if !stamped.Simulated {
		t.Error("dry-run emitter must mark intents simulated")
	}
	collectOutcome(t, outs)

	em = NewEmitter(exec, false)
	stamped = em.Emit(context.Background(), domain.OrderIntent{ID: 2, Type: domain.OrderTypeMarket, Qty: decimal.NewFromInt(1)})
	if stamped.Simulated {
		t.Error("live emitter must not mark intents simulated")
	}
	collectOutcome(t, outs)
}
