// Package execution is the order boundary: the emitter translates risk
// decisions into intents for the executor collaborator and carries no
// risk logic itself.
package execution

import (
	"context"
	"log/slog"

	"tradepulse/internal/domain"
	"tradepulse/internal/infra"
)

// Executor hands an intent to a venue (or a simulation of one). The call
// must not block the engine loop; the outcome is delivered asynchronously
// through the sink the executor was built with.
type Executor interface {
	Execute(ctx context.Context, intent domain.OrderIntent)
}

// OutcomeSink receives execution outcomes. The engine wires this back
// into its inbox so outcomes join the serialized event stream.
type OutcomeSink func(domain.ExecutionOutcome)

// Emitter forwards order intents to the executor, marking them simulated
// in dry-run mode.
type Emitter struct {
	exec   Executor
	dryRun bool
}

// NewEmitter creates an emitter for the given executor.
func NewEmitter(exec Executor, dryRun bool) *Emitter {
	return &Emitter{exec: exec, dryRun: dryRun}
}

// Emit stamps and forwards one intent, returning the stamped copy for
// journaling.
func (e *Emitter) Emit(ctx context.Context, intent domain.OrderIntent) domain.OrderIntent {
	intent.Simulated = e.dryRun

	infra.IntentsTotal.WithLabelValues(intent.Side, intent.Type).Inc()
	slog.Info("order intent",
		slog.Uint64("id", intent.ID),
		slog.String("symbol", intent.Symbol),
		slog.String("side", intent.Side),
		slog.String("type", intent.Type),
		slog.String("qty", intent.Qty.String()),
		slog.String("trigger", intent.TriggerPrice.String()),
		slog.Bool("simulated", intent.Simulated),
	)

	e.exec.Execute(ctx, intent)
	return intent
}
