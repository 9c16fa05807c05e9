// Package app wires the process together: config, logging, storage, and
// the decision engine with its collaborators.
package app

import (
	"log/slog"

	"tradepulse/internal/domain"
	"tradepulse/internal/engine"
	"tradepulse/internal/event"
	"tradepulse/internal/execution"
	"tradepulse/internal/infra"
	"tradepulse/internal/infra/storage"
	"tradepulse/internal/market"
	"tradepulse/internal/risk"
	"tradepulse/internal/strategy"
)

// Bootstrap orchestrates the application startup sequence
type Bootstrap struct {
	Config  *infra.Config
	Storage *storage.Storage
	Engine  *engine.Engine
	Store   *market.Store
}

// NewBootstrap creates a new Bootstrap instance
func NewBootstrap() *Bootstrap {
	return &Bootstrap{}
}

// Initialize performs core system initialization (config, logger, DB).
func (b *Bootstrap) Initialize(configPath string) error {
	slog.Info("🚀 Bootstrapping TradePulse...")

	cfg, err := infra.LoadConfig(configPath)
	if err != nil {
		return err // Let main handle the error
	}
	b.Config = cfg

	logger := infra.NewLogger(cfg)
	slog.SetDefault(logger)

	store, err := storage.NewStorage(cfg.Storage.Path)
	if err != nil {
		return err
	}
	b.Storage = store
	slog.Info("✅ Journal database initialized", slog.String("path", cfg.Storage.Path))

	// Pre-allocate pooled events before the hotpath starts.
	event.Warmup()

	b.buildEngine()
	slog.Info("✅ Decision engine assembled",
		slog.String("symbol", cfg.Market.Symbol),
		slog.Bool("dry_run", cfg.Execution.DryRun),
	)

	return nil
}

// buildEngine assembles the decision core from the validated config.
func (b *Bootstrap) buildEngine() {
	cfg := b.Config

	b.Store = market.NewStore(market.Config{
		BucketInterval: cfg.BucketInterval(),
		VolumeWindow:   cfg.Market.VolumeWindow,
		TradeCap:       cfg.Market.TradeCap,
	})

	strat := strategy.NewGateStrategy(strategy.Thresholds{
		Pressure:      cfg.Strategy.PressureThreshold,
		Dominance:     cfg.Strategy.DominanceThreshold,
		ZScoreMin:     cfg.Strategy.ZScoreMin,
		RSIOverbought: cfg.Strategy.RSIOverbought,
		RSIOversold:   cfg.Strategy.RSIOversold,
	})

	mgr := risk.NewManager(risk.Config{
		Symbol:        cfg.Market.Symbol,
		Leverage:      cfg.Risk.Leverage,
		RiskPerTrade:  cfg.Risk.RiskPerTrade,
		InitialSL:     cfg.Risk.InitialSL,
		DynamicSL:     cfg.Risk.DynamicSL,
		MinNotional:   cfg.Risk.MinNotional,
		IntentTimeout: cfg.IntentTimeout(),
	}, cfg.Risk.InitialBalance)

	// The paper executor's sink feeds outcomes back through the engine
	// inbox so they join the serialized event stream.
	var eng *engine.Engine
	paper := execution.NewPaperExecutor(b.Store, func(out domain.ExecutionOutcome) {
		eng.SubmitOutcome(out)
	}, cfg.PaperLatency())
	emitter := execution.NewEmitter(paper, cfg.Execution.DryRun)

	eng = engine.New(engine.Config{
		DominanceWindow: cfg.DominanceWindow(),
		ZScoreSamples:   cfg.Market.VolumeWindow,
		EMAFastPeriod:   cfg.Strategy.EMAFastPeriod,
		EMASlowPeriod:   cfg.Strategy.EMASlowPeriod,
		RSIPeriod:       cfg.Strategy.RSIPeriod,
		DecisionBatch:   cfg.Engine.DecisionBatch,
		TickInterval:    cfg.TickInterval(),
	}, cfg.Engine.InboxSize, b.Store, strat, mgr, emitter, b.Storage)

	b.Engine = eng
}
