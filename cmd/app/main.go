package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tradepulse/internal/app"
	"tradepulse/internal/infra"
	"tradepulse/internal/infra/binance"

	_ "net/http/pprof" // For pprof profiling
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the config file")
	flag.Parse()

	// 1. Pprof Server (for performance profiling)
	go func() {
		// Localhost only for security
		slog.Info("🕵️ Pprof server started on localhost:6060")
		if err := http.ListenAndServe("localhost:6060", nil); err != nil {
			slog.Error("Pprof server failed", slog.Any("error", err))
		}
	}()

	// 2. System Bootstrapping
	bootstrap := app.NewBootstrap()
	if err := bootstrap.Initialize(*configPath); err != nil {
		slog.Error("❌ Bootstrapping failed", slog.Any("error", err))
		os.Exit(1)
	}
	cfg := bootstrap.Config

	// 3. Graceful Shutdown Context
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 4. Metrics Server
	metricsSrv := infra.ServeMetrics(cfg.Metrics.Addr, func() any {
		return bootstrap.Engine.Status()
	})
	slog.InfoContext(ctx, "✅ Metrics server started", slog.String("addr", cfg.Metrics.Addr))

	// 5. Start the Decision Engine (The Hotpath Loop)
	engineDone := make(chan struct{})
	go func() {
		bootstrap.Engine.Run(ctx)
		close(engineDone)
	}()
	slog.InfoContext(ctx, "✅ Engine (Hotpath) started")

	// 6. Binance Market Data Worker
	worker := binance.NewWorker(cfg.API.Binance.WSURL, cfg.Market.Symbol, bootstrap.Engine.Inbox())
	if err := worker.Connect(ctx); err != nil {
		slog.Error("Failed to connect Binance", slog.Any("error", err))
	}
	defer worker.Disconnect()
	slog.InfoContext(ctx, "✅ BinanceWorker started", slog.String("symbol", cfg.Market.Symbol))

	slog.InfoContext(ctx, "✨ TradePulse fully operational. Press Ctrl+C to exit.")

	// Wait for shutdown signal
	<-ctx.Done()

	slog.InfoContext(ctx, "👋 Shutting down gracefully...")

	// The engine finishes its in-flight cycle before Run returns; the
	// process must not exit while a journal write is still underway.
	<-engineDone

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = metricsSrv.Shutdown(shutdownCtx)
}
