package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alejandrodnm/tradebot/config"
	"github.com/alejandrodnm/tradebot/internal/adapters/marketdata"
	"github.com/alejandrodnm/tradebot/internal/application/engine/backtest"
	"github.com/alejandrodnm/tradebot/internal/ports"
	"github.com/alejandrodnm/tradebot/internal/risk"
	"github.com/alejandrodnm/tradebot/internal/strategy"
)

// backtestStart anchors the synthetic series so reruns replay the exact same
// bars.
var backtestStart = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// runBacktest replays a deterministic synthetic series through the pipeline
// and prints the resulting metrics.
func runBacktest(ctx context.Context, cfg *config.Config, strategies []strategy.Strategy, notifier ports.Notifier) error {
	symbols := symbolNames(cfg)

	series := marketdata.GenerateSeries(symbols, cfg.Backtest.Bars, cfg.CycleInterval(), backtestStart)
	source, err := marketdata.NewReplay(series)
	if err != nil {
		return fmt.Errorf("runBacktest: %w", err)
	}

	pipeline := buildPipeline(cfg, strategies)
	pipeline.Data = source
	if cfg.Backtest.RateLimitEnabled {
		// Keyed off simulated bar timestamps, not wall-clock time.
		pipeline.Limiter = risk.NewRateLimiter(cfg.Execution.MaxOrdersPerMinute, time.Minute)
	}

	eng := backtest.New(
		backtest.Config{InitialCapital: cfg.Execution.InitialCapital},
		pipeline,
		source,
		symbols,
	)

	slog.Info("backtest starting",
		"bars", cfg.Backtest.Bars,
		"symbols", len(symbols),
		"strategies", len(strategies),
	)

	result, err := eng.Run(ctx)
	if err != nil {
		return err
	}

	if err := notifier.NotifyBacktest(ctx, *result); err != nil {
		slog.Warn("notifier error", "err", err)
	}
	return nil
}
