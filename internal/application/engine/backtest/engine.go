// Package backtest drives the decision pipeline over historical bars with a
// simulated clock, then computes aggregate performance metrics. It shares the
// risk, rate-limit, execution and ledger logic with the live loop; only the
// clock and the data source differ.
package backtest

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/alejandrodnm/tradebot/internal/application/engine"
	"github.com/alejandrodnm/tradebot/internal/domain"
	"github.com/alejandrodnm/tradebot/internal/ports"
)

// ReplaySource is a market data source with a cursor over historical bars.
// GetMarketData and GetPrice only ever expose data up to and including the
// current bar, so strategies cannot look ahead.
type ReplaySource interface {
	ports.MarketData

	// Advance moves the cursor one bar forward and returns its timestamp.
	// ok is false once the series is exhausted.
	Advance() (ts time.Time, ok bool)
}

// Config holds the backtest-specific settings.
type Config struct {
	InitialCapital float64
}

// Engine replays a historical series through the pipeline one bar per cycle.
type Engine struct {
	cfg      Config
	pipeline *engine.Pipeline
	source   ReplaySource
	symbols  []string
}

// New creates a backtest engine. The pipeline's Data must be the same source
// passed here, so that advancing the cursor is what moves simulated time.
func New(cfg Config, pipeline *engine.Pipeline, source ReplaySource, symbols []string) *Engine {
	return &Engine{cfg: cfg, pipeline: pipeline, source: source, symbols: symbols}
}

// Run executes the full replay and returns the result. Identical series and
// configuration always produce an identical result: evaluation order, fill
// resolution and ledger mutation are all deterministic functions of the bar
// data, never of wall-clock time or randomness.
func (e *Engine) Run(ctx context.Context) (*domain.BacktestResult, error) {
	state := domain.NewEngineState(domain.NewLedger(e.cfg.InitialCapital), domain.ModeBacktest)

	var (
		tradeLog   []domain.Fill
		realized   []appliedTrade
		start, end time.Time
		cycles     int
	)

	for {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("backtest.Run: %w", err)
		}
		ts, ok := e.source.Advance()
		if !ok {
			break
		}
		if start.IsZero() {
			start = ts
		}
		end = ts

		result, err := e.pipeline.RunCycle(ctx, state, e.symbols, ts)
		if err != nil {
			return nil, fmt.Errorf("backtest.Run: bar %s: %w", ts.Format(time.RFC3339), err)
		}
		tradeLog = append(tradeLog, result.Fills...)
		realized = append(realized, collectApplied(result)...)
		cycles++
	}

	if cycles == 0 {
		return nil, fmt.Errorf("backtest.Run: empty historical series")
	}

	// Liquidate whatever is still open at the final bar so the result
	// reflects realized performance, not a mark on open risk.
	closeFills, closeRealized, err := e.closePositions(ctx, state, end)
	if err != nil {
		return nil, fmt.Errorf("backtest.Run: close positions: %w", err)
	}
	tradeLog = append(tradeLog, closeFills...)
	realized = append(realized, closeRealized...)

	ledger := state.Ledger
	result := &domain.BacktestResult{
		InitialCapital: e.cfg.InitialCapital,
		FinalEquity:    ledger.Cash,
		StartDate:      start,
		EndDate:        end,
		EquityCurve:    ledger.EquityCurve,
		TradeLog:       tradeLog,
		Metrics:        computeMetrics(e.cfg.InitialCapital, ledger.EquityCurve, tradeLog, realized),
	}

	slog.Info("backtest complete",
		"bars", cycles,
		"trades", result.Metrics.TradeCount,
		"final_equity", fmt.Sprintf("%.2f", result.FinalEquity),
		"total_return", fmt.Sprintf("%.2f%%", result.Metrics.TotalReturn*100),
	)
	return result, nil
}

// closePositions unwinds every open position at the last known prices,
// routing the closing orders through the same executor and ledger as any
// other fill. Positions are closed in symbol order.
func (e *Engine) closePositions(ctx context.Context, state *domain.EngineState, ts time.Time) ([]domain.Fill, []appliedTrade, error) {
	ledger := state.Ledger

	symbols := make([]string, 0, len(ledger.Positions))
	for sym := range ledger.Positions {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	var (
		fills   []domain.Fill
		applied []appliedTrade
	)
	for _, sym := range symbols {
		pos := ledger.Positions[sym]
		price, err := e.source.GetPrice(ctx, sym)
		if err != nil {
			// Without a price the position stays open and marked at entry.
			slog.Warn("cannot close position, no price", "symbol", sym, "err", err)
			continue
		}

		side := domain.SideSell
		qty := pos.Quantity
		if qty < 0 {
			side = domain.SideBuy
			qty = -qty
		}
		proposal := domain.OrderProposal{
			Symbol:    sym,
			Side:      side,
			Quantity:  qty,
			OrderType: domain.OrderTypeMarket,
			PriceHint: price,
			Timestamp: ts,
		}
		// Liquidity is unconstrained on the terminal close-out.
		fill := e.pipeline.Executor.Execute(ctx, proposal, ports.MarketConditions{
			Price:     price,
			Liquidity: qty,
			Timestamp: ts,
		})
		fills = append(fills, fill)
		if !fill.Executed() {
			slog.Warn("close-out order not executed", "symbol", sym, "status", fill.Status)
			continue
		}
		af, err := ledger.Apply(fill, e.pipeline.CashTolerance)
		if err != nil {
			return nil, nil, err
		}
		applied = append(applied, appliedTrade{fill: fill, applied: af})
	}

	if len(fills) == 0 {
		return nil, nil, nil
	}
	prices := make(map[string]float64)
	for _, f := range fills {
		if f.Executed() {
			prices[f.Symbol] = f.Price
		}
	}
	ledger.MarkToMarket(prices, ts)
	return fills, applied, nil
}

// appliedTrade pairs an executed fill with its ledger outcome.
type appliedTrade struct {
	fill    domain.Fill
	applied domain.AppliedFill
}

// collectApplied zips a cycle's executed fills with their ledger outcomes.
func collectApplied(result *engine.CycleResult) []appliedTrade {
	out := make([]appliedTrade, 0, len(result.Applied))
	i := 0
	for _, f := range result.Fills {
		if !f.Executed() {
			continue
		}
		if i >= len(result.Applied) {
			break
		}
		out = append(out, appliedTrade{fill: f, applied: result.Applied[i]})
		i++
	}
	return out
}
