// Package engine implements the decision pipeline shared by the live/dry-run
// loop and the backtest driver: concurrent per-symbol evaluation, signal
// merge, risk sizing, rate gating, execution and ledger settlement.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alejandrodnm/tradebot/internal/domain"
	"github.com/alejandrodnm/tradebot/internal/ports"
	"github.com/alejandrodnm/tradebot/internal/risk"
	"github.com/alejandrodnm/tradebot/internal/strategy"
)

// Pipeline holds the collaborators and tuning for one cycle of the decision
// pipeline. The live engine and the backtest engine both run cycles through
// it; they differ only in how they pick `now` and where the data comes from.
type Pipeline struct {
	Data       ports.MarketData
	Strategies []strategy.Strategy
	Risk       *risk.Manager
	Limiter    *risk.RateLimiter // nil disables order gating
	Executor   ports.OrderExecutor
	Journal    ports.Journal // nil disables journaling

	Workers       int
	Lookback      int
	Timeframe     string
	MinConfidence float64
	FlatEpsilon   float64

	// LiquidityFraction scales the latest bar's volume into the quantity
	// available to a single order.
	LiquidityFraction float64
	CashTolerance     float64
}

// CycleResult is everything produced by one pipeline cycle.
type CycleResult struct {
	Timestamp time.Time
	Signals   []domain.MergedSignal
	Fills     []domain.Fill       // every executor outcome, including rejects and timeouts
	Applied   []domain.AppliedFill // ledger outcome per executed fill, in settlement order
	Vetoes    []risk.Veto
	Deferred  []domain.OrderProposal
	Failures  int // symbols skipped on fetch errors plus orders that ended rejected/timeout
	Prices    map[string]float64
	Equity    float64
}

// Summary condenses the result into the row the journal persists.
func (r *CycleResult) Summary() ports.CycleSummary {
	return ports.CycleSummary{
		Timestamp: r.Timestamp,
		Signals:   len(r.Signals),
		Fills:     executedCount(r.Fills),
		Vetoes:    len(r.Vetoes),
		Deferred:  len(r.Deferred),
		Failures:  r.Failures,
		Equity:    r.Equity,
	}
}

// RunCycle executes one full cycle at time now, mutating state.Ledger through
// the sequential settlement pass. Evaluation fans out per symbol; settlement
// is strictly single-threaded and ordered by symbol, so reruns over the same
// data produce identical ledgers.
//
// The only error it returns is an integrity violation from the ledger, which
// callers must treat as fatal. Everything transient is logged and absorbed.
func (p *Pipeline) RunCycle(ctx context.Context, state *domain.EngineState, symbols []string, now time.Time) (*CycleResult, error) {
	result := &CycleResult{
		Timestamp: now,
		Prices:    make(map[string]float64, len(symbols)),
	}

	evals := p.evaluateConcurrent(ctx, symbols)

	ledger := state.Ledger
	for _, ev := range evals {
		if ev.Err != nil {
			slog.Warn("symbol skipped this cycle", "symbol", ev.Symbol, "err", ev.Err)
			result.Failures++
			continue
		}
		result.Prices[ev.Symbol] = ev.Price

		if ev.Merged == nil {
			continue
		}
		result.Signals = append(result.Signals, *ev.Merged)

		proposal, veto := p.Risk.Evaluate(*ev.Merged, ledger.Cash, ledger.Positions[ev.Symbol], ev.Price)
		if veto != nil {
			slog.Debug("proposal vetoed", "symbol", veto.Symbol, "reason", veto.Reason)
			result.Vetoes = append(result.Vetoes, *veto)
			continue
		}

		if p.Limiter != nil && !p.Limiter.Allow(now) {
			slog.Info("proposal deferred by rate limiter",
				"symbol", proposal.Symbol,
				"in_window", p.Limiter.InWindow(now),
			)
			result.Deferred = append(result.Deferred, proposal)
			continue
		}

		fill := p.Executor.Execute(ctx, proposal, ports.MarketConditions{
			Price:     ev.Price,
			Liquidity: p.availableLiquidity(ev.Window, proposal.Quantity),
			Timestamp: now,
		})
		result.Fills = append(result.Fills, fill)
		p.journalFill(ctx, fill)

		if !fill.Executed() {
			slog.Warn("order not executed",
				"symbol", fill.Symbol,
				"status", fill.Status,
				"requested_qty", fill.RequestedQt,
			)
			result.Failures++
			continue
		}

		applied, err := ledger.Apply(fill, p.CashTolerance)
		if err != nil {
			// Sizing let through a fill the ledger refuses. The ledger is
			// untouched; the run must halt rather than continue on top of a
			// risk defect.
			return result, fmt.Errorf("engine.RunCycle: apply fill %s: %w", fill.OrderID, err)
		}
		result.Applied = append(result.Applied, applied)
		slog.Info("fill applied",
			"symbol", fill.Symbol,
			"side", fill.Side,
			"qty", fill.FilledQt,
			"price", fill.Price,
			"fee", fill.Fee,
			"status", fill.Status,
			"realized_delta", applied.RealizedDelta,
		)
	}

	result.Equity = ledger.MarkToMarket(result.Prices, now)
	p.journalEquity(ctx, domain.EquityPoint{Timestamp: now, Equity: result.Equity})

	state.LastProcessed = now
	if p.Limiter != nil {
		state.RateLimiterWindow = p.Limiter.Snapshot()
	}
	return result, nil
}

// availableLiquidity derives the quantity one order can take this cycle from
// the latest bar's volume. Without bar data it does not constrain the order.
func (p *Pipeline) availableLiquidity(window []domain.Candle, requested float64) float64 {
	if len(window) == 0 || p.LiquidityFraction <= 0 {
		return requested
	}
	return window[len(window)-1].Volume * p.LiquidityFraction
}

func (p *Pipeline) journalFill(ctx context.Context, fill domain.Fill) {
	if p.Journal == nil {
		return
	}
	if err := p.Journal.SaveFill(ctx, fill); err != nil {
		slog.Warn("journal error", "err", err)
	}
}

func (p *Pipeline) journalEquity(ctx context.Context, point domain.EquityPoint) {
	if p.Journal == nil {
		return
	}
	if err := p.Journal.SaveEquityPoint(ctx, point); err != nil {
		slog.Warn("journal error", "err", err)
	}
}

// JournalCycle persists the cycle summary row, logging instead of failing.
func (p *Pipeline) JournalCycle(ctx context.Context, result *CycleResult) {
	if p.Journal == nil {
		return
	}
	if err := p.Journal.SaveCycle(ctx, result.Summary()); err != nil {
		slog.Warn("journal error", "err", err)
	}
}

func executedCount(fills []domain.Fill) int {
	n := 0
	for _, f := range fills {
		if f.Executed() {
			n++
		}
	}
	return n
}
