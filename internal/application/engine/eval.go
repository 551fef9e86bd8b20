package engine

// eval.go — worker pool for parallel per-symbol evaluation.
//
// Fetching data and running strategies is I/O- and CPU-bound per symbol, so
// symbols are fanned out to workers. Results are collected and sorted by
// symbol before the sequential settlement pass, keeping cycles deterministic
// regardless of goroutine scheduling.

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sort"
	"sync"

	"github.com/alejandrodnm/tradebot/internal/domain"
	"github.com/alejandrodnm/tradebot/internal/strategy"
)

// SymbolEval is the outcome of evaluating one symbol in one cycle.
type SymbolEval struct {
	Symbol string
	Price  float64
	Window []domain.Candle
	Merged *domain.MergedSignal // nil when no strategy had a qualifying opinion
	Err    error                // data fetch failure; skips the symbol for the cycle
}

// evaluateConcurrent fetches data and runs every strategy for each symbol
// using a worker pool, then returns the results sorted by symbol.
//
// If workers <= 0 it uses runtime.NumCPU().
func (p *Pipeline) evaluateConcurrent(ctx context.Context, symbols []string) []SymbolEval {
	workers := p.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > len(symbols) {
		workers = len(symbols)
	}

	workCh := make(chan string, len(symbols))
	resultCh := make(chan SymbolEval, len(symbols))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for sym := range workCh {
				resultCh <- p.evaluateSymbol(ctx, sym)
			}
		}()
	}

	for _, sym := range symbols {
		workCh <- sym
	}
	close(workCh)

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	evals := make([]SymbolEval, 0, len(symbols))
	for ev := range resultCh {
		evals = append(evals, ev)
	}

	// Stable symbol ordering so the settlement pass (and therefore every
	// ledger mutation) happens in the same order on every run.
	sort.Slice(evals, func(i, j int) bool { return evals[i].Symbol < evals[j].Symbol })
	return evals
}

// evaluateSymbol fetches the window and price for one symbol and runs every
// strategy over it. A strategy error or panic is isolated: it is logged and
// excluded from the merge without affecting the other strategies or symbols.
func (p *Pipeline) evaluateSymbol(ctx context.Context, sym string) SymbolEval {
	window, err := p.Data.GetMarketData(ctx, sym, p.Timeframe, p.Lookback)
	if err != nil {
		return SymbolEval{Symbol: sym, Err: fmt.Errorf("engine.evaluateSymbol: market data for %s: %w", sym, err)}
	}
	price, err := p.Data.GetPrice(ctx, sym)
	if err != nil {
		return SymbolEval{Symbol: sym, Err: fmt.Errorf("engine.evaluateSymbol: price for %s: %w", sym, err)}
	}

	signals := make([]domain.Signal, 0, len(p.Strategies))
	for _, st := range p.Strategies {
		sig, err := runStrategy(st, window, price)
		if err != nil {
			slog.Warn("strategy failed", "strategy", st.Name(), "symbol", sym, "err", err)
			continue
		}
		if sig == nil {
			continue
		}
		signals = append(signals, *sig)
	}

	return SymbolEval{
		Symbol: sym,
		Price:  price,
		Window: window,
		Merged: MergeSignals(sym, signals, p.MinConfidence, p.FlatEpsilon),
	}
}

// runStrategy invokes a strategy converting panics into errors so a broken
// strategy cannot abort the cycle.
func runStrategy(st strategy.Strategy, window []domain.Candle, price float64) (sig *domain.Signal, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("strategy %s panicked: %v", st.Name(), r)
		}
	}()
	return st.GenerateSignal(window, price)
}
