// Package live runs the trading loop on a wall-clock interval, in dry-run or
// live mode. Each tick drives one pipeline cycle, persists EngineState and
// dispatches a best-effort notification.
package live

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

// Config holds the loop-specific settings.
type Config struct {
	Mode     domain.Mode
	Interval time.Duration
	Once     bool // run a single cycle and exit

	// SaveRetries is how many times a failed EngineState save is retried
	// before the run aborts. Losing the snapshot loses the ledger, so
	// persistent failure here is fatal, not transient.
	SaveRetries int

	// NotifyTimeout bounds the fire-and-forget notification dispatch.
	NotifyTimeout time.Duration
}

// Engine owns the EngineState for the duration of a run: nothing else
// mutates the ledger.
type Engine struct {
	cfg      Config
	pipeline *engine.Pipeline
	symbols  []string
	store    ports.StateStore
	notifier ports.Notifier
	state    *domain.EngineState
}

// New creates the loop around an already-wired pipeline. The rate limiter
// window persisted in state is restored so restarts cannot burst past the
// order budget.
func New(
	cfg Config,
	pipeline *engine.Pipeline,
	symbols []string,
	store ports.StateStore,
	notifier ports.Notifier,
	state *domain.EngineState,
) *Engine {
	if cfg.NotifyTimeout <= 0 {
		cfg.NotifyTimeout = 10 * time.Second
	}
	if pipeline.Limiter != nil && len(state.RateLimiterWindow) > 0 {
		pipeline.Limiter.Restore(state.RateLimiterWindow)
	}
	return &Engine{
		cfg:      cfg,
		pipeline: pipeline,
		symbols:  symbols,
		store:    store,
		notifier: notifier,
		state:    state,
	}
}

// Run executes cycles until the context is cancelled or a fatal error
// occurs. Shutdown is honored between cycles, never mid-settlement, and the
// final state is persisted on the way out.
func (e *Engine) Run(ctx context.Context) error {
	slog.Info("engine starting",
		"mode", e.cfg.Mode,
		"interval", e.cfg.Interval,
		"symbols", len(e.symbols),
		"once", e.cfg.Once,
	)

	if err := e.runCycle(ctx); err != nil {
		return err
	}
	if e.cfg.Once {
		return nil
	}

	ticker := time.NewTicker(e.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("engine stopped")
			return e.persist(context.Background())
		case <-ticker.C:
			if err := e.runCycle(ctx); err != nil {
				return err
			}
		}
	}
}

// runCycle drives one pipeline cycle and its bookkeeping. Only integrity
// violations and persistent save failures come back as errors; both are
// fatal to the run.
func (e *Engine) runCycle(ctx context.Context) error {
	start := time.Now()

	result, err := e.pipeline.RunCycle(ctx, e.state, e.symbols, start)
	if err != nil {
		return fmt.Errorf("live.runCycle: %w", err)
	}
	e.pipeline.JournalCycle(ctx, result)

	if err := e.persist(ctx); err != nil {
		return err
	}

	e.notify(result)

	slog.Info("cycle complete",
		"signals", len(result.Signals),
		"fills", len(result.Fills),
		"vetoes", len(result.Vetoes),
		"deferred", len(result.Deferred),
		"failures", result.Failures,
		"equity", fmt.Sprintf("%.2f", result.Equity),
		"duration", time.Since(start).Round(time.Millisecond),
	)
	return nil
}

// persist saves EngineState, retrying before declaring the run dead.
func (e *Engine) persist(ctx context.Context) error {
	var err error
	for attempt := 0; attempt <= e.cfg.SaveRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(time.Duration(attempt) * 500 * time.Millisecond)
		}
		if err = e.store.Save(ctx, e.state); err == nil {
			return nil
		}
		slog.Warn("state save failed", "attempt", attempt+1, "err", err)
	}
	return fmt.Errorf("live.persist: giving up after %d attempts: %w", e.cfg.SaveRetries+1, err)
}

// notify dispatches the cycle summary without ever blocking the loop: the
// outcome is observed only for logging, never awaited by settlement.
func (e *Engine) notify(result *engine.CycleResult) {
	if e.notifier == nil {
		return
	}
	ev := cycleEvent(e.cfg.Mode, e.state.Ledger, result)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), e.cfg.NotifyTimeout)
		defer cancel()
		if err := e.notifier.NotifyCycle(ctx, ev); err != nil {
			slog.Warn("notifier error", "err", err)
		}
	}()
}

// cycleEvent snapshots the cycle for the notifier. Copies, not references:
// the notifier runs concurrently with the next cycle's mutations.
func cycleEvent(mode domain.Mode, ledger *domain.Ledger, result *engine.CycleResult) ports.CycleEvent {
	vetoes := make([]string, 0, len(result.Vetoes))
	for _, v := range result.Vetoes {
		vetoes = append(vetoes, v.Symbol+": "+v.Reason)
	}

	positions := make([]domain.Position, 0, len(ledger.Positions))
	for _, pos := range ledger.Positions {
		positions = append(positions, pos)
	}
	sort.Slice(positions, func(i, j int) bool { return positions[i].Symbol < positions[j].Symbol })

	return ports.CycleEvent{
		Mode:      mode,
		Signals:   append([]domain.MergedSignal(nil), result.Signals...),
		Fills:     append([]domain.Fill(nil), result.Fills...),
		Vetoes:    vetoes,
		Deferred:  len(result.Deferred),
		Equity:    result.Equity,
		Cash:      ledger.Cash,
		Positions: positions,
	}
}
