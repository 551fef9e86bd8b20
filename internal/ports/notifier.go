package ports

import (
	"context"

	"github.com/alejandrodnm/tradebot/internal/domain"
)

// CycleEvent resume lo ocurrido en un ciclo del engine para notificación.
// La entrega es best-effort: un fallo del notifier nunca toca el ledger
// ni detiene el loop.
type CycleEvent struct {
	Mode      domain.Mode
	Signals   []domain.MergedSignal
	Fills     []domain.Fill
	Vetoes    []string // razones de veto del risk manager
	Deferred  int      // propuestas aplazadas por el rate limiter
	Equity    float64
	Cash      float64
	Positions []domain.Position
}

// Notifier entrega eventos legibles por humanos.
type Notifier interface {
	// NotifyCycle publica el resumen de un ciclo.
	NotifyCycle(ctx context.Context, ev CycleEvent) error

	// NotifyBacktest publica el resultado de un backtest.
	NotifyBacktest(ctx context.Context, result domain.BacktestResult) error
}
