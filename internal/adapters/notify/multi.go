package notify

import (
	"context"
	"errors"

	"github.com/alejandrodnm/tradebot/internal/domain"
	"github.com/alejandrodnm/tradebot/internal/ports"
)

// Multi reparte cada evento a varios canales. Un canal que falla no impide
// la entrega en los demás; los errores se agregan para que el engine los
// loguee juntos.
type Multi []ports.Notifier

func (m Multi) NotifyCycle(ctx context.Context, ev ports.CycleEvent) error {
	var errs []error
	for _, n := range m {
		if err := n.NotifyCycle(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) NotifyBacktest(ctx context.Context, result domain.BacktestResult) error {
	var errs []error
	for _, n := range m {
		if err := n.NotifyBacktest(ctx, result); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var _ ports.Notifier = (Multi)(nil)
