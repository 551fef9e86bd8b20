package ports

import (
	"context"
	"time"

	"github.com/alejandrodnm/tradebot/internal/domain"
)

// MarketConditions es la vista de mercado con la que el ejecutor resuelve
// una propuesta. En backtest se deriva determinísticamente de la barra
// actual; en live/dry-run del último fetch.
type MarketConditions struct {
	Price     float64   // precio de referencia antes de slippage
	Liquidity float64   // cantidad máxima ejecutable a ese precio
	Timestamp time.Time // tiempo simulado (backtest) o wall-clock (live)
}

// OrderExecutor simula o reenvía la ejecución de una orden y devuelve
// siempre un Fill, también para rechazos y timeouts.
type OrderExecutor interface {
	Execute(ctx context.Context, proposal domain.OrderProposal, mc MarketConditions) domain.Fill
}
