package ports

import (
	"context"
	"errors"

	"github.com/alejandrodnm/tradebot/internal/domain"
)

// ErrDataUnavailable indica que la fuente no tiene datos para el símbolo.
// El engine lo trata como transitorio: salta el símbolo ese ciclo.
var ErrDataUnavailable = errors.New("market data unavailable")

// MarketData obtiene precios actuales y series históricas de un símbolo.
type MarketData interface {
	// GetPrice devuelve el último precio conocido del símbolo.
	GetPrice(ctx context.Context, symbol string) (float64, error)

	// GetMarketData devuelve hasta limit barras OHLCV del símbolo,
	// ordenadas de más antigua a más reciente.
	GetMarketData(ctx context.Context, symbol, timeframe string, limit int) ([]domain.Candle, error)
}
