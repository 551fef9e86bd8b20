// Package marketdata implements ports.MarketData: a deterministic synthetic
// source for dry-run mode and a cursor-bound replay source for backtests.
package marketdata

import (
	"context"
	"hash/fnv"
	"math/rand"
	"sync"
	"time"

	"github.com/alejandrodnm/tradebot/internal/domain"
	"github.com/alejandrodnm/tradebot/internal/ports"
)

// basePrices anchors the synthetic walk per symbol. Unknown symbols start
// at defaultBasePrice.
var basePrices = map[string]float64{
	"BTC/USD": 45000,
	"ETH/USD": 2500,
	"GOLD":    2000,
}

const (
	defaultBasePrice = 100.0
	mockVolatility   = 0.008
	mockBaseVolume   = 120.0
)

// Mock generates a seeded random walk per symbol. The seed derives from the
// symbol name, so two runs over the same symbols see the same series — handy
// for reproducing dry-run sessions.
type Mock struct {
	mu       sync.Mutex
	barStep  time.Duration
	series   map[string][]domain.Candle
	rngs     map[string]*rand.Rand
	lastTime map[string]time.Time
}

// NewMock creates a synthetic source emitting one new bar per barStep.
func NewMock(barStep time.Duration) *Mock {
	if barStep <= 0 {
		barStep = time.Minute
	}
	return &Mock{
		barStep:  barStep,
		series:   make(map[string][]domain.Candle),
		rngs:     make(map[string]*rand.Rand),
		lastTime: make(map[string]time.Time),
	}
}

// GetPrice devuelve el close de la última barra generada.
func (m *Mock) GetPrice(_ context.Context, symbol string) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	bars := m.ensure(symbol, 1)
	return bars[len(bars)-1].Close, nil
}

// GetMarketData genera barras hasta cubrir limit y devuelve la ventana.
func (m *Mock) GetMarketData(_ context.Context, symbol, timeframe string, limit int) ([]domain.Candle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	bars := m.ensure(symbol, limit)
	window := domain.Window(bars, limit)
	out := make([]domain.Candle, len(window))
	copy(out, window)
	for i := range out {
		out[i].Timeframe = timeframe
	}
	return out, nil
}

// ensure extends the symbol's series until it has at least n bars plus one
// fresh bar per elapsed step since the last call. Caller holds the lock.
func (m *Mock) ensure(symbol string, n int) []domain.Candle {
	rng, ok := m.rngs[symbol]
	if !ok {
		h := fnv.New64a()
		h.Write([]byte(symbol))
		rng = rand.New(rand.NewSource(int64(h.Sum64())))
		m.rngs[symbol] = rng
	}

	bars := m.series[symbol]
	now := time.Now().Truncate(m.barStep)

	if len(bars) == 0 {
		start := now.Add(-time.Duration(n) * m.barStep)
		bars = append(bars, m.nextBar(rng, symbol, basePrice(symbol), start))
	}
	for len(bars) < n || bars[len(bars)-1].Timestamp.Before(now) {
		prev := bars[len(bars)-1]
		bars = append(bars, m.nextBar(rng, symbol, prev.Close, prev.Timestamp.Add(m.barStep)))
	}
	m.series[symbol] = bars
	return bars
}

// nextBar advances the walk one step.
func (m *Mock) nextBar(rng *rand.Rand, symbol string, prevClose float64, ts time.Time) domain.Candle {
	change := rng.NormFloat64() * mockVolatility
	open := prevClose
	close := prevClose * (1 + change)
	high := open
	if close > high {
		high = close
	}
	high *= 1 + rng.Float64()*mockVolatility/2
	low := open
	if close < low {
		low = close
	}
	low *= 1 - rng.Float64()*mockVolatility/2

	return domain.Candle{
		Symbol:    symbol,
		Timestamp: ts,
		Open:      open,
		High:      high,
		Low:       low,
		Close:     close,
		Volume:    mockBaseVolume * (0.5 + rng.Float64()),
	}
}

func basePrice(symbol string) float64 {
	if p, ok := basePrices[symbol]; ok {
		return p
	}
	return defaultBasePrice
}

var _ ports.MarketData = (*Mock)(nil)
