package marketdata

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/alejandrodnm/tradebot/internal/domain"
	"github.com/alejandrodnm/tradebot/internal/ports"
)

// Replay serves a fixed historical series through the MarketData port behind
// a cursor. Strategies only ever see bars up to and including the cursor, so
// a backtest cannot look ahead. Advance is what moves simulated time.
type Replay struct {
	symbols []string
	series  map[string][]domain.Candle
	cursor  int // index of the current bar; -1 before the first Advance
	length  int
}

// NewReplay builds a replay source over one bar sequence per symbol, each
// ordered oldest first. Series are aligned by index: bar i of every symbol
// belongs to the same cycle.
func NewReplay(series map[string][]domain.Candle) (*Replay, error) {
	if len(series) == 0 {
		return nil, fmt.Errorf("marketdata.NewReplay: empty series")
	}
	symbols := make([]string, 0, len(series))
	length := 0
	for sym, bars := range series {
		symbols = append(symbols, sym)
		if len(bars) > length {
			length = len(bars)
		}
		for i := 1; i < len(bars); i++ {
			if !bars[i].Timestamp.After(bars[i-1].Timestamp) {
				return nil, fmt.Errorf("marketdata.NewReplay: %s: bars out of order at index %d", sym, i)
			}
		}
	}
	if length == 0 {
		return nil, fmt.Errorf("marketdata.NewReplay: no bars")
	}
	sort.Strings(symbols)

	return &Replay{
		symbols: symbols,
		series:  series,
		cursor:  -1,
		length:  length,
	}, nil
}

// Advance moves the cursor one bar forward and returns the new simulated
// time. ok is false once the series is exhausted.
func (r *Replay) Advance() (time.Time, bool) {
	if r.cursor+1 >= r.length {
		return time.Time{}, false
	}
	r.cursor++

	// The cycle timestamp is the latest bar timestamp at this index.
	var ts time.Time
	for _, sym := range r.symbols {
		bars := r.series[sym]
		if r.cursor < len(bars) && bars[r.cursor].Timestamp.After(ts) {
			ts = bars[r.cursor].Timestamp
		}
	}
	return ts, true
}

// GetPrice devuelve el close de la barra actual del símbolo.
func (r *Replay) GetPrice(_ context.Context, symbol string) (float64, error) {
	bars := r.visible(symbol)
	if len(bars) == 0 {
		return 0, fmt.Errorf("marketdata.Replay.GetPrice: %s: %w", symbol, ports.ErrDataUnavailable)
	}
	return bars[len(bars)-1].Close, nil
}

// GetMarketData devuelve hasta limit barras visibles, la actual incluida.
func (r *Replay) GetMarketData(_ context.Context, symbol, timeframe string, limit int) ([]domain.Candle, error) {
	bars := r.visible(symbol)
	if len(bars) == 0 {
		return nil, fmt.Errorf("marketdata.Replay.GetMarketData: %s: %w", symbol, ports.ErrDataUnavailable)
	}
	window := domain.Window(bars, limit)
	out := make([]domain.Candle, len(window))
	copy(out, window)
	for i := range out {
		out[i].Timeframe = timeframe
	}
	return out, nil
}

// visible returns the symbol's bars up to the cursor.
func (r *Replay) visible(symbol string) []domain.Candle {
	bars, ok := r.series[symbol]
	if !ok || r.cursor < 0 {
		return nil
	}
	end := r.cursor + 1
	if end > len(bars) {
		end = len(bars)
	}
	return bars[:end]
}

var _ ports.MarketData = (*Replay)(nil)
