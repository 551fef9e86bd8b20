package marketdata

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/tradebot/internal/domain"
	"github.com/alejandrodnm/tradebot/internal/ports"
)

func makeSeries(symbol string, closes ...float64) []domain.Candle {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]domain.Candle, 0, len(closes))
	for i, c := range closes {
		bars = append(bars, domain.Candle{
			Symbol:    symbol,
			Timestamp: start.Add(time.Duration(i) * time.Hour),
			Open:      c,
			High:      c,
			Low:       c,
			Close:     c,
			Volume:    100,
		})
	}
	return bars
}

func TestReplay_NoLookahead(t *testing.T) {
	r, err := NewReplay(map[string][]domain.Candle{
		"BTC/USD": makeSeries("BTC/USD", 100, 101, 102, 103),
	})
	require.NoError(t, err)
	ctx := context.Background()

	// Antes del primer Advance no hay datos visibles
	_, err = r.GetPrice(ctx, "BTC/USD")
	require.ErrorIs(t, err, ports.ErrDataUnavailable)

	_, ok := r.Advance()
	require.True(t, ok)
	_, ok = r.Advance()
	require.True(t, ok)

	// Con el cursor en la barra 2, solo las dos primeras son visibles
	price, err := r.GetPrice(ctx, "BTC/USD")
	require.NoError(t, err)
	assert.Equal(t, 101.0, price)

	window, err := r.GetMarketData(ctx, "BTC/USD", "1h", 10)
	require.NoError(t, err)
	require.Len(t, window, 2)
	assert.Equal(t, 101.0, window[len(window)-1].Close)
}

func TestReplay_AdvanceExhausts(t *testing.T) {
	r, err := NewReplay(map[string][]domain.Candle{
		"BTC/USD": makeSeries("BTC/USD", 100, 101),
	})
	require.NoError(t, err)

	ts1, ok := r.Advance()
	require.True(t, ok)
	ts2, ok := r.Advance()
	require.True(t, ok)
	assert.True(t, ts2.After(ts1))

	_, ok = r.Advance()
	assert.False(t, ok)
}

func TestReplay_WindowRespectsLimit(t *testing.T) {
	r, err := NewReplay(map[string][]domain.Candle{
		"BTC/USD": makeSeries("BTC/USD", 100, 101, 102, 103, 104),
	})
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, ok := r.Advance()
		require.True(t, ok)
	}

	window, err := r.GetMarketData(context.Background(), "BTC/USD", "1h", 3)
	require.NoError(t, err)
	require.Len(t, window, 3)
	assert.Equal(t, 104.0, window[2].Close)
}

func TestReplay_RejectsUnorderedBars(t *testing.T) {
	bars := makeSeries("BTC/USD", 100, 101)
	bars[1].Timestamp = bars[0].Timestamp

	_, err := NewReplay(map[string][]domain.Candle{"BTC/USD": bars})
	assert.Error(t, err)
}

func TestReplay_UnknownSymbol(t *testing.T) {
	r, err := NewReplay(map[string][]domain.Candle{
		"BTC/USD": makeSeries("BTC/USD", 100),
	})
	require.NoError(t, err)
	r.Advance()

	_, err = r.GetPrice(context.Background(), "DOGE/USD")
	assert.ErrorIs(t, err, ports.ErrDataUnavailable)
}

func TestGenerateSeries_Deterministic(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	s1 := GenerateSeries([]string{"BTC/USD", "ETH/USD"}, 50, time.Hour, start)
	s2 := GenerateSeries([]string{"BTC/USD", "ETH/USD"}, 50, time.Hour, start)

	assert.Equal(t, s1, s2)
	require.Len(t, s1["BTC/USD"], 50)

	// Cada símbolo ancla en su precio base
	assert.InDelta(t, 45000, s1["BTC/USD"][0].Open, 45000*0.05)
	assert.InDelta(t, 2500, s1["ETH/USD"][0].Open, 2500*0.05)
}

func TestMock_ServesWindowAndPrice(t *testing.T) {
	m := NewMock(time.Minute)
	ctx := context.Background()

	window, err := m.GetMarketData(ctx, "BTC/USD", "1m", 30)
	require.NoError(t, err)
	require.NotEmpty(t, window)
	assert.LessOrEqual(t, len(window), 30)

	price, err := m.GetPrice(ctx, "BTC/USD")
	require.NoError(t, err)
	assert.Greater(t, price, 0.0)

	// Las barras van de más antigua a más reciente
	for i := 1; i < len(window); i++ {
		assert.True(t, window[i].Timestamp.After(window[i-1].Timestamp))
	}
}
