package backtest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/tradebot/internal/adapters/exec"
	"github.com/alejandrodnm/tradebot/internal/adapters/marketdata"
	"github.com/alejandrodnm/tradebot/internal/application/engine"
	"github.com/alejandrodnm/tradebot/internal/domain"
	"github.com/alejandrodnm/tradebot/internal/risk"
	"github.com/alejandrodnm/tradebot/internal/strategy"
)

// noSignal never has an opinion.
type noSignal struct{}

func (noSignal) Name() string       { return "noop" }
func (noSignal) MinPeriods() int    { return 1 }
func (noSignal) GenerateSignal([]domain.Candle, float64) (*domain.Signal, error) {
	return nil, nil
}

// alwaysLong signals long with fixed confidence on every bar.
type alwaysLong struct{ conf float64 }

func (alwaysLong) Name() string    { return "always-long" }
func (alwaysLong) MinPeriods() int { return 1 }
func (s alwaysLong) GenerateSignal(window []domain.Candle, _ float64) (*domain.Signal, error) {
	last := window[len(window)-1]
	return &domain.Signal{
		Symbol:     last.Symbol,
		Direction:  domain.DirectionLong,
		Confidence: s.conf,
		StrategyID: "always-long",
		Timestamp:  last.Timestamp,
	}, nil
}

func flatSeries(symbol string, bars int, price float64) map[string][]domain.Candle {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]domain.Candle, 0, bars)
	for i := 0; i < bars; i++ {
		out = append(out, domain.Candle{
			Symbol:    symbol,
			Timestamp: start.Add(time.Duration(i) * time.Hour),
			Open:      price,
			High:      price,
			Low:       price,
			Close:     price,
			Volume:    100,
		})
	}
	return map[string][]domain.Candle{symbol: out}
}

func newTestPipeline(source *marketdata.Replay, strategies []strategy.Strategy) *engine.Pipeline {
	return &engine.Pipeline{
		Data:       source,
		Strategies: strategies,
		Risk: risk.NewManager(risk.Limits{
			MinConfidence:      0.6,
			MaxCapitalFraction: 0.1,
			LotSize:            0.0001,
			OrderType:          domain.OrderTypeMarket,
			PerSymbol: map[string]risk.SymbolLimits{
				"BTC/USD": {MaxPositionSize: 100},
			},
		}),
		Executor: exec.NewSimulator(exec.SimulatorConfig{
			SlippageFraction:  0.001,
			TakerFee:          0.001,
			AllowPartialFills: true,
		}),
		Workers:           1,
		Lookback:          10,
		Timeframe:         "1h",
		MinConfidence:     0.6,
		FlatEpsilon:       0.05,
		LiquidityFraction: 0.1,
		CashTolerance:     0.01,
	}
}

func runBacktestOnce(t *testing.T, series map[string][]domain.Candle, strategies []strategy.Strategy) *domain.BacktestResult {
	t.Helper()
	source, err := marketdata.NewReplay(series)
	require.NoError(t, err)

	eng := New(Config{InitialCapital: 10000}, newTestPipeline(source, strategies), source, []string{"BTC/USD"})
	result, err := eng.Run(context.Background())
	require.NoError(t, err)
	return result
}

func TestEngine_FlatSeriesNoSignals(t *testing.T) {
	result := runBacktestOnce(t, flatSeries("BTC/USD", 50, 100), []strategy.Strategy{noSignal{}})

	// Sin señales ni trades, la equity final es exactamente el capital inicial
	assert.Equal(t, 10000.0, result.FinalEquity)
	assert.Equal(t, 0.0, result.Metrics.TotalReturn)
	assert.Equal(t, 0.0, result.Metrics.MaxDrawdown)
	assert.Equal(t, 0, result.Metrics.TradeCount)
	assert.Empty(t, result.TradeLog)

	require.Len(t, result.EquityCurve, 50)
	for _, p := range result.EquityCurve {
		assert.Equal(t, 10000.0, p.Equity)
	}
}

func TestEngine_ExecutesTradesAndKeepsInvariant(t *testing.T) {
	result := runBacktestOnce(t, flatSeries("BTC/USD", 20, 100),
		[]strategy.Strategy{alwaysLong{conf: 0.9}})

	assert.Greater(t, result.Metrics.TradeCount, 0)
	assert.NotEmpty(t, result.TradeLog)

	// Comprar cada barra en serie plana solo pierde fees y slippage
	assert.Less(t, result.FinalEquity, 10000.0)
	assert.Greater(t, result.FinalEquity, 9000.0)

	// Tras el cierre final no quedan posiciones: equity == cash
	last := result.EquityCurve[len(result.EquityCurve)-1]
	assert.InDelta(t, result.FinalEquity, last.Equity, 1e-9)
}

func TestEngine_Reproducible(t *testing.T) {
	series := flatSeries("BTC/USD", 30, 100)
	strategies := []strategy.Strategy{alwaysLong{conf: 0.8}}

	r1 := runBacktestOnce(t, series, strategies)
	r2 := runBacktestOnce(t, series, strategies)

	// Misma serie y configuración → resultado idéntico, trade log incluido
	assert.Equal(t, r1.EquityCurve, r2.EquityCurve)
	assert.Equal(t, r1.TradeLog, r2.TradeLog)
	assert.Equal(t, r1.Metrics, r2.Metrics)
	assert.Equal(t, r1.FinalEquity, r2.FinalEquity)
}

func TestEngine_EmptySeriesFails(t *testing.T) {
	_, err := marketdata.NewReplay(map[string][]domain.Candle{})
	assert.Error(t, err)
}

func TestComputeMetrics_Drawdown(t *testing.T) {
	curve := []domain.EquityPoint{
		{Equity: 10000}, {Equity: 11000}, {Equity: 9900}, {Equity: 10500},
	}
	m := computeMetrics(10000, curve, nil, nil)

	assert.InDelta(t, 0.05, m.TotalReturn, 1e-9)
	assert.InDelta(t, (11000.0-9900.0)/11000.0, m.MaxDrawdown, 1e-9)
}

func TestComputeMetrics_WinRateAndProfitFactor(t *testing.T) {
	realized := []appliedTrade{
		{applied: domain.AppliedFill{RealizedDelta: 100, ReducedTrade: true}},
		{applied: domain.AppliedFill{RealizedDelta: -40, ReducedTrade: true}},
		{applied: domain.AppliedFill{RealizedDelta: 60, ReducedTrade: true}},
		{applied: domain.AppliedFill{ReducedTrade: false}}, // apertura, no cuenta
	}
	winRate, pf := closedTradeStats(realized)

	assert.InDelta(t, 2.0/3.0, winRate, 1e-9)
	assert.InDelta(t, 160.0/40.0, pf, 1e-9)
}
