package live

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/tradebot/internal/adapters/exec"
	"github.com/alejandrodnm/tradebot/internal/application/engine"
	"github.com/alejandrodnm/tradebot/internal/domain"
	"github.com/alejandrodnm/tradebot/internal/ports"
	"github.com/alejandrodnm/tradebot/internal/risk"
	"github.com/alejandrodnm/tradebot/internal/strategy"
)

// memStore keeps the last saved snapshot in memory. failures is how many
// Save calls fail before they start succeeding; negative means fail forever.
type memStore struct {
	mu       sync.Mutex
	saved    *domain.EngineState
	saves    int
	failures int
}

func (s *memStore) Save(_ context.Context, state *domain.EngineState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	if s.failures != 0 {
		if s.failures > 0 {
			s.failures--
		}
		return errors.New("write error")
	}
	s.saved = state
	return nil
}

func (s *memStore) Load(context.Context) (*domain.EngineState, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saved, s.saved != nil, nil
}

// spyNotifier records deliveries and can be told to fail every call.
type spyNotifier struct {
	mu     sync.Mutex
	events []ports.CycleEvent
	fail   bool
	seen   chan struct{}
}

func newSpyNotifier(fail bool) *spyNotifier {
	return &spyNotifier{fail: fail, seen: make(chan struct{}, 16)}
}

func (n *spyNotifier) NotifyCycle(_ context.Context, ev ports.CycleEvent) error {
	n.mu.Lock()
	n.events = append(n.events, ev)
	n.mu.Unlock()
	n.seen <- struct{}{}
	if n.fail {
		return errors.New("notifier down")
	}
	return nil
}

func (n *spyNotifier) NotifyBacktest(context.Context, domain.BacktestResult) error {
	return nil
}

// staticData serves one fixed price and a short flat window.
type staticData struct{ price float64 }

func (d staticData) GetPrice(context.Context, string) (float64, error) {
	return d.price, nil
}

func (d staticData) GetMarketData(_ context.Context, symbol, timeframe string, limit int) ([]domain.Candle, error) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	n := 5
	if limit < n {
		n = limit
	}
	bars := make([]domain.Candle, 0, n)
	for i := 0; i < n; i++ {
		bars = append(bars, domain.Candle{
			Symbol:    symbol,
			Timestamp: start.Add(time.Duration(i) * time.Hour),
			Open:      d.price,
			High:      d.price,
			Low:       d.price,
			Close:     d.price,
			Volume:    100,
			Timeframe: timeframe,
		})
	}
	return bars, nil
}

// longSignal always goes long with the given confidence.
type longSignal struct{ conf float64 }

func (longSignal) Name() string    { return "long" }
func (longSignal) MinPeriods() int { return 1 }
func (s longSignal) GenerateSignal(window []domain.Candle, _ float64) (*domain.Signal, error) {
	last := window[len(window)-1]
	return &domain.Signal{
		Symbol:     last.Symbol,
		Direction:  domain.DirectionLong,
		Confidence: s.conf,
		StrategyID: "long",
		Timestamp:  last.Timestamp,
	}, nil
}

func newTestPipeline(conf float64) *engine.Pipeline {
	return &engine.Pipeline{
		Data:       staticData{price: 100},
		Strategies: []strategy.Strategy{longSignal{conf: conf}},
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

func newTestEngine(pipeline *engine.Pipeline, store ports.StateStore, notifier ports.Notifier) (*Engine, *domain.EngineState) {
	state := domain.NewEngineState(domain.NewLedger(10000), domain.ModeDryRun)
	cfg := Config{
		Mode:          domain.ModeDryRun,
		Interval:      time.Hour,
		Once:          true,
		SaveRetries:   2,
		NotifyTimeout: time.Second,
	}
	return New(cfg, pipeline, []string{"BTC/USD"}, store, notifier, state), state
}

func TestEngine_OnceRunsSingleCycleAndPersists(t *testing.T) {
	store := &memStore{}
	eng, state := newTestEngine(newTestPipeline(0.9), store, nil)

	require.NoError(t, eng.Run(context.Background()))

	// Un ciclo, un fill, y el estado queda persistido
	require.NotNil(t, store.saved)
	assert.Same(t, state, store.saved)
	assert.Less(t, state.Ledger.Cash, 10000.0)
	assert.Greater(t, state.Ledger.Positions["BTC/USD"].Quantity, 0.0)
	assert.Len(t, state.Ledger.EquityCurve, 1)
}

func TestEngine_NotifierFailureDoesNotAffectLedger(t *testing.T) {
	storeOK := &memStore{}
	engOK, stateOK := newTestEngine(newTestPipeline(0.9), storeOK, newSpyNotifier(false))
	require.NoError(t, engOK.Run(context.Background()))

	storeBad := &memStore{}
	failing := newSpyNotifier(true)
	engBad, stateBad := newTestEngine(newTestPipeline(0.9), storeBad, failing)
	require.NoError(t, engBad.Run(context.Background()))

	select {
	case <-failing.seen:
	case <-time.After(2 * time.Second):
		t.Fatal("notifier was never invoked")
	}

	// El fallo del notifier no cambia el estado final del ledger
	assert.Equal(t, stateOK.Ledger.Cash, stateBad.Ledger.Cash)
	assert.Equal(t, stateOK.Ledger.Positions["BTC/USD"].Quantity, stateBad.Ledger.Positions["BTC/USD"].Quantity)
}

func TestEngine_NotifierSeesSnapshotOfCycle(t *testing.T) {
	spy := newSpyNotifier(false)
	eng, _ := newTestEngine(newTestPipeline(0.9), &memStore{}, spy)

	require.NoError(t, eng.Run(context.Background()))

	select {
	case <-spy.seen:
	case <-time.After(2 * time.Second):
		t.Fatal("notifier was never invoked")
	}

	spy.mu.Lock()
	defer spy.mu.Unlock()
	require.Len(t, spy.events, 1)
	ev := spy.events[0]
	assert.Equal(t, domain.ModeDryRun, ev.Mode)
	assert.Len(t, ev.Fills, 1)
	assert.Len(t, ev.Positions, 1)
	assert.Greater(t, ev.Equity, 0.0)
}

func TestEngine_PersistRetriesThenSucceeds(t *testing.T) {
	store := &memStore{failures: 2}
	eng, _ := newTestEngine(newTestPipeline(0.9), store, nil)

	require.NoError(t, eng.Run(context.Background()))

	// Dos fallos transitorios más el intento que entra
	assert.Equal(t, 3, store.saves)
	assert.NotNil(t, store.saved)
}

func TestEngine_PersistGivesUpAfterRetries(t *testing.T) {
	store := &memStore{failures: -1}
	eng, state := newTestEngine(newTestPipeline(0.9), store, nil)

	err := eng.Run(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "giving up")
	// SaveRetries=2 → 3 intentos en total
	assert.Equal(t, 3, store.saves)
	// El ledger en memoria sí mutó; lo fatal es no poder conservarlo
	assert.Less(t, state.Ledger.Cash, 10000.0)
}

func TestEngine_RestoresRateLimiterWindow(t *testing.T) {
	pipeline := newTestPipeline(0.9)
	pipeline.Limiter = risk.NewRateLimiter(1, time.Hour)

	state := domain.NewEngineState(domain.NewLedger(10000), domain.ModeDryRun)
	state.RateLimiterWindow = []time.Time{time.Now().Add(-time.Minute)}

	eng := New(Config{
		Mode:        domain.ModeDryRun,
		Interval:    time.Hour,
		Once:        true,
		SaveRetries: 1,
	}, pipeline, []string{"BTC/USD"}, &memStore{}, nil, state)

	require.NoError(t, eng.Run(context.Background()))

	// La ventana restaurada ya consumía el único slot: la orden se aplaza
	assert.Equal(t, 10000.0, state.Ledger.Cash)
	assert.Empty(t, state.Ledger.Positions)
}

func TestEngine_CancelledContextPersistsOnExit(t *testing.T) {
	store := &memStore{}
	state := domain.NewEngineState(domain.NewLedger(10000), domain.ModeDryRun)
	eng := New(Config{
		Mode:        domain.ModeDryRun,
		Interval:    50 * time.Millisecond,
		SaveRetries: 1,
	}, newTestPipeline(0.5), []string{"BTC/USD"}, store, nil, state)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- eng.Run(ctx) }()

	time.Sleep(120 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("engine did not stop on cancel")
	}
	assert.NotNil(t, store.saved)
}
