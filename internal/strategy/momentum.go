package strategy

import (
	"fmt"
	"math"

	"github.com/alejandrodnm/tradebot/internal/domain"
)

// Compile-time interface check.
var _ Strategy = (*Momentum)(nil)

// Momentum signals in the direction of the trailing return over a lookback
// window once it exceeds a threshold.
type Momentum struct {
	lookback  int
	threshold float64
}

// NewMomentum builds the strategy from params "lookback" and "threshold".
func NewMomentum(params Params) (Strategy, error) {
	m := &Momentum{
		lookback:  int(params.Get("lookback", 20)),
		threshold: params.Get("threshold", 0.02),
	}
	if m.lookback <= 0 {
		return nil, fmt.Errorf("momentum: lookback must be > 0, got %d", m.lookback)
	}
	if m.threshold <= 0 {
		return nil, fmt.Errorf("momentum: threshold must be > 0, got %f", m.threshold)
	}
	return m, nil
}

func (m *Momentum) Name() string { return "momentum" }

func (m *Momentum) MinPeriods() int { return m.lookback + 1 }

func (m *Momentum) GenerateSignal(window []domain.Candle, currentPrice float64) (*domain.Signal, error) {
	if len(window) < m.MinPeriods() {
		return nil, nil
	}

	base := window[len(window)-1-m.lookback].Close
	if base == 0 {
		return nil, nil
	}
	ret := currentPrice/base - 1

	if math.Abs(ret) < m.threshold {
		return nil, nil
	}

	dir := domain.DirectionLong
	if ret < 0 {
		dir = domain.DirectionShort
	}

	// Twice the threshold counts as full conviction.
	conf := clamp01(math.Abs(ret) / (2 * m.threshold))

	last := window[len(window)-1]
	return &domain.Signal{
		Symbol:     last.Symbol,
		Direction:  dir,
		Confidence: conf,
		StrategyID: m.Name(),
		Timestamp:  last.Timestamp,
	}, nil
}
