package strategy

import (
	"fmt"
	"math"

	"github.com/alejandrodnm/tradebot/internal/domain"
)

// Compile-time interface check.
var _ Strategy = (*SMACross)(nil)

// SMACross emits a long signal when the short-period SMA crosses above the
// long-period SMA on the latest bar, and a short signal on the opposite
// cross. Between crosses it stays quiet.
type SMACross struct {
	short int
	long  int
}

// NewSMACross builds the strategy from params "short" and "long".
func NewSMACross(params Params) (Strategy, error) {
	s := &SMACross{
		short: int(params.Get("short", 10)),
		long:  int(params.Get("long", 30)),
	}
	if s.short <= 0 || s.long <= 0 || s.short >= s.long {
		return nil, fmt.Errorf("sma-cross: need 0 < short < long, got short=%d long=%d", s.short, s.long)
	}
	return s, nil
}

func (s *SMACross) Name() string { return "sma-cross" }

// MinPeriods needs one extra bar to compare against the previous cycle.
func (s *SMACross) MinPeriods() int { return s.long + 1 }

func (s *SMACross) GenerateSignal(window []domain.Candle, currentPrice float64) (*domain.Signal, error) {
	if len(window) < s.MinPeriods() {
		return nil, nil
	}

	prev := window[:len(window)-1]
	shortNow, longNow := sma(window, s.short), sma(window, s.long)
	shortPrev, longPrev := sma(prev, s.short), sma(prev, s.long)

	var dir domain.Direction
	switch {
	case shortPrev <= longPrev && shortNow > longNow:
		dir = domain.DirectionLong
	case shortPrev >= longPrev && shortNow < longNow:
		dir = domain.DirectionShort
	default:
		return nil, nil
	}

	// Confidence scales with the separation of the averages: a 2% gap or
	// wider counts as full conviction.
	gap := math.Abs(shortNow-longNow) / longNow
	conf := clamp01(gap / 0.02)

	last := window[len(window)-1]
	return &domain.Signal{
		Symbol:     last.Symbol,
		Direction:  dir,
		Confidence: conf,
		StrategyID: s.Name(),
		Timestamp:  last.Timestamp,
	}, nil
}
