package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/tradebot/internal/domain"
)

func sig(strategyID string, dir domain.Direction, conf float64) domain.Signal {
	return domain.Signal{
		Symbol:     "BTC/USD",
		Direction:  dir,
		Confidence: conf,
		StrategyID: strategyID,
		Timestamp:  time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestMergeSignals_AgreementTakesMaxConfidence(t *testing.T) {
	merged := MergeSignals("BTC/USD", []domain.Signal{
		sig("sma-cross", domain.DirectionLong, 0.7),
		sig("momentum", domain.DirectionLong, 0.9),
	}, 0.6, 0.05)

	require.NotNil(t, merged)
	assert.Equal(t, domain.DirectionLong, merged.Direction)
	assert.Equal(t, 0.9, merged.Confidence)
	assert.Equal(t, []string{"momentum", "sma-cross"}, merged.Sources)
}

func TestMergeSignals_FiltersBelowThreshold(t *testing.T) {
	merged := MergeSignals("BTC/USD", []domain.Signal{
		sig("sma-cross", domain.DirectionLong, 0.59),
		sig("momentum", domain.DirectionShort, 0.8),
	}, 0.6, 0.05)

	require.NotNil(t, merged)
	// La señal filtrada no participa en el merge
	assert.Equal(t, domain.DirectionShort, merged.Direction)
	assert.Equal(t, []string{"momentum"}, merged.Sources)
}

func TestMergeSignals_NothingSurvivesReturnsNil(t *testing.T) {
	merged := MergeSignals("BTC/USD", []domain.Signal{
		sig("sma-cross", domain.DirectionLong, 0.3),
	}, 0.6, 0.05)

	assert.Nil(t, merged)
}

func TestMergeSignals_DisagreementUsesNetConfidence(t *testing.T) {
	merged := MergeSignals("BTC/USD", []domain.Signal{
		sig("sma-cross", domain.DirectionLong, 0.9),
		sig("momentum", domain.DirectionShort, 0.6),
	}, 0.6, 0.05)

	require.NotNil(t, merged)
	assert.Equal(t, domain.DirectionLong, merged.Direction)
	assert.InDelta(t, 0.3, merged.Confidence, 1e-9)
}

func TestMergeSignals_NetNearZeroIsFlat(t *testing.T) {
	merged := MergeSignals("BTC/USD", []domain.Signal{
		sig("sma-cross", domain.DirectionLong, 0.7),
		sig("momentum", domain.DirectionShort, 0.72),
	}, 0.6, 0.05)

	require.NotNil(t, merged)
	assert.Equal(t, domain.DirectionFlat, merged.Direction)
	assert.False(t, merged.Actionable())
}

func TestMergeSignals_NetConfidenceClampedToOne(t *testing.T) {
	merged := MergeSignals("BTC/USD", []domain.Signal{
		sig("a", domain.DirectionLong, 0.9),
		sig("b", domain.DirectionLong, 0.8),
		sig("c", domain.DirectionShort, 0.7),
		sig("d", domain.DirectionLong, 0.95),
	}, 0.6, 0.05)

	require.NotNil(t, merged)
	assert.Equal(t, domain.DirectionLong, merged.Direction)
	assert.LessOrEqual(t, merged.Confidence, 1.0)
}

func TestMergeSignals_EmptyInput(t *testing.T) {
	assert.Nil(t, MergeSignals("BTC/USD", nil, 0.6, 0.05))
}
