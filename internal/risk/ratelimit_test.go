package risk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiter_AllowsUpToMax(t *testing.T) {
	rl := NewRateLimiter(10, time.Minute)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 10; i++ {
		assert.True(t, rl.Allow(now.Add(time.Duration(i)*time.Second)), "proposal %d should pass", i+1)
	}

	// La 11ª dentro del mismo minuto se aplaza
	assert.False(t, rl.Allow(now.Add(10*time.Second)))
	assert.Equal(t, 10, rl.InWindow(now.Add(10*time.Second)))
}

func TestRateLimiter_DeferredProposalPassesNextWindow(t *testing.T) {
	rl := NewRateLimiter(10, time.Minute)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 10; i++ {
		require.True(t, rl.Allow(now))
	}
	require.False(t, rl.Allow(now.Add(30*time.Second)))

	// Pasado el minuto desde los accepts originales, vuelve a haber hueco
	assert.True(t, rl.Allow(now.Add(61*time.Second)))
}

func TestRateLimiter_PrunesOldTimestamps(t *testing.T) {
	rl := NewRateLimiter(5, time.Minute)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		require.True(t, rl.Allow(now))
	}
	assert.Equal(t, 5, rl.InWindow(now))
	assert.Equal(t, 0, rl.InWindow(now.Add(2*time.Minute)))
}

func TestRateLimiter_SnapshotRestore(t *testing.T) {
	rl := NewRateLimiter(10, time.Minute)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 10; i++ {
		require.True(t, rl.Allow(now.Add(time.Duration(i)*time.Second)))
	}
	snap := rl.Snapshot()
	require.Len(t, snap, 10)

	// Un proceso nuevo que restaura la ventana no puede superar el budget
	restored := NewRateLimiter(10, time.Minute)
	restored.Restore(snap)
	assert.False(t, restored.Allow(now.Add(20*time.Second)))
	assert.True(t, restored.Allow(now.Add(2*time.Minute)))
}

func TestRateLimiter_SnapshotIsCopy(t *testing.T) {
	rl := NewRateLimiter(5, time.Minute)
	now := time.Now()
	require.True(t, rl.Allow(now))

	snap := rl.Snapshot()
	snap[0] = snap[0].Add(time.Hour)

	assert.Equal(t, 1, rl.InWindow(now))
	assert.True(t, rl.Allow(now)) // el interno no se vio afectado
}
