package state

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/tradebot/internal/domain"
	"github.com/alejandrodnm/tradebot/internal/ports"
)

func newTestJournal(t *testing.T) *SQLiteJournal {
	t.Helper()
	j, err := NewSQLiteJournal(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func TestSQLiteJournal_SaveFill(t *testing.T) {
	j := newTestJournal(t)
	ctx := context.Background()

	fill := domain.Fill{
		OrderID:     "ord-1",
		Symbol:      "BTC/USD",
		Side:        domain.SideBuy,
		RequestedQt: 0.1,
		FilledQt:    0.1,
		Price:       45000,
		Fee:         4.5,
		Timestamp:   time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
		Status:      domain.FillStatusFilled,
	}
	require.NoError(t, j.SaveFill(ctx, fill))

	// Reescribir el mismo order_id no duplica filas
	fill.Status = domain.FillStatusPartial
	require.NoError(t, j.SaveFill(ctx, fill))

	var count int
	var status string
	row := j.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM fills`)
	require.NoError(t, row.Scan(&count))
	assert.Equal(t, 1, count)

	row = j.db.QueryRowContext(ctx, `SELECT status FROM fills WHERE order_id = ?`, "ord-1")
	require.NoError(t, row.Scan(&status))
	assert.Equal(t, "partial", status)
}

func TestSQLiteJournal_SaveCycleAndEquity(t *testing.T) {
	j := newTestJournal(t)
	ctx := context.Background()

	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, j.SaveCycle(ctx, ports.CycleSummary{
		Timestamp: now,
		Signals:   2,
		Fills:     1,
		Vetoes:    1,
		Deferred:  0,
		Failures:  1,
		Equity:    10050.25,
	}))
	require.NoError(t, j.SaveEquityPoint(ctx, domain.EquityPoint{Timestamp: now, Equity: 10050.25}))

	var failures int
	var equity float64
	row := j.db.QueryRowContext(ctx, `SELECT failures, equity FROM cycles`)
	require.NoError(t, row.Scan(&failures, &equity))
	// Los ciclos con órdenes fallidas quedan distinguibles en el registro
	assert.Equal(t, 1, failures)
	assert.InDelta(t, 10050.25, equity, 1e-9)

	var points int
	row = j.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM equity_curve`)
	require.NoError(t, row.Scan(&points))
	assert.Equal(t, 1, points)
}
