package state

// sqlite.go — journal de auditoría en SQLite (pure Go, sin CGo).
//
// El snapshot JSON guarda solo el estado vigente; el journal conserva el
// histórico: cada fill, cada resumen de ciclo y la equity curve completa.
// Escritura best-effort: un error aquí se loguea y el ciclo sigue.

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/alejandrodnm/tradebot/internal/domain"
	"github.com/alejandrodnm/tradebot/internal/ports"
)

const journalSchema = `
-- Un fill por orden ejecutada (o rechazada/timeout, para auditoría)
CREATE TABLE IF NOT EXISTS fills (
    order_id      TEXT PRIMARY KEY,
    symbol        TEXT     NOT NULL,
    side          TEXT     NOT NULL,
    requested_qty REAL     NOT NULL,
    filled_qty    REAL     NOT NULL DEFAULT 0,
    price         REAL     NOT NULL DEFAULT 0,
    fee           REAL     NOT NULL DEFAULT 0,
    status        TEXT     NOT NULL,
    filled_at     DATETIME NOT NULL
);

-- Resumen ligero por ciclo
CREATE TABLE IF NOT EXISTS cycles (
    id       INTEGER PRIMARY KEY AUTOINCREMENT,
    ran_at   DATETIME NOT NULL,
    signals  INTEGER  NOT NULL DEFAULT 0,
    fills    INTEGER  NOT NULL DEFAULT 0,
    vetoes   INTEGER  NOT NULL DEFAULT 0,
    deferred INTEGER  NOT NULL DEFAULT 0,
    failures INTEGER  NOT NULL DEFAULT 0,
    equity   REAL     NOT NULL DEFAULT 0
);

-- Una observación de equity por ciclo
CREATE TABLE IF NOT EXISTS equity_curve (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    observed_at DATETIME NOT NULL,
    equity      REAL     NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_fills_at  ON fills(filled_at DESC);
CREATE INDEX IF NOT EXISTS idx_cycles_at ON cycles(ran_at DESC);
CREATE INDEX IF NOT EXISTS idx_equity_at ON equity_curve(observed_at DESC);
`

const journalRetention = 90 * 24 * time.Hour

// SQLiteJournal implementa ports.Journal.
type SQLiteJournal struct {
	db *sql.DB
}

// NewSQLiteJournal abre (o crea) el journal en la ruta dada, aplica el
// schema y limpia datos antiguos.
func NewSQLiteJournal(path string) (*SQLiteJournal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("state.NewSQLiteJournal: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite es single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(journalSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("state.NewSQLiteJournal: apply schema: %w", err)
	}

	j := &SQLiteJournal{db: db}
	j.pruneOld(context.Background())
	return j, nil
}

// SaveFill registra un fill. Upsert por order_id: reintentar un ciclo nunca
// duplica filas.
func (j *SQLiteJournal) SaveFill(ctx context.Context, f domain.Fill) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO fills
			(order_id, symbol, side, requested_qty, filled_qty, price, fee, status, filled_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(order_id) DO UPDATE SET
			filled_qty = excluded.filled_qty,
			price      = excluded.price,
			fee        = excluded.fee,
			status     = excluded.status
	`, f.OrderID, f.Symbol, string(f.Side), f.RequestedQt, f.FilledQt,
		f.Price, f.Fee, string(f.Status), f.Timestamp.UTC())
	if err != nil {
		return fmt.Errorf("state.SaveFill: %s: %w", f.OrderID, err)
	}
	return nil
}

// SaveCycle registra el resumen de un ciclo.
func (j *SQLiteJournal) SaveCycle(ctx context.Context, s ports.CycleSummary) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO cycles (ran_at, signals, fills, vetoes, deferred, failures, equity)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, s.Timestamp.UTC(), s.Signals, s.Fills, s.Vetoes, s.Deferred, s.Failures, s.Equity)
	if err != nil {
		return fmt.Errorf("state.SaveCycle: %w", err)
	}
	return nil
}

// SaveEquityPoint añade una observación a la equity curve.
func (j *SQLiteJournal) SaveEquityPoint(ctx context.Context, p domain.EquityPoint) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO equity_curve (observed_at, equity) VALUES (?, ?)
	`, p.Timestamp.UTC(), p.Equity)
	if err != nil {
		return fmt.Errorf("state.SaveEquityPoint: %w", err)
	}
	return nil
}

// Close cierra la conexión.
func (j *SQLiteJournal) Close() error {
	return j.db.Close()
}

// pruneOld elimina histórico antiguo para mantener el journal ligero.
func (j *SQLiteJournal) pruneOld(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-journalRetention)
	j.db.ExecContext(ctx, `DELETE FROM cycles WHERE ran_at < ?`, cutoff)
	j.db.ExecContext(ctx, `DELETE FROM equity_curve WHERE observed_at < ?`, cutoff)
	j.db.ExecContext(ctx, `DELETE FROM fills WHERE filled_at < ?`, cutoff)
}

var _ ports.Journal = (*SQLiteJournal)(nil)
