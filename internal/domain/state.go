package domain

import "time"

// Mode es el modo de ejecución del engine.
type Mode string

const (
	ModeDryRun   Mode = "dry-run"
	ModeBacktest Mode = "backtest"
	ModeLive     Mode = "live"
)

// EngineState es el snapshot durable del engine: se crea al arrancar
// (fresco o restaurado), se muta una vez por ciclo completado y se escribe
// a disco con backup rotativo antes de cada sobreescritura.
type EngineState struct {
	Ledger            *Ledger     `json:"ledger"`
	LastProcessed     time.Time   `json:"last_processed"`
	RateLimiterWindow []time.Time `json:"rate_limiter_window"`
	Mode              Mode        `json:"mode"`
}

// NewEngineState crea un estado fresco con el ledger dado.
func NewEngineState(ledger *Ledger, mode Mode) *EngineState {
	return &EngineState{Ledger: ledger, Mode: mode}
}
