package ports

import (
	"context"
	"time"

	"github.com/alejandrodnm/tradebot/internal/domain"
)

// StateStore persiste el EngineState con rotación automática del snapshot
// anterior a un slot de backup antes de cada sobreescritura.
type StateStore interface {
	// Save escribe el snapshot, rotando el anterior al backup.
	Save(ctx context.Context, state *domain.EngineState) error

	// Load devuelve el último snapshot. ok es false si no existe ninguno.
	// Si el snapshot primario está corrupto intenta el backup antes de
	// devolver error.
	Load(ctx context.Context) (state *domain.EngineState, ok bool, err error)
}

// Journal registra fills, ciclos y observaciones de equity para auditoría.
// Es escritura best-effort: los errores se loguean, nunca detienen el ciclo.
type Journal interface {
	SaveFill(ctx context.Context, fill domain.Fill) error
	SaveCycle(ctx context.Context, summary CycleSummary) error
	SaveEquityPoint(ctx context.Context, point domain.EquityPoint) error
	Close() error
}

// CycleSummary es la fila por ciclo que persiste el journal. Distingue los
// ciclos que ejecutaron órdenes de los que no pudieron: un fallo de
// ejecución nunca debe parecer un éxito en el registro persistido.
type CycleSummary struct {
	Timestamp time.Time
	Signals   int
	Fills     int
	Vetoes    int
	Deferred  int
	Failures  int // órdenes intentadas que terminaron rejected/timeout
	Equity    float64
}
