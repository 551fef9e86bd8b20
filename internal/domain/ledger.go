package domain

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrCashNegative indica que aplicar un Fill dejaría el cash por debajo de la
// tolerancia configurada. Es un fallo de clase error-de-programación: el risk
// manager debería haber vetado la propuesta, así que el engine debe parar en
// vez de seguir con un ledger corrupto.
var ErrCashNegative = errors.New("ledger: fill would drive cash negative beyond tolerance")

// positionEpsilon: por debajo de esta cantidad una posición se considera cerrada.
const positionEpsilon = 1e-9

// Position es la posición abierta de un símbolo. Quantity lleva signo:
// positiva para largos, negativa para cortos.
type Position struct {
	Symbol        string  `json:"symbol"`
	Quantity      float64 `json:"quantity"`
	AvgEntryPrice float64 `json:"avg_entry_price"`
}

// EquityPoint es una observación de equity total en un instante.
type EquityPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Equity    float64   `json:"equity"`
}

// Ledger es el registro autoritativo de capital, posiciones y P&L realizado.
// Solo el trading/backtest engine lo muta; el resto de componentes reciben
// snapshots de solo lectura.
type Ledger struct {
	Cash        float64             `json:"cash"`
	Positions   map[string]Position `json:"positions"`
	RealizedPnL float64             `json:"realized_pnl"`
	EquityCurve []EquityPoint       `json:"equity_curve"`
}

// NewLedger crea un ledger con el capital inicial dado y sin posiciones.
func NewLedger(initialCash float64) *Ledger {
	return &Ledger{
		Cash:      initialCash,
		Positions: make(map[string]Position),
	}
}

// AppliedFill describe el efecto de un Fill sobre el ledger.
type AppliedFill struct {
	RealizedDelta float64 // P&L realizado por este fill (0 si solo abre/incrementa)
	ReducedTrade  bool    // true si el fill redujo o cerró una posición existente
}

// Apply muta el ledger con un Fill. Fills rejected/timeout son no-op.
// La mutación es atómica: toda la validación ocurre antes de tocar ningún
// campo, así que un error deja el ledger exactamente como estaba.
func (l *Ledger) Apply(f Fill, tolerance float64) (AppliedFill, error) {
	var applied AppliedFill

	if !f.Executed() {
		return applied, nil
	}
	if f.FilledQt <= 0 {
		return applied, fmt.Errorf("ledger.Apply: fill %s has non-positive quantity %f", f.OrderID, f.FilledQt)
	}

	// 1. Validar cash resultante antes de mutar nada
	var newCash float64
	switch f.Side {
	case SideBuy:
		newCash = l.Cash - f.Notional() - f.Fee
	case SideSell:
		newCash = l.Cash + f.Notional() - f.Fee
	default:
		return applied, fmt.Errorf("ledger.Apply: fill %s has unknown side %q", f.OrderID, f.Side)
	}
	if newCash < -tolerance {
		return applied, fmt.Errorf("ledger.Apply: fill %s: cash %.8f -> %.8f: %w",
			f.OrderID, l.Cash, newCash, ErrCashNegative)
	}

	// 2. Calcular la nueva posición (aún sin mutar)
	pos := l.Positions[f.Symbol]
	delta := f.SignedQuantity()
	newQty := pos.Quantity + delta
	newAvg := pos.AvgEntryPrice
	realized := 0.0

	switch {
	case pos.Quantity == 0 || sameSign(pos.Quantity, delta):
		// Abrir o incrementar: coste medio ponderado
		total := math.Abs(pos.Quantity) + math.Abs(delta)
		newAvg = (math.Abs(pos.Quantity)*pos.AvgEntryPrice + math.Abs(delta)*f.Price) / total
	default:
		// Reducir, cerrar o invertir: reconocer P&L sobre la parte cerrada
		closed := math.Min(math.Abs(delta), math.Abs(pos.Quantity))
		realized = closed * (f.Price - pos.AvgEntryPrice) * sign(pos.Quantity)
		applied.ReducedTrade = true
		if sameSign(newQty, delta) && math.Abs(newQty) > positionEpsilon {
			// Cruzó por cero: el resto abre posición nueva al precio del fill
			newAvg = f.Price
		}
	}

	// 3. Mutar
	l.Cash = newCash
	l.RealizedPnL += realized
	applied.RealizedDelta = realized

	if math.Abs(newQty) <= positionEpsilon {
		delete(l.Positions, f.Symbol)
	} else {
		l.Positions[f.Symbol] = Position{
			Symbol:        f.Symbol,
			Quantity:      newQty,
			AvgEntryPrice: newAvg,
		}
	}

	return applied, nil
}

// Equity devuelve cash + mark-to-market de las posiciones abiertas usando los
// últimos precios conocidos. Si falta el precio de un símbolo se usa su
// precio medio de entrada.
func (l *Ledger) Equity(prices map[string]float64) float64 {
	equity := l.Cash
	for sym, pos := range l.Positions {
		price, ok := prices[sym]
		if !ok {
			price = pos.AvgEntryPrice
		}
		equity += pos.Quantity * price
	}
	return equity
}

// MarkToMarket añade una observación de equity a la curva y la devuelve.
func (l *Ledger) MarkToMarket(prices map[string]float64, ts time.Time) float64 {
	equity := l.Equity(prices)
	l.EquityCurve = append(l.EquityCurve, EquityPoint{Timestamp: ts, Equity: equity})
	return equity
}

// Clone devuelve una copia profunda del ledger, para snapshots de solo lectura.
func (l *Ledger) Clone() *Ledger {
	cp := &Ledger{
		Cash:        l.Cash,
		RealizedPnL: l.RealizedPnL,
		Positions:   make(map[string]Position, len(l.Positions)),
		EquityCurve: make([]EquityPoint, len(l.EquityCurve)),
	}
	for k, v := range l.Positions {
		cp.Positions[k] = v
	}
	copy(cp.EquityCurve, l.EquityCurve)
	return cp
}

func sameSign(a, b float64) bool {
	return (a > 0 && b > 0) || (a < 0 && b < 0)
}

func sign(x float64) float64 {
	if x < 0 {
		return -1
	}
	return 1
}
