package domain

import "time"

// Side es el lado de una orden.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// OrderType es el tipo de orden soportado por el ejecutor.
type OrderType string

const (
	OrderTypeMarket OrderType = "market"
	OrderTypeLimit  OrderType = "limit"
)

// FillStatus es el resultado de intentar ejecutar una propuesta.
type FillStatus string

const (
	FillStatusFilled   FillStatus = "filled"
	FillStatusPartial  FillStatus = "partial"
	FillStatusRejected FillStatus = "rejected"
	FillStatusTimeout  FillStatus = "timeout"
)

// OrderProposal es una orden candidata ya dimensionada por el risk manager,
// pendiente del rate gate y de ejecución. Nunca se persiste por sí sola.
type OrderProposal struct {
	Symbol    string
	Side      Side
	Quantity  float64
	OrderType OrderType
	PriceHint float64 // último precio conocido al dimensionar
	Timestamp time.Time
}

// Fill es el resultado inmutable de ejecutar una OrderProposal.
// Es la única entrada que muta el Ledger.
type Fill struct {
	OrderID     string
	Symbol      string
	Side        Side
	RequestedQt float64
	FilledQt    float64
	Price       float64 // precio realizado, slippage incluido
	Fee         float64
	Timestamp   time.Time
	Status      FillStatus
}

// Executed devuelve true si el fill movió capital (total o parcial).
func (f Fill) Executed() bool {
	return f.Status == FillStatusFilled || f.Status == FillStatusPartial
}

// Notional devuelve el valor ejecutado sin fee.
func (f Fill) Notional() float64 {
	return f.FilledQt * f.Price
}

// SignedQuantity devuelve la cantidad con signo: compras positivas,
// ventas negativas.
func (f Fill) SignedQuantity() float64 {
	if f.Side == SideSell {
		return -f.FilledQt
	}
	return f.FilledQt
}
