package domain

import "time"

// Direction es la opinión direccional de una señal.
type Direction string

const (
	DirectionLong  Direction = "long"
	DirectionShort Direction = "short"
	DirectionFlat  Direction = "flat"
)

// Signal es la opinión de una estrategia sobre un símbolo en un ciclo.
// Se produce fresca en cada evaluación y se descarta tras el merge.
type Signal struct {
	Symbol     string
	Direction  Direction
	Confidence float64 // [0, 1]
	StrategyID string
	Timestamp  time.Time
}

// MergedSignal es la única señal por símbolo y ciclo tras combinar
// las salidas de todas las estrategias.
type MergedSignal struct {
	Symbol     string
	Direction  Direction
	Confidence float64
	Sources    []string // strategy IDs que sobrevivieron al filtro
	Timestamp  time.Time
}

// Actionable devuelve true si la señal mergeada pide operar.
func (m MergedSignal) Actionable() bool {
	return m.Direction == DirectionLong || m.Direction == DirectionShort
}
