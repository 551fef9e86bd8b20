package domain

import "time"

// Candle es una barra OHLCV de un símbolo en un timeframe dado.
type Candle struct {
	Symbol    string
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
	Timeframe string
}

// MidPrice devuelve el precio medio de la barra.
func (c Candle) MidPrice() float64 {
	return (c.High + c.Low) / 2
}

// Window devuelve los últimos n candles de la serie (o todos si hay menos).
// La serie de entrada debe estar ordenada de más antiguo a más reciente.
func Window(series []Candle, n int) []Candle {
	if n <= 0 || len(series) <= n {
		return series
	}
	return series[len(series)-n:]
}
