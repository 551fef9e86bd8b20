package domain

import "time"

// BacktestMetrics son las métricas agregadas calculadas al final de un backtest.
type BacktestMetrics struct {
	TotalReturn  float64 // final/initial - 1
	MaxDrawdown  float64 // mayor caída pico-valle de la equity curve (fracción)
	WinRate      float64 // fracción de trades cerrados con P&L realizado > 0
	SharpeRatio  float64 // media/desviación de los retornos por barra, anualizado
	SortinoRatio float64 // como sharpe pero solo con desviación a la baja
	ProfitFactor float64 // ganancia bruta / pérdida bruta de trades cerrados
	TradeCount   int     // fills con status filled o partial
}

// BacktestResult es el resultado inmutable de una ejecución de backtest.
type BacktestResult struct {
	InitialCapital float64
	FinalEquity    float64
	StartDate      time.Time
	EndDate        time.Time
	EquityCurve    []EquityPoint
	TradeLog       []Fill
	Metrics        BacktestMetrics
}
