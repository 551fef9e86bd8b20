package backtest

import (
	"math"

	"github.com/alejandrodnm/tradebot/internal/domain"
)

// periodsPerYear annualizes per-bar return ratios assuming daily bars.
const periodsPerYear = 252

// computeMetrics derives the aggregate metrics from the recorded equity
// curve and trade log.
func computeMetrics(initial float64, curve []domain.EquityPoint, tradeLog []domain.Fill, realized []appliedTrade) domain.BacktestMetrics {
	m := domain.BacktestMetrics{}

	if len(curve) > 0 && initial > 0 {
		m.TotalReturn = curve[len(curve)-1].Equity/initial - 1
	}
	m.MaxDrawdown = maxDrawdown(curve)

	for _, f := range tradeLog {
		if f.Executed() {
			m.TradeCount++
		}
	}

	m.WinRate, m.ProfitFactor = closedTradeStats(realized)

	returns := barReturns(curve)
	m.SharpeRatio = sharpe(returns)
	m.SortinoRatio = sortino(returns)
	return m
}

// maxDrawdown is the largest peak-to-trough decline of the curve, as a
// positive fraction of the peak.
func maxDrawdown(curve []domain.EquityPoint) float64 {
	peak, maxDD := 0.0, 0.0
	for _, p := range curve {
		if p.Equity > peak {
			peak = p.Equity
		}
		if peak > 0 {
			if dd := (peak - p.Equity) / peak; dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD
}

// closedTradeStats computes win rate and profit factor over position
// reductions, the only fills that realize P&L.
func closedTradeStats(realized []appliedTrade) (winRate, profitFactor float64) {
	var closed, wins int
	var grossProfit, grossLoss float64
	for _, t := range realized {
		if !t.applied.ReducedTrade {
			continue
		}
		closed++
		if t.applied.RealizedDelta > 0 {
			wins++
			grossProfit += t.applied.RealizedDelta
		} else {
			grossLoss += -t.applied.RealizedDelta
		}
	}
	if closed > 0 {
		winRate = float64(wins) / float64(closed)
	}
	switch {
	case grossLoss > 0:
		profitFactor = grossProfit / grossLoss
	case grossProfit > 0:
		profitFactor = math.Inf(1)
	}
	return winRate, profitFactor
}

// barReturns converts the equity curve into per-bar return ratios.
func barReturns(curve []domain.EquityPoint) []float64 {
	if len(curve) < 2 {
		return nil
	}
	returns := make([]float64, 0, len(curve)-1)
	for i := 1; i < len(curve); i++ {
		prev := curve[i-1].Equity
		if prev == 0 {
			continue
		}
		returns = append(returns, curve[i].Equity/prev-1)
	}
	return returns
}

// sharpe is mean/stddev of the returns, annualized. Zero when the series is
// too short or has no variance.
func sharpe(returns []float64) float64 {
	mean, std := meanStd(returns)
	if std == 0 {
		return 0
	}
	return mean / std * math.Sqrt(periodsPerYear)
}

// sortino penalizes only downside variance.
func sortino(returns []float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	mean, _ := meanStd(returns)
	var downSq float64
	for _, r := range returns {
		if r < 0 {
			downSq += r * r
		}
	}
	down := math.Sqrt(downSq / float64(len(returns)))
	if down == 0 {
		return 0
	}
	return mean / down * math.Sqrt(periodsPerYear)
}

func meanStd(xs []float64) (mean, std float64) {
	if len(xs) == 0 {
		return 0, 0
	}
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))
	var varSum float64
	for _, x := range xs {
		varSum += (x - mean) * (x - mean)
	}
	return mean, math.Sqrt(varSum / float64(len(xs)))
}
