// Package exec implements ports.OrderExecutor. The simulator is the executor
// for dry-run and backtest modes, and the fallback a live run degrades to
// when real trading is not confirmed.
package exec

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/alejandrodnm/tradebot/internal/domain"
	"github.com/alejandrodnm/tradebot/internal/ports"
)

// orderNamespace seeds deterministic order IDs (UUIDv5). Random IDs would
// make two identical backtest runs produce different trade logs.
var orderNamespace = uuid.MustParse("f6f1c817-9e34-4bce-9f0d-2a1f53d0a711")

// SimulatorConfig controls the fill model.
type SimulatorConfig struct {
	SlippageFraction  float64       // price moves against the order by this fraction
	MakerFee          float64       // fee rate for limit orders
	TakerFee          float64       // fee rate for market orders
	OrderTimeout      time.Duration // submissions slower than this time out
	Latency           time.Duration // simulated submission delay; zero for backtests
	AllowPartialFills bool
}

// Simulator resolves proposals against the cycle's market conditions. Fill,
// slippage and fee are pure functions of the proposal, the conditions and
// the config, never of wall-clock time or randomness.
//
// Execute is only ever called from the engine's settlement pass, so the
// simulator needs no locking around its sequence counter.
type Simulator struct {
	cfg SimulatorConfig
	seq uint64
}

// NewSimulator creates a simulated executor.
func NewSimulator(cfg SimulatorConfig) *Simulator {
	return &Simulator{cfg: cfg}
}

// Execute resolves one proposal into a fill. Rejections and timeouts come
// back as fills with the corresponding status and zero filled quantity; the
// ledger ignores those beyond logging.
func (s *Simulator) Execute(ctx context.Context, p domain.OrderProposal, mc ports.MarketConditions) domain.Fill {
	s.seq++
	fill := domain.Fill{
		OrderID:     s.orderID(p, mc),
		Symbol:      p.Symbol,
		Side:        p.Side,
		RequestedQt: p.Quantity,
		Timestamp:   mc.Timestamp,
	}

	if mc.Price <= 0 || p.Quantity <= 0 {
		fill.Status = domain.FillStatusRejected
		return fill
	}

	// Simulated venue latency. A submission that cannot settle inside the
	// configured timeout, or that is cancelled mid-flight, times out with
	// the ledger untouched.
	if s.cfg.Latency > 0 {
		if s.cfg.OrderTimeout > 0 && s.cfg.Latency >= s.cfg.OrderTimeout {
			fill.Status = domain.FillStatusTimeout
			return fill
		}
		select {
		case <-ctx.Done():
			fill.Status = domain.FillStatusTimeout
			return fill
		case <-time.After(s.cfg.Latency):
		}
	}

	qty := p.Quantity
	status := domain.FillStatusFilled
	if mc.Liquidity < qty {
		if !s.cfg.AllowPartialFills || mc.Liquidity <= 0 {
			fill.Status = domain.FillStatusRejected
			return fill
		}
		qty = mc.Liquidity
		status = domain.FillStatusPartial
	}

	price := mc.Price
	if p.Side == domain.SideBuy {
		price *= 1 + s.cfg.SlippageFraction
	} else {
		price *= 1 - s.cfg.SlippageFraction
	}

	feeRate := s.cfg.TakerFee
	if p.OrderType == domain.OrderTypeLimit {
		feeRate = s.cfg.MakerFee
	}

	fill.FilledQt = qty
	fill.Price = price
	fill.Fee = qty * price * feeRate
	fill.Status = status
	return fill
}

// orderID derives a stable UUID from the proposal and the sequence number.
func (s *Simulator) orderID(p domain.OrderProposal, mc ports.MarketConditions) string {
	seed := fmt.Sprintf("%s|%s|%d|%d", p.Symbol, p.Side, mc.Timestamp.UnixNano(), s.seq)
	return uuid.NewSHA1(orderNamespace, []byte(seed)).String()
}
