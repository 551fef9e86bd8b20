// Package risk converts merged signals into sized order proposals, enforcing
// capital-fraction and position caps, and gates order flow through a rolling
// rate limiter.
package risk

import (
	"math"

	"github.com/alejandrodnm/tradebot/internal/domain"
)

// SymbolLimits are the per-symbol risk limits.
type SymbolLimits struct {
	MaxPositionSize float64 // absolute cap on |position quantity|
	MinTradeSize    float64 // proposals below this are vetoed
}

// Limits is the full risk configuration for the manager.
type Limits struct {
	MinConfidence      float64
	MaxCapitalFraction float64 // fraction of cash risked per trade at full confidence
	LotSize            float64 // quantities are floored to this precision
	SlippageFraction   float64 // headroom for the executor's slippage
	FeeFraction        float64 // headroom for the executor's fee
	OrderType          domain.OrderType
	PerSymbol          map[string]SymbolLimits
}

// Veto is the reason a merged signal did not become a proposal. Vetoes are
// expected control-flow outcomes, not errors.
type Veto struct {
	Symbol string
	Reason string
}

// Manager sizes proposals from merged signals. Sizing is a pure function of
// its inputs: identical signal, ledger view and price always produce the
// identical proposal, which backtest reproducibility depends on.
type Manager struct {
	limits Limits
}

// NewManager creates a risk manager with the given limits.
func NewManager(limits Limits) *Manager {
	return &Manager{limits: limits}
}

// Evaluate turns a merged signal into an order proposal, or a veto with a
// reason. cash and pos are a read-only snapshot of the ledger taken by the
// engine before the settlement pass.
func (m *Manager) Evaluate(sig domain.MergedSignal, cash float64, pos domain.Position, price float64) (domain.OrderProposal, *Veto) {
	var none domain.OrderProposal

	if !sig.Actionable() {
		return none, &Veto{Symbol: sig.Symbol, Reason: "flat direction"}
	}
	if sig.Confidence < m.limits.MinConfidence {
		return none, &Veto{Symbol: sig.Symbol, Reason: "confidence below threshold"}
	}
	if price <= 0 {
		return none, &Veto{Symbol: sig.Symbol, Reason: "no valid price"}
	}

	side := domain.SideBuy
	if sig.Direction == domain.DirectionShort {
		side = domain.SideSell
	}

	// Quantity proportional to confidence and available capital.
	qty := cash * m.limits.MaxCapitalFraction * sig.Confidence / price

	// Clip to the per-symbol position cap, accounting for the current
	// signed position.
	sym := m.limits.PerSymbol[sig.Symbol]
	if sym.MaxPositionSize > 0 {
		var room float64
		if side == domain.SideBuy {
			room = sym.MaxPositionSize - pos.Quantity
		} else {
			room = sym.MaxPositionSize + pos.Quantity
		}
		if room <= 0 {
			return none, &Veto{Symbol: sig.Symbol, Reason: "position cap reached"}
		}
		qty = math.Min(qty, room)
	}

	// Buys must leave cash non-negative after worst-case slippage and fee.
	if side == domain.SideBuy {
		worstPrice := price * (1 + m.limits.SlippageFraction) * (1 + m.limits.FeeFraction)
		if affordable := cash / worstPrice; qty > affordable {
			qty = affordable
		}
	}

	qty = m.floorToLot(qty)
	if qty <= 0 {
		return none, &Veto{Symbol: sig.Symbol, Reason: "quantity rounds to zero"}
	}
	if sym.MinTradeSize > 0 && qty < sym.MinTradeSize {
		return none, &Veto{Symbol: sig.Symbol, Reason: "below minimum trade size"}
	}

	return domain.OrderProposal{
		Symbol:    sig.Symbol,
		Side:      side,
		Quantity:  qty,
		OrderType: m.limits.OrderType,
		PriceHint: price,
		Timestamp: sig.Timestamp,
	}, nil
}

func (m *Manager) floorToLot(qty float64) float64 {
	lot := m.limits.LotSize
	if lot <= 0 {
		return qty
	}
	return math.Floor(qty/lot) * lot
}
