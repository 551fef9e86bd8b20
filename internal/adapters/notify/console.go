// Package notify implements ports.Notifier. Delivery is best-effort by
// contract: a failing channel is logged by the engine and never touches the
// ledger or the loop.
package notify

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/alejandrodnm/tradebot/internal/domain"
	"github.com/alejandrodnm/tradebot/internal/ports"
)

// Console implementa ports.Notifier escribiendo a stdout.
type Console struct {
	out   io.Writer
	table bool
}

// NewConsole crea un notificador de consola.
func NewConsole(table bool) *Console {
	return &Console{out: os.Stdout, table: table}
}

// NewConsoleWriter crea un notificador para tests.
func NewConsoleWriter(w io.Writer, table bool) *Console {
	return &Console{out: w, table: table}
}

// NotifyCycle imprime el resumen del ciclo en el modo configurado.
func (c *Console) NotifyCycle(_ context.Context, ev ports.CycleEvent) error {
	if c.table {
		c.printFull(ev)
	} else {
		c.printCompact(ev)
	}
	return nil
}

// printCompact imprime lo esencial en una línea, más los fills ejecutados.
func (c *Console) printCompact(ev ports.CycleEvent) {
	now := time.Now().Format("15:04:05")

	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s][%s] signals:%d fills:%d vetoes:%d deferred:%d cash:$%.2f equity:$%.2f",
		now, ev.Mode, len(ev.Signals), executedFills(ev.Fills), len(ev.Vetoes),
		ev.Deferred, ev.Cash, ev.Equity)

	for _, f := range ev.Fills {
		if !f.Executed() {
			continue
		}
		fmt.Fprintf(&sb, " | %s %s %.4f@%.2f", f.Side, f.Symbol, f.FilledQt, f.Price)
	}

	fmt.Fprintln(c.out, sb.String())
}

// printFull imprime tablas de señales, fills y posiciones abiertas.
func (c *Console) printFull(ev ports.CycleEvent) {
	now := time.Now().Format("15:04:05")
	fmt.Fprintf(c.out, "\n[%s][%s] cycle — equity $%.2f, cash $%.2f\n",
		now, ev.Mode, ev.Equity, ev.Cash)

	if len(ev.Signals) > 0 {
		table := tablewriter.NewWriter(c.out)
		table.Header("Symbol", "Direction", "Confidence", "Sources")
		for _, s := range ev.Signals {
			table.Append(
				s.Symbol,
				string(s.Direction),
				fmt.Sprintf("%.2f", s.Confidence),
				strings.Join(s.Sources, ","),
			)
		}
		table.Render()
	}

	if len(ev.Fills) > 0 {
		table := tablewriter.NewWriter(c.out)
		table.Header("Symbol", "Side", "Requested", "Filled", "Price", "Fee", "Status")
		for _, f := range ev.Fills {
			table.Append(
				f.Symbol,
				string(f.Side),
				fmt.Sprintf("%.4f", f.RequestedQt),
				fmt.Sprintf("%.4f", f.FilledQt),
				fmt.Sprintf("$%.2f", f.Price),
				fmt.Sprintf("$%.4f", f.Fee),
				string(f.Status),
			)
		}
		table.Render()
	}

	for _, v := range ev.Vetoes {
		fmt.Fprintf(c.out, "  veto: %s\n", v)
	}
	if ev.Deferred > 0 {
		fmt.Fprintf(c.out, "  rate limiter deferred %d proposal(s)\n", ev.Deferred)
	}

	if len(ev.Positions) > 0 {
		table := tablewriter.NewWriter(c.out)
		table.Header("Symbol", "Quantity", "Avg Entry")
		for _, p := range ev.Positions {
			table.Append(p.Symbol, fmt.Sprintf("%.4f", p.Quantity), fmt.Sprintf("$%.2f", p.AvgEntryPrice))
		}
		table.Render()
	}
	fmt.Fprintln(c.out)
}

// NotifyBacktest imprime el informe completo del backtest.
func (c *Console) NotifyBacktest(_ context.Context, result domain.BacktestResult) error {
	fmt.Fprintf(c.out, "\n=== BACKTEST %s → %s ===\n",
		result.StartDate.Format("2006-01-02"), result.EndDate.Format("2006-01-02"))
	fmt.Fprintf(c.out, "  Initial capital:  $%.2f\n", result.InitialCapital)
	fmt.Fprintf(c.out, "  Final equity:     $%.2f\n", result.FinalEquity)

	m := result.Metrics
	pfLabel := fmt.Sprintf("%.2f", m.ProfitFactor)
	if math.IsInf(m.ProfitFactor, 1) {
		pfLabel = "INF"
	}

	table := tablewriter.NewWriter(c.out)
	table.Header("Metric", "Value")
	table.Append("Total return", fmt.Sprintf("%.2f%%", m.TotalReturn*100))
	table.Append("Max drawdown", fmt.Sprintf("%.2f%%", m.MaxDrawdown*100))
	table.Append("Win rate", fmt.Sprintf("%.1f%%", m.WinRate*100))
	table.Append("Sharpe ratio", fmt.Sprintf("%.2f", m.SharpeRatio))
	table.Append("Sortino ratio", fmt.Sprintf("%.2f", m.SortinoRatio))
	table.Append("Profit factor", pfLabel)
	table.Append("Trades", fmt.Sprintf("%d", m.TradeCount))
	table.Render()

	if n := len(result.TradeLog); n > 0 {
		shown := result.TradeLog
		if n > 15 {
			shown = shown[n-15:]
			fmt.Fprintf(c.out, "\n  Last %d of %d fills:\n", len(shown), n)
		}
		table := tablewriter.NewWriter(c.out)
		table.Header("Time", "Symbol", "Side", "Qty", "Price", "Fee", "Status")
		for _, f := range shown {
			table.Append(
				f.Timestamp.Format("01-02 15:04"),
				f.Symbol,
				string(f.Side),
				fmt.Sprintf("%.4f", f.FilledQt),
				fmt.Sprintf("$%.2f", f.Price),
				fmt.Sprintf("$%.4f", f.Fee),
				string(f.Status),
			)
		}
		table.Render()
	}
	fmt.Fprintln(c.out)
	return nil
}

func executedFills(fills []domain.Fill) int {
	n := 0
	for _, f := range fills {
		if f.Executed() {
			n++
		}
	}
	return n
}

var _ ports.Notifier = (*Console)(nil)
