package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/alejandrodnm/tradebot/internal/domain"
	"github.com/alejandrodnm/tradebot/internal/ports"
)

const telegramAPI = "https://api.telegram.org"

// Telegram entrega resúmenes por el Bot API. El limiter evita superar la
// cuota de mensajes de Telegram en ciclos con mucha actividad: los mensajes
// que no caben se descartan, nunca se encolan.
type Telegram struct {
	client   *http.Client
	limiter  *rate.Limiter
	botToken string
	chatID   string
	baseURL  string
}

// NewTelegram crea el canal de Telegram. perMinute limita los envíos.
func NewTelegram(botToken, chatID string, perMinute int) *Telegram {
	if perMinute <= 0 {
		perMinute = 20
	}
	return &Telegram{
		client:   &http.Client{Timeout: 10 * time.Second},
		limiter:  rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute),
		botToken: botToken,
		chatID:   chatID,
		baseURL:  telegramAPI,
	}
}

// NotifyCycle envía el resumen del ciclo. Los ciclos sin actividad no
// generan mensaje.
func (t *Telegram) NotifyCycle(ctx context.Context, ev ports.CycleEvent) error {
	if executedFills(ev.Fills) == 0 && ev.Deferred == 0 && len(ev.Vetoes) == 0 {
		return nil
	}
	if !t.limiter.Allow() {
		return nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] cycle\n", ev.Mode)
	for _, f := range ev.Fills {
		if !f.Executed() {
			continue
		}
		fmt.Fprintf(&sb, "%s %s %.4f @ $%.2f (fee $%.4f, %s)\n",
			strings.ToUpper(string(f.Side)), f.Symbol, f.FilledQt, f.Price, f.Fee, f.Status)
	}
	for _, v := range ev.Vetoes {
		fmt.Fprintf(&sb, "veto: %s\n", v)
	}
	if ev.Deferred > 0 {
		fmt.Fprintf(&sb, "deferred by rate limit: %d\n", ev.Deferred)
	}
	fmt.Fprintf(&sb, "cash $%.2f | equity $%.2f", ev.Cash, ev.Equity)

	return t.send(ctx, sb.String())
}

// NotifyBacktest envía las métricas finales de un backtest.
func (t *Telegram) NotifyBacktest(ctx context.Context, result domain.BacktestResult) error {
	if !t.limiter.Allow() {
		return nil
	}

	m := result.Metrics
	pfLabel := fmt.Sprintf("%.2f", m.ProfitFactor)
	if math.IsInf(m.ProfitFactor, 1) {
		pfLabel = "INF"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Backtest %s → %s\n",
		result.StartDate.Format("2006-01-02"), result.EndDate.Format("2006-01-02"))
	fmt.Fprintf(&sb, "equity $%.2f → $%.2f (%.2f%%)\n",
		result.InitialCapital, result.FinalEquity, m.TotalReturn*100)
	fmt.Fprintf(&sb, "drawdown %.2f%% | win %.1f%% | sharpe %.2f | pf %s | trades %d",
		m.MaxDrawdown*100, m.WinRate*100, m.SharpeRatio, pfLabel, m.TradeCount)

	return t.send(ctx, sb.String())
}

// send hace el POST a sendMessage.
func (t *Telegram) send(ctx context.Context, text string) error {
	payload, err := json.Marshal(map[string]string{
		"chat_id": t.chatID,
		"text":    text,
	})
	if err != nil {
		return fmt.Errorf("notify.Telegram.send: marshal: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("notify.Telegram.send: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("notify.Telegram.send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("notify.Telegram.send: status %d", resp.StatusCode)
	}
	return nil
}

var _ ports.Notifier = (*Telegram)(nil)
