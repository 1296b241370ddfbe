package notify

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"PolySentry/internal/domain/models"
	drepo "PolySentry/internal/domain/repository"
	pkghttp "PolySentry/pkg/http"
)

// Config holds Telegram notifier configuration.
type Config struct {
	BotToken string
	ChatID   string
	Timeout  time.Duration
}

// Telegram implements Notifier via the Bot API. Delivery is best-effort:
// callers must not let a notification failure affect the pipeline.
type Telegram struct {
	cfg  Config
	http *pkghttp.Client
}

// NewTelegram creates a Telegram notifier.
func NewTelegram(cfg Config) drepo.Notifier {
	return &Telegram{
		cfg:  cfg,
		http: pkghttp.NewClient(pkghttp.WithTimeout(cfg.Timeout)),
	}
}

func (t *Telegram) NotifyDecision(ctx context.Context, d *models.Decision) error {
	// Skips are delivered without a push so the channel stays auditable
	// but quiet.
	silent := d.Outcome == models.OutcomeSkipped
	return t.send(ctx, renderDecision(d), silent)
}

func (t *Telegram) NotifyDailyReport(ctx context.Context, s *models.DailyStats) error {
	return t.send(ctx, renderDailyReport(s), false)
}

func (t *Telegram) NotifyHalt(ctx context.Context, reason string) error {
	return t.send(ctx, fmt.Sprintf("🛑 <b>TRADING HALTED</b>\n%s", html.EscapeString(reason)), false)
}

func (t *Telegram) send(ctx context.Context, text string, silent bool) error {
	url := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", t.cfg.BotToken)
	body := map[string]string{
		"chat_id":    t.cfg.ChatID,
		"text":       text,
		"parse_mode": "HTML",
	}
	if silent {
		body["disable_notification"] = "true"
	}
	return t.http.SendAndParse(ctx, &pkghttp.RequestOptions{
		Method: pkghttp.MethodPost,
		URL:    url,
		Body:   body,
	}, nil)
}

func renderDecision(d *models.Decision) string {
	var b strings.Builder

	switch d.Outcome {
	case models.OutcomeExecuted:
		b.WriteString("🟢 <b>TRADE EXECUTED</b>\n")
	case models.OutcomeApproved:
		b.WriteString("🔔 <b>SUSPICIOUS TRADE</b>\n")
	case models.OutcomeBlocked:
		b.WriteString("⛔ <b>BLOCKED BY RISK LIMITS</b>\n")
	case models.OutcomeFailed:
		b.WriteString("⚠️ <b>EXECUTION FAILED</b>\n")
	case models.OutcomeSkipped:
		b.WriteString("🔹 <b>SKIPPED</b>\n")
	default:
		b.WriteString("ℹ️ <b>DECISION</b>\n")
	}

	if d.Market != nil && d.Market.Question != "" {
		fmt.Fprintf(&b, "<b>%s</b>\n", html.EscapeString(d.Market.Question))
	}
	ev := d.Event
	fmt.Fprintf(&b, "%s %s @ %.3f — $%.0f\n", ev.Side, html.EscapeString(ev.Outcome), ev.Price, ev.AmountUSD)
	fmt.Fprintf(&b, "Wallet: <code>%s</code>\n", html.EscapeString(ev.Wallet))
	fmt.Fprintf(&b, "Score: %.2f\n", d.Score.Value)
	for _, f := range d.Score.Factors {
		fmt.Fprintf(&b, "  • %s (+%.2f)\n", html.EscapeString(f.Name), f.Weight)
	}
	if d.Opinion != nil {
		fmt.Fprintf(&b, "Analyst: %s (%.0f%%) — %s\n",
			d.Opinion.Recommendation, d.Opinion.Confidence*100, html.EscapeString(d.Opinion.Rationale))
	}
	if d.Reason != "" {
		fmt.Fprintf(&b, "Reason: %s\n", html.EscapeString(d.Reason))
	}
	if d.Execution != nil {
		fmt.Fprintf(&b, "Order: <code>%s</code> %.2f shares @ %.3f\n",
			html.EscapeString(d.Execution.OrderID), d.Execution.Shares, d.Execution.Price)
	}
	return b.String()
}

func renderDailyReport(s *models.DailyStats) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📊 <b>Daily Report — %s</b>\n", s.Day)
	fmt.Fprintf(&b, "Events: %d | Decisions: %d\n", s.Events, s.Decisions)
	fmt.Fprintf(&b, "Approved: %d | Executed: %d | Skipped: %d | Blocked: %d\n",
		s.Approved, s.Executed, s.Skipped, s.Blocked)
	fmt.Fprintf(&b, "Wins: %d | Losses: %d | Open: %d\n", s.Wins, s.Losses, s.OpenTrades)
	fmt.Fprintf(&b, "Wagered: $%.2f | P/L: $%+.2f\n", s.Wagered, s.PnL)
	return b.String()
}

// Nop discards all notifications. Used when Telegram is not configured.
type Nop struct{}

func (Nop) NotifyDecision(context.Context, *models.Decision) error      { return nil }
func (Nop) NotifyDailyReport(context.Context, *models.DailyStats) error { return nil }
func (Nop) NotifyHalt(context.Context, string) error                    { return nil }
