// Package notify emails budget alerts to users.
package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/jordan-wright/email"
	"github.com/shopspring/decimal"

	"mana/internal/config"
	"mana/internal/logger"
)

// BudgetAlert describes one budget that crossed its alert threshold.
type BudgetAlert struct {
	UserName   string
	Category   string
	Year       int
	Month      int
	Spent      decimal.Decimal
	Limit      decimal.Decimal
	Percentage decimal.Decimal
	Threshold  int
	OverBudget bool
	Currency   string
}

// Notifier delivers budget alerts.
type Notifier interface {
	SendBudgetAlert(ctx context.Context, to string, alert BudgetAlert) error
}

// Sender sends alerts through an SMTP relay.
type Sender struct {
	addr string
	from string
	auth smtp.Auth
}

// New returns an SMTP Sender when cfg names a relay and a Nop notifier
// otherwise.
func New(cfg *config.Config) Notifier {
	if cfg.SMTPHost == "" {
		logger.Named("notify").Warn("SMTP_HOST not set, budget alert emails are disabled")
		return Nop{}
	}
	var auth smtp.Auth
	if cfg.SMTPUser != "" {
		auth = smtp.PlainAuth("", cfg.SMTPUser, cfg.SMTPPassword, cfg.SMTPHost)
	}
	return &Sender{addr: cfg.SMTPAddr(), from: cfg.SMTPFrom, auth: auth}
}

// SendBudgetAlert emails alert to the given address.
func (s *Sender) SendBudgetAlert(ctx context.Context, to string, alert BudgetAlert) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	e := email.NewEmail()
	e.From = s.from
	e.To = []string{to}
	e.Subject = Subject(alert)
	e.Text = []byte(Body(alert))

	if err := e.Send(s.addr, s.auth); err != nil {
		logger.Named("notify").Errorw("failed to send budget alert", "to", to, "category", alert.Category, "error", err)
		return fmt.Errorf("send budget alert: %w", err)
	}

	logger.Named("notify").Infow("budget alert sent", "to", to, "subject", e.Subject)
	return nil
}

// Subject returns the email subject line for alert.
func Subject(alert BudgetAlert) string {
	if alert.OverBudget {
		return fmt.Sprintf("Budget exceeded: %s", alert.Category)
	}
	return fmt.Sprintf("Budget alert: %s at %s%%", alert.Category, alert.Percentage.StringFixed(0))
}

// Body returns the plain text email body for alert.
func Body(alert BudgetAlert) string {
	currency := alert.Currency
	if currency == "" {
		currency = "BRL"
	}
	name := alert.UserName
	if name == "" {
		name = "there"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\n", name)
	fmt.Fprintf(&b, "Your %s budget for %04d-%02d has reached %s%% of its limit.\n",
		alert.Category, alert.Year, alert.Month, alert.Percentage.StringFixed(2))
	fmt.Fprintf(&b, "Spent: %s %s\n", alert.Spent.StringFixed(2), currency)
	fmt.Fprintf(&b, "Limit: %s %s\n", alert.Limit.StringFixed(2), currency)
	if alert.OverBudget {
		fmt.Fprintf(&b, "You are %s %s over budget.\n", alert.Spent.Sub(alert.Limit).StringFixed(2), currency)
	} else {
		fmt.Fprintf(&b, "Alert threshold: %d%%\n", alert.Threshold)
	}
	b.WriteString("\nManá Finance")
	return b.String()
}

// Nop discards alerts.
type Nop struct{}

// SendBudgetAlert implements Notifier.
func (Nop) SendBudgetAlert(context.Context, string, BudgetAlert) error { return nil }
