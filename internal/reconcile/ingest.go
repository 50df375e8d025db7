package reconcile

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrZeroAmount  = errors.New("amount must be non-zero")
	ErrUnknownType = errors.New("transaction type must be income or expense")
)

// dateLayouts are tried in order by ParseDate.
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"02/01/2006",
}

// ParseDate parses a transaction date and returns its calendar date at UTC
// midnight. Timestamps keep the calendar date of their own offset.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return CalendarDate(t), true
		}
	}
	return time.Time{}, false
}

// CalendarDate drops the clock part of t, keeping the date as seen in t's
// location, and returns it at UTC midnight.
func CalendarDate(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// NormalizeAmount converts a possibly signed amount into the canonical
// unsigned magnitude plus type. An empty type is inferred from the sign.
func NormalizeAmount(amount decimal.Decimal, typ TransactionType) (decimal.Decimal, TransactionType, error) {
	if amount.IsZero() {
		return decimal.Zero, typ, ErrZeroAmount
	}
	switch typ {
	case TypeIncome, TypeExpense:
	case "":
		if amount.IsNegative() {
			typ = TypeExpense
		} else {
			typ = TypeIncome
		}
	default:
		return decimal.Zero, typ, ErrUnknownType
	}
	return amount.Abs(), typ, nil
}

// ParseAccountRef splits a legacy account reference of the form
// "<id>-credit" or "<id>-debit" into the card id and payment method. Other
// references are returned unchanged with MethodUnspecified.
func ParseAccountRef(ref string) (string, PaymentMethod) {
	ref = strings.TrimSpace(ref)
	for _, m := range []PaymentMethod{MethodCredit, MethodDebit} {
		suffix := "-" + string(m)
		if id, ok := strings.CutSuffix(ref, suffix); ok && id != "" {
			return id, m
		}
	}
	return ref, MethodUnspecified
}
