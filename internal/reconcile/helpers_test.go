package reconcile

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("bad decimal %q: %v", s, err)
	}
	return d
}

func expense(id, category string, amount int64, on time.Time) Transaction {
	return Transaction{
		ID:       id,
		Amount:   decimal.NewFromInt(amount),
		Type:     TypeExpense,
		Date:     on,
		Category: category,
		UserID:   "user-1",
	}
}

func income(id, category string, amount int64, on time.Time) Transaction {
	t := expense(id, category, amount, on)
	t.Type = TypeIncome
	return t
}

func cardCharge(id, cardID string, amount int64, on time.Time, method PaymentMethod) Transaction {
	t := expense(id, "Shopping", amount, on)
	t.AccountID = cardID
	t.Method = method
	return t
}

func assertDecimal(t *testing.T, what string, got, want decimal.Decimal) {
	t.Helper()
	if !got.Equal(want) {
		t.Errorf("%s = %s, want %s", what, got, want)
	}
}
