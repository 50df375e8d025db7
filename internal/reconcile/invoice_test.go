package reconcile

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestResolveInvoice(t *testing.T) {
	card := Card{ID: "card-1", Name: "Nubank", DueDay: 10}

	t.Run("purchase_before_anchor_bills_next_month", func(t *testing.T) {
		charge := cardCharge("t1", "card-1", 0, date(2025, time.January, 14), MethodCredit)
		charge.Amount = decimal.NewFromInt(-350)
		txns := []Transaction{charge}

		feb, err := InvoiceAmount(card, 2025, time.February, txns)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		assertDecimal(t, "february", feb, decimal.NewFromInt(350))

		jan, _ := InvoiceAmount(card, 2025, time.January, txns)
		assertDecimal(t, "january", jan, decimal.Zero)
	})

	t.Run("anchor_day_belongs_to_next_invoice", func(t *testing.T) {
		txns := []Transaction{cardCharge("t1", "card-1", 80, date(2025, time.February, 10), MethodCredit)}
		feb, _ := InvoiceAmount(card, 2025, time.February, txns)
		mar, _ := InvoiceAmount(card, 2025, time.March, txns)
		assertDecimal(t, "february", feb, decimal.Zero)
		assertDecimal(t, "march", mar, decimal.NewFromInt(80))
	})

	t.Run("debit_and_other_cards_excluded", func(t *testing.T) {
		on := date(2025, time.January, 20)
		txns := []Transaction{
			cardCharge("t1", "card-1", 100, on, MethodCredit),
			cardCharge("t2", "card-1", 40, on, MethodUnspecified),
			cardCharge("t3", "card-1", 500, on, MethodDebit),
			cardCharge("t4", "card-2", 700, on, MethodCredit),
		}
		inv, err := ResolveInvoice(card, 2025, time.February, txns)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		assertDecimal(t, "amount", inv.Amount, decimal.NewFromInt(140))
		if inv.TransactionCount != 2 {
			t.Errorf("expected 2 transactions, got %d", inv.TransactionCount)
		}
		if inv.Source != SourceTransactions {
			t.Errorf("expected source %q, got %q", SourceTransactions, inv.Source)
		}
		if inv.DueDate == nil || !inv.DueDate.Equal(date(2025, time.February, 10)) {
			t.Errorf("expected due date 2025-02-10, got %v", inv.DueDate)
		}
	})

	t.Run("anchor_31_clamps_in_short_month", func(t *testing.T) {
		c := Card{ID: "card-1", DueDay: 31}
		inv, err := ResolveInvoice(c, 2025, time.April, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if inv.Period.End.Day() != 30 {
			t.Errorf("expected period end on day 30, got %s", inv.Period.End)
		}
	})

	t.Run("installment_slices_land_in_their_own_invoices", func(t *testing.T) {
		var txns []Transaction
		for i := range 3 {
			txns = append(txns, cardCharge("slice", "card-1", 100, date(2025, time.January+time.Month(i), 15), MethodCredit))
		}
		for _, m := range []time.Month{time.February, time.March, time.April} {
			got, _ := InvoiceAmount(card, 2025, m, txns)
			assertDecimal(t, m.String(), got, decimal.NewFromInt(100))
		}
	})

	t.Run("missing_anchor", func(t *testing.T) {
		_, err := ResolveInvoice(Card{ID: "card-9"}, 2025, time.January, nil)
		var missing *MissingBillingConfigError
		if !errors.As(err, &missing) {
			t.Fatalf("expected MissingBillingConfigError, got %v", err)
		}
		if missing.CardID != "card-9" {
			t.Errorf("expected card-9, got %s", missing.CardID)
		}
	})

	t.Run("invalid_month_checked_first", func(t *testing.T) {
		_, err := ResolveInvoice(Card{ID: "card-9"}, 2025, 0, nil)
		var perr *InvalidPeriodError
		if !errors.As(err, &perr) {
			t.Fatalf("expected InvalidPeriodError, got %v", err)
		}
	})
}

func TestInvoiceOrUsed(t *testing.T) {
	t.Run("falls_back_to_used", func(t *testing.T) {
		c := Card{ID: "card-1", Used: decimal.NewFromInt(1234)}
		inv, err := InvoiceOrUsed(c, 2025, time.May, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		assertDecimal(t, "amount", inv.Amount, decimal.NewFromInt(1234))
		if inv.Source != SourceRunningTotal {
			t.Errorf("expected running total source, got %q", inv.Source)
		}
		if inv.Period != nil || inv.DueDate != nil {
			t.Error("running total invoice has no period")
		}
	})

	t.Run("invalid_period_still_errors", func(t *testing.T) {
		_, err := InvoiceOrUsed(Card{ID: "card-1", DueDay: 40}, 2025, time.May, nil)
		var perr *InvalidPeriodError
		if !errors.As(err, &perr) {
			t.Fatalf("expected InvalidPeriodError, got %v", err)
		}
	})
}
