package reconcile

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// InvoiceSource tells where an invoice amount came from.
type InvoiceSource string

const (
	SourceTransactions InvoiceSource = "transactions"
	SourceRunningTotal InvoiceSource = "running_total"
)

// invoicedMethods are the payment methods that land on a card invoice. Debit
// purchases leave the account immediately.
var invoicedMethods = []PaymentMethod{MethodCredit, MethodUnspecified}

// Invoice is the amount due on a card for one billing month.
type Invoice struct {
	CardID           string          `json:"card_id"`
	Month            MonthKey        `json:"-"`
	Period           *Interval       `json:"period,omitempty"`
	DueDate          *time.Time      `json:"due_date,omitempty"`
	Amount           decimal.Decimal `json:"invoice_amount"`
	TransactionCount int             `json:"transaction_count"`
	Source           InvoiceSource   `json:"source"`
}

// ResolveInvoice computes what is due on card for the invoice that bills in
// (year, month). Every expense charged to the card on credit within the
// billing interval counts, installment slices included.
func ResolveInvoice(card Card, year int, month time.Month, txns []Transaction) (Invoice, error) {
	if err := (MonthKey{Year: year, Month: month}).Validate(); err != nil {
		return Invoice{}, err
	}
	if card.DueDay == 0 {
		return Invoice{}, &MissingBillingConfigError{CardID: card.ID}
	}
	period, err := BillingInterval(year, month, card.DueDay)
	if err != nil {
		return Invoice{}, err
	}

	spend := Aggregate(Filter(txns, Query{
		Interval:  period,
		Type:      TypeExpense,
		AccountID: card.ID,
		Methods:   invoicedMethods,
	}))

	due := period.End
	return Invoice{
		CardID:           card.ID,
		Month:            MonthKey{Year: year, Month: month},
		Period:           &period,
		DueDate:          &due,
		Amount:           spend.Spent,
		TransactionCount: spend.Count,
		Source:           SourceTransactions,
	}, nil
}

// InvoiceAmount is ResolveInvoice reduced to the amount.
func InvoiceAmount(card Card, year int, month time.Month, txns []Transaction) (decimal.Decimal, error) {
	inv, err := ResolveInvoice(card, year, month, txns)
	if err != nil {
		return decimal.Zero, err
	}
	return inv.Amount, nil
}

// InvoiceOrUsed resolves the invoice and, for cards without a billing anchor,
// falls back to the card's running used total.
func InvoiceOrUsed(card Card, year int, month time.Month, txns []Transaction) (Invoice, error) {
	inv, err := ResolveInvoice(card, year, month, txns)
	var missing *MissingBillingConfigError
	if errors.As(err, &missing) {
		return Invoice{
			CardID: card.ID,
			Month:  MonthKey{Year: year, Month: month},
			Amount: card.Used,
			Source: SourceRunningTotal,
		}, nil
	}
	return inv, err
}
