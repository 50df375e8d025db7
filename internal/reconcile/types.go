// Package reconcile turns materialized transactions, budgets and card billing
// parameters into period-scoped spend, limit and invoice figures.
//
// Every function in this package is pure: inputs are passed explicitly, nothing
// is retained between calls, and results are deterministic. Callers load the
// records (from storage or anywhere else) and own any memoization.
//
// Months are 1-based time.Month values throughout (January == 1).
package reconcile

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType discriminates the sign of a transaction.
type TransactionType string

const (
	TypeIncome  TransactionType = "income"
	TypeExpense TransactionType = "expense"
)

// PaymentMethod records how a card transaction was charged. Wallet
// transactions leave it empty.
type PaymentMethod string

const (
	MethodUnspecified PaymentMethod = ""
	MethodCredit      PaymentMethod = "credit"
	MethodDebit       PaymentMethod = "debit"
)

// Period is the recurrence window of a budget.
type Period string

const (
	PeriodWeekly    Period = "weekly"
	PeriodMonthly   Period = "monthly"
	PeriodQuarterly Period = "quarterly"
	PeriodYearly    Period = "yearly"
)

// Transaction is the engine's view of a ledger entry. A zero Date marks a
// record whose date could not be parsed; such records never match a filter.
type Transaction struct {
	ID          string
	Description string
	Amount      decimal.Decimal
	Type        TransactionType
	Date        time.Time
	Category    string
	AccountID   string
	Method      PaymentMethod
	UserID      string
	Status      string
}

// MonthKey identifies a calendar month.
type MonthKey struct {
	Year  int
	Month time.Month
}

// Budget is the engine's view of a spending limit on a category.
type Budget struct {
	ID             string
	CategoryName   string
	Limit          decimal.Decimal
	Period         Period
	AlertThreshold int
	Overrides      map[MonthKey]decimal.Decimal
}

// Card is the engine's view of a payment card. DueDay is the billing-cycle
// anchor; 0 means no anchor is configured.
type Card struct {
	ID     string
	Name   string
	DueDay int
	Used   decimal.Decimal
}
