package reconcile

import (
	"time"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// ResolveLimit returns the limit that applies to b in (year, month): the
// override recorded for exactly that month, or b.Limit when there is none.
func ResolveLimit(b Budget, year int, month time.Month) (decimal.Decimal, error) {
	key := MonthKey{Year: year, Month: month}
	if err := key.Validate(); err != nil {
		return decimal.Zero, err
	}
	if v, ok := b.Overrides[key]; ok {
		return v, nil
	}
	return b.Limit, nil
}

// BudgetStatus is the spend-versus-limit picture of one budget.
type BudgetStatus struct {
	BudgetID         string          `json:"budget_id"`
	Category         string          `json:"category"`
	Period           Interval        `json:"period"`
	Spent            decimal.Decimal `json:"spent"`
	Limit            decimal.Decimal `json:"limit"`
	Remaining        decimal.Decimal `json:"remaining"`
	Percentage       decimal.Decimal `json:"percentage"`
	TransactionCount int             `json:"transaction_count"`
	IsOverBudget     bool            `json:"is_over_budget"`
	AlertTriggered   bool            `json:"alert_triggered"`
}

// EvaluateBudget computes the status of b for the budget window containing
// (year, month, day). See BudgetInterval for how day is interpreted. When
// userID is non-empty only that user's transactions count.
func EvaluateBudget(b Budget, year int, month time.Month, day int, txns []Transaction, userID string) (BudgetStatus, error) {
	limit, err := ResolveLimit(b, year, month)
	if err != nil {
		return BudgetStatus{}, err
	}
	window, err := BudgetInterval(b.Period, year, month, day)
	if err != nil {
		return BudgetStatus{}, err
	}

	spend := Aggregate(Filter(txns, Query{
		Interval: window,
		Category: b.CategoryName,
		UserID:   userID,
		Type:     TypeExpense,
	}))

	status := BudgetStatus{
		BudgetID:         b.ID,
		Category:         b.CategoryName,
		Period:           window,
		Spent:            spend.Spent,
		Limit:            limit,
		Remaining:        limit.Sub(spend.Spent),
		Percentage:       decimal.Zero,
		TransactionCount: spend.Count,
		IsOverBudget:     spend.Spent.GreaterThan(limit),
	}
	if limit.IsPositive() {
		status.Percentage = spend.Spent.Mul(hundred).Div(limit).Round(2)
	}
	if b.AlertThreshold > 0 && spend.Spent.IsPositive() {
		threshold := limit.Mul(decimal.NewFromInt(int64(b.AlertThreshold)))
		status.AlertTriggered = spend.Spent.Mul(hundred).GreaterThanOrEqual(threshold)
	}
	return status, nil
}
