package reconcile

import (
	"iter"

	"github.com/shopspring/decimal"
)

// Spend is the expense total of a transaction sequence.
type Spend struct {
	Spent decimal.Decimal `json:"spent"`
	Count int             `json:"count"`
}

// Aggregate sums the absolute amounts of the expense transactions in seq.
// Income is ignored and does not count. Amounts are accumulated exactly;
// rounding is left to presentation.
func Aggregate(seq iter.Seq[Transaction]) Spend {
	s := Spend{Spent: decimal.Zero}
	for t := range seq {
		if t.Type != TypeExpense {
			continue
		}
		s.Spent = s.Spent.Add(t.Amount.Abs())
		s.Count++
	}
	return s
}

// Totals splits a sequence into income and expense sums.
type Totals struct {
	Income  decimal.Decimal `json:"income"`
	Expense decimal.Decimal `json:"expense"`
	Net     decimal.Decimal `json:"net"`
	Count   int             `json:"count"`
}

// Summarize totals income and expenses in seq. Net is income minus expenses.
func Summarize(seq iter.Seq[Transaction]) Totals {
	tot := Totals{Income: decimal.Zero, Expense: decimal.Zero}
	for t := range seq {
		switch t.Type {
		case TypeIncome:
			tot.Income = tot.Income.Add(t.Amount.Abs())
		case TypeExpense:
			tot.Expense = tot.Expense.Add(t.Amount.Abs())
		default:
			continue
		}
		tot.Count++
	}
	tot.Net = tot.Income.Sub(tot.Expense)
	return tot
}

// SpendByCategory groups the expense spend of seq by category name.
func SpendByCategory(seq iter.Seq[Transaction]) map[string]Spend {
	out := make(map[string]Spend)
	for t := range seq {
		if t.Type != TypeExpense {
			continue
		}
		s, ok := out[t.Category]
		if !ok {
			s.Spent = decimal.Zero
		}
		s.Spent = s.Spent.Add(t.Amount.Abs())
		s.Count++
		out[t.Category] = s
	}
	return out
}
