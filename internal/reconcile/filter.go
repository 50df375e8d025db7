package reconcile

import (
	"iter"
	"slices"
)

// Query selects transactions for an aggregation. Zero-valued fields do not
// filter.
type Query struct {
	Interval  Interval
	Category  string
	UserID    string
	Type      TransactionType
	AccountID string
	// Methods restricts matches to the listed payment methods.
	Methods []PaymentMethod
}

// Matches reports whether t satisfies every filter of q. Transactions without
// a usable date never match.
func (q Query) Matches(t Transaction) bool {
	if t.Date.IsZero() || !q.Interval.Contains(t.Date) {
		return false
	}
	if q.Category != "" && t.Category != q.Category {
		return false
	}
	if q.UserID != "" && t.UserID != q.UserID {
		return false
	}
	if q.Type != "" && t.Type != q.Type {
		return false
	}
	if q.AccountID != "" && t.AccountID != q.AccountID {
		return false
	}
	if len(q.Methods) > 0 && !slices.Contains(q.Methods, t.Method) {
		return false
	}
	return true
}

// Filter returns the transactions of txns matching q. The sequence is lazy
// and can be ranged over any number of times.
func Filter(txns []Transaction, q Query) iter.Seq[Transaction] {
	return func(yield func(Transaction) bool) {
		for _, t := range txns {
			if !q.Matches(t) {
				continue
			}
			if !yield(t) {
				return
			}
		}
	}
}

// Skipped counts transactions excluded from every filter because their date
// is missing or could not be parsed.
func Skipped(txns []Transaction) int {
	n := 0
	for _, t := range txns {
		if t.Date.IsZero() {
			n++
		}
	}
	return n
}
