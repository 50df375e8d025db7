package reconcile

import "fmt"

// InvalidPeriodError reports a month, year or anchor day outside its valid
// range. It signals a caller bug rather than a data problem.
type InvalidPeriodError struct {
	Year   int
	Month  int
	Reason string
}

func (e *InvalidPeriodError) Error() string {
	return fmt.Sprintf("invalid period %04d-%02d: %s", e.Year, e.Month, e.Reason)
}

// MissingBillingConfigError reports an invoice request for a card without a
// billing anchor. Callers fall back to the card's running used total.
type MissingBillingConfigError struct {
	CardID string
}

func (e *MissingBillingConfigError) Error() string {
	return fmt.Sprintf("card %s has no billing anchor configured", e.CardID)
}
