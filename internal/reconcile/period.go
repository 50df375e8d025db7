package reconcile

import "time"

// Interval is a half-open time range [Start, End).
type Interval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains reports whether t falls within the interval.
func (iv Interval) Contains(t time.Time) bool {
	return !t.Before(iv.Start) && t.Before(iv.End)
}

// Validate checks that the key names a real calendar month.
func (k MonthKey) Validate() error {
	if k.Month < time.January || k.Month > time.December {
		return &InvalidPeriodError{Year: k.Year, Month: int(k.Month), Reason: "month must be between 1 and 12"}
	}
	if k.Year < 1 || k.Year > 9999 {
		return &InvalidPeriodError{Year: k.Year, Month: int(k.Month), Reason: "year must be between 1 and 9999"}
	}
	return nil
}

// Prev returns the month before k.
func (k MonthKey) Prev() MonthKey {
	if k.Month == time.January {
		return MonthKey{Year: k.Year - 1, Month: time.December}
	}
	return MonthKey{Year: k.Year, Month: k.Month - 1}
}

// String formats the key as YYYY-MM.
func (k MonthKey) String() string {
	return time.Date(k.Year, k.Month, 1, 0, 0, 0, 0, time.UTC).Format("2006-01")
}

// MonthInterval returns the calendar month [1st, 1st of next month).
func MonthInterval(year int, month time.Month) (Interval, error) {
	key := MonthKey{Year: year, Month: month}
	if err := key.Validate(); err != nil {
		return Interval{}, err
	}
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return Interval{Start: start, End: start.AddDate(0, 1, 0)}, nil
}

// BillingInterval returns the invoice period that bills in (year, month) for
// a card whose cycle is anchored on anchorDay. The period runs from the anchor
// day of the previous month up to, but excluding, the anchor day of the target
// month. Anchor days past the end of a month clamp to its last day.
func BillingInterval(year int, month time.Month, anchorDay int) (Interval, error) {
	key := MonthKey{Year: year, Month: month}
	if err := key.Validate(); err != nil {
		return Interval{}, err
	}
	if anchorDay < 1 || anchorDay > 31 {
		return Interval{}, &InvalidPeriodError{Year: year, Month: int(month), Reason: "billing anchor day must be between 1 and 31"}
	}
	prev := key.Prev()
	return Interval{
		Start: clampedDate(prev.Year, prev.Month, anchorDay),
		End:   clampedDate(year, month, anchorDay),
	}, nil
}

// BudgetInterval returns the window a budget of the given period covers for a
// reference date inside (year, month). A day <= 0 selects the last day of the
// month; days past the end of the month clamp to it.
func BudgetInterval(period Period, year int, month time.Month, day int) (Interval, error) {
	key := MonthKey{Year: year, Month: month}
	if err := key.Validate(); err != nil {
		return Interval{}, err
	}
	if day <= 0 {
		day = daysIn(year, month)
	}
	ref := clampedDate(year, month, day)

	switch period {
	case PeriodWeekly:
		// Weeks start on Monday.
		offset := (int(ref.Weekday()) + 6) % 7
		start := ref.AddDate(0, 0, -offset)
		return Interval{Start: start, End: start.AddDate(0, 0, 7)}, nil
	case PeriodMonthly, "":
		return MonthInterval(year, month)
	case PeriodQuarterly:
		first := time.Month((int(month)-1)/3*3 + 1)
		start := time.Date(year, first, 1, 0, 0, 0, 0, time.UTC)
		return Interval{Start: start, End: start.AddDate(0, 3, 0)}, nil
	case PeriodYearly:
		start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
		return Interval{Start: start, End: start.AddDate(1, 0, 0)}, nil
	default:
		return Interval{}, &InvalidPeriodError{Year: year, Month: int(month), Reason: "unknown budget period " + string(period)}
	}
}

// ClampDay caps day to the number of days in (year, month).
func ClampDay(year int, month time.Month, day int) int {
	if last := daysIn(year, month); day > last {
		return last
	}
	return day
}

func clampedDate(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, ClampDay(year, month, day), 0, 0, 0, 0, time.UTC)
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
