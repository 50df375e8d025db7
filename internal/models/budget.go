package models

import (
	"time"

	"mana/internal/reconcile"

	"github.com/shopspring/decimal"
)

// BudgetPeriod represents the period type for a budget
type BudgetPeriod string

const (
	BudgetPeriodWeekly    BudgetPeriod = "weekly"
	BudgetPeriodMonthly   BudgetPeriod = "monthly"
	BudgetPeriodQuarterly BudgetPeriod = "quarterly"
	BudgetPeriodYearly    BudgetPeriod = "yearly"
)

// Budget caps spending on a category. CategoryName is what transactions are
// matched against; CategoryID is kept for referential checks only.
type Budget struct {
	Base
	UserID         string          `gorm:"type:uuid;not null;index" json:"user_id"`
	CategoryID     string          `gorm:"type:uuid;not null;index" json:"category_id"`
	CategoryName   string          `gorm:"not null" json:"category_name"`
	Limit          decimal.Decimal `gorm:"column:limit_amount;type:numeric(20,2);not null" json:"limit"`
	Period         BudgetPeriod    `gorm:"not null;default:'monthly'" json:"period"`
	AlertThreshold int             `gorm:"not null" json:"alert_threshold"`

	Overrides []BudgetLimitOverride `gorm:"foreignKey:BudgetID" json:"overrides,omitempty"`
}

// BudgetLimitOverride pins the limit of one budget for one calendar month.
type BudgetLimitOverride struct {
	Base
	BudgetID string          `gorm:"type:uuid;not null;uniqueIndex:idx_budget_overrides_month" json:"budget_id"`
	Year     int             `gorm:"not null;uniqueIndex:idx_budget_overrides_month" json:"year"`
	Month    int             `gorm:"not null;uniqueIndex:idx_budget_overrides_month" json:"month"`
	Limit    decimal.Decimal `gorm:"column:limit_amount;type:numeric(20,2);not null" json:"limit"`
}

// ToEngine converts the budget and any preloaded overrides.
func (b *Budget) ToEngine() reconcile.Budget {
	out := reconcile.Budget{
		ID:             b.ID,
		CategoryName:   b.CategoryName,
		Limit:          b.Limit,
		Period:         reconcile.Period(b.Period),
		AlertThreshold: b.AlertThreshold,
	}
	if len(b.Overrides) > 0 {
		out.Overrides = make(map[reconcile.MonthKey]decimal.Decimal, len(b.Overrides))
		for _, o := range b.Overrides {
			out.Overrides[reconcile.MonthKey{Year: o.Year, Month: time.Month(o.Month)}] = o.Limit
		}
	}
	return out
}
