package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Goal tracks saving towards a target amount.
type Goal struct {
	Base
	UserID        string          `gorm:"type:uuid;not null;index" json:"user_id"`
	Name          string          `gorm:"not null" json:"name"`
	TargetAmount  decimal.Decimal `gorm:"type:numeric(20,2);not null" json:"target_amount"`
	CurrentAmount decimal.Decimal `gorm:"type:numeric(20,2);not null;default:0" json:"current_amount"`
	Deadline      *time.Time      `json:"deadline,omitempty"`
}

// Progress returns current/target as a ratio rounded to four places. It is
// zero when the target is not positive and is not capped at one.
func (g *Goal) Progress() decimal.Decimal {
	if !g.TargetAmount.IsPositive() {
		return decimal.Zero
	}
	return g.CurrentAmount.Div(g.TargetAmount).Round(4)
}
