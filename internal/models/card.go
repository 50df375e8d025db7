package models

import (
	"mana/internal/reconcile"

	"github.com/shopspring/decimal"
)

// Card is a payment card. DueDay anchors the billing cycle; 0 means the
// invoice falls back to the running Used total.
type Card struct {
	Base
	UserID     string          `gorm:"type:uuid;not null;index" json:"user_id"`
	Name       string          `gorm:"not null" json:"name"`
	LastDigits string          `gorm:"size:4" json:"last_digits"`
	HasCredit  bool            `gorm:"not null" json:"has_credit"`
	HasDebit   bool            `gorm:"not null" json:"has_debit"`
	Limit      decimal.Decimal `gorm:"column:limit_amount;type:numeric(20,2);not null;default:0" json:"limit"`
	Used       decimal.Decimal `gorm:"type:numeric(20,2);not null;default:0" json:"used"`
	Balance    decimal.Decimal `gorm:"type:numeric(20,2);not null;default:0" json:"balance"`
	DueDay     int             `gorm:"column:due_date;not null;default:0" json:"due_date"`
	Color      string          `json:"color"`
}

// Available is the unused part of the credit limit.
func (c *Card) Available() decimal.Decimal {
	return c.Limit.Sub(c.Used)
}

// ToEngine converts the card into the reconciliation view.
func (c *Card) ToEngine() reconcile.Card {
	return reconcile.Card{ID: c.ID, Name: c.Name, DueDay: c.DueDay, Used: c.Used}
}
