package models

import "github.com/shopspring/decimal"

// Wallet is a cash-like account with a running balance.
type Wallet struct {
	Base
	UserID   string          `gorm:"type:uuid;not null;index" json:"user_id"`
	Name     string          `gorm:"not null" json:"name"`
	Balance  decimal.Decimal `gorm:"type:numeric(20,2);not null;default:0" json:"balance"`
	Icon     string          `json:"icon"`
	Color    string          `json:"color"`
	Currency string          `gorm:"not null;default:'BRL'" json:"currency"`
}
