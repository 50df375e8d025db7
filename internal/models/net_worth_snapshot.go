package models

import (
	"time"

	"mana/internal/uuid"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// NetWorthSnapshot is a point-in-time record of a user's wallets and card
// debt. Rows are immutable time-series data, so there is no Base embed and no
// soft delete.
type NetWorthSnapshot struct {
	ID            string          `gorm:"type:uuid;primaryKey" json:"id"`
	UserID        string          `gorm:"type:uuid;not null;index" json:"user_id"`
	RecordedAt    time.Time       `gorm:"not null;index" json:"recorded_at"`
	WalletBalance decimal.Decimal `gorm:"type:numeric(20,2);not null" json:"wallet_balance"`
	CardDebt      decimal.Decimal `gorm:"type:numeric(20,2);not null" json:"card_debt"`
	NetWorth      decimal.Decimal `gorm:"type:numeric(20,2);not null" json:"net_worth"`
}

// BeforeCreate hook generates a UUIDv7 for new records
func (s *NetWorthSnapshot) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.New()
	}
	return nil
}
