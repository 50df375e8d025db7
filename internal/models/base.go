package models

import (
	"fmt"
	"time"

	"mana/internal/uuid"

	"gorm.io/gorm"
)

// Base carries the UUID primary key, timestamps and soft-delete column shared
// by every user-owned record.
type Base struct {
	ID        string         `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

// BeforeCreate assigns a UUIDv7 to new records. Caller-supplied ids must
// already be UUIDs.
func (b *Base) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.New()
		return nil
	}
	if !uuid.IsValid(b.ID) {
		return fmt.Errorf("invalid record id %q", b.ID)
	}
	return nil
}
