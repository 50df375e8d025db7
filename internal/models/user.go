package models

// User is a profile row keyed by the hosted auth provider's subject id.
// Credentials never reach this service.
type User struct {
	Base
	Email         string `gorm:"uniqueIndex;not null" json:"email"`
	Name          string `json:"name"`
	Currency      string `gorm:"not null;default:'BRL'" json:"currency"`
	AlertsEnabled bool   `gorm:"not null" json:"alerts_enabled"`
}
