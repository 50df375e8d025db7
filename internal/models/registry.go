package models

// All lists every persisted model, in dependency order, for gorm
// auto-migration of sqlite databases.
func All() []interface{} {
	return []interface{}{
		&User{},
		&Category{},
		&Wallet{},
		&Card{},
		&Transaction{},
		&Budget{},
		&BudgetLimitOverride{},
		&Goal{},
		&NetWorthSnapshot{},
		&AuditLog{},
	}
}
