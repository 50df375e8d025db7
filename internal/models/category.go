package models

// CategoryType represents the type of category
type CategoryType string

const (
	CategoryTypeIncome  CategoryType = "income"
	CategoryTypeExpense CategoryType = "expense"
)

// Category names a group of transactions. Transactions and budgets refer to
// it by name, so names are unique per user.
type Category struct {
	Base
	UserID string       `gorm:"type:uuid;not null;uniqueIndex:idx_categories_user_name,where:deleted_at IS NULL" json:"user_id"`
	Name   string       `gorm:"not null;uniqueIndex:idx_categories_user_name,where:deleted_at IS NULL" json:"name"`
	Type   CategoryType `gorm:"not null" json:"type"`
	Icon   string       `json:"icon"`
	Color  string       `json:"color"`
}
