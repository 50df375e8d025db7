package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"mana/internal/models"
	"mana/internal/pagination"
	"mana/internal/reconcile"
)

// ProfileUpdate holds the optional profile fields a user may change.
type ProfileUpdate struct {
	Name          *string
	Currency      *string
	AlertsEnabled *bool
}

// UserServicer defines the contract for user-related business logic.
type UserServicer interface {
	EnsureUser(id, email string) (*models.User, error)
	GetUserByID(id string) (*models.User, error)
	UpdateProfile(id string, fields ProfileUpdate) (*models.User, error)
	ListUserIDs() ([]string, error)
}

// CategoryUpdate holds the optional category fields to change.
type CategoryUpdate struct {
	Name  *string
	Icon  *string
	Color *string
}

// CategoryServicer defines the contract for category-related business logic.
type CategoryServicer interface {
	CreateCategory(userID, name string, categoryType models.CategoryType, icon, color string) (*models.Category, error)
	GetUserCategories(userID string, categoryType *models.CategoryType, page pagination.PageRequest) (*pagination.PageResponse[models.Category], error)
	GetCategoryByID(userID, categoryID string) (*models.Category, error)
	FindCategoryByName(userID, name string) (*models.Category, error)
	UpdateCategory(userID, categoryID string, fields CategoryUpdate) (*models.Category, error)
	DeleteCategory(userID, categoryID string) error
}

// WalletUpdate holds the optional wallet fields to change. Balance only
// moves through transactions and transfers.
type WalletUpdate struct {
	Name     *string
	Icon     *string
	Color    *string
	Currency *string
}

// WalletServicer defines the contract for wallet-related business logic.
type WalletServicer interface {
	CreateWallet(userID, name string, initialBalance decimal.Decimal, icon, color, currency string) (*models.Wallet, error)
	GetUserWallets(userID string, page pagination.PageRequest) (*pagination.PageResponse[models.Wallet], error)
	GetWalletByID(userID, walletID string) (*models.Wallet, error)
	UpdateWallet(userID, walletID string, fields WalletUpdate) (*models.Wallet, error)
	DeleteWallet(userID, walletID string) error
	ApplyTransaction(tx *gorm.DB, wallet *models.Wallet, transactionType models.TransactionType, amount decimal.Decimal) error
}

// CardInput holds the fields of a new card.
type CardInput struct {
	Name       string
	LastDigits string
	HasCredit  bool
	HasDebit   bool
	Limit      decimal.Decimal
	Balance    decimal.Decimal
	DueDay     int
	Color      string
}

// CardUpdate holds the optional card fields to change.
type CardUpdate struct {
	Name       *string
	LastDigits *string
	HasCredit  *bool
	HasDebit   *bool
	Limit      *decimal.Decimal
	DueDay     *int
	Color      *string
}

// CardServicer defines the contract for card-related business logic.
type CardServicer interface {
	CreateCard(userID string, in CardInput) (*models.Card, error)
	GetUserCards(userID string, page pagination.PageRequest) (*pagination.PageResponse[models.Card], error)
	GetCardByID(userID, cardID string) (*models.Card, error)
	UpdateCard(userID, cardID string, fields CardUpdate) (*models.Card, error)
	DeleteCard(userID, cardID string) error
	ApplyCharge(tx *gorm.DB, card *models.Card, transactionType models.TransactionType, method models.PaymentMethod, amount decimal.Decimal) error
}

// TransactionInput is a transaction as submitted by a client. Amount may be
// signed when Type is empty. AccountRef is a card id, a wallet id or a
// legacy "<card id>-credit" / "<card id>-debit" reference.
type TransactionInput struct {
	Description   string
	Amount        decimal.Decimal
	Type          models.TransactionType
	Date          time.Time
	Category      string
	AccountRef    string
	PaymentMethod models.PaymentMethod
	Status        models.TransactionStatus
}

// TransferInput moves money between two wallets of the same user.
type TransferInput struct {
	FromWalletID string
	ToWalletID   string
	Amount       decimal.Decimal
	Description  string
	Date         time.Time
}

// TransactionFilter holds optional filter parameters for listing transactions.
type TransactionFilter struct {
	FromDate  *time.Time
	ToDate    *time.Time
	Type      *models.TransactionType
	Category  *string
	AccountID *string
	Status    *models.TransactionStatus
	MinAmount *decimal.Decimal
	MaxAmount *decimal.Decimal
}

// ImportRecord is one raw row of a bulk import. Fields are kept as text so
// that malformed rows can be reported individually.
type ImportRecord struct {
	Description   string `json:"description"`
	Amount        string `json:"amount"`
	Type          string `json:"type"`
	Date          string `json:"date"`
	Category      string `json:"category"`
	Account       string `json:"account"`
	PaymentMethod string `json:"payment_method"`
}

// ImportRejection explains why one import row was not stored.
type ImportRejection struct {
	Index  int    `json:"index"`
	Reason string `json:"reason"`
}

// ImportResult reports the outcome of a bulk import.
type ImportResult struct {
	Imported []models.Transaction `json:"imported"`
	Rejected []ImportRejection    `json:"rejected"`
}

// TransactionServicer defines the contract for transaction-related business logic.
type TransactionServicer interface {
	CreateTransaction(ctx context.Context, userID string, in TransactionInput) (*models.Transaction, error)
	CreateInstallmentPurchase(ctx context.Context, userID string, in TransactionInput, installments int) ([]models.Transaction, error)
	CreateTransfer(ctx context.Context, userID string, in TransferInput) ([]models.Transaction, error)
	GetUserTransactions(userID string, page pagination.PageRequest, filter TransactionFilter) (*pagination.PageResponse[models.Transaction], error)
	GetTransactionByID(userID, transactionID string) (*models.Transaction, error)
	UpdateTransaction(ctx context.Context, userID, transactionID string, in TransactionInput) (*models.Transaction, error)
	DeleteTransaction(ctx context.Context, userID, transactionID string) error
	ImportTransactions(ctx context.Context, userID string, records []ImportRecord) (*ImportResult, error)
}

// BudgetInput holds the fields of a new budget. Category is the category
// name; AlertThreshold defaults to 80 when nil.
type BudgetInput struct {
	Category       string
	Limit          decimal.Decimal
	Period         models.BudgetPeriod
	AlertThreshold *int
}

// BudgetUpdate holds the optional budget fields to change.
type BudgetUpdate struct {
	Category       *string
	Limit          *decimal.Decimal
	Period         *models.BudgetPeriod
	AlertThreshold *int
}

// BudgetServicer defines the contract for budget-related business logic.
type BudgetServicer interface {
	CreateBudget(userID string, in BudgetInput) (*models.Budget, error)
	GetUserBudgets(userID string, period *models.BudgetPeriod, page pagination.PageRequest) (*pagination.PageResponse[models.Budget], error)
	GetBudgetByID(userID, budgetID string) (*models.Budget, error)
	UpdateBudget(userID, budgetID string, fields BudgetUpdate) (*models.Budget, error)
	DeleteBudget(userID, budgetID string) error
	SetLimitOverride(userID, budgetID string, year int, month time.Month, limit decimal.Decimal) (*models.BudgetLimitOverride, error)
	DeleteLimitOverride(userID, budgetID string, year int, month time.Month) error
	GetLimitOverrides(userID, budgetID string) ([]models.BudgetLimitOverride, error)
	FreezeLimits(year int, month time.Month) (int, error)
}

// CategorySpend is the expense total of one category in a dashboard.
type CategorySpend struct {
	Category string          `json:"category"`
	Spent    decimal.Decimal `json:"spent"`
	Count    int             `json:"count"`
}

// Dashboard is the monthly overview of a user's finances.
type Dashboard struct {
	Year          int                      `json:"year"`
	Month         int                      `json:"month"`
	Totals        reconcile.Totals         `json:"totals"`
	ByCategory    []CategorySpend          `json:"by_category"`
	Budgets       []reconcile.BudgetStatus `json:"budgets"`
	Invoices      []reconcile.Invoice      `json:"invoices"`
	WalletBalance decimal.Decimal          `json:"wallet_balance"`
	CardDebt      decimal.Decimal          `json:"card_debt"`
	NetWorth      decimal.Decimal          `json:"net_worth"`
	Skipped       int                      `json:"skipped_transactions"`
}

// ReportServicer computes period reports through the reconciliation engine.
type ReportServicer interface {
	BudgetStatus(ctx context.Context, userID, budgetID string, year int, month time.Month, day int) (*reconcile.BudgetStatus, error)
	BudgetStatuses(ctx context.Context, userID string, year int, month time.Month) ([]reconcile.BudgetStatus, error)
	CardInvoice(ctx context.Context, userID, cardID string, year int, month time.Month) (*reconcile.Invoice, error)
	CardInvoices(ctx context.Context, userID string, year int, month time.Month) ([]reconcile.Invoice, error)
	Dashboard(ctx context.Context, userID string, year int, month time.Month) (*Dashboard, error)
}

// SnapshotServicer records and lists net-worth snapshots.
type SnapshotServicer interface {
	ComputeAndRecordSnapshots(recordedAt time.Time) (int, error)
	RecordUserSnapshot(userID string, recordedAt time.Time) (*models.NetWorthSnapshot, error)
	GetSnapshots(userID string, from, to time.Time, page pagination.PageRequest) (*pagination.PageResponse[models.NetWorthSnapshot], error)
}

// AlertServicer emails users whose budgets crossed their alert threshold.
type AlertServicer interface {
	CheckBudgets(ctx context.Context, userID string, year int, month time.Month) (int, error)
}

// GoalUpdate holds the optional goal fields to change.
type GoalUpdate struct {
	Name         *string
	TargetAmount *decimal.Decimal
	Deadline     *time.Time
}

// GoalServicer defines the contract for goal-related business logic.
type GoalServicer interface {
	CreateGoal(userID, name string, target decimal.Decimal, deadline *time.Time) (*models.Goal, error)
	GetUserGoals(userID string, page pagination.PageRequest) (*pagination.PageResponse[models.Goal], error)
	GetGoalByID(userID, goalID string) (*models.Goal, error)
	UpdateGoal(userID, goalID string, fields GoalUpdate) (*models.Goal, error)
	DeleteGoal(userID, goalID string) error
	Contribute(userID, goalID string, amount decimal.Decimal) (*models.Goal, error)
}

// AuditServicer defines the contract for audit logging.
type AuditServicer interface {
	Log(userID, action, resourceType, resourceID, ipAddress string, changes map[string]interface{})
	HasEntry(userID, action, resourceID string) (bool, error)
}
