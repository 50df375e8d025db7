package models

import (
	"time"

	"mana/internal/reconcile"

	"github.com/shopspring/decimal"
)

// TransactionType represents the type of transaction
type TransactionType string

const (
	TransactionTypeIncome  TransactionType = "income"
	TransactionTypeExpense TransactionType = "expense"
)

// PaymentMethod records how a card purchase was charged.
type PaymentMethod string

const (
	PaymentMethodNone   PaymentMethod = ""
	PaymentMethodCredit PaymentMethod = "credit"
	PaymentMethodDebit  PaymentMethod = "debit"
)

// TransactionStatus tells whether money already moved.
type TransactionStatus string

const (
	TransactionStatusPaid    TransactionStatus = "paid"
	TransactionStatusPending TransactionStatus = "pending"
)

// Transaction is a dated ledger entry. Amount is the unsigned magnitude and
// Type carries the sign. AccountID points at a card or a wallet.
type Transaction struct {
	Base
	UserID        string            `gorm:"type:uuid;not null;index:idx_transactions_user_date" json:"user_id"`
	Description   string            `json:"description"`
	Amount        decimal.Decimal   `gorm:"type:numeric(20,2);not null" json:"amount"`
	Type          TransactionType   `gorm:"not null" json:"type"`
	Date          time.Time         `gorm:"not null;index:idx_transactions_user_date" json:"date"`
	Category      string            `gorm:"index" json:"category"`
	AccountID     string            `gorm:"index" json:"account_id"`
	PaymentMethod PaymentMethod     `json:"payment_method"`
	Status        TransactionStatus `gorm:"not null;default:'paid'" json:"status"`

	// Installment purchases are stored as one row per slice.
	InstallmentNumber int     `gorm:"not null;default:0" json:"installment_number,omitempty"`
	InstallmentTotal  int     `gorm:"not null;default:0" json:"installment_total,omitempty"`
	InstallmentGroup  *string `gorm:"type:uuid;index" json:"installment_group,omitempty"`

	// TransferGroup links the two legs of a wallet transfer.
	TransferGroup *string `gorm:"type:uuid;index" json:"transfer_group,omitempty"`
}

// IsTransfer reports whether t is one leg of a wallet transfer.
func (t *Transaction) IsTransfer() bool {
	return t.TransferGroup != nil
}

// ToEngine converts the row into the reconciliation view.
func (t *Transaction) ToEngine() reconcile.Transaction {
	return reconcile.Transaction{
		ID:          t.ID,
		Description: t.Description,
		Amount:      t.Amount,
		Type:        reconcile.TransactionType(t.Type),
		Date:        reconcile.CalendarDate(t.Date),
		Category:    t.Category,
		AccountID:   t.AccountID,
		Method:      reconcile.PaymentMethod(t.PaymentMethod),
		UserID:      t.UserID,
		Status:      string(t.Status),
	}
}

// EngineTransactions converts a slice of rows.
func EngineTransactions(rows []Transaction) []reconcile.Transaction {
	out := make([]reconcile.Transaction, len(rows))
	for i := range rows {
		out[i] = rows[i].ToEngine()
	}
	return out
}
