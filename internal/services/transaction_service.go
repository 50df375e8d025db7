package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	apperrors "mana/internal/errors"
	"mana/internal/events"
	"mana/internal/logger"
	"mana/internal/models"
	"mana/internal/pagination"
	"mana/internal/reconcile"
	"mana/internal/uuid"
)

const maxInstallments = 120

// transactionService handles transaction-related business logic.
type transactionService struct {
	db            *gorm.DB
	walletService WalletServicer
	cardService   CardServicer
	publisher     events.Publisher
}

// NewTransactionService creates a new TransactionServicer. A nil publisher
// disables transaction events.
func NewTransactionService(db *gorm.DB, walletService WalletServicer, cardService CardServicer, publisher events.Publisher) TransactionServicer {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &transactionService{
		db:            db,
		walletService: walletService,
		cardService:   cardService,
		publisher:     publisher,
	}
}

// CreateTransaction stores a transaction and applies its effect on the
// referenced wallet balance or card totals.
func (s *transactionService) CreateTransaction(ctx context.Context, userID string, in TransactionInput) (*models.Transaction, error) {
	transaction, err := s.buildTransaction(userID, in)
	if err != nil {
		return nil, err
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(transaction).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return s.applyEffect(tx, transaction, false)
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, transaction)
	return transaction, nil
}

// buildTransaction validates and normalizes client input into a row. It
// resolves the account reference but does not touch the database otherwise.
func (s *transactionService) buildTransaction(userID string, in TransactionInput) (*models.Transaction, error) {
	amount, typ, err := reconcile.NormalizeAmount(in.Amount.Round(2), reconcile.TransactionType(in.Type))
	switch {
	case errors.Is(err, reconcile.ErrZeroAmount):
		return nil, apperrors.ErrInvalidAmount
	case errors.Is(err, reconcile.ErrUnknownType):
		return nil, apperrors.ErrInvalidTransactionType
	case err != nil:
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, err)
	}

	date := reconcile.CalendarDate(in.Date)
	if date.IsZero() {
		date = reconcile.CalendarDate(time.Now())
	}

	status := in.Status
	switch status {
	case "":
		status = models.TransactionStatusPaid
	case models.TransactionStatusPaid, models.TransactionStatusPending:
	default:
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "status must be paid or pending")
	}

	accountID, method, err := s.resolveAccount(userID, in.AccountRef, in.PaymentMethod)
	if err != nil {
		return nil, err
	}

	return &models.Transaction{
		UserID:        userID,
		Description:   strings.TrimSpace(in.Description),
		Amount:        amount,
		Type:          models.TransactionType(typ),
		Date:          date,
		Category:      strings.TrimSpace(in.Category),
		AccountID:     accountID,
		PaymentMethod: method,
		Status:        status,
	}, nil
}

// resolveAccount turns an account reference into a card or wallet id and the
// payment method to record. Legacy "<id>-credit" references are accepted.
func (s *transactionService) resolveAccount(userID, ref string, method models.PaymentMethod) (string, models.PaymentMethod, error) {
	switch method {
	case models.PaymentMethodNone, models.PaymentMethodCredit, models.PaymentMethodDebit:
	default:
		return "", "", apperrors.WithMessage(apperrors.ErrInvalidInput, "payment_method must be credit or debit")
	}

	id, legacy := reconcile.ParseAccountRef(ref)
	if method == models.PaymentMethodNone {
		method = models.PaymentMethod(legacy)
	}
	if id == "" {
		if method != models.PaymentMethodNone {
			return "", "", apperrors.WithMessage(apperrors.ErrInvalidInput, "payment_method requires a card")
		}
		return "", method, nil
	}
	if !uuid.IsValid(id) {
		return "", "", apperrors.ErrAccountNotFound
	}

	card, err := s.cardService.GetCardByID(userID, id)
	if err == nil {
		switch method {
		case models.PaymentMethodCredit:
			if !card.HasCredit {
				return "", "", apperrors.ErrInvalidPaymentMethod
			}
		case models.PaymentMethodDebit:
			if !card.HasDebit {
				return "", "", apperrors.ErrInvalidPaymentMethod
			}
		case models.PaymentMethodNone:
			if !card.HasCredit {
				method = models.PaymentMethodDebit
			}
		}
		return card.ID, method, nil
	}
	if !isCode(err, apperrors.ErrCardNotFound) {
		return "", "", err
	}

	wallet, err := s.walletService.GetWalletByID(userID, id)
	if err != nil {
		if isCode(err, apperrors.ErrWalletNotFound) {
			return "", "", apperrors.ErrAccountNotFound
		}
		return "", "", err
	}
	if method != models.PaymentMethodNone {
		return "", "", apperrors.WithMessage(apperrors.ErrInvalidPaymentMethod, "wallet transactions take no payment method")
	}
	return wallet.ID, method, nil
}

// applyEffect moves the balance of the transaction's card or wallet. With
// reverse set it undoes a previously applied effect; a deleted account is
// then ignored. Pending transactions have no effect.
func (s *transactionService) applyEffect(tx *gorm.DB, t *models.Transaction, reverse bool) error {
	if t.AccountID == "" || t.Status == models.TransactionStatusPending {
		return nil
	}

	typ := t.Type
	if reverse {
		typ = oppositeType(typ)
	}

	var card models.Card
	err := tx.Where("id = ? AND user_id = ?", t.AccountID, t.UserID).First(&card).Error
	if err == nil {
		return s.cardService.ApplyCharge(tx, &card, typ, t.PaymentMethod, t.Amount)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var wallet models.Wallet
	err = tx.Where("id = ? AND user_id = ?", t.AccountID, t.UserID).First(&wallet).Error
	if err == nil {
		return s.walletService.ApplyTransaction(tx, &wallet, typ, t.Amount)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if reverse {
		return nil
	}
	return apperrors.ErrAccountNotFound
}

func oppositeType(t models.TransactionType) models.TransactionType {
	if t == models.TransactionTypeIncome {
		return models.TransactionTypeExpense
	}
	return models.TransactionTypeIncome
}

// CreateInstallmentPurchase splits an expense into monthly slices, one
// transaction per installment. Slices are truncated to cents and the
// remainder goes to the first installment.
func (s *transactionService) CreateInstallmentPurchase(ctx context.Context, userID string, in TransactionInput, installments int) ([]models.Transaction, error) {
	if installments < 1 || installments > maxInstallments {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, fmt.Sprintf("installments must be between 1 and %d", maxInstallments))
	}
	if in.Type == "" {
		in.Type = models.TransactionTypeExpense
	}
	first, err := s.buildTransaction(userID, in)
	if err != nil {
		return nil, err
	}
	if first.Type != models.TransactionTypeExpense {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidTransactionType, "installment purchases must be expenses")
	}
	if first.Amount.LessThan(decimal.New(int64(installments), -2)) {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidAmount,
			fmt.Sprintf("amount %s is too small for %d installments", first.Amount.StringFixed(2), installments))
	}

	slices := SplitInstallments(first.Amount, installments)
	group := uuid.New()
	rows := make([]models.Transaction, installments)
	for i := range rows {
		row := *first
		row.Amount = slices[i]
		row.Date = AddMonthsClamped(first.Date, i)
		row.InstallmentNumber = i + 1
		row.InstallmentTotal = installments
		row.InstallmentGroup = &group
		if row.Description != "" {
			row.Description = fmt.Sprintf("%s (%d/%d)", first.Description, i+1, installments)
		}
		rows[i] = row
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		for i := range rows {
			if err := tx.Create(&rows[i]).Error; err != nil {
				return apperrors.Wrap(apperrors.ErrInternalServer, err)
			}
			if err := s.applyEffect(tx, &rows[i], false); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for i := range rows {
		s.publish(ctx, &rows[i])
	}
	return rows, nil
}

// SplitInstallments divides total into n slices truncated to cents. The
// remainder is added to the first slice so the slices sum to total. Callers
// ensure total is at least n cents, otherwise trailing slices are zero.
func SplitInstallments(total decimal.Decimal, n int) []decimal.Decimal {
	slice := total.Div(decimal.NewFromInt(int64(n))).Truncate(2)
	out := make([]decimal.Decimal, n)
	for i := range out {
		out[i] = slice
	}
	out[0] = total.Sub(slice.Mul(decimal.NewFromInt(int64(n - 1))))
	return out
}

// AddMonthsClamped moves d forward by months, keeping the day of month but
// capping it at the target month's last day.
func AddMonthsClamped(d time.Time, months int) time.Time {
	first := time.Date(d.Year(), d.Month()+time.Month(months), 1, 0, 0, 0, 0, time.UTC)
	day := reconcile.ClampDay(first.Year(), first.Month(), d.Day())
	return time.Date(first.Year(), first.Month(), day, 0, 0, 0, 0, time.UTC)
}

// CreateTransfer moves money between two wallets as a linked expense and
// income pair.
func (s *transactionService) CreateTransfer(ctx context.Context, userID string, in TransferInput) ([]models.Transaction, error) {
	amount := in.Amount.Round(2)
	if !amount.IsPositive() {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidAmount, "transfer amount must be positive")
	}
	if in.FromWalletID == in.ToWalletID {
		return nil, apperrors.ErrSameWalletTransfer
	}

	from, err := s.walletService.GetWalletByID(userID, in.FromWalletID)
	if err != nil {
		return nil, err
	}
	to, err := s.walletService.GetWalletByID(userID, in.ToWalletID)
	if err != nil {
		return nil, err
	}
	if from.Balance.LessThan(amount) {
		return nil, apperrors.ErrInsufficientBalance
	}

	date := reconcile.CalendarDate(in.Date)
	if date.IsZero() {
		date = reconcile.CalendarDate(time.Now())
	}
	description := strings.TrimSpace(in.Description)
	if description == "" {
		description = fmt.Sprintf("Transfer from %s to %s", from.Name, to.Name)
	}

	group := uuid.New()
	legs := []models.Transaction{
		{
			UserID:        userID,
			Description:   description,
			Amount:        amount,
			Type:          models.TransactionTypeExpense,
			Date:          date,
			AccountID:     from.ID,
			Status:        models.TransactionStatusPaid,
			TransferGroup: &group,
		},
		{
			UserID:        userID,
			Description:   description,
			Amount:        amount,
			Type:          models.TransactionTypeIncome,
			Date:          date,
			AccountID:     to.ID,
			Status:        models.TransactionStatusPaid,
			TransferGroup: &group,
		},
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&legs).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if err := s.walletService.ApplyTransaction(tx, from, models.TransactionTypeExpense, amount); err != nil {
			return err
		}
		return s.walletService.ApplyTransaction(tx, to, models.TransactionTypeIncome, amount)
	})
	if err != nil {
		return nil, err
	}

	for i := range legs {
		s.publish(ctx, &legs[i])
	}
	return legs, nil
}

// GetUserTransactions retrieves a paginated, filtered list of a user's
// transactions, newest first.
func (s *transactionService) GetUserTransactions(userID string, page pagination.PageRequest, filter TransactionFilter) (*pagination.PageResponse[models.Transaction], error) {
	page.Defaults()

	base := s.db.Model(&models.Transaction{}).Where("user_id = ?", userID)
	base = applyTransactionFilters(base, filter)

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var transactions []models.Transaction
	if err := base.Scopes(pagination.Paginate(page)).
		Order("date DESC").
		Order("created_at DESC").
		Find(&transactions).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(transactions, page.Page, page.PageSize, totalItems)
	return &result, nil
}

func applyTransactionFilters(q *gorm.DB, f TransactionFilter) *gorm.DB {
	if f.FromDate != nil {
		q = q.Where("date >= ?", reconcile.CalendarDate(*f.FromDate))
	}
	if f.ToDate != nil {
		q = q.Where("date <= ?", reconcile.CalendarDate(*f.ToDate))
	}
	if f.Type != nil {
		q = q.Where("type = ?", *f.Type)
	}
	if f.Category != nil {
		q = q.Where("category = ?", *f.Category)
	}
	if f.AccountID != nil {
		q = q.Where("account_id = ?", *f.AccountID)
	}
	if f.Status != nil {
		q = q.Where("status = ?", *f.Status)
	}
	if f.MinAmount != nil {
		q = q.Where("amount >= ?", *f.MinAmount)
	}
	if f.MaxAmount != nil {
		q = q.Where("amount <= ?", *f.MaxAmount)
	}
	return q
}

// GetTransactionByID retrieves a transaction by ID for a specific user
func (s *transactionService) GetTransactionByID(userID, transactionID string) (*models.Transaction, error) {
	var transaction models.Transaction
	if err := s.db.Where("id = ? AND user_id = ?", transactionID, userID).First(&transaction).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrTransactionNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &transaction, nil
}

// UpdateTransaction replaces the editable fields of a transaction. The old
// balance effect is reversed and the new one applied atomically. Transfer
// legs cannot be edited.
func (s *transactionService) UpdateTransaction(ctx context.Context, userID, transactionID string, in TransactionInput) (*models.Transaction, error) {
	existing, err := s.GetTransactionByID(userID, transactionID)
	if err != nil {
		return nil, err
	}
	if existing.IsTransfer() {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "transfers cannot be edited, delete and recreate them")
	}

	next, err := s.buildTransaction(userID, in)
	if err != nil {
		return nil, err
	}
	previous := *existing

	updated := *existing
	updated.Description = next.Description
	updated.Amount = next.Amount
	updated.Type = next.Type
	updated.Date = next.Date
	updated.Category = next.Category
	updated.AccountID = next.AccountID
	updated.PaymentMethod = next.PaymentMethod
	updated.Status = next.Status

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.applyEffect(tx, &previous, true); err != nil {
			return err
		}
		if err := tx.Save(&updated).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return s.applyEffect(tx, &updated, false)
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, &updated)
	if !sameMonth(previous.Date, updated.Date) {
		s.publish(ctx, &previous)
	}
	return &updated, nil
}

func sameMonth(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month()
}

// DeleteTransaction soft-deletes a transaction and reverses its balance
// effect. Deleting either leg of a transfer deletes both.
func (s *transactionService) DeleteTransaction(ctx context.Context, userID, transactionID string) error {
	transaction, err := s.GetTransactionByID(userID, transactionID)
	if err != nil {
		return err
	}

	rows := []models.Transaction{*transaction}
	if transaction.IsTransfer() {
		rows = nil
		if err := s.db.Where("user_id = ? AND transfer_group = ?", userID, *transaction.TransferGroup).
			Find(&rows).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		for i := range rows {
			if err := tx.Delete(&rows[i]).Error; err != nil {
				return apperrors.Wrap(apperrors.ErrInternalServer, err)
			}
			if err := s.applyEffect(tx, &rows[i], true); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	for i := range rows {
		s.publish(ctx, &rows[i])
	}
	return nil
}

// ImportTransactions stores raw records one by one. Records that fail to
// parse or validate are reported back and do not stop the import.
func (s *transactionService) ImportTransactions(ctx context.Context, userID string, records []ImportRecord) (*ImportResult, error) {
	result := &ImportResult{
		Imported: []models.Transaction{},
		Rejected: []ImportRejection{},
	}

	for i, rec := range records {
		in, reason := parseImportRecord(rec)
		if reason != "" {
			result.Rejected = append(result.Rejected, ImportRejection{Index: i, Reason: reason})
			continue
		}

		t, err := s.CreateTransaction(ctx, userID, in)
		if err != nil {
			var appErr *apperrors.AppError
			if !errors.As(err, &appErr) || appErr.StatusCode >= 500 {
				return nil, err
			}
			result.Rejected = append(result.Rejected, ImportRejection{Index: i, Reason: appErr.Message})
			continue
		}
		result.Imported = append(result.Imported, *t)
	}

	if len(result.Rejected) > 0 {
		logger.Get().Infow("import finished with rejected records",
			"user_id", userID,
			"imported", len(result.Imported),
			"rejected", len(result.Rejected),
		)
	}
	return result, nil
}

// parseImportRecord converts a raw record into input, or returns the reason
// it cannot be imported.
func parseImportRecord(rec ImportRecord) (TransactionInput, string) {
	amount, err := decimal.NewFromString(strings.TrimSpace(rec.Amount))
	if err != nil {
		return TransactionInput{}, fmt.Sprintf("invalid amount %q", rec.Amount)
	}
	date, ok := reconcile.ParseDate(rec.Date)
	if !ok {
		return TransactionInput{}, fmt.Sprintf("unparseable date %q", rec.Date)
	}
	return TransactionInput{
		Description:   rec.Description,
		Amount:        amount,
		Type:          models.TransactionType(strings.ToLower(strings.TrimSpace(rec.Type))),
		Date:          date,
		Category:      rec.Category,
		AccountRef:    rec.Account,
		PaymentMethod: models.PaymentMethod(strings.ToLower(strings.TrimSpace(rec.PaymentMethod))),
	}, ""
}

// publish emits a transaction event. Failures are logged; the transaction
// is already committed.
func (s *transactionService) publish(ctx context.Context, t *models.Transaction) {
	e := events.NewTransactionEvent(t.UserID, t.ID, t.Date, string(t.Type))
	if err := s.publisher.PublishTransaction(ctx, e); err != nil {
		logger.Get().Warnw("failed to publish transaction event",
			"error", err,
			"user_id", t.UserID,
			"transaction_id", t.ID,
		)
	}
}

// isCode reports whether err is an AppError carrying sentinel's code.
func isCode(err error, sentinel *apperrors.AppError) bool {
	var appErr *apperrors.AppError
	return errors.As(err, &appErr) && appErr.Code == sentinel.Code
}
