package services

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	apperrors "mana/internal/errors"
	"mana/internal/models"
	"mana/internal/pagination"
)

// cardService handles card-related business logic.
type cardService struct {
	db *gorm.DB
}

// NewCardService creates a new CardServicer.
func NewCardService(db *gorm.DB) CardServicer {
	return &cardService{db: db}
}

func validDueDay(day int) bool {
	return day >= 0 && day <= 31
}

// CreateCard creates a new card for a user
func (s *cardService) CreateCard(userID string, in CardInput) (*models.Card, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "card name is required")
	}
	if !in.HasCredit && !in.HasDebit {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "card must support credit, debit or both")
	}
	if !validDueDay(in.DueDay) {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "due_date must be between 1 and 31, or 0 when unknown")
	}
	if in.Limit.IsNegative() {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "limit cannot be negative")
	}

	card := &models.Card{
		UserID:     userID,
		Name:       name,
		LastDigits: in.LastDigits,
		HasCredit:  in.HasCredit,
		HasDebit:   in.HasDebit,
		Limit:      in.Limit.Round(2),
		Used:       decimal.Zero,
		Balance:    in.Balance.Round(2),
		DueDay:     in.DueDay,
		Color:      in.Color,
	}

	if err := s.db.Create(card).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	return card, nil
}

// GetUserCards retrieves a paginated list of cards for a user.
func (s *cardService) GetUserCards(userID string, page pagination.PageRequest) (*pagination.PageResponse[models.Card], error) {
	page.Defaults()

	var totalItems int64
	base := s.db.Model(&models.Card{}).Where("user_id = ?", userID)
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var cards []models.Card
	if err := base.Order("created_at ASC").Scopes(pagination.Paginate(page)).Find(&cards).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(cards, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// GetCardByID retrieves a card by ID for a specific user
func (s *cardService) GetCardByID(userID, cardID string) (*models.Card, error) {
	var card models.Card
	if err := s.db.Where("id = ? AND user_id = ?", cardID, userID).First(&card).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrCardNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &card, nil
}

// UpdateCard updates the configurable fields of a card. Used and Balance
// only move through transactions.
func (s *cardService) UpdateCard(userID, cardID string, fields CardUpdate) (*models.Card, error) {
	card, err := s.GetCardByID(userID, cardID)
	if err != nil {
		return nil, err
	}

	updates := make(map[string]interface{})
	if fields.Name != nil && strings.TrimSpace(*fields.Name) != "" {
		updates["name"] = strings.TrimSpace(*fields.Name)
	}
	if fields.LastDigits != nil {
		updates["last_digits"] = *fields.LastDigits
	}
	hasCredit, hasDebit := card.HasCredit, card.HasDebit
	if fields.HasCredit != nil {
		hasCredit = *fields.HasCredit
		updates["has_credit"] = hasCredit
	}
	if fields.HasDebit != nil {
		hasDebit = *fields.HasDebit
		updates["has_debit"] = hasDebit
	}
	if !hasCredit && !hasDebit {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "card must support credit, debit or both")
	}
	if fields.Limit != nil {
		if fields.Limit.IsNegative() {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "limit cannot be negative")
		}
		updates["limit_amount"] = fields.Limit.Round(2)
	}
	if fields.DueDay != nil {
		if !validDueDay(*fields.DueDay) {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "due_date must be between 1 and 31, or 0 when unknown")
		}
		updates["due_date"] = *fields.DueDay
	}
	if fields.Color != nil {
		updates["color"] = *fields.Color
	}

	if len(updates) > 0 {
		if err := s.db.Model(card).Updates(updates).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if err := s.db.Where("id = ?", card.ID).First(card).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
	}

	return card, nil
}

// DeleteCard soft-deletes a card. Its transactions are kept for history.
func (s *cardService) DeleteCard(userID, cardID string) error {
	card, err := s.GetCardByID(userID, cardID)
	if err != nil {
		return err
	}
	if err := s.db.Delete(card).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}

// ApplyCharge records the effect of a transaction on a card. Credit and
// unspecified charges move the running Used total: expenses raise it and
// income (refunds, payments) lowers it. Debit charges move Balance.
func (s *cardService) ApplyCharge(tx *gorm.DB, card *models.Card, transactionType models.TransactionType, method models.PaymentMethod, amount decimal.Decimal) error {
	var sign decimal.Decimal
	switch transactionType {
	case models.TransactionTypeExpense:
		sign = decimal.NewFromInt(1)
	case models.TransactionTypeIncome:
		sign = decimal.NewFromInt(-1)
	default:
		return apperrors.ErrInvalidTransactionType
	}

	switch method {
	case models.PaymentMethodCredit, models.PaymentMethodNone:
		card.Used = card.Used.Add(amount.Mul(sign))
		if err := tx.Model(card).Update("used", card.Used).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
	case models.PaymentMethodDebit:
		card.Balance = card.Balance.Sub(amount.Mul(sign))
		if err := tx.Model(card).Update("balance", card.Balance).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
	default:
		return apperrors.ErrInvalidPaymentMethod
	}
	return nil
}
