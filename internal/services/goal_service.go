package services

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	apperrors "mana/internal/errors"
	"mana/internal/models"
	"mana/internal/pagination"
	"mana/internal/reconcile"
)

// goalService handles savings goal business logic.
type goalService struct {
	db *gorm.DB
}

// NewGoalService creates a new GoalServicer.
func NewGoalService(db *gorm.DB) GoalServicer {
	return &goalService{db: db}
}

// CreateGoal creates a savings goal with nothing saved yet.
func (s *goalService) CreateGoal(userID, name string, target decimal.Decimal, deadline *time.Time) (*models.Goal, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "goal name is required")
	}
	if !target.IsPositive() {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidAmount, "target_amount must be positive")
	}

	goal := &models.Goal{
		UserID:        userID,
		Name:          name,
		TargetAmount:  target.Round(2),
		CurrentAmount: decimal.Zero,
		Deadline:      calendarDeadline(deadline),
	}
	if err := s.db.Create(goal).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return goal, nil
}

func calendarDeadline(d *time.Time) *time.Time {
	if d == nil || d.IsZero() {
		return nil
	}
	day := reconcile.CalendarDate(*d)
	return &day
}

// GetUserGoals retrieves a paginated list of goals, nearest deadline first.
func (s *goalService) GetUserGoals(userID string, page pagination.PageRequest) (*pagination.PageResponse[models.Goal], error) {
	page.Defaults()

	var totalItems int64
	base := s.db.Model(&models.Goal{}).Where("user_id = ?", userID)
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var goals []models.Goal
	if err := base.Order("deadline IS NULL, deadline ASC").Order("created_at ASC").
		Scopes(pagination.Paginate(page)).Find(&goals).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(goals, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// GetGoalByID retrieves a goal by ID for a specific user
func (s *goalService) GetGoalByID(userID, goalID string) (*models.Goal, error) {
	var goal models.Goal
	if err := s.db.Where("id = ? AND user_id = ?", goalID, userID).First(&goal).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrGoalNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &goal, nil
}

// UpdateGoal updates a goal's name, target or deadline.
func (s *goalService) UpdateGoal(userID, goalID string, fields GoalUpdate) (*models.Goal, error) {
	goal, err := s.GetGoalByID(userID, goalID)
	if err != nil {
		return nil, err
	}

	updates := make(map[string]interface{})
	if fields.Name != nil {
		name := strings.TrimSpace(*fields.Name)
		if name == "" {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "goal name is required")
		}
		updates["name"] = name
	}
	if fields.TargetAmount != nil {
		if !fields.TargetAmount.IsPositive() {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidAmount, "target_amount must be positive")
		}
		updates["target_amount"] = fields.TargetAmount.Round(2)
	}
	if fields.Deadline != nil {
		updates["deadline"] = calendarDeadline(fields.Deadline)
	}

	if len(updates) > 0 {
		if err := s.db.Model(goal).Updates(updates).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
	}
	return s.GetGoalByID(userID, goalID)
}

// DeleteGoal soft-deletes a goal.
func (s *goalService) DeleteGoal(userID, goalID string) error {
	goal, err := s.GetGoalByID(userID, goalID)
	if err != nil {
		return err
	}
	if err := s.db.Delete(goal).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}

// Contribute adds amount to the goal's saved total. A negative amount
// withdraws, but the total never drops below zero.
func (s *goalService) Contribute(userID, goalID string, amount decimal.Decimal) (*models.Goal, error) {
	amount = amount.Round(2)
	if amount.IsZero() {
		return nil, apperrors.ErrInvalidAmount
	}

	var goal models.Goal
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ? AND user_id = ?", goalID, userID).First(&goal).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.ErrGoalNotFound
			}
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}

		next := goal.CurrentAmount.Add(amount)
		if next.IsNegative() {
			return apperrors.WithMessage(apperrors.ErrInvalidAmount, "withdrawal exceeds the amount saved")
		}
		goal.CurrentAmount = next
		if err := tx.Model(&goal).Update("current_amount", next).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &goal, nil
}
