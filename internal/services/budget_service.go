package services

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	apperrors "mana/internal/errors"
	"mana/internal/logger"
	"mana/internal/models"
	"mana/internal/pagination"
	"mana/internal/reconcile"
)

const (
	defaultAlertThreshold = 80
	// maxFrozenMonths bounds how far back a limit change preserves history.
	maxFrozenMonths = 12
)

// budgetService handles budget-related business logic.
type budgetService struct {
	db              *gorm.DB
	categoryService CategoryServicer
	now             func() time.Time
}

// NewBudgetService creates a new BudgetServicer.
func NewBudgetService(db *gorm.DB, categoryService CategoryServicer) BudgetServicer {
	return &budgetService{db: db, categoryService: categoryService, now: time.Now}
}

func validPeriod(p models.BudgetPeriod) bool {
	switch p {
	case models.BudgetPeriodWeekly, models.BudgetPeriodMonthly, models.BudgetPeriodQuarterly, models.BudgetPeriodYearly:
		return true
	}
	return false
}

func validThreshold(v int) bool {
	return v >= 0 && v <= 100
}

// CreateBudget creates a new budget on one of the user's categories.
func (s *budgetService) CreateBudget(userID string, in BudgetInput) (*models.Budget, error) {
	category, err := s.categoryService.FindCategoryByName(userID, in.Category)
	if err != nil {
		return nil, err
	}

	if in.Limit.IsNegative() {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "limit cannot be negative")
	}
	period := in.Period
	if period == "" {
		period = models.BudgetPeriodMonthly
	}
	if !validPeriod(period) {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "period must be weekly, monthly, quarterly or yearly")
	}
	threshold := defaultAlertThreshold
	if in.AlertThreshold != nil {
		threshold = *in.AlertThreshold
	}
	if !validThreshold(threshold) {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "alert_threshold must be between 0 and 100")
	}

	budget := &models.Budget{
		UserID:         userID,
		CategoryID:     category.ID,
		CategoryName:   category.Name,
		Limit:          in.Limit.Round(2),
		Period:         period,
		AlertThreshold: threshold,
	}

	if err := s.db.Create(budget).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	return budget, nil
}

// GetUserBudgets returns a paginated list of budgets for the user with an
// optional period filter. Overrides are preloaded.
func (s *budgetService) GetUserBudgets(
	userID string,
	period *models.BudgetPeriod,
	page pagination.PageRequest,
) (*pagination.PageResponse[models.Budget], error) {
	page.Defaults()

	base := s.db.Model(&models.Budget{}).Where("user_id = ?", userID)
	if period != nil {
		base = base.Where("period = ?", *period)
	}

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var budgets []models.Budget
	if err := base.Preload("Overrides").Order("category_name ASC").Scopes(pagination.Paginate(page)).Find(&budgets).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(budgets, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// GetBudgetByID returns a budget by ID if it belongs to the user.
func (s *budgetService) GetBudgetByID(userID, budgetID string) (*models.Budget, error) {
	var budget models.Budget
	if err := s.db.Preload("Overrides").Where("id = ? AND user_id = ?", budgetID, userID).First(&budget).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrBudgetNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &budget, nil
}

// UpdateBudget updates an existing budget's fields. When the default limit
// changes, the months already elapsed since the budget was created keep the
// old limit through frozen overrides.
func (s *budgetService) UpdateBudget(userID, budgetID string, fields BudgetUpdate) (*models.Budget, error) {
	budget, err := s.GetBudgetByID(userID, budgetID)
	if err != nil {
		return nil, err
	}

	updates := make(map[string]interface{})
	if fields.Category != nil && *fields.Category != budget.CategoryName {
		category, err := s.categoryService.FindCategoryByName(userID, *fields.Category)
		if err != nil {
			return nil, err
		}
		updates["category_id"] = category.ID
		updates["category_name"] = category.Name
	}
	limitChanged := false
	if fields.Limit != nil {
		if fields.Limit.IsNegative() {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "limit cannot be negative")
		}
		if !fields.Limit.Equal(budget.Limit) {
			limitChanged = true
			updates["limit_amount"] = fields.Limit.Round(2)
		}
	}
	if fields.Period != nil {
		if !validPeriod(*fields.Period) {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "period must be weekly, monthly, quarterly or yearly")
		}
		updates["period"] = *fields.Period
	}
	if fields.AlertThreshold != nil {
		if !validThreshold(*fields.AlertThreshold) {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "alert_threshold must be between 0 and 100")
		}
		updates["alert_threshold"] = *fields.AlertThreshold
	}

	if len(updates) == 0 {
		return budget, nil
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if limitChanged {
			if err := s.freezeElapsedMonths(tx, budget); err != nil {
				return err
			}
		}
		if err := tx.Model(budget).Updates(updates).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.GetBudgetByID(userID, budgetID)
}

// freezeElapsedMonths pins the current limit on every month between the
// budget's creation and the previous month that has no override yet.
func (s *budgetService) freezeElapsedMonths(tx *gorm.DB, budget *models.Budget) error {
	now := s.now().UTC()
	current := reconcile.MonthKey{Year: now.Year(), Month: now.Month()}
	createdAt := budget.CreatedAt.UTC()
	created := reconcile.MonthKey{Year: createdAt.Year(), Month: createdAt.Month()}

	existing := make(map[reconcile.MonthKey]bool, len(budget.Overrides))
	for _, o := range budget.Overrides {
		existing[reconcile.MonthKey{Year: o.Year, Month: time.Month(o.Month)}] = true
	}

	var frozen []models.BudgetLimitOverride
	for k, i := current.Prev(), 0; i < maxFrozenMonths && !monthBefore(k, created); k, i = k.Prev(), i+1 {
		if existing[k] {
			continue
		}
		frozen = append(frozen, models.BudgetLimitOverride{
			BudgetID: budget.ID,
			Year:     k.Year,
			Month:    int(k.Month),
			Limit:    budget.Limit,
		})
	}
	if len(frozen) == 0 {
		return nil
	}
	if err := tx.Create(&frozen).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}

func monthBefore(a, b reconcile.MonthKey) bool {
	return a.Year < b.Year || (a.Year == b.Year && a.Month < b.Month)
}

// DeleteBudget soft-deletes a budget and removes its overrides.
func (s *budgetService) DeleteBudget(userID, budgetID string) error {
	budget, err := s.GetBudgetByID(userID, budgetID)
	if err != nil {
		return err
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().Where("budget_id = ?", budget.ID).Delete(&models.BudgetLimitOverride{}).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if err := tx.Delete(budget).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return nil
	})
}

func validateMonth(year int, month time.Month) error {
	if err := (reconcile.MonthKey{Year: year, Month: month}).Validate(); err != nil {
		return apperrors.Wrap(apperrors.WithMessage(apperrors.ErrInvalidPeriod, err.Error()), err)
	}
	return nil
}

// SetLimitOverride pins the budget's limit for one month, replacing any
// previous override for that month.
func (s *budgetService) SetLimitOverride(userID, budgetID string, year int, month time.Month, limit decimal.Decimal) (*models.BudgetLimitOverride, error) {
	if err := validateMonth(year, month); err != nil {
		return nil, err
	}
	if limit.IsNegative() {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "limit cannot be negative")
	}
	budget, err := s.GetBudgetByID(userID, budgetID)
	if err != nil {
		return nil, err
	}

	override := &models.BudgetLimitOverride{
		BudgetID: budget.ID,
		Year:     year,
		Month:    int(month),
		Limit:    limit.Round(2),
	}
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "budget_id"}, {Name: "year"}, {Name: "month"}},
			DoUpdates: clause.AssignmentColumns([]string{"limit_amount", "updated_at"}),
		}).Create(override).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return touchBudget(tx, budget)
	})
	if err != nil {
		return nil, err
	}

	if err := s.db.Where("budget_id = ? AND year = ? AND month = ?", budget.ID, year, int(month)).First(override).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return override, nil
}

// DeleteLimitOverride removes the override for one month so the default
// limit applies again.
func (s *budgetService) DeleteLimitOverride(userID, budgetID string, year int, month time.Month) error {
	if err := validateMonth(year, month); err != nil {
		return err
	}
	budget, err := s.GetBudgetByID(userID, budgetID)
	if err != nil {
		return err
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Unscoped().
			Where("budget_id = ? AND year = ? AND month = ?", budget.ID, year, int(month)).
			Delete(&models.BudgetLimitOverride{})
		if res.Error != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, res.Error)
		}
		if res.RowsAffected == 0 {
			return apperrors.ErrOverrideNotFound
		}
		return touchBudget(tx, budget)
	})
}

// touchBudget bumps updated_at so memoized reports keyed on it are
// recomputed.
func touchBudget(tx *gorm.DB, budget *models.Budget) error {
	if err := tx.Model(budget).Update("updated_at", time.Now().UTC()).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}

// GetLimitOverrides lists a budget's overrides, most recent month first.
func (s *budgetService) GetLimitOverrides(userID, budgetID string) ([]models.BudgetLimitOverride, error) {
	budget, err := s.GetBudgetByID(userID, budgetID)
	if err != nil {
		return nil, err
	}

	overrides := []models.BudgetLimitOverride{}
	if err := s.db.Where("budget_id = ?", budget.ID).
		Order("year DESC").Order("month DESC").
		Find(&overrides).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return overrides, nil
}

// FreezeLimits records the current default limit as the override for
// (year, month) on every budget created by the end of that month that has
// no override for it yet. It returns the number of overrides written.
func (s *budgetService) FreezeLimits(year int, month time.Month) (int, error) {
	if err := validateMonth(year, month); err != nil {
		return 0, err
	}
	iv, _ := reconcile.MonthInterval(year, month)

	var budgets []models.Budget
	if err := s.db.
		Where("created_at < ?", iv.End).
		Where("NOT EXISTS (SELECT 1 FROM budget_limit_overrides o WHERE o.budget_id = budgets.id AND o.year = ? AND o.month = ?)", year, int(month)).
		Find(&budgets).Error; err != nil {
		return 0, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if len(budgets) == 0 {
		return 0, nil
	}

	frozen := make([]models.BudgetLimitOverride, len(budgets))
	for i, b := range budgets {
		frozen[i] = models.BudgetLimitOverride{
			BudgetID: b.ID,
			Year:     year,
			Month:    int(month),
			Limit:    b.Limit,
		}
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).CreateInBatches(&frozen, 100).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		ids := make([]string, len(budgets))
		for i := range budgets {
			ids[i] = budgets[i].ID
		}
		if err := tx.Model(&models.Budget{}).Where("id IN ?", ids).Update("updated_at", time.Now().UTC()).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	logger.Get().Infow("froze budget limits", "year", year, "month", int(month), "budgets", len(frozen))
	return len(frozen), nil
}
