package services

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	apperrors "mana/internal/errors"
	"mana/internal/logger"
	"mana/internal/models"
	"mana/internal/notify"
	"mana/internal/reconcile"
)

// Audit actions recorded for sent alerts. One of each is sent per budget and
// month at most.
const (
	AuditActionBudgetAlert    = "budget_alert"
	AuditActionBudgetExceeded = "budget_exceeded"
)

// alertService emails users whose budgets crossed their alert threshold.
type alertService struct {
	db       *gorm.DB
	users    UserServicer
	reports  ReportServicer
	audit    AuditServicer
	notifier notify.Notifier
}

// NewAlertService creates a new AlertServicer. A nil notifier discards
// alerts.
func NewAlertService(db *gorm.DB, users UserServicer, reports ReportServicer, audit AuditServicer, notifier notify.Notifier) AlertServicer {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &alertService{db: db, users: users, reports: reports, audit: audit, notifier: notifier}
}

// CheckBudgets evaluates the user's budgets for (year, month) and sends one
// alert per budget that newly crossed its threshold, plus one more once it
// goes over its limit. It returns the number of alerts sent.
func (s *alertService) CheckBudgets(ctx context.Context, userID string, year int, month time.Month) (int, error) {
	user, err := s.users.GetUserByID(userID)
	if err != nil {
		return 0, err
	}
	if !user.AlertsEnabled {
		return 0, nil
	}

	statuses, err := s.reports.BudgetStatuses(ctx, userID, year, month)
	if err != nil {
		return 0, err
	}

	var budgets []models.Budget
	if err := s.db.Select("id", "alert_threshold").Where("user_id = ?", userID).Find(&budgets).Error; err != nil {
		return 0, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	thresholds := make(map[string]int, len(budgets))
	for _, b := range budgets {
		thresholds[b.ID] = b.AlertThreshold
	}

	period := reconcile.MonthKey{Year: year, Month: month}.String()
	sent := 0
	for i := range statuses {
		st := statuses[i]
		if !st.AlertTriggered {
			continue
		}
		action := AuditActionBudgetAlert
		if st.IsOverBudget {
			action = AuditActionBudgetExceeded
		}
		resourceID := fmt.Sprintf("%s:%s", st.BudgetID, period)

		seen, err := s.audit.HasEntry(userID, action, resourceID)
		if err != nil {
			return sent, err
		}
		if seen {
			continue
		}

		alert := notify.BudgetAlert{
			UserName:   user.Name,
			Category:   st.Category,
			Year:       year,
			Month:      int(month),
			Spent:      st.Spent,
			Limit:      st.Limit,
			Percentage: st.Percentage,
			Threshold:  thresholds[st.BudgetID],
			OverBudget: st.IsOverBudget,
			Currency:   user.Currency,
		}
		if err := s.notifier.SendBudgetAlert(ctx, user.Email, alert); err != nil {
			logger.Get().Errorw("failed to send budget alert",
				"error", err,
				"user_id", userID,
				"budget_id", st.BudgetID,
				"period", period,
			)
			continue
		}

		s.audit.Log(userID, action, "budget", resourceID, "", map[string]any{
			"category":   st.Category,
			"spent":      st.Spent.String(),
			"limit":      st.Limit.String(),
			"percentage": st.Percentage.String(),
		})
		sent++
	}

	if sent > 0 {
		logger.Get().Infow("budget alerts sent", "user_id", userID, "period", period, "count", sent)
	}
	return sent, nil
}
