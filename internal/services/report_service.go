package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"mana/internal/cache"
	apperrors "mana/internal/errors"
	"mana/internal/logger"
	"mana/internal/models"
	"mana/internal/reconcile"
)

// reportService loads materialized records and runs them through the
// reconciliation engine. Results are memoized per user, period and data
// version, so any write to the underlying rows changes the key.
type reportService struct {
	db         *gorm.DB
	statuses   *cache.Memo[[]reconcile.BudgetStatus]
	invoices   *cache.Memo[[]reconcile.Invoice]
	dashboards *cache.Memo[*Dashboard]
}

// NewReportService creates a new ReportServicer. A cacheSize <= 0 disables
// memoization.
func NewReportService(db *gorm.DB, cacheSize int, ttl time.Duration) ReportServicer {
	return &reportService{
		db:         db,
		statuses:   cache.New[[]reconcile.BudgetStatus](cacheSize, ttl),
		invoices:   cache.New[[]reconcile.Invoice](cacheSize, ttl),
		dashboards: cache.New[*Dashboard](cacheSize, ttl),
	}
}

// engineError maps reconciliation errors onto client-facing AppErrors.
func engineError(err error) error {
	var invalid *reconcile.InvalidPeriodError
	if errors.As(err, &invalid) {
		return apperrors.Wrap(apperrors.WithMessage(apperrors.ErrInvalidPeriod, invalid.Error()), err)
	}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return apperrors.Wrap(apperrors.ErrInternalServer, err)
}

// billingWindow covers every billing interval that closes in (year, month),
// whatever the card's anchor day: from the 1st of the previous month to the
// end of the month.
func billingWindow(year int, month time.Month) (reconcile.Interval, error) {
	iv, err := reconcile.MonthInterval(year, month)
	if err != nil {
		return reconcile.Interval{}, err
	}
	return reconcile.Interval{Start: iv.Start.AddDate(0, -1, 0), End: iv.End}, nil
}

// reportWindow is the union of every interval a report for (year, month,
// day) may read: each budget period around the reference day and the
// billing window of the month.
func reportWindow(year int, month time.Month, day int) (reconcile.Interval, error) {
	window, err := billingWindow(year, month)
	if err != nil {
		return reconcile.Interval{}, err
	}
	periods := []reconcile.Period{
		reconcile.PeriodWeekly, reconcile.PeriodMonthly, reconcile.PeriodQuarterly, reconcile.PeriodYearly,
	}
	for _, p := range periods {
		iv, err := reconcile.BudgetInterval(p, year, month, day)
		if err != nil {
			return reconcile.Interval{}, err
		}
		if iv.Start.Before(window.Start) {
			window.Start = iv.Start
		}
		if iv.End.After(window.End) {
			window.End = iv.End
		}
	}
	return window, nil
}

// tableVersion fingerprints the rows a user owns in table, deleted ones
// included, so that inserts, updates and deletes all change it.
func (s *reportService) tableVersion(ctx context.Context, model interface{}, userID string) (string, error) {
	var (
		count   int64
		updated sql.NullString
		deleted sql.NullString
	)
	row := s.db.WithContext(ctx).Unscoped().Model(model).
		Where("user_id = ?", userID).
		Select("COUNT(*), MAX(updated_at), MAX(deleted_at)").
		Row()
	if err := row.Scan(&count, &updated, &deleted); err != nil {
		return "", err
	}
	return fmt.Sprintf("%d/%s/%s", count, updated.String, deleted.String), nil
}

// dataVersion combines the versions of the tables a report depends on.
func (s *reportService) dataVersion(ctx context.Context, userID string, tables ...interface{}) (string, error) {
	parts := make([]string, len(tables))
	g, ctx := errgroup.WithContext(ctx)
	for i, model := range tables {
		g.Go(func() error {
			v, err := s.tableVersion(ctx, model, userID)
			if err != nil {
				return err
			}
			parts[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return strings.Join(parts, "|"), nil
}

// loadTransactions returns the user's non-transfer transactions dated inside
// window, converted for the engine.
func (s *reportService) loadTransactions(ctx context.Context, userID string, window reconcile.Interval) ([]reconcile.Transaction, error) {
	var rows []models.Transaction
	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND transfer_group IS NULL", userID).
		Where("date >= ? AND date < ?", window.Start, window.End).
		Order("date ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	txns := models.EngineTransactions(rows)
	if n := reconcile.Skipped(txns); n > 0 {
		logger.Get().Warnw("transactions without a usable date skipped", "user_id", userID, "count", n)
	}
	return txns, nil
}

func (s *reportService) loadBudgets(ctx context.Context, userID string) ([]models.Budget, error) {
	var budgets []models.Budget
	err := s.db.WithContext(ctx).Preload("Overrides").
		Where("user_id = ?", userID).
		Order("category_name ASC").
		Find(&budgets).Error
	return budgets, err
}

func (s *reportService) loadCards(ctx context.Context, userID string) ([]models.Card, error) {
	var cards []models.Card
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("name ASC").Find(&cards).Error
	return cards, err
}

func (s *reportService) loadWallets(ctx context.Context, userID string) ([]models.Wallet, error) {
	var wallets []models.Wallet
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).Find(&wallets).Error
	return wallets, err
}

func evaluateBudgets(budgets []models.Budget, year int, month time.Month, day int, txns []reconcile.Transaction, userID string) ([]reconcile.BudgetStatus, error) {
	out := make([]reconcile.BudgetStatus, 0, len(budgets))
	for i := range budgets {
		status, err := reconcile.EvaluateBudget(budgets[i].ToEngine(), year, month, day, txns, userID)
		if err != nil {
			return nil, err
		}
		out = append(out, status)
	}
	return out, nil
}

func resolveInvoices(cards []models.Card, year int, month time.Month, txns []reconcile.Transaction) ([]reconcile.Invoice, error) {
	out := make([]reconcile.Invoice, 0, len(cards))
	for i := range cards {
		inv, err := reconcile.InvoiceOrUsed(cards[i].ToEngine(), year, month, txns)
		if err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, nil
}

// BudgetStatus evaluates one budget for the window containing (year, month,
// day). A day <= 0 selects the last day of the month.
func (s *reportService) BudgetStatus(ctx context.Context, userID, budgetID string, year int, month time.Month, day int) (*reconcile.BudgetStatus, error) {
	window, err := reportWindow(year, month, day)
	if err != nil {
		return nil, engineError(err)
	}

	var budget models.Budget
	if err := s.db.WithContext(ctx).Preload("Overrides").
		Where("id = ? AND user_id = ?", budgetID, userID).
		First(&budget).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrBudgetNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	version, err := s.dataVersion(ctx, userID, &models.Transaction{})
	if err != nil {
		return nil, err
	}
	key := fmt.Sprintf("budget:%s:%d-%02d-%02d:%s:%s", budget.ID, year, month, day, budget.UpdatedAt.UTC().Format(time.RFC3339Nano), version)

	statuses, _, err := s.statuses.Do(key, func() ([]reconcile.BudgetStatus, error) {
		txns, err := s.loadTransactions(ctx, userID, window)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return evaluateBudgets([]models.Budget{budget}, year, month, day, txns, userID)
	})
	if err != nil {
		return nil, engineError(err)
	}
	return &statuses[0], nil
}

// BudgetStatuses evaluates every budget of the user for (year, month).
func (s *reportService) BudgetStatuses(ctx context.Context, userID string, year int, month time.Month) ([]reconcile.BudgetStatus, error) {
	window, err := reportWindow(year, month, 0)
	if err != nil {
		return nil, engineError(err)
	}
	version, err := s.dataVersion(ctx, userID, &models.Transaction{}, &models.Budget{})
	if err != nil {
		return nil, err
	}
	key := fmt.Sprintf("budgets:%s:%d-%02d:%s", userID, year, month, version)

	statuses, _, err := s.statuses.Do(key, func() ([]reconcile.BudgetStatus, error) {
		var (
			budgets []models.Budget
			txns    []reconcile.Transaction
		)
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() (err error) {
			budgets, err = s.loadBudgets(gctx, userID)
			return err
		})
		g.Go(func() (err error) {
			txns, err = s.loadTransactions(gctx, userID, window)
			return err
		})
		if err := g.Wait(); err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return evaluateBudgets(budgets, year, month, 0, txns, userID)
	})
	if err != nil {
		return nil, engineError(err)
	}
	return statuses, nil
}

// CardInvoice resolves the invoice of one card for (year, month). Cards
// without a due day report their running used total instead.
func (s *reportService) CardInvoice(ctx context.Context, userID, cardID string, year int, month time.Month) (*reconcile.Invoice, error) {
	window, err := billingWindow(year, month)
	if err != nil {
		return nil, engineError(err)
	}

	var card models.Card
	if err := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", cardID, userID).First(&card).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrCardNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	version, err := s.dataVersion(ctx, userID, &models.Transaction{})
	if err != nil {
		return nil, err
	}
	key := fmt.Sprintf("card:%s:%d-%02d:%s:%s", card.ID, year, month, card.UpdatedAt.UTC().Format(time.RFC3339Nano), version)

	invoices, _, err := s.invoices.Do(key, func() ([]reconcile.Invoice, error) {
		txns, err := s.loadTransactions(ctx, userID, window)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return resolveInvoices([]models.Card{card}, year, month, txns)
	})
	if err != nil {
		return nil, engineError(err)
	}
	return &invoices[0], nil
}

// CardInvoices resolves the invoice of every card of the user.
func (s *reportService) CardInvoices(ctx context.Context, userID string, year int, month time.Month) ([]reconcile.Invoice, error) {
	window, err := billingWindow(year, month)
	if err != nil {
		return nil, engineError(err)
	}
	version, err := s.dataVersion(ctx, userID, &models.Transaction{}, &models.Card{})
	if err != nil {
		return nil, err
	}
	key := fmt.Sprintf("cards:%s:%d-%02d:%s", userID, year, month, version)

	invoices, _, err := s.invoices.Do(key, func() ([]reconcile.Invoice, error) {
		var (
			cards []models.Card
			txns  []reconcile.Transaction
		)
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() (err error) {
			cards, err = s.loadCards(gctx, userID)
			return err
		})
		g.Go(func() (err error) {
			txns, err = s.loadTransactions(gctx, userID, window)
			return err
		})
		if err := g.Wait(); err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return resolveInvoices(cards, year, month, txns)
	})
	if err != nil {
		return nil, engineError(err)
	}
	return invoices, nil
}

// Dashboard builds the monthly overview: income and expense totals, spend
// per category, budget statuses, card invoices and current balances.
func (s *reportService) Dashboard(ctx context.Context, userID string, year int, month time.Month) (*Dashboard, error) {
	window, err := reportWindow(year, month, 0)
	if err != nil {
		return nil, engineError(err)
	}
	monthIv, err := reconcile.MonthInterval(year, month)
	if err != nil {
		return nil, engineError(err)
	}
	version, err := s.dataVersion(ctx, userID,
		&models.Transaction{}, &models.Budget{}, &models.Card{}, &models.Wallet{})
	if err != nil {
		return nil, err
	}
	key := fmt.Sprintf("dashboard:%s:%d-%02d:%s", userID, year, month, version)

	dash, _, err := s.dashboards.Do(key, func() (*Dashboard, error) {
		var (
			budgets []models.Budget
			cards   []models.Card
			wallets []models.Wallet
			txns    []reconcile.Transaction
		)
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() (err error) {
			budgets, err = s.loadBudgets(gctx, userID)
			return err
		})
		g.Go(func() (err error) {
			cards, err = s.loadCards(gctx, userID)
			return err
		})
		g.Go(func() (err error) {
			wallets, err = s.loadWallets(gctx, userID)
			return err
		})
		g.Go(func() (err error) {
			txns, err = s.loadTransactions(gctx, userID, window)
			return err
		})
		if err := g.Wait(); err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}

		inMonth := reconcile.Filter(txns, reconcile.Query{Interval: monthIv, UserID: userID})
		statuses, err := evaluateBudgets(budgets, year, month, 0, txns, userID)
		if err != nil {
			return nil, err
		}
		invoices, err := resolveInvoices(cards, year, month, txns)
		if err != nil {
			return nil, err
		}

		d := &Dashboard{
			Year:          year,
			Month:         int(month),
			Totals:        reconcile.Summarize(inMonth),
			ByCategory:    categorySpend(reconcile.SpendByCategory(inMonth)),
			Budgets:       statuses,
			Invoices:      invoices,
			WalletBalance: decimal.Zero,
			CardDebt:      decimal.Zero,
			Skipped:       reconcile.Skipped(txns),
		}
		for i := range wallets {
			d.WalletBalance = d.WalletBalance.Add(wallets[i].Balance)
		}
		for i := range cards {
			d.CardDebt = d.CardDebt.Add(cards[i].Used)
		}
		d.NetWorth = d.WalletBalance.Sub(d.CardDebt)
		return d, nil
	})
	if err != nil {
		return nil, engineError(err)
	}
	return dash, nil
}

// categorySpend orders the per-category totals by spend, largest first.
func categorySpend(m map[string]reconcile.Spend) []CategorySpend {
	out := make([]CategorySpend, 0, len(m))
	for name, sp := range m {
		out = append(out, CategorySpend{Category: name, Spent: sp.Spent, Count: sp.Count})
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].Spent.Cmp(out[j].Spent); c != 0 {
			return c > 0
		}
		return out[i].Category < out[j].Category
	})
	return out
}
