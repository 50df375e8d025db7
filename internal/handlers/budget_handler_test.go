package handlers

import (
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	apperrors "mana/internal/errors"
	"mana/internal/models"
	"mana/internal/pagination"
	"mana/internal/reconcile"
	"mana/internal/services"
)

const testBudgetID = "a051b273-b06f-42ce-9354-6f708192a3b4"

// --- mock budget service ---

type mockBudgetService struct {
	createBudgetFn        func(userID string, in services.BudgetInput) (*models.Budget, error)
	getUserBudgetsFn      func(userID string, period *models.BudgetPeriod, page pagination.PageRequest) (*pagination.PageResponse[models.Budget], error)
	getBudgetByIDFn       func(userID, budgetID string) (*models.Budget, error)
	updateBudgetFn        func(userID, budgetID string, fields services.BudgetUpdate) (*models.Budget, error)
	deleteBudgetFn        func(userID, budgetID string) error
	setLimitOverrideFn    func(userID, budgetID string, year int, month time.Month, limit decimal.Decimal) (*models.BudgetLimitOverride, error)
	deleteLimitOverrideFn func(userID, budgetID string, year int, month time.Month) error
	getLimitOverridesFn   func(userID, budgetID string) ([]models.BudgetLimitOverride, error)
	freezeLimitsFn        func(year int, month time.Month) (int, error)
}

func (m *mockBudgetService) CreateBudget(userID string, in services.BudgetInput) (*models.Budget, error) {
	if m.createBudgetFn != nil {
		return m.createBudgetFn(userID, in)
	}
	return &models.Budget{}, nil
}

func (m *mockBudgetService) GetUserBudgets(userID string, period *models.BudgetPeriod, page pagination.PageRequest) (*pagination.PageResponse[models.Budget], error) {
	if m.getUserBudgetsFn != nil {
		return m.getUserBudgetsFn(userID, period, page)
	}
	resp := pagination.NewPageResponse([]models.Budget{}, 1, 20, 0)
	return &resp, nil
}

func (m *mockBudgetService) GetBudgetByID(userID, budgetID string) (*models.Budget, error) {
	if m.getBudgetByIDFn != nil {
		return m.getBudgetByIDFn(userID, budgetID)
	}
	return &models.Budget{}, nil
}

func (m *mockBudgetService) UpdateBudget(userID, budgetID string, fields services.BudgetUpdate) (*models.Budget, error) {
	if m.updateBudgetFn != nil {
		return m.updateBudgetFn(userID, budgetID, fields)
	}
	return &models.Budget{}, nil
}

func (m *mockBudgetService) DeleteBudget(userID, budgetID string) error {
	if m.deleteBudgetFn != nil {
		return m.deleteBudgetFn(userID, budgetID)
	}
	return nil
}

func (m *mockBudgetService) SetLimitOverride(userID, budgetID string, year int, month time.Month, limit decimal.Decimal) (*models.BudgetLimitOverride, error) {
	if m.setLimitOverrideFn != nil {
		return m.setLimitOverrideFn(userID, budgetID, year, month, limit)
	}
	return &models.BudgetLimitOverride{BudgetID: budgetID, Year: year, Month: int(month), Limit: limit}, nil
}

func (m *mockBudgetService) DeleteLimitOverride(userID, budgetID string, year int, month time.Month) error {
	if m.deleteLimitOverrideFn != nil {
		return m.deleteLimitOverrideFn(userID, budgetID, year, month)
	}
	return nil
}

func (m *mockBudgetService) GetLimitOverrides(userID, budgetID string) ([]models.BudgetLimitOverride, error) {
	if m.getLimitOverridesFn != nil {
		return m.getLimitOverridesFn(userID, budgetID)
	}
	return []models.BudgetLimitOverride{}, nil
}

func (m *mockBudgetService) FreezeLimits(year int, month time.Month) (int, error) {
	if m.freezeLimitsFn != nil {
		return m.freezeLimitsFn(year, month)
	}
	return 0, nil
}

var _ services.BudgetServicer = (*mockBudgetService)(nil)

func setupBudgetRouter(handler *BudgetHandler) *gin.Engine {
	r := gin.New()
	auth := r.Group("", injectUserID(testUserID))
	auth.POST("/budgets", handler.CreateBudget)
	auth.GET("/budgets", handler.GetUserBudgets)
	auth.GET("/budgets/:id", handler.GetBudgetByID)
	auth.PUT("/budgets/:id", handler.UpdateBudget)
	auth.DELETE("/budgets/:id", handler.DeleteBudget)
	auth.GET("/budgets/:id/status", handler.GetBudgetStatus)
	auth.GET("/budgets/:id/overrides", handler.GetLimitOverrides)
	auth.PUT("/budgets/:id/overrides/:year/:month", handler.SetLimitOverride)
	auth.DELETE("/budgets/:id/overrides/:year/:month", handler.DeleteLimitOverride)
	return r
}

func TestBudgetHandler_CreateBudget(t *testing.T) {
	t.Run("returns 201 on success", func(t *testing.T) {
		var got services.BudgetInput
		budgetSvc := &mockBudgetService{
			createBudgetFn: func(_ string, in services.BudgetInput) (*models.Budget, error) {
				got = in
				return &models.Budget{
					Base:         models.Base{ID: testBudgetID},
					CategoryName: in.Category,
					Limit:        in.Limit,
					Period:       models.BudgetPeriodMonthly,
				}, nil
			},
		}
		r := setupBudgetRouter(NewBudgetHandler(budgetSvc, &mockReportService{}, &mockAuditService{}))

		rec := doRequest(r, "POST", "/budgets", `{"category":"Food","limit":"500","period":"monthly","alert_threshold":75}`)

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		if !got.Limit.Equal(decimal.NewFromInt(500)) {
			t.Errorf("expected limit 500, got %s", got.Limit)
		}
		if got.AlertThreshold == nil || *got.AlertThreshold != 75 {
			t.Errorf("expected threshold 75, got %v", got.AlertThreshold)
		}
		budget := parseJSON(t, rec)["budget"].(map[string]interface{})
		if budget["limit"] != "500" {
			t.Errorf("expected limit 500, got %v", budget["limit"])
		}
	})

	t.Run("leaves threshold nil when omitted", func(t *testing.T) {
		var got services.BudgetInput
		budgetSvc := &mockBudgetService{
			createBudgetFn: func(_ string, in services.BudgetInput) (*models.Budget, error) {
				got = in
				return &models.Budget{}, nil
			},
		}
		r := setupBudgetRouter(NewBudgetHandler(budgetSvc, &mockReportService{}, &mockAuditService{}))

		rec := doRequest(r, "POST", "/budgets", `{"category":"Food","limit":"500"}`)

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d", rec.Code)
		}
		if got.AlertThreshold != nil {
			t.Errorf("expected nil threshold, got %d", *got.AlertThreshold)
		}
	})

	t.Run("returns 400 on invalid period", func(t *testing.T) {
		r := setupBudgetRouter(NewBudgetHandler(&mockBudgetService{}, &mockReportService{}, &mockAuditService{}))

		rec := doRequest(r, "POST", "/budgets", `{"category":"Food","limit":"500","period":"daily"}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("returns 400 on threshold above 100", func(t *testing.T) {
		r := setupBudgetRouter(NewBudgetHandler(&mockBudgetService{}, &mockReportService{}, &mockAuditService{}))

		rec := doRequest(r, "POST", "/budgets", `{"category":"Food","limit":"500","alert_threshold":150}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("returns 404 when category missing", func(t *testing.T) {
		budgetSvc := &mockBudgetService{
			createBudgetFn: func(string, services.BudgetInput) (*models.Budget, error) {
				return nil, apperrors.ErrCategoryNotFound
			},
		}
		r := setupBudgetRouter(NewBudgetHandler(budgetSvc, &mockReportService{}, &mockAuditService{}))

		rec := doRequest(r, "POST", "/budgets", `{"category":"Nope","limit":"500"}`)

		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "CATEGORY_NOT_FOUND")
	})
}

func TestBudgetHandler_GetUserBudgets(t *testing.T) {
	t.Run("passes period filter", func(t *testing.T) {
		var got *models.BudgetPeriod
		budgetSvc := &mockBudgetService{
			getUserBudgetsFn: func(_ string, period *models.BudgetPeriod, _ pagination.PageRequest) (*pagination.PageResponse[models.Budget], error) {
				got = period
				resp := pagination.NewPageResponse([]models.Budget{{}}, 1, 20, 1)
				return &resp, nil
			},
		}
		r := setupBudgetRouter(NewBudgetHandler(budgetSvc, &mockReportService{}, &mockAuditService{}))

		rec := doRequest(r, "GET", "/budgets?period=weekly", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if got == nil || *got != models.BudgetPeriodWeekly {
			t.Errorf("expected weekly filter, got %v", got)
		}
	})

	t.Run("returns 400 on invalid period", func(t *testing.T) {
		r := setupBudgetRouter(NewBudgetHandler(&mockBudgetService{}, &mockReportService{}, &mockAuditService{}))

		rec := doRequest(r, "GET", "/budgets?period=daily", "")

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})
}

func TestBudgetHandler_GetBudgetByID(t *testing.T) {
	t.Run("returns 404 when not found", func(t *testing.T) {
		budgetSvc := &mockBudgetService{
			getBudgetByIDFn: func(string, string) (*models.Budget, error) {
				return nil, apperrors.ErrBudgetNotFound
			},
		}
		r := setupBudgetRouter(NewBudgetHandler(budgetSvc, &mockReportService{}, &mockAuditService{}))

		rec := doRequest(r, "GET", "/budgets/"+testBudgetID, "")

		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "BUDGET_NOT_FOUND")
	})
}

func TestBudgetHandler_UpdateBudget(t *testing.T) {
	t.Run("returns 200 and passes only the given fields", func(t *testing.T) {
		var got services.BudgetUpdate
		budgetSvc := &mockBudgetService{
			updateBudgetFn: func(_, id string, fields services.BudgetUpdate) (*models.Budget, error) {
				got = fields
				return &models.Budget{Base: models.Base{ID: id}, Limit: *fields.Limit}, nil
			},
		}
		r := setupBudgetRouter(NewBudgetHandler(budgetSvc, &mockReportService{}, &mockAuditService{}))

		rec := doRequest(r, "PUT", "/budgets/"+testBudgetID, `{"limit":"650.50"}`)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if got.Limit == nil || !got.Limit.Equal(decimal.RequireFromString("650.50")) {
			t.Errorf("expected limit 650.50, got %v", got.Limit)
		}
		if got.Category != nil || got.Period != nil || got.AlertThreshold != nil {
			t.Error("expected other fields to be untouched")
		}
	})
}

func TestBudgetHandler_DeleteBudget(t *testing.T) {
	t.Run("returns 200 on success", func(t *testing.T) {
		r := setupBudgetRouter(NewBudgetHandler(&mockBudgetService{}, &mockReportService{}, &mockAuditService{}))

		rec := doRequest(r, "DELETE", "/budgets/"+testBudgetID, "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
	})
}

func TestBudgetHandler_GetBudgetStatus(t *testing.T) {
	t.Run("returns 200 with the computed status", func(t *testing.T) {
		var (
			gotYear  int
			gotMonth time.Month
			gotDay   int
		)
		reportSvc := &mockReportService{
			budgetStatusFn: func(_, budgetID string, year int, month time.Month, day int) (*reconcile.BudgetStatus, error) {
				gotYear, gotMonth, gotDay = year, month, day
				return &reconcile.BudgetStatus{
					BudgetID:         budgetID,
					Spent:            decimal.NewFromInt(350),
					Limit:            decimal.NewFromInt(500),
					TransactionCount: 2,
				}, nil
			},
		}
		r := setupBudgetRouter(NewBudgetHandler(&mockBudgetService{}, reportSvc, &mockAuditService{}))

		rec := doRequest(r, "GET", "/budgets/"+testBudgetID+"/status?year=2025&month=1&day=15", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if gotYear != 2025 || gotMonth != time.January || gotDay != 15 {
			t.Errorf("unexpected period %d-%d day %d", gotYear, gotMonth, gotDay)
		}
		status := parseJSON(t, rec)["status"].(map[string]interface{})
		if status["spent"] != "350" || status["limit"] != "500" {
			t.Errorf("unexpected status %v", status)
		}
		if status["is_over_budget"] != false {
			t.Errorf("expected not over budget, got %v", status["is_over_budget"])
		}
	})

	t.Run("returns 400 on invalid period", func(t *testing.T) {
		reportSvc := &mockReportService{
			budgetStatusFn: func(string, string, int, time.Month, int) (*reconcile.BudgetStatus, error) {
				return nil, apperrors.ErrInvalidPeriod
			},
		}
		r := setupBudgetRouter(NewBudgetHandler(&mockBudgetService{}, reportSvc, &mockAuditService{}))

		rec := doRequest(r, "GET", "/budgets/"+testBudgetID+"/status?year=2025&month=13", "")

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "INVALID_PERIOD")
	})

	t.Run("returns 400 on non-numeric day", func(t *testing.T) {
		r := setupBudgetRouter(NewBudgetHandler(&mockBudgetService{}, &mockReportService{}, &mockAuditService{}))

		rec := doRequest(r, "GET", "/budgets/"+testBudgetID+"/status?day=first", "")

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})
}

func TestBudgetHandler_LimitOverrides(t *testing.T) {
	t.Run("set passes year, month and limit", func(t *testing.T) {
		var (
			gotYear  int
			gotMonth time.Month
			gotLimit decimal.Decimal
		)
		budgetSvc := &mockBudgetService{
			setLimitOverrideFn: func(_, budgetID string, year int, month time.Month, limit decimal.Decimal) (*models.BudgetLimitOverride, error) {
				gotYear, gotMonth, gotLimit = year, month, limit
				return &models.BudgetLimitOverride{BudgetID: budgetID, Year: year, Month: int(month), Limit: limit}, nil
			},
		}
		audit := &mockAuditService{}
		r := setupBudgetRouter(NewBudgetHandler(budgetSvc, &mockReportService{}, audit))

		rec := doRequest(r, "PUT", "/budgets/"+testBudgetID+"/overrides/2025/1", `{"limit":"300"}`)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if gotYear != 2025 || gotMonth != time.January || !gotLimit.Equal(decimal.NewFromInt(300)) {
			t.Errorf("unexpected override %d-%d %s", gotYear, gotMonth, gotLimit)
		}
		if len(audit.actions) != 1 || audit.actions[0] != "SET_LIMIT_OVERRIDE" {
			t.Errorf("expected SET_LIMIT_OVERRIDE audit, got %v", audit.actions)
		}
	})

	t.Run("set returns 400 on non-numeric month", func(t *testing.T) {
		r := setupBudgetRouter(NewBudgetHandler(&mockBudgetService{}, &mockReportService{}, &mockAuditService{}))

		rec := doRequest(r, "PUT", "/budgets/"+testBudgetID+"/overrides/2025/jan", `{"limit":"300"}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("list returns overrides", func(t *testing.T) {
		budgetSvc := &mockBudgetService{
			getLimitOverridesFn: func(string, string) ([]models.BudgetLimitOverride, error) {
				return []models.BudgetLimitOverride{{Year: 2025, Month: 2}, {Year: 2025, Month: 1}}, nil
			},
		}
		r := setupBudgetRouter(NewBudgetHandler(budgetSvc, &mockReportService{}, &mockAuditService{}))

		rec := doRequest(r, "GET", "/budgets/"+testBudgetID+"/overrides", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if overrides := parseJSON(t, rec)["overrides"].([]interface{}); len(overrides) != 2 {
			t.Errorf("expected 2 overrides, got %d", len(overrides))
		}
	})

	t.Run("delete returns 404 when no override", func(t *testing.T) {
		budgetSvc := &mockBudgetService{
			deleteLimitOverrideFn: func(string, string, int, time.Month) error {
				return apperrors.ErrOverrideNotFound
			},
		}
		r := setupBudgetRouter(NewBudgetHandler(budgetSvc, &mockReportService{}, &mockAuditService{}))

		rec := doRequest(r, "DELETE", "/budgets/"+testBudgetID+"/overrides/2025/3", "")

		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "OVERRIDE_NOT_FOUND")
	})
}
