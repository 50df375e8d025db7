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
	"mana/internal/services"
)

const testGoalID = "c273d495-d281-44e0-b576-8192a3b4c5d6"

// --- mock goal service ---

type mockGoalService struct {
	createGoalFn   func(userID, name string, target decimal.Decimal, deadline *time.Time) (*models.Goal, error)
	getUserGoalsFn func(userID string, page pagination.PageRequest) (*pagination.PageResponse[models.Goal], error)
	getGoalByIDFn  func(userID, goalID string) (*models.Goal, error)
	updateGoalFn   func(userID, goalID string, fields services.GoalUpdate) (*models.Goal, error)
	deleteGoalFn   func(userID, goalID string) error
	contributeFn   func(userID, goalID string, amount decimal.Decimal) (*models.Goal, error)
}

func (m *mockGoalService) CreateGoal(userID, name string, target decimal.Decimal, deadline *time.Time) (*models.Goal, error) {
	if m.createGoalFn != nil {
		return m.createGoalFn(userID, name, target, deadline)
	}
	return &models.Goal{}, nil
}

func (m *mockGoalService) GetUserGoals(userID string, page pagination.PageRequest) (*pagination.PageResponse[models.Goal], error) {
	if m.getUserGoalsFn != nil {
		return m.getUserGoalsFn(userID, page)
	}
	resp := pagination.NewPageResponse([]models.Goal{}, 1, 20, 0)
	return &resp, nil
}

func (m *mockGoalService) GetGoalByID(userID, goalID string) (*models.Goal, error) {
	if m.getGoalByIDFn != nil {
		return m.getGoalByIDFn(userID, goalID)
	}
	return &models.Goal{}, nil
}

func (m *mockGoalService) UpdateGoal(userID, goalID string, fields services.GoalUpdate) (*models.Goal, error) {
	if m.updateGoalFn != nil {
		return m.updateGoalFn(userID, goalID, fields)
	}
	return &models.Goal{}, nil
}

func (m *mockGoalService) DeleteGoal(userID, goalID string) error {
	if m.deleteGoalFn != nil {
		return m.deleteGoalFn(userID, goalID)
	}
	return nil
}

func (m *mockGoalService) Contribute(userID, goalID string, amount decimal.Decimal) (*models.Goal, error) {
	if m.contributeFn != nil {
		return m.contributeFn(userID, goalID, amount)
	}
	return &models.Goal{}, nil
}

var _ services.GoalServicer = (*mockGoalService)(nil)

func setupGoalRouter(handler *GoalHandler) *gin.Engine {
	r := gin.New()
	auth := r.Group("", injectUserID(testUserID))
	auth.POST("/goals", handler.CreateGoal)
	auth.GET("/goals", handler.GetUserGoals)
	auth.GET("/goals/:id", handler.GetGoalByID)
	auth.PUT("/goals/:id", handler.UpdateGoal)
	auth.DELETE("/goals/:id", handler.DeleteGoal)
	auth.POST("/goals/:id/contributions", handler.Contribute)
	return r
}

func TestGoalHandler_CreateGoal(t *testing.T) {
	t.Run("returns 201 with a deadline", func(t *testing.T) {
		var gotDeadline *time.Time
		goalSvc := &mockGoalService{
			createGoalFn: func(_, name string, target decimal.Decimal, deadline *time.Time) (*models.Goal, error) {
				gotDeadline = deadline
				return &models.Goal{Base: models.Base{ID: testGoalID}, Name: name, TargetAmount: target, Deadline: deadline}, nil
			},
		}
		r := setupGoalRouter(NewGoalHandler(goalSvc, &mockAuditService{}))

		rec := doRequest(r, "POST", "/goals", `{"name":"Trip","target_amount":"3000","deadline":"2025-12-20"}`)

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		want := time.Date(2025, time.December, 20, 0, 0, 0, 0, time.UTC)
		if gotDeadline == nil || !gotDeadline.Equal(want) {
			t.Errorf("expected deadline %v, got %v", want, gotDeadline)
		}
	})

	t.Run("passes nil deadline when omitted", func(t *testing.T) {
		called := false
		goalSvc := &mockGoalService{
			createGoalFn: func(_, _ string, _ decimal.Decimal, deadline *time.Time) (*models.Goal, error) {
				called = true
				if deadline != nil {
					t.Errorf("expected nil deadline, got %v", deadline)
				}
				return &models.Goal{}, nil
			},
		}
		r := setupGoalRouter(NewGoalHandler(goalSvc, &mockAuditService{}))

		rec := doRequest(r, "POST", "/goals", `{"name":"Trip","target_amount":"3000"}`)

		if rec.Code != http.StatusCreated || !called {
			t.Fatalf("expected 201, got %d", rec.Code)
		}
	})

	t.Run("returns 400 on bad deadline", func(t *testing.T) {
		r := setupGoalRouter(NewGoalHandler(&mockGoalService{}, &mockAuditService{}))

		rec := doRequest(r, "POST", "/goals", `{"name":"Trip","target_amount":"3000","deadline":"soon"}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "INVALID_DATE")
	})
}

func TestGoalHandler_GetGoalByID(t *testing.T) {
	t.Run("returns progress with the goal", func(t *testing.T) {
		goalSvc := &mockGoalService{
			getGoalByIDFn: func(_, id string) (*models.Goal, error) {
				return &models.Goal{
					Base:          models.Base{ID: id},
					TargetAmount:  decimal.NewFromInt(1000),
					CurrentAmount: decimal.NewFromInt(250),
				}, nil
			},
		}
		r := setupGoalRouter(NewGoalHandler(goalSvc, &mockAuditService{}))

		rec := doRequest(r, "GET", "/goals/"+testGoalID, "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if got := parseJSON(t, rec)["progress"]; got != "0.25" {
			t.Errorf("expected progress 0.25, got %v", got)
		}
	})

	t.Run("returns 404 when not found", func(t *testing.T) {
		goalSvc := &mockGoalService{
			getGoalByIDFn: func(string, string) (*models.Goal, error) { return nil, apperrors.ErrGoalNotFound },
		}
		r := setupGoalRouter(NewGoalHandler(goalSvc, &mockAuditService{}))

		rec := doRequest(r, "GET", "/goals/"+testGoalID, "")

		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "GOAL_NOT_FOUND")
	})
}

func TestGoalHandler_UpdateGoal(t *testing.T) {
	t.Run("parses a new deadline", func(t *testing.T) {
		var got services.GoalUpdate
		goalSvc := &mockGoalService{
			updateGoalFn: func(_, id string, fields services.GoalUpdate) (*models.Goal, error) {
				got = fields
				return &models.Goal{Base: models.Base{ID: id}}, nil
			},
		}
		r := setupGoalRouter(NewGoalHandler(goalSvc, &mockAuditService{}))

		rec := doRequest(r, "PUT", "/goals/"+testGoalID, `{"deadline":"2026-06-30"}`)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if got.Deadline == nil || got.Deadline.Month() != time.June {
			t.Errorf("expected June deadline, got %v", got.Deadline)
		}
		if got.Name != nil || got.TargetAmount != nil {
			t.Error("expected other fields to be untouched")
		}
	})
}

func TestGoalHandler_DeleteGoal(t *testing.T) {
	t.Run("returns 200 on success", func(t *testing.T) {
		r := setupGoalRouter(NewGoalHandler(&mockGoalService{}, &mockAuditService{}))

		rec := doRequest(r, "DELETE", "/goals/"+testGoalID, "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
	})
}

func TestGoalHandler_Contribute(t *testing.T) {
	t.Run("passes withdrawals through", func(t *testing.T) {
		var got decimal.Decimal
		goalSvc := &mockGoalService{
			contributeFn: func(_, id string, amount decimal.Decimal) (*models.Goal, error) {
				got = amount
				return &models.Goal{Base: models.Base{ID: id}, TargetAmount: decimal.NewFromInt(100), CurrentAmount: decimal.NewFromInt(40)}, nil
			},
		}
		r := setupGoalRouter(NewGoalHandler(goalSvc, &mockAuditService{}))

		rec := doRequest(r, "POST", "/goals/"+testGoalID+"/contributions", `{"amount":"-10"}`)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if !got.Equal(decimal.NewFromInt(-10)) {
			t.Errorf("expected -10, got %s", got)
		}
	})

	t.Run("returns 400 on zero amount", func(t *testing.T) {
		goalSvc := &mockGoalService{
			contributeFn: func(string, string, decimal.Decimal) (*models.Goal, error) {
				return nil, apperrors.ErrInvalidAmount
			},
		}
		r := setupGoalRouter(NewGoalHandler(goalSvc, &mockAuditService{}))

		rec := doRequest(r, "POST", "/goals/"+testGoalID+"/contributions", `{"amount":"0"}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "INVALID_AMOUNT")
	})
}
