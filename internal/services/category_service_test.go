package services

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	apperrors "mana/internal/errors"
	"mana/internal/models"
	"mana/internal/pagination"
	"mana/internal/testutil"
	"mana/internal/uuid"
)

func TestCreateCategory(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewCategoryService(db)
		user := testutil.CreateTestUser(t, db)

		cat, err := svc.CreateCategory(user.ID, " Groceries ", models.CategoryTypeExpense, "cart", "#FF0000")
		testutil.AssertNoError(t, err)

		if cat.ID == "" {
			t.Fatal("expected category ID")
		}
		if cat.Name != "Groceries" {
			t.Errorf("expected trimmed name Groceries, got %q", cat.Name)
		}
		if cat.Type != models.CategoryTypeExpense {
			t.Errorf("expected type expense, got %s", cat.Type)
		}
	})

	t.Run("duplicate_name", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewCategoryService(db)
		user := testutil.CreateTestUser(t, db)

		_, err := svc.CreateCategory(user.ID, "Food", models.CategoryTypeExpense, "", "")
		testutil.AssertNoError(t, err)

		_, err = svc.CreateCategory(user.ID, "Food", models.CategoryTypeExpense, "", "")
		testutil.AssertAppError(t, err, "DUPLICATE_CATEGORY")
	})

	t.Run("same_name_other_user", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewCategoryService(db)
		a := testutil.CreateTestUser(t, db)
		b := testutil.CreateTestUser(t, db)

		_, err := svc.CreateCategory(a.ID, "Food", models.CategoryTypeExpense, "", "")
		testutil.AssertNoError(t, err)
		_, err = svc.CreateCategory(b.ID, "Food", models.CategoryTypeExpense, "", "")
		testutil.AssertNoError(t, err)
	})

	t.Run("empty_name", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewCategoryService(db)
		user := testutil.CreateTestUser(t, db)

		_, err := svc.CreateCategory(user.ID, "  ", models.CategoryTypeExpense, "", "")
		testutil.AssertAppError(t, err, "INVALID_INPUT")
	})
}

func TestGetUserCategories(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	svc := NewCategoryService(db)
	user := testutil.CreateTestUser(t, db)

	testutil.CreateTestCategory(t, db, user.ID, models.CategoryTypeExpense)
	testutil.CreateTestCategory(t, db, user.ID, models.CategoryTypeExpense)
	testutil.CreateTestCategory(t, db, user.ID, models.CategoryTypeIncome)

	t.Run("all", func(t *testing.T) {
		result, err := svc.GetUserCategories(user.ID, nil, pagination.PageRequest{})
		testutil.AssertNoError(t, err)
		if result.TotalItems != 3 {
			t.Errorf("expected 3 categories, got %d", result.TotalItems)
		}
	})

	t.Run("by_type", func(t *testing.T) {
		income := models.CategoryTypeIncome
		result, err := svc.GetUserCategories(user.ID, &income, pagination.PageRequest{})
		testutil.AssertNoError(t, err)
		if result.TotalItems != 1 {
			t.Errorf("expected 1 income category, got %d", result.TotalItems)
		}
	})

	t.Run("paginated", func(t *testing.T) {
		result, err := svc.GetUserCategories(user.ID, nil, pagination.PageRequest{Page: 2, PageSize: 2})
		testutil.AssertNoError(t, err)
		if len(result.Data) != 1 || result.TotalPages != 2 {
			t.Errorf("expected 1 item on page 2 of 2, got %d items, %d pages", len(result.Data), result.TotalPages)
		}
	})
}

func TestFindCategoryByName(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	svc := NewCategoryService(db)
	user := testutil.CreateTestUser(t, db)
	testutil.CreateTestCategoryNamed(t, db, user.ID, "Groceries", models.CategoryTypeExpense)
	testutil.CreateTestCategoryNamed(t, db, user.ID, "Transport", models.CategoryTypeExpense)

	t.Run("exact", func(t *testing.T) {
		cat, err := svc.FindCategoryByName(user.ID, "Groceries")
		testutil.AssertNoError(t, err)
		if cat.Name != "Groceries" {
			t.Errorf("got %s", cat.Name)
		}
	})

	t.Run("case_sensitive_with_suggestion", func(t *testing.T) {
		_, err := svc.FindCategoryByName(user.ID, "groceries")
		testutil.AssertAppError(t, err, "CATEGORY_NOT_FOUND")
		if !strings.Contains(err.Error(), `did you mean "Groceries"`) {
			t.Errorf("expected suggestion, got %q", err.Error())
		}
	})

	t.Run("typo_suggestion", func(t *testing.T) {
		_, err := svc.FindCategoryByName(user.ID, "Trasnport")
		testutil.AssertAppError(t, err, "CATEGORY_NOT_FOUND")
		if !strings.Contains(err.Error(), `"Transport"`) {
			t.Errorf("expected Transport suggestion, got %q", err.Error())
		}
	})

	t.Run("no_close_match", func(t *testing.T) {
		_, err := svc.FindCategoryByName(user.ID, "Healthcare")
		testutil.AssertAppError(t, err, "CATEGORY_NOT_FOUND")
		if strings.Contains(err.Error(), "did you mean") {
			t.Errorf("did not expect suggestion, got %q", err.Error())
		}
	})
}

func TestUpdateCategory(t *testing.T) {
	t.Run("rename_cascades", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewCategoryService(db)
		user := testutil.CreateTestUser(t, db)
		cat := testutil.CreateTestCategoryNamed(t, db, user.ID, "Food", models.CategoryTypeExpense)
		budget := testutil.CreateTestBudget(t, db, user.ID, cat, decimal.NewFromInt(500))
		wallet := testutil.CreateTestWallet(t, db, user.ID, decimal.Zero)
		tx := testutil.CreateTestTransaction(t, db, user.ID, wallet.ID, models.TransactionTypeExpense, decimal.NewFromInt(10), testutil.Date(2025, time.January, 3), "Food")

		name := "Dining"
		updated, err := svc.UpdateCategory(user.ID, cat.ID, CategoryUpdate{Name: &name})
		testutil.AssertNoError(t, err)
		if updated.Name != "Dining" {
			t.Errorf("expected Dining, got %s", updated.Name)
		}

		var b models.Budget
		testutil.AssertNoError(t, db.First(&b, "id = ?", budget.ID).Error)
		if b.CategoryName != "Dining" {
			t.Errorf("budget category name not renamed: %s", b.CategoryName)
		}
		var reloaded models.Transaction
		testutil.AssertNoError(t, db.First(&reloaded, "id = ?", tx.ID).Error)
		if reloaded.Category != "Dining" {
			t.Errorf("transaction category not renamed: %s", reloaded.Category)
		}
	})

	t.Run("rename_to_existing", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewCategoryService(db)
		user := testutil.CreateTestUser(t, db)
		cat := testutil.CreateTestCategoryNamed(t, db, user.ID, "Food", models.CategoryTypeExpense)
		testutil.CreateTestCategoryNamed(t, db, user.ID, "Rent", models.CategoryTypeExpense)

		name := "Rent"
		_, err := svc.UpdateCategory(user.ID, cat.ID, CategoryUpdate{Name: &name})
		testutil.AssertAppError(t, err, "DUPLICATE_CATEGORY")
	})

	t.Run("not_found", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewCategoryService(db)
		user := testutil.CreateTestUser(t, db)

		color := "#000000"
		_, err := svc.UpdateCategory(user.ID, uuid.New(), CategoryUpdate{Color: &color})
		testutil.AssertAppError(t, err, "CATEGORY_NOT_FOUND")
	})
}

func TestDeleteCategory(t *testing.T) {
	t.Run("unused", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewCategoryService(db)
		user := testutil.CreateTestUser(t, db)
		cat := testutil.CreateTestCategory(t, db, user.ID, models.CategoryTypeExpense)

		testutil.AssertNoError(t, svc.DeleteCategory(user.ID, cat.ID))

		_, err := svc.GetCategoryByID(user.ID, cat.ID)
		testutil.AssertAppError(t, err, "CATEGORY_NOT_FOUND")
	})

	t.Run("name_reusable_after_delete", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewCategoryService(db)
		user := testutil.CreateTestUser(t, db)

		cat, err := svc.CreateCategory(user.ID, "Lazer", models.CategoryTypeExpense, "", "")
		testutil.AssertNoError(t, err)
		testutil.AssertNoError(t, svc.DeleteCategory(user.ID, cat.ID))

		again, err := svc.CreateCategory(user.ID, "Lazer", models.CategoryTypeExpense, "", "")
		testutil.AssertNoError(t, err)
		testutil.AssertNoError(t, svc.DeleteCategory(user.ID, again.ID))

		other, err := svc.CreateCategory(user.ID, "Viagem", models.CategoryTypeExpense, "", "")
		testutil.AssertNoError(t, err)
		name := "Lazer"
		renamed, err := svc.UpdateCategory(user.ID, other.ID, CategoryUpdate{Name: &name})
		testutil.AssertNoError(t, err)
		if renamed.Name != "Lazer" {
			t.Errorf("expected renamed category, got %q", renamed.Name)
		}
	})

	t.Run("in_use_by_budget", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewCategoryService(db)
		user := testutil.CreateTestUser(t, db)
		cat := testutil.CreateTestCategory(t, db, user.ID, models.CategoryTypeExpense)
		testutil.CreateTestBudget(t, db, user.ID, cat, decimal.NewFromInt(100))

		err := svc.DeleteCategory(user.ID, cat.ID)
		testutil.AssertAppError(t, err, apperrors.ErrCategoryInUse.Code)
	})

	t.Run("other_user", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewCategoryService(db)
		owner := testutil.CreateTestUser(t, db)
		other := testutil.CreateTestUser(t, db)
		cat := testutil.CreateTestCategory(t, db, owner.ID, models.CategoryTypeExpense)

		err := svc.DeleteCategory(other.ID, cat.ID)
		testutil.AssertAppError(t, err, "CATEGORY_NOT_FOUND")
	})
}

func TestClosestName(t *testing.T) {
	candidates := []string{"Groceries", "Rent", "Transport"}
	tests := []struct {
		in, want string
	}{
		{"Grocerys", "Groceries"},
		{"rent", "Rent"},
		{"Zoo", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := closestName(tt.in, candidates); got != tt.want {
				t.Errorf("closestName(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
	if got := closestName("x", nil); got != "" {
		t.Errorf("expected no suggestion without candidates, got %q", got)
	}
}
