package services

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"mana/internal/events"
	"mana/internal/models"
	"mana/internal/pagination"
	"mana/internal/testutil"
	"mana/internal/uuid"
)

type txFixture struct {
	db       *gorm.DB
	svc      TransactionServicer
	wallets  WalletServicer
	cards    CardServicer
	recorder *events.Recorder
	user     *models.User
}

func newTxFixture(t *testing.T) *txFixture {
	t.Helper()
	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.TeardownTestDB(t, db) })

	wallets := NewWalletService(db)
	cards := NewCardService(db)
	recorder := &events.Recorder{}
	return &txFixture{
		db:       db,
		svc:      NewTransactionService(db, wallets, cards, recorder),
		wallets:  wallets,
		cards:    cards,
		recorder: recorder,
		user:     testutil.CreateTestUser(t, db),
	}
}

func (f *txFixture) walletBalance(t *testing.T, id string) decimal.Decimal {
	t.Helper()
	w, err := f.wallets.GetWalletByID(f.user.ID, id)
	testutil.AssertNoError(t, err)
	return w.Balance
}

func (f *txFixture) card(t *testing.T, id string) *models.Card {
	t.Helper()
	c, err := f.cards.GetCardByID(f.user.ID, id)
	testutil.AssertNoError(t, err)
	return c
}

func TestCreateTransaction(t *testing.T) {
	ctx := context.Background()

	t.Run("income_increases_wallet_balance", func(t *testing.T) {
		f := newTxFixture(t)
		wallet := testutil.CreateTestWallet(t, f.db, f.user.ID, decimal.Zero)

		tx, err := f.svc.CreateTransaction(ctx, f.user.ID, TransactionInput{
			Description: "Salary",
			Amount:      decimal.NewFromInt(5000),
			Type:        models.TransactionTypeIncome,
			Date:        testutil.Date(2025, time.January, 5),
			AccountRef:  wallet.ID,
		})
		testutil.AssertNoError(t, err)

		if tx.ID == "" {
			t.Fatal("expected transaction ID")
		}
		if tx.Status != models.TransactionStatusPaid {
			t.Errorf("expected default status paid, got %s", tx.Status)
		}
		testutil.AssertMoney(t, f.walletBalance(t, wallet.ID), "5000")
		if len(f.recorder.Events) != 1 || f.recorder.Events[0].TransactionID != tx.ID {
			t.Errorf("expected one event for %s, got %+v", tx.ID, f.recorder.Events)
		}
	})

	t.Run("signed_amount_without_type_is_expense", func(t *testing.T) {
		f := newTxFixture(t)
		wallet := testutil.CreateTestWallet(t, f.db, f.user.ID, decimal.NewFromInt(100))

		tx, err := f.svc.CreateTransaction(ctx, f.user.ID, TransactionInput{
			Amount:     testutil.Money(t, "-30.50"),
			Date:       testutil.Date(2025, time.January, 5),
			AccountRef: wallet.ID,
		})
		testutil.AssertNoError(t, err)

		if tx.Type != models.TransactionTypeExpense {
			t.Errorf("expected expense, got %s", tx.Type)
		}
		testutil.AssertMoney(t, tx.Amount, "30.50")
		testutil.AssertMoney(t, f.walletBalance(t, wallet.ID), "69.50")
	})

	t.Run("credit_charge_raises_card_used", func(t *testing.T) {
		f := newTxFixture(t)
		card := testutil.CreateTestCard(t, f.db, f.user.ID, 10)

		_, err := f.svc.CreateTransaction(ctx, f.user.ID, TransactionInput{
			Amount:        decimal.NewFromInt(350),
			Type:          models.TransactionTypeExpense,
			Date:          testutil.Date(2025, time.January, 14),
			Category:      "Food",
			AccountRef:    card.ID,
			PaymentMethod: models.PaymentMethodCredit,
		})
		testutil.AssertNoError(t, err)

		reloaded := f.card(t, card.ID)
		testutil.AssertMoney(t, reloaded.Used, "350")
		testutil.AssertMoney(t, reloaded.Available(), "4650")
	})

	t.Run("legacy_debit_reference", func(t *testing.T) {
		f := newTxFixture(t)
		card := testutil.CreateTestCard(t, f.db, f.user.ID, 10)

		tx, err := f.svc.CreateTransaction(ctx, f.user.ID, TransactionInput{
			Amount:     decimal.NewFromInt(20),
			Type:       models.TransactionTypeExpense,
			Date:       testutil.Date(2025, time.January, 14),
			AccountRef: card.ID + "-debit",
		})
		testutil.AssertNoError(t, err)

		if tx.AccountID != card.ID || tx.PaymentMethod != models.PaymentMethodDebit {
			t.Errorf("expected %s/debit, got %s/%s", card.ID, tx.AccountID, tx.PaymentMethod)
		}
		reloaded := f.card(t, card.ID)
		testutil.AssertMoney(t, reloaded.Used, "0")
		testutil.AssertMoney(t, reloaded.Balance, "-20")
	})

	t.Run("method_not_enabled_on_card", func(t *testing.T) {
		f := newTxFixture(t)
		card, err := f.cards.CreateCard(f.user.ID, CardInput{Name: "Credit only", HasCredit: true, DueDay: 5})
		testutil.AssertNoError(t, err)

		_, err = f.svc.CreateTransaction(ctx, f.user.ID, TransactionInput{
			Amount:        decimal.NewFromInt(20),
			Type:          models.TransactionTypeExpense,
			AccountRef:    card.ID,
			PaymentMethod: models.PaymentMethodDebit,
		})
		testutil.AssertAppError(t, err, "INVALID_PAYMENT_METHOD")
	})

	t.Run("pending_has_no_balance_effect", func(t *testing.T) {
		f := newTxFixture(t)
		wallet := testutil.CreateTestWallet(t, f.db, f.user.ID, decimal.NewFromInt(100))

		_, err := f.svc.CreateTransaction(ctx, f.user.ID, TransactionInput{
			Amount:     decimal.NewFromInt(40),
			Type:       models.TransactionTypeExpense,
			AccountRef: wallet.ID,
			Status:     models.TransactionStatusPending,
		})
		testutil.AssertNoError(t, err)
		testutil.AssertMoney(t, f.walletBalance(t, wallet.ID), "100")
	})

	t.Run("zero_amount", func(t *testing.T) {
		f := newTxFixture(t)
		_, err := f.svc.CreateTransaction(ctx, f.user.ID, TransactionInput{Amount: decimal.Zero, Type: models.TransactionTypeIncome})
		testutil.AssertAppError(t, err, "INVALID_AMOUNT")
	})

	t.Run("unknown_type", func(t *testing.T) {
		f := newTxFixture(t)
		_, err := f.svc.CreateTransaction(ctx, f.user.ID, TransactionInput{Amount: decimal.NewFromInt(1), Type: "transfer"})
		testutil.AssertAppError(t, err, "INVALID_TRANSACTION_TYPE")
	})

	t.Run("unknown_account", func(t *testing.T) {
		f := newTxFixture(t)
		_, err := f.svc.CreateTransaction(ctx, f.user.ID, TransactionInput{
			Amount:     decimal.NewFromInt(1),
			Type:       models.TransactionTypeIncome,
			AccountRef: uuid.New(),
		})
		testutil.AssertAppError(t, err, "ACCOUNT_NOT_FOUND")
	})

	t.Run("other_users_wallet", func(t *testing.T) {
		f := newTxFixture(t)
		other := testutil.CreateTestUser(t, f.db)
		wallet := testutil.CreateTestWallet(t, f.db, other.ID, decimal.Zero)

		_, err := f.svc.CreateTransaction(ctx, f.user.ID, TransactionInput{
			Amount:     decimal.NewFromInt(1),
			Type:       models.TransactionTypeIncome,
			AccountRef: wallet.ID,
		})
		testutil.AssertAppError(t, err, "ACCOUNT_NOT_FOUND")
	})

	t.Run("without_account", func(t *testing.T) {
		f := newTxFixture(t)
		tx, err := f.svc.CreateTransaction(ctx, f.user.ID, TransactionInput{
			Amount: decimal.NewFromInt(12),
			Type:   models.TransactionTypeExpense,
		})
		testutil.AssertNoError(t, err)
		if tx.AccountID != "" {
			t.Errorf("expected no account, got %s", tx.AccountID)
		}
	})
}

func TestCreateInstallmentPurchase(t *testing.T) {
	ctx := context.Background()

	t.Run("splits_with_remainder_on_first", func(t *testing.T) {
		f := newTxFixture(t)
		card := testutil.CreateTestCard(t, f.db, f.user.ID, 10)

		rows, err := f.svc.CreateInstallmentPurchase(ctx, f.user.ID, TransactionInput{
			Description:   "Laptop",
			Amount:        decimal.NewFromInt(100),
			Date:          testutil.Date(2025, time.January, 31),
			Category:      "Electronics",
			AccountRef:    card.ID,
			PaymentMethod: models.PaymentMethodCredit,
		}, 3)
		testutil.AssertNoError(t, err)

		if len(rows) != 3 {
			t.Fatalf("expected 3 installments, got %d", len(rows))
		}
		testutil.AssertMoney(t, rows[0].Amount, "33.34")
		testutil.AssertMoney(t, rows[1].Amount, "33.33")
		testutil.AssertMoney(t, rows[2].Amount, "33.33")

		wantDates := []time.Time{
			testutil.Date(2025, time.January, 31),
			testutil.Date(2025, time.February, 28),
			testutil.Date(2025, time.March, 31),
		}
		for i, row := range rows {
			if !row.Date.Equal(wantDates[i]) {
				t.Errorf("installment %d: expected %s, got %s", i+1, wantDates[i], row.Date)
			}
			if row.InstallmentNumber != i+1 || row.InstallmentTotal != 3 {
				t.Errorf("installment %d: got %d/%d", i+1, row.InstallmentNumber, row.InstallmentTotal)
			}
			if row.InstallmentGroup == nil || *row.InstallmentGroup != *rows[0].InstallmentGroup {
				t.Errorf("installment %d: group mismatch", i+1)
			}
		}
		if rows[1].Description != "Laptop (2/3)" {
			t.Errorf("unexpected description %q", rows[1].Description)
		}

		testutil.AssertMoney(t, f.card(t, card.ID).Used, "100")
		if len(f.recorder.Events) != 3 {
			t.Errorf("expected 3 events, got %d", len(f.recorder.Events))
		}
	})

	t.Run("rejects_income", func(t *testing.T) {
		f := newTxFixture(t)
		_, err := f.svc.CreateInstallmentPurchase(ctx, f.user.ID, TransactionInput{
			Amount: decimal.NewFromInt(100),
			Type:   models.TransactionTypeIncome,
		}, 2)
		testutil.AssertAppError(t, err, "INVALID_TRANSACTION_TYPE")
	})

	t.Run("rejects_amount_below_one_cent_per_installment", func(t *testing.T) {
		f := newTxFixture(t)
		card := testutil.CreateTestCard(t, f.db, f.user.ID, 10)
		_, err := f.svc.CreateInstallmentPurchase(ctx, f.user.ID, TransactionInput{
			Description:   "Chiclete",
			Amount:        decimal.RequireFromString("0.02"),
			Date:          testutil.Date(2025, time.January, 10),
			AccountRef:    card.ID,
			PaymentMethod: models.PaymentMethodCredit,
		}, 3)
		testutil.AssertAppError(t, err, "INVALID_AMOUNT")

		var count int64
		f.db.Model(&models.Transaction{}).Where("user_id = ?", f.user.ID).Count(&count)
		if count != 0 {
			t.Errorf("expected no stored installments, got %d", count)
		}
		testutil.AssertMoney(t, f.card(t, card.ID).Used, "0")
	})

	t.Run("one_cent_per_installment", func(t *testing.T) {
		f := newTxFixture(t)
		card := testutil.CreateTestCard(t, f.db, f.user.ID, 10)
		rows, err := f.svc.CreateInstallmentPurchase(ctx, f.user.ID, TransactionInput{
			Amount:        decimal.RequireFromString("0.03"),
			Date:          testutil.Date(2025, time.January, 10),
			AccountRef:    card.ID,
			PaymentMethod: models.PaymentMethodCredit,
		}, 3)
		testutil.AssertNoError(t, err)
		for i, row := range rows {
			testutil.AssertMoney(t, row.Amount, "0.01")
			if !row.Amount.IsPositive() {
				t.Errorf("installment %d is not positive", i+1)
			}
		}
	})

	t.Run("rejects_bad_count", func(t *testing.T) {
		f := newTxFixture(t)
		_, err := f.svc.CreateInstallmentPurchase(ctx, f.user.ID, TransactionInput{Amount: decimal.NewFromInt(100)}, 0)
		testutil.AssertAppError(t, err, "INVALID_INPUT")
	})
}

func TestSplitInstallments(t *testing.T) {
	tests := []struct {
		name  string
		total string
		n     int
		want  []string
	}{
		{"even", "90", 3, []string{"30", "30", "30"}},
		{"remainder", "10", 3, []string{"3.34", "3.33", "3.33"}},
		{"single", "12.34", 1, []string{"12.34"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SplitInstallments(decimal.RequireFromString(tt.total), tt.n)
			sum := decimal.Zero
			for i, w := range tt.want {
				if !got[i].Equal(decimal.RequireFromString(w)) {
					t.Errorf("slice %d: expected %s, got %s", i, w, got[i])
				}
				sum = sum.Add(got[i])
			}
			if !sum.Equal(decimal.RequireFromString(tt.total)) {
				t.Errorf("slices sum to %s, want %s", sum, tt.total)
			}
		})
	}
}

func TestAddMonthsClamped(t *testing.T) {
	got := AddMonthsClamped(testutil.Date(2024, time.January, 31), 1)
	if !got.Equal(testutil.Date(2024, time.February, 29)) {
		t.Errorf("expected 2024-02-29, got %s", got)
	}
	got = AddMonthsClamped(testutil.Date(2024, time.November, 15), 3)
	if !got.Equal(testutil.Date(2025, time.February, 15)) {
		t.Errorf("expected 2025-02-15, got %s", got)
	}
}

func TestCreateTransfer(t *testing.T) {
	ctx := context.Background()

	t.Run("moves_balance", func(t *testing.T) {
		f := newTxFixture(t)
		from := testutil.CreateTestWallet(t, f.db, f.user.ID, decimal.NewFromInt(100))
		to := testutil.CreateTestWallet(t, f.db, f.user.ID, decimal.NewFromInt(10))

		legs, err := f.svc.CreateTransfer(ctx, f.user.ID, TransferInput{
			FromWalletID: from.ID,
			ToWalletID:   to.ID,
			Amount:       decimal.NewFromInt(60),
			Date:         testutil.Date(2025, time.March, 1),
		})
		testutil.AssertNoError(t, err)

		if len(legs) != 2 || *legs[0].TransferGroup != *legs[1].TransferGroup {
			t.Fatalf("expected two linked legs, got %+v", legs)
		}
		testutil.AssertMoney(t, f.walletBalance(t, from.ID), "40")
		testutil.AssertMoney(t, f.walletBalance(t, to.ID), "70")
	})

	t.Run("insufficient_balance", func(t *testing.T) {
		f := newTxFixture(t)
		from := testutil.CreateTestWallet(t, f.db, f.user.ID, decimal.NewFromInt(10))
		to := testutil.CreateTestWallet(t, f.db, f.user.ID, decimal.Zero)

		_, err := f.svc.CreateTransfer(ctx, f.user.ID, TransferInput{FromWalletID: from.ID, ToWalletID: to.ID, Amount: decimal.NewFromInt(11)})
		testutil.AssertAppError(t, err, "INSUFFICIENT_BALANCE")
	})

	t.Run("same_wallet", func(t *testing.T) {
		f := newTxFixture(t)
		w := testutil.CreateTestWallet(t, f.db, f.user.ID, decimal.NewFromInt(10))

		_, err := f.svc.CreateTransfer(ctx, f.user.ID, TransferInput{FromWalletID: w.ID, ToWalletID: w.ID, Amount: decimal.NewFromInt(1)})
		testutil.AssertAppError(t, err, "SAME_WALLET_TRANSFER")
	})

	t.Run("delete_removes_both_legs", func(t *testing.T) {
		f := newTxFixture(t)
		from := testutil.CreateTestWallet(t, f.db, f.user.ID, decimal.NewFromInt(100))
		to := testutil.CreateTestWallet(t, f.db, f.user.ID, decimal.Zero)

		legs, err := f.svc.CreateTransfer(ctx, f.user.ID, TransferInput{FromWalletID: from.ID, ToWalletID: to.ID, Amount: decimal.NewFromInt(25)})
		testutil.AssertNoError(t, err)

		testutil.AssertNoError(t, f.svc.DeleteTransaction(ctx, f.user.ID, legs[1].ID))

		testutil.AssertMoney(t, f.walletBalance(t, from.ID), "100")
		testutil.AssertMoney(t, f.walletBalance(t, to.ID), "0")
		_, err = f.svc.GetTransactionByID(f.user.ID, legs[0].ID)
		testutil.AssertAppError(t, err, "TRANSACTION_NOT_FOUND")
	})
}

func TestGetUserTransactions(t *testing.T) {
	f := newTxFixture(t)
	wallet := testutil.CreateTestWallet(t, f.db, f.user.ID, decimal.Zero)
	testutil.CreateTestTransaction(t, f.db, f.user.ID, wallet.ID, models.TransactionTypeExpense, decimal.NewFromInt(10), testutil.Date(2025, time.January, 3), "Food")
	testutil.CreateTestTransaction(t, f.db, f.user.ID, wallet.ID, models.TransactionTypeExpense, decimal.NewFromInt(200), testutil.Date(2025, time.January, 20), "Rent")
	testutil.CreateTestTransaction(t, f.db, f.user.ID, wallet.ID, models.TransactionTypeIncome, decimal.NewFromInt(1000), testutil.Date(2025, time.February, 1), "Salary")
	other := testutil.CreateTestUser(t, f.db)
	testutil.CreateTestTransaction(t, f.db, other.ID, "", models.TransactionTypeExpense, decimal.NewFromInt(5), testutil.Date(2025, time.January, 3), "Food")

	t.Run("all_newest_first", func(t *testing.T) {
		result, err := f.svc.GetUserTransactions(f.user.ID, pagination.PageRequest{}, TransactionFilter{})
		testutil.AssertNoError(t, err)
		if result.TotalItems != 3 {
			t.Fatalf("expected 3 transactions, got %d", result.TotalItems)
		}
		if result.Data[0].Category != "Salary" {
			t.Errorf("expected newest first, got %s", result.Data[0].Category)
		}
	})

	t.Run("date_range_and_type", func(t *testing.T) {
		from := testutil.Date(2025, time.January, 1)
		to := testutil.Date(2025, time.January, 31)
		expense := models.TransactionTypeExpense
		result, err := f.svc.GetUserTransactions(f.user.ID, pagination.PageRequest{}, TransactionFilter{FromDate: &from, ToDate: &to, Type: &expense})
		testutil.AssertNoError(t, err)
		if result.TotalItems != 2 {
			t.Errorf("expected 2 transactions, got %d", result.TotalItems)
		}
	})

	t.Run("category_and_min_amount", func(t *testing.T) {
		category := "Rent"
		minAmount := decimal.NewFromInt(100)
		result, err := f.svc.GetUserTransactions(f.user.ID, pagination.PageRequest{}, TransactionFilter{Category: &category, MinAmount: &minAmount})
		testutil.AssertNoError(t, err)
		if result.TotalItems != 1 {
			t.Errorf("expected 1 transaction, got %d", result.TotalItems)
		}
	})
}

func TestUpdateTransaction(t *testing.T) {
	ctx := context.Background()

	t.Run("moves_between_wallet_and_card", func(t *testing.T) {
		f := newTxFixture(t)
		wallet := testutil.CreateTestWallet(t, f.db, f.user.ID, decimal.NewFromInt(100))
		card := testutil.CreateTestCard(t, f.db, f.user.ID, 10)

		tx, err := f.svc.CreateTransaction(ctx, f.user.ID, TransactionInput{
			Amount:     decimal.NewFromInt(30),
			Type:       models.TransactionTypeExpense,
			Date:       testutil.Date(2025, time.January, 3),
			AccountRef: wallet.ID,
		})
		testutil.AssertNoError(t, err)

		updated, err := f.svc.UpdateTransaction(ctx, f.user.ID, tx.ID, TransactionInput{
			Amount:        decimal.NewFromInt(45),
			Type:          models.TransactionTypeExpense,
			Date:          testutil.Date(2025, time.February, 3),
			Category:      "Food",
			AccountRef:    card.ID,
			PaymentMethod: models.PaymentMethodCredit,
		})
		testutil.AssertNoError(t, err)

		if updated.ID != tx.ID || updated.Category != "Food" {
			t.Errorf("unexpected update result %+v", updated)
		}
		testutil.AssertMoney(t, f.walletBalance(t, wallet.ID), "100")
		testutil.AssertMoney(t, f.card(t, card.ID).Used, "45")
		// create, plus the new and old months of the edit
		if len(f.recorder.Events) != 3 {
			t.Errorf("expected 3 events, got %d", len(f.recorder.Events))
		}
	})

	t.Run("not_found", func(t *testing.T) {
		f := newTxFixture(t)
		_, err := f.svc.UpdateTransaction(ctx, f.user.ID, uuid.New(), TransactionInput{Amount: decimal.NewFromInt(1)})
		testutil.AssertAppError(t, err, "TRANSACTION_NOT_FOUND")
	})
}

func TestDeleteTransaction(t *testing.T) {
	ctx := context.Background()

	t.Run("reverses_card_charge", func(t *testing.T) {
		f := newTxFixture(t)
		card := testutil.CreateTestCard(t, f.db, f.user.ID, 10)

		tx, err := f.svc.CreateTransaction(ctx, f.user.ID, TransactionInput{
			Amount:     decimal.NewFromInt(80),
			Type:       models.TransactionTypeExpense,
			AccountRef: card.ID,
		})
		testutil.AssertNoError(t, err)
		testutil.AssertNoError(t, f.svc.DeleteTransaction(ctx, f.user.ID, tx.ID))

		testutil.AssertMoney(t, f.card(t, card.ID).Used, "0")
		_, err = f.svc.GetTransactionByID(f.user.ID, tx.ID)
		testutil.AssertAppError(t, err, "TRANSACTION_NOT_FOUND")
	})

	t.Run("other_user", func(t *testing.T) {
		f := newTxFixture(t)
		other := testutil.CreateTestUser(t, f.db)
		tx := testutil.CreateTestTransaction(t, f.db, other.ID, "", models.TransactionTypeExpense, decimal.NewFromInt(1), testutil.Date(2025, time.January, 1), "")

		err := f.svc.DeleteTransaction(ctx, f.user.ID, tx.ID)
		testutil.AssertAppError(t, err, "TRANSACTION_NOT_FOUND")
	})
}

func TestImportTransactions(t *testing.T) {
	f := newTxFixture(t)
	card := testutil.CreateTestCard(t, f.db, f.user.ID, 10)

	result, err := f.svc.ImportTransactions(context.Background(), f.user.ID, []ImportRecord{
		{Description: "Market", Amount: "-120.40", Date: "2025-01-14", Category: "Food", Account: card.ID + "-credit"},
		{Description: "Bad date", Amount: "10", Date: "14 janeiro", Category: "Food"},
		{Description: "Bad amount", Amount: "ten", Date: "2025-01-14"},
		{Description: "Refund", Amount: "20", Type: "INCOME", Date: "2025-01-20T10:00:00Z", Account: card.ID},
		{Description: "Zero", Amount: "0", Date: "2025-01-20"},
	})
	testutil.AssertNoError(t, err)

	if len(result.Imported) != 2 {
		t.Fatalf("expected 2 imported, got %d", len(result.Imported))
	}
	if len(result.Rejected) != 3 {
		t.Fatalf("expected 3 rejected, got %d", len(result.Rejected))
	}
	wantIdx := []int{1, 2, 4}
	for i, r := range result.Rejected {
		if r.Index != wantIdx[i] {
			t.Errorf("rejection %d: expected index %d, got %d (%s)", i, wantIdx[i], r.Index, r.Reason)
		}
	}
	if result.Imported[0].PaymentMethod != models.PaymentMethodCredit {
		t.Errorf("expected legacy ref to set credit, got %q", result.Imported[0].PaymentMethod)
	}
	testutil.AssertMoney(t, f.card(t, card.ID).Used, "100.40")
}
