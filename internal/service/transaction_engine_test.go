package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"staffing-ledger/internal/core/domain"
	"staffing-ledger/internal/core/ports"
	"staffing-ledger/internal/core/ports/mocks"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type engineTestDeps struct {
	engine     *TransactionEngineImpl
	walletRepo *mocks.MockWalletRepository
	txRepo     *mocks.MockTransactionRepository
}

func setupEngine(t *testing.T) *engineTestDeps {
	ctrl := gomock.NewController(t)
	d := &engineTestDeps{
		walletRepo: mocks.NewMockWalletRepository(ctrl),
		txRepo:     mocks.NewMockTransactionRepository(ctrl),
	}
	d.engine = NewTransactionEngine(d.walletRepo, d.txRepo, newTestLogger())
	return d
}

func walletWith(balance string) *domain.Wallet {
	w := domain.NewWallet(domain.WorkerOwner(uuid.New()), domain.DefaultCurrency)
	w.Balance = decimal.RequireFromString(balance)
	w.TotalCredited = w.Balance
	w.Version = 3
	return w
}

func amount(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestTransactionEngine_Credit(t *testing.T) {
	d := setupEngine(t)
	ctx := context.Background()
	tx := &mockTx{}
	w := walletWith("10.00")
	actor := uuid.New()

	d.walletRepo.EXPECT().UpdateBalances(ctx, tx, gomock.Any()).DoAndReturn(
		func(_ context.Context, _ pgx.Tx, next *domain.Wallet) error {
			assert.Equal(t, "110.5", next.Balance.String())
			assert.Equal(t, int64(3), next.Version)
			next.Version++
			return nil
		})
	d.txRepo.EXPECT().Create(ctx, tx, gomock.Any()).Return(nil)

	txn, err := d.engine.Credit(ctx, tx, w, ports.LegRequest{
		Amount:      amount("100.50"),
		Category:    domain.CategoryManualCredit,
		Description: "top up",
		PerformedBy: &actor,
	})
	require.NoError(t, err)

	assert.Equal(t, domain.TransactionTypeCredit, txn.Type)
	assert.Equal(t, "10", txn.BalanceBefore.String())
	assert.Equal(t, "110.5", txn.BalanceAfter.String())
	assert.True(t, txn.IsBalanced())
	assert.Regexp(t, `^TXN-\d{8}-[A-Z2-9]{10}$`, txn.Reference)
	assert.Equal(t, &actor, txn.PerformedBy)

	assert.Equal(t, "110.5", w.Balance.String())
	assert.Equal(t, "110.5", w.TotalCredited.String())
	assert.Equal(t, int64(4), w.Version)
	assert.True(t, w.IsConsistent())
}

func TestTransactionEngine_Debit(t *testing.T) {
	d := setupEngine(t)
	ctx := context.Background()
	tx := &mockTx{}
	w := walletWith("100.00")

	d.walletRepo.EXPECT().UpdateBalances(ctx, tx, gomock.Any()).Return(nil)
	d.txRepo.EXPECT().Create(ctx, tx, gomock.Any()).Return(nil)

	txn, err := d.engine.Debit(ctx, tx, w, ports.LegRequest{
		Amount:   amount("40.00"),
		Category: domain.CategoryManualDebit,
	})
	require.NoError(t, err)

	assert.Equal(t, "60", w.Balance.String())
	assert.Equal(t, "40", w.TotalDebited.String())
	assert.True(t, w.IsConsistent())
	assert.Equal(t, "-40", txn.SignedAmount().String())
	assert.True(t, txn.IsBalanced())
}

func TestTransactionEngine_Debit_InsufficientFunds(t *testing.T) {
	d := setupEngine(t)
	w := walletWith("39.99")

	_, err := d.engine.Debit(context.Background(), &mockTx{}, w, ports.LegRequest{
		Amount:   amount("40.00"),
		Category: domain.CategoryWithdrawal,
	})
	assertAppError(t, err, "LED_001")
	assert.Equal(t, "39.99", w.Balance.String(), "wallet untouched")
}

func TestTransactionEngine_InvalidAmount(t *testing.T) {
	d := setupEngine(t)
	w := walletWith("100.00")

	for _, amt := range []string{"0", "-5.00", "1.005", "1e30"} {
		t.Run(amt, func(t *testing.T) {
			_, err := d.engine.Credit(context.Background(), &mockTx{}, w, ports.LegRequest{
				Amount:   amount(amt),
				Category: domain.CategoryManualCredit,
			})
			assertAppError(t, err, "LED_002")
		})
	}
}

func TestTransactionEngine_CreditBeyondColumnRange(t *testing.T) {
	d := setupEngine(t)
	w := walletWith("99999999999999999.00")

	_, err := d.engine.Credit(context.Background(), &mockTx{}, w, ports.LegRequest{
		Amount:   amount("1.00"),
		Category: domain.CategoryManualCredit,
	})
	assertAppError(t, err, "LED_002")
	assert.Equal(t, "99999999999999999", w.Balance.String(), "wallet untouched")
}

func TestTransactionEngine_CategoryMustMatchDirection(t *testing.T) {
	d := setupEngine(t)
	w := walletWith("100.00")

	_, err := d.engine.Credit(context.Background(), &mockTx{}, w, ports.LegRequest{
		Amount:   amount("1.00"),
		Category: domain.CategoryInvoicePayment,
	})
	assertAppError(t, err, "LED_002")

	_, err = d.engine.Debit(context.Background(), &mockTx{}, w, ports.LegRequest{
		Amount:   amount("1.00"),
		Category: domain.CategoryTimesheetPayment,
	})
	assertAppError(t, err, "LED_002")
}

func TestTransactionEngine_StaleWalletIsConflict(t *testing.T) {
	d := setupEngine(t)
	w := walletWith("100.00")

	d.walletRepo.EXPECT().UpdateBalances(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(fmt.Errorf("update: %w", domain.ErrStaleWallet))

	_, err := d.engine.Debit(context.Background(), &mockTx{}, w, ports.LegRequest{
		Amount:   amount("1.00"),
		Category: domain.CategoryManualDebit,
	})
	assertAppError(t, err, "LED_005")
	assert.Equal(t, "100", w.Balance.String(), "wallet untouched")
	assert.Equal(t, int64(3), w.Version)
}

func TestTransactionEngine_InsertFailure(t *testing.T) {
	d := setupEngine(t)
	w := walletWith("100.00")

	d.walletRepo.EXPECT().UpdateBalances(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)
	d.txRepo.EXPECT().Create(gomock.Any(), gomock.Any(), gomock.Any()).Return(errors.New("disk full"))

	_, err := d.engine.Credit(context.Background(), &mockTx{}, w, ports.LegRequest{
		Amount:   amount("1.00"),
		Category: domain.CategoryRefund,
	})
	assertAppError(t, err, "SYS_001")
	assert.Equal(t, "100", w.Balance.String())
}
