package postgres

import (
	"context"
	"testing"
	"time"

	"staffing-ledger/internal/core/domain"
	"staffing-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTransaction(walletID uuid.UUID) *domain.Transaction {
	actor := uuid.New()
	return &domain.Transaction{
		ID:            uuid.New(),
		Reference:     "TXN-20260314-ABCDEFGHJK",
		WalletID:      walletID,
		Type:          domain.TransactionTypeDebit,
		Category:      domain.CategoryInvoicePayment,
		Amount:        decimal.RequireFromString("40.00"),
		BalanceBefore: decimal.RequireFromString("100.00"),
		BalanceAfter:  decimal.RequireFromString("60.00"),
		Description:   "Payment for invoice INV-0001",
		PerformedBy:   &actor,
		CreatedAt:     time.Now().UTC().Truncate(time.Microsecond),
	}
}

func txColumns() []string {
	return []string{"id", "reference", "wallet_id", "type", "category", "amount", "balance_before", "balance_after",
		"description", "reason", "proof_file", "invoice_id", "timesheet_id", "performed_by", "created_at"}
}

func txRow(rows *pgxmock.Rows, t *domain.Transaction) *pgxmock.Rows {
	return rows.AddRow(
		t.ID, t.Reference, t.WalletID, string(t.Type), string(t.Category),
		t.Amount.StringFixed(2), t.BalanceBefore.StringFixed(2), t.BalanceAfter.StringFixed(2),
		t.Description, t.Reason, t.ProofFile, t.InvoiceID, t.TimesheetID, t.PerformedBy, t.CreatedAt,
	)
}

func TestTransactionRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)
	txn := newTestTransaction(uuid.New())

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO transactions").
		WithArgs(txn.ID, txn.Reference, txn.WalletID, "debit", "invoice_payment",
			"40.00", "100.00", "60.00", txn.Description, txn.Reason, txn.ProofFile,
			txn.InvoiceID, txn.TimesheetID, txn.PerformedBy, txn.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	assert.NoError(t, repo.Create(context.Background(), tx, txn))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepo_AttachLinks(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)
	id, invoiceID, timesheetID := uuid.New(), uuid.New(), uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE transactions SET invoice_id = COALESCE\\(invoice_id, \\$1\\)").
		WithArgs(&invoiceID, &timesheetID, id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	assert.NoError(t, repo.AttachLinks(context.Background(), tx, id, &invoiceID, &timesheetID))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepo_AttachLinks_Missing(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)
	id, invoiceID := uuid.New(), uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE transactions").
		WithArgs(&invoiceID, (*uuid.UUID)(nil), id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	assert.Error(t, repo.AttachLinks(context.Background(), tx, id, &invoiceID, nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepo_GetByReference(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)
	txn := newTestTransaction(uuid.New())

	mock.ExpectQuery("SELECT .+ FROM transactions WHERE reference").
		WithArgs(txn.Reference).
		WillReturnRows(txRow(pgxmock.NewRows(txColumns()), txn))

	result, err := repo.GetByReference(context.Background(), txn.Reference)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, txn.ID, result.ID)
	assert.Equal(t, domain.TransactionTypeDebit, result.Type)
	assert.True(t, result.IsBalanced())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepo_GetByID_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)
	id := uuid.New()

	mock.ExpectQuery("SELECT .+ FROM transactions WHERE id").
		WithArgs(id).
		WillReturnError(pgx.ErrNoRows)

	result, err := repo.GetByID(context.Background(), id)
	assert.NoError(t, err)
	assert.Nil(t, result)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepo_ListByWallet(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)
	walletID := uuid.New()
	newer := newTestTransaction(walletID)
	older := newTestTransaction(walletID)
	older.Reference = "TXN-20260313-ZZZZZZZZZZ"
	older.CreatedAt = newer.CreatedAt.Add(-time.Hour)

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM transactions WHERE wallet_id = \\$1").
		WithArgs(walletID).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(5)))

	rows := pgxmock.NewRows(txColumns())
	txRow(rows, newer)
	txRow(rows, older)
	mock.ExpectQuery("SELECT .+ FROM transactions WHERE wallet_id = \\$1\\s+ORDER BY created_at DESC, id DESC LIMIT \\$2 OFFSET \\$3").
		WithArgs(walletID, 2, 2).
		WillReturnRows(rows)

	txns, total, err := repo.ListByWallet(context.Background(), ports.TransactionListParams{
		WalletID: walletID, Page: 2, PageSize: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	require.Len(t, txns, 2)
	assert.Equal(t, newer.Reference, txns[0].Reference)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepo_ListByWallet_PageBeyondEnd(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)
	walletID := uuid.New()

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM transactions WHERE wallet_id = \\$1").
		WithArgs(walletID).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(3)))

	txns, total, err := repo.ListByWallet(context.Background(), ports.TransactionListParams{
		WalletID: walletID, Page: 100000000000000001, PageSize: 100,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Empty(t, txns)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepo_ListByWallet_CategoryFilter(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)
	walletID := uuid.New()
	category := domain.CategoryRefund

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM transactions WHERE wallet_id = \\$1 AND category = \\$2").
		WithArgs(walletID, "refund").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(0)))
	mock.ExpectQuery("SELECT .+ FROM transactions").
		WithArgs(walletID, "refund", 20, 0).
		WillReturnRows(pgxmock.NewRows(txColumns()))

	txns, total, err := repo.ListByWallet(context.Background(), ports.TransactionListParams{
		WalletID: walletID, Category: &category, Page: 1, PageSize: 20,
	})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, txns)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepo_SumByWallet(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)
	walletID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .+ FROM transactions WHERE wallet_id").
		WithArgs(walletID).
		WillReturnRows(pgxmock.NewRows([]string{"credited", "debited", "total"}).
			AddRow("100.00", "40.00", int64(2)))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	totals, err := repo.SumByWallet(context.Background(), tx, walletID)
	require.NoError(t, err)
	assert.True(t, totals.Credited.Equal(decimal.NewFromInt(100)))
	assert.True(t, totals.Debited.Equal(decimal.NewFromInt(40)))
	assert.Equal(t, int64(2), totals.Count)
	assert.NoError(t, mock.ExpectationsWereMet())
}
