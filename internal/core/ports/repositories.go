package ports

import (
	"context"
	"math"
	"time"

	"staffing-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// WalletRepository defines persistence operations for wallets.
// Methods accepting pgx.Tx are used inside transaction blocks for pessimistic locking.
type WalletRepository interface {
	// GetOrCreate returns the owner's wallet, creating an empty one if absent.
	// Concurrent first access yields a single wallet.
	GetOrCreate(ctx context.Context, owner domain.Owner, currency string) (*domain.Wallet, error)
	// GetOrCreateTx is GetOrCreate scoped to tx: the insert rolls back with
	// it. The returned wallet is not locked.
	GetOrCreateTx(ctx context.Context, tx pgx.Tx, owner domain.Owner, currency string) (*domain.Wallet, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Wallet, error)
	GetByOwner(ctx context.Context, owner domain.Owner) (*domain.Wallet, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Wallet, error)
	// GetByIDForShare reads the wallet and blocks writers to it until tx ends.
	GetByIDForShare(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Wallet, error)
	// UpdateBalances writes balance and totals if the stored version still
	// equals wallet.Version, then bumps wallet.Version. A lost check returns
	// domain.ErrStaleWallet.
	UpdateBalances(ctx context.Context, tx pgx.Tx, wallet *domain.Wallet) error
}

// TransactionRepository defines persistence operations for transactions.
type TransactionRepository interface {
	Create(ctx context.Context, tx pgx.Tx, transaction *domain.Transaction) error
	// AttachLinks sets invoice/timesheet links that are still NULL. Existing
	// links are never overwritten.
	AttachLinks(ctx context.Context, tx pgx.Tx, id uuid.UUID, invoiceID, timesheetID *uuid.UUID) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error)
	GetByReference(ctx context.Context, reference string) (*domain.Transaction, error)
	// ListByWallet returns one page of history, newest first, and the total count.
	ListByWallet(ctx context.Context, params TransactionListParams) ([]domain.Transaction, int64, error)
	// SumByWallet recomputes totals from history as seen by tx.
	SumByWallet(ctx context.Context, tx pgx.Tx, walletID uuid.UUID) (*WalletTotals, error)
}

// TransactionListParams holds filter + pagination for listing transactions.
type TransactionListParams struct {
	WalletID uuid.UUID
	Type     *domain.TransactionType
	Category *domain.Category
	Page     int
	PageSize int
}

// Offset returns the row offset of the requested page. It saturates at
// math.MaxInt instead of wrapping, so a page past the end is simply empty.
func (p TransactionListParams) Offset() int {
	if p.Page < 1 || p.PageSize < 1 {
		return 0
	}
	if p.Page-1 > math.MaxInt/p.PageSize {
		return math.MaxInt
	}
	return (p.Page - 1) * p.PageSize
}

// WalletTotals aggregates a wallet's history.
type WalletTotals struct {
	Credited decimal.Decimal
	Debited  decimal.Decimal
	Count    int64
}

// InvoiceRepository reads invoices and timesheets and owns the paid transition.
type InvoiceRepository interface {
	// GetByID loads the invoice with its timesheets.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Invoice, error)
	// GetByIDForUpdate locks the invoice row. Timesheets are not loaded.
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Invoice, error)
	// ListTimesheets returns the invoice's timesheets ordered by id.
	ListTimesheets(ctx context.Context, tx pgx.Tx, invoiceID uuid.UUID) ([]domain.Timesheet, error)
	MarkPaid(ctx context.Context, tx pgx.Tx, id uuid.UUID, paidAt time.Time, method string, paymentTxnID uuid.UUID) error
	GetTimesheet(ctx context.Context, id uuid.UUID) (*domain.Timesheet, error)
}

// AuditRepository persists audit entries.
type AuditRepository interface {
	Create(ctx context.Context, log *domain.AuditLog) error
}

// NotificationDeliveryRepository persists mailer delivery attempts.
type NotificationDeliveryRepository interface {
	Create(ctx context.Context, delivery *domain.NotificationDelivery) error
	Update(ctx context.Context, delivery *domain.NotificationDelivery) error
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
