package service

import (
	"context"
	"testing"
	"time"

	"staffing-ledger/internal/adapter/storage/memory"
	"staffing-ledger/internal/core/domain"
	"staffing-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// ledgerFixture wires the real services over the in-memory store.
type ledgerFixture struct {
	store       *memory.Store
	walletRepo  *memory.WalletRepo
	txRepo      *memory.TransactionRepo
	invoiceRepo *memory.InvoiceRepo
	wallets     *WalletServiceImpl
	engine      ports.TransactionEngine
	settlement  *SettlementServiceImpl
	adjustments *AdjustmentServiceImpl
	query       ports.LedgerQueryService
	actor       uuid.UUID
}

type fixtureOption func(*ledgerFixture)

func withEngine(wrap func(ports.TransactionEngine) ports.TransactionEngine) fixtureOption {
	return func(f *ledgerFixture) { f.engine = wrap(f.engine) }
}

func newLedgerFixture(t *testing.T, notifier ports.Notifier, opts ...fixtureOption) *ledgerFixture {
	t.Helper()
	log := newTestLogger()
	store := memory.NewStore(200 * time.Millisecond)
	f := &ledgerFixture{
		store:       store,
		walletRepo:  memory.NewWalletRepo(store),
		txRepo:      memory.NewTransactionRepo(store),
		invoiceRepo: memory.NewInvoiceRepo(store),
		actor:       uuid.New(),
	}
	f.wallets = NewWalletService(f.walletRepo, domain.DefaultCurrency, log)
	f.engine = NewTransactionEngine(f.walletRepo, f.txRepo, log)
	for _, opt := range opts {
		opt(f)
	}
	f.settlement = NewSettlementService(f.invoiceRepo, f.walletRepo, f.txRepo, f.wallets, f.engine, store, notifier, 2, log)
	f.adjustments = NewAdjustmentService(f.walletRepo, f.wallets, f.engine, store, nil, nil, notifier, 2, log)
	f.query = NewLedgerQueryService(f.txRepo, f.walletRepo, f.invoiceRepo, f.wallets, store, 20, 100, log)
	return f
}

func (f *ledgerFixture) fund(t *testing.T, owner domain.Owner, amt string) {
	t.Helper()
	_, err := f.adjustments.Adjust(context.Background(), ports.AdjustmentRequest{
		Owner:       owner,
		Direction:   domain.TransactionTypeCredit,
		Amount:      decimal.RequireFromString(amt),
		Reason:      "opening balance",
		PerformedBy: f.actor,
	})
	require.NoError(t, err)
}

func (f *ledgerFixture) balance(t *testing.T, owner domain.Owner) string {
	t.Helper()
	w, err := f.walletRepo.GetByOwner(context.Background(), owner)
	require.NoError(t, err)
	if w == nil {
		return "0"
	}
	require.True(t, w.IsConsistent(), "balance must equal credited - debited")
	require.False(t, w.Balance.IsNegative())
	return w.Balance.String()
}

// assertNoWallet fails unless owner has no committed wallet.
func (f *ledgerFixture) assertNoWallet(t *testing.T, owner domain.Owner) {
	t.Helper()
	w, err := f.walletRepo.GetByOwner(context.Background(), owner)
	require.NoError(t, err)
	require.Nil(t, w, "unexpected wallet for %s", owner)
}

// seedInvoice stores an invoice owed by careHome with one timesheet per pay
// amount, each for a distinct worker.
func (f *ledgerFixture) seedInvoice(careHome uuid.UUID, total string, pays ...string) (*domain.Invoice, []domain.Owner) {
	inv := &domain.Invoice{
		ID:         uuid.New(),
		Number:     "INV-" + uuid.NewString()[:8],
		CareHomeID: careHome,
		Status:     domain.InvoiceStatusSent,
		Total:      decimal.RequireFromString(total),
	}
	workers := make([]domain.Owner, 0, len(pays))
	for _, p := range pays {
		worker := uuid.New()
		inv.Timesheets = append(inv.Timesheets, domain.Timesheet{
			ID:       uuid.New(),
			WorkerID: worker,
			TotalPay: decimal.RequireFromString(p),
		})
		workers = append(workers, domain.WorkerOwner(worker))
	}
	f.store.SeedInvoice(inv)
	return inv, workers
}

// failingEngine fails the nth credit it is asked to write.
type failingEngine struct {
	ports.TransactionEngine
	failOn  int
	credits int
	err     error
}

func (e *failingEngine) Credit(ctx context.Context, tx pgx.Tx, w *domain.Wallet, leg ports.LegRequest) (*domain.Transaction, error) {
	e.credits++
	if e.credits == e.failOn {
		return nil, e.err
	}
	return e.TransactionEngine.Credit(ctx, tx, w, leg)
}
