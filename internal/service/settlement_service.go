package service

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"time"

	"staffing-ledger/internal/core/domain"
	"staffing-ledger/internal/core/ports"
	"staffing-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// SettlementServiceImpl implements ports.SettlementService.
type SettlementServiceImpl struct {
	invoiceRepo ports.InvoiceRepository
	walletRepo  ports.WalletRepository
	txRepo      ports.TransactionRepository
	wallets     ports.WalletAccessor
	engine      ports.TransactionEngine
	transactor  ports.DBTransactor
	notifier    ports.Notifier
	maxRetries  int
	log         zerolog.Logger
}

// NewSettlementService creates a new SettlementServiceImpl. notifier may be nil.
func NewSettlementService(
	invoiceRepo ports.InvoiceRepository,
	walletRepo ports.WalletRepository,
	txRepo ports.TransactionRepository,
	wallets ports.WalletAccessor,
	engine ports.TransactionEngine,
	transactor ports.DBTransactor,
	notifier ports.Notifier,
	maxRetries int,
	log zerolog.Logger,
) *SettlementServiceImpl {
	return &SettlementServiceImpl{
		invoiceRepo: invoiceRepo,
		walletRepo:  walletRepo,
		txRepo:      txRepo,
		wallets:     wallets,
		engine:      engine,
		transactor:  transactor,
		notifier:    notifier,
		maxRetries:  maxRetries,
		log:         log,
	}
}

// SettleInvoice debits the care home for the invoice total and credits every
// worker their timesheet pay in one database transaction. The invoice is
// marked paid in the same unit, so either everything commits or nothing does.
func (s *SettlementServiceImpl) SettleInvoice(ctx context.Context, req ports.SettleRequest) (*domain.SettlementResult, error) {
	if req.PaymentMethod == "" {
		req.PaymentMethod = domain.DefaultPaymentMethod
	}

	var (
		result  *domain.SettlementResult
		settled *domain.Invoice
	)
	err := withRetry(ctx, s.maxRetries, s.log, "settle_invoice", func() error {
		var err error
		result, settled, err = s.settleOnce(ctx, req)
		return err
	})
	if err != nil {
		s.log.Warn().Err(err).Str("invoice_id", req.InvoiceID.String()).Msg("invoice settlement failed")
		return nil, err
	}

	s.log.Info().
		Str("invoice_id", result.InvoiceID.String()).
		Str("invoice_number", result.InvoiceNumber).
		Str("amount", result.PayerTransaction.Amount.StringFixed(domain.MoneyScale)).
		Str("paid_out", result.PaidOut().StringFixed(domain.MoneyScale)).
		Int("payees", len(result.PayeeTransactions)).
		Msg("invoice settled")

	if s.notifier != nil {
		if err := s.notifier.InvoiceSettled(ctx, settled, result); err != nil {
			s.log.Warn().Err(err).Str("invoice_id", result.InvoiceID.String()).Msg("settlement notification failed")
		}
	}

	return result, nil
}

func (s *SettlementServiceImpl) settleOnce(ctx context.Context, req ports.SettleRequest) (*domain.SettlementResult, *domain.Invoice, error) {
	inv, err := s.invoiceRepo.GetByID(ctx, req.InvoiceID)
	if err != nil {
		return nil, nil, storeError(fmt.Errorf("load invoice: %w", err))
	}
	if err := checkPayable(inv); err != nil {
		return nil, nil, err
	}

	// Pre-check without creating anything: a care home with no wallet has
	// nothing to pay with.
	payer, err := s.walletRepo.GetByOwner(ctx, inv.Payer())
	if err != nil {
		return nil, nil, storeError(fmt.Errorf("load payer wallet: %w", err))
	}
	if payer == nil {
		payer = domain.NewWallet(inv.Payer(), "")
	}
	if !s.wallets.HasSufficientBalance(payer, inv.Total) {
		return nil, nil, apperror.ErrInsufficientFunds()
	}

	tx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, nil, storeError(fmt.Errorf("begin tx: %w", err))
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	// Wallets are resolved inside the unit so a rollback drops any it
	// created. Lock order: invoice, payer wallet, payee wallets by id.
	locked, err := s.invoiceRepo.GetByIDForUpdate(ctx, tx, req.InvoiceID)
	if err != nil {
		return nil, nil, storeError(fmt.Errorf("lock invoice: %w", err))
	}
	if err := checkPayable(locked); err != nil {
		return nil, nil, err
	}
	timesheets, err := s.invoiceRepo.ListTimesheets(ctx, tx, locked.ID)
	if err != nil {
		return nil, nil, storeError(fmt.Errorf("list timesheets: %w", err))
	}
	locked.Timesheets = timesheets

	payerRef, err := s.wallets.GetOrCreateTx(ctx, tx, locked.Payer())
	if err != nil {
		return nil, nil, err
	}
	payees, err := s.resolvePayees(ctx, tx, timesheets)
	if err != nil {
		return nil, nil, err
	}

	payerWallet, err := s.walletRepo.GetByIDForUpdate(ctx, tx, payerRef.ID)
	if err != nil {
		return nil, nil, storeError(fmt.Errorf("lock payer wallet: %w", err))
	}
	if payerWallet == nil {
		return nil, nil, apperror.ErrNotFound("wallet")
	}
	lockedPayees, err := s.lockPayees(ctx, tx, payees)
	if err != nil {
		return nil, nil, err
	}

	invoiceID := locked.ID
	payerTxn, err := s.engine.Debit(ctx, tx, payerWallet, ports.LegRequest{
		Amount:      locked.Total,
		Category:    domain.CategoryInvoicePayment,
		Description: fmt.Sprintf("Payment for invoice %s", locked.Number),
		PerformedBy: req.PerformedBy,
	})
	if err != nil {
		return nil, nil, err
	}

	payeeTxns := make([]*domain.Transaction, 0, len(timesheets))
	for i := range timesheets {
		ts := timesheets[i]
		if !ts.TotalPay.IsPositive() {
			continue
		}
		w := lockedPayees[payees[ts.WorkerID]]
		txn, err := s.engine.Credit(ctx, tx, w, ports.LegRequest{
			Amount:      ts.TotalPay,
			Category:    domain.CategoryTimesheetPayment,
			Description: fmt.Sprintf("Timesheet payment from invoice %s", locked.Number),
			PerformedBy: req.PerformedBy,
		})
		if err != nil {
			return nil, nil, err
		}
		timesheetID := ts.ID
		if err := s.txRepo.AttachLinks(ctx, tx, txn.ID, &invoiceID, &timesheetID); err != nil {
			return nil, nil, storeError(fmt.Errorf("link timesheet transaction: %w", err))
		}
		txn.InvoiceID = &invoiceID
		txn.TimesheetID = &timesheetID
		payeeTxns = append(payeeTxns, txn)
	}

	paidAt := time.Now().UTC()
	if err := s.invoiceRepo.MarkPaid(ctx, tx, invoiceID, paidAt, req.PaymentMethod, payerTxn.ID); err != nil {
		return nil, nil, storeError(fmt.Errorf("mark invoice paid: %w", err))
	}
	if err := s.txRepo.AttachLinks(ctx, tx, payerTxn.ID, &invoiceID, nil); err != nil {
		return nil, nil, storeError(fmt.Errorf("link payer transaction: %w", err))
	}
	payerTxn.InvoiceID = &invoiceID

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, storeError(fmt.Errorf("commit tx: %w", err))
	}

	locked.Status = domain.InvoiceStatusPaid
	locked.PaidAt = &paidAt
	locked.PaymentMethod = &req.PaymentMethod
	locked.PaymentTransactionID = &payerTxn.ID

	return &domain.SettlementResult{
		InvoiceID:         invoiceID,
		InvoiceNumber:     locked.Number,
		Status:            domain.InvoiceStatusPaid,
		PaidAt:            paidAt,
		PaymentMethod:     req.PaymentMethod,
		PayerWalletID:     payerWallet.ID,
		PayerTransaction:  payerTxn,
		PayeeTransactions: payeeTxns,
	}, locked, nil
}

func checkPayable(inv *domain.Invoice) error {
	switch {
	case inv == nil:
		return apperror.ErrNotFound("invoice")
	case inv.IsPaid():
		return apperror.ErrAlreadyPaid()
	case !inv.IsPayable():
		return apperror.ErrInvoiceNotPayable(string(inv.Status))
	}
	return nil
}

// resolvePayees maps each paid worker to a wallet id inside tx. Workers are
// visited in owner order so concurrent settlements insert new wallets in
// the same sequence.
func (s *SettlementServiceImpl) resolvePayees(ctx context.Context, tx pgx.Tx, timesheets []domain.Timesheet) (map[uuid.UUID]uuid.UUID, error) {
	workers := make([]domain.Owner, 0, len(timesheets))
	seen := make(map[uuid.UUID]bool, len(timesheets))
	for _, ts := range timesheets {
		if !ts.TotalPay.IsPositive() || seen[ts.WorkerID] {
			continue
		}
		seen[ts.WorkerID] = true
		workers = append(workers, ts.Payee())
	}
	sort.Slice(workers, func(i, j int) bool {
		return bytes.Compare(workers[i].ID[:], workers[j].ID[:]) < 0
	})

	payees := make(map[uuid.UUID]uuid.UUID, len(workers))
	for _, owner := range workers {
		w, err := s.wallets.GetOrCreateTx(ctx, tx, owner)
		if err != nil {
			return nil, err
		}
		payees[owner.ID] = w.ID
	}
	return payees, nil
}

// lockPayees locks every payee wallet in ascending id order.
func (s *SettlementServiceImpl) lockPayees(ctx context.Context, tx pgx.Tx, payees map[uuid.UUID]uuid.UUID) (map[uuid.UUID]*domain.Wallet, error) {
	ids := make([]uuid.UUID, 0, len(payees))
	seen := make(map[uuid.UUID]bool, len(payees))
	for _, id := range payees {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool {
		return bytes.Compare(ids[i][:], ids[j][:]) < 0
	})

	locked := make(map[uuid.UUID]*domain.Wallet, len(ids))
	for _, id := range ids {
		w, err := s.walletRepo.GetByIDForUpdate(ctx, tx, id)
		if err != nil {
			return nil, storeError(fmt.Errorf("lock payee wallet %s: %w", id, err))
		}
		if w == nil {
			return nil, apperror.ErrNotFound("wallet")
		}
		locked[id] = w
	}
	return locked, nil
}
