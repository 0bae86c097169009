package service

import (
	"context"
	"fmt"
	"strings"

	"staffing-ledger/internal/core/domain"
	"staffing-ledger/internal/core/ports"
	"staffing-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ledgerQueryService implements ports.LedgerQueryService.
type ledgerQueryService struct {
	txRepo          ports.TransactionRepository
	walletRepo      ports.WalletRepository
	invoiceRepo     ports.InvoiceRepository
	wallets         ports.WalletAccessor
	transactor      ports.DBTransactor
	defaultPageSize int
	maxPageSize     int
	log             zerolog.Logger
}

// NewLedgerQueryService creates a new ledger query service.
func NewLedgerQueryService(
	txRepo ports.TransactionRepository,
	walletRepo ports.WalletRepository,
	invoiceRepo ports.InvoiceRepository,
	wallets ports.WalletAccessor,
	transactor ports.DBTransactor,
	defaultPageSize, maxPageSize int,
	log zerolog.Logger,
) ports.LedgerQueryService {
	if defaultPageSize < 1 {
		defaultPageSize = 20
	}
	if maxPageSize < defaultPageSize {
		maxPageSize = defaultPageSize
	}
	return &ledgerQueryService{
		txRepo:          txRepo,
		walletRepo:      walletRepo,
		invoiceRepo:     invoiceRepo,
		wallets:         wallets,
		transactor:      transactor,
		defaultPageSize: defaultPageSize,
		maxPageSize:     maxPageSize,
		log:             log,
	}
}

// GetWallet returns the owner's wallet and one page of history, newest
// first. An owner without a wallet gets an empty one.
func (s *ledgerQueryService) GetWallet(ctx context.Context, owner domain.Owner, page, pageSize int) (*ports.WalletStatement, error) {
	if page < 1 {
		page = 1
	}
	switch {
	case pageSize < 1:
		pageSize = s.defaultPageSize
	case pageSize > s.maxPageSize:
		pageSize = s.maxPageSize
	}

	w, err := s.wallets.GetOrCreate(ctx, owner)
	if err != nil {
		return nil, err
	}

	txns, total, err := s.txRepo.ListByWallet(ctx, ports.TransactionListParams{
		WalletID: w.ID,
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		return nil, apperror.ErrPersistence(fmt.Errorf("list transactions: %w", err))
	}

	return &ports.WalletStatement{
		Wallet:       w,
		Transactions: txns,
		Total:        total,
		Page:         page,
		PageSize:     pageSize,
	}, nil
}

// GetTransaction looks a transaction up by reference or row id and resolves
// its wallet and links.
func (s *ledgerQueryService) GetTransaction(ctx context.Context, idOrReference string) (*ports.TransactionDetail, error) {
	key := strings.TrimSpace(idOrReference)
	if key == "" {
		return nil, apperror.ErrNotFound("transaction")
	}

	var (
		txn *domain.Transaction
		err error
	)
	if id, parseErr := uuid.Parse(key); parseErr == nil {
		txn, err = s.txRepo.GetByID(ctx, id)
	} else {
		txn, err = s.txRepo.GetByReference(ctx, strings.ToUpper(key))
	}
	if err != nil {
		return nil, apperror.ErrPersistence(fmt.Errorf("load transaction: %w", err))
	}
	if txn == nil {
		return nil, apperror.ErrNotFound("transaction")
	}

	detail := &ports.TransactionDetail{Transaction: txn}
	if detail.Wallet, err = s.walletRepo.GetByID(ctx, txn.WalletID); err != nil {
		return nil, apperror.ErrPersistence(fmt.Errorf("load wallet: %w", err))
	}
	if txn.InvoiceID != nil {
		if detail.Invoice, err = s.invoiceRepo.GetByID(ctx, *txn.InvoiceID); err != nil {
			return nil, apperror.ErrPersistence(fmt.Errorf("load invoice: %w", err))
		}
	}
	if txn.TimesheetID != nil {
		if detail.Timesheet, err = s.invoiceRepo.GetTimesheet(ctx, *txn.TimesheetID); err != nil {
			return nil, apperror.ErrPersistence(fmt.Errorf("load timesheet: %w", err))
		}
	}
	return detail, nil
}

// ReconcileWallet recomputes the owner's totals from history and compares
// them with the cached projection. Both reads happen under a share lock on
// the wallet, so a concurrent write cannot show up as drift.
func (s *ledgerQueryService) ReconcileWallet(ctx context.Context, owner domain.Owner) (*domain.Reconciliation, error) {
	if !owner.Type.Valid() {
		return nil, apperror.ErrInvalidOwner()
	}
	found, err := s.walletRepo.GetByOwner(ctx, owner)
	if err != nil {
		return nil, apperror.ErrPersistence(fmt.Errorf("load wallet: %w", err))
	}
	if found == nil {
		return nil, apperror.ErrNotFound("wallet")
	}

	tx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, storeError(fmt.Errorf("begin tx: %w", err))
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	w, err := s.walletRepo.GetByIDForShare(ctx, tx, found.ID)
	if err != nil {
		return nil, storeError(fmt.Errorf("lock wallet: %w", err))
	}
	if w == nil {
		return nil, apperror.ErrNotFound("wallet")
	}
	totals, err := s.txRepo.SumByWallet(ctx, tx, w.ID)
	if err != nil {
		return nil, storeError(fmt.Errorf("sum transactions: %w", err))
	}

	rec := domain.NewReconciliation(w, totals.Credited, totals.Debited, totals.Count)
	if !rec.Consistent {
		s.log.Error().
			Str("wallet_id", w.ID.String()).
			Strs("discrepancies", rec.Discrepancies).
			Msg("wallet projection does not match history")
	}
	return rec, nil
}
