package service

import (
	"context"
	"fmt"
	"time"

	"staffing-ledger/internal/core/domain"
	"staffing-ledger/internal/core/ports"
	"staffing-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// TransactionEngineImpl implements ports.TransactionEngine. It is the only
// code that writes wallet balances.
type TransactionEngineImpl struct {
	walletRepo ports.WalletRepository
	txRepo     ports.TransactionRepository
	log        zerolog.Logger
	now        func() time.Time
}

// NewTransactionEngine creates a new TransactionEngineImpl.
func NewTransactionEngine(walletRepo ports.WalletRepository, txRepo ports.TransactionRepository, log zerolog.Logger) *TransactionEngineImpl {
	return &TransactionEngineImpl{
		walletRepo: walletRepo,
		txRepo:     txRepo,
		log:        log,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Credit adds leg.Amount to wallet inside tx.
func (e *TransactionEngineImpl) Credit(ctx context.Context, tx pgx.Tx, wallet *domain.Wallet, leg ports.LegRequest) (*domain.Transaction, error) {
	return e.apply(ctx, tx, wallet, domain.TransactionTypeCredit, leg)
}

// Debit removes leg.Amount from wallet inside tx. The balance never goes
// negative: an uncovered debit fails with no mutation.
func (e *TransactionEngineImpl) Debit(ctx context.Context, tx pgx.Tx, wallet *domain.Wallet, leg ports.LegRequest) (*domain.Transaction, error) {
	return e.apply(ctx, tx, wallet, domain.TransactionTypeDebit, leg)
}

func (e *TransactionEngineImpl) apply(ctx context.Context, tx pgx.Tx, wallet *domain.Wallet, typ domain.TransactionType, leg ports.LegRequest) (*domain.Transaction, error) {
	if !domain.ValidAmount(leg.Amount) {
		return nil, apperror.ErrInvalidAmount()
	}
	if !leg.Category.AllowedFor(typ) {
		return nil, apperror.Validation(fmt.Sprintf("category %q is not allowed for a %s", leg.Category, typ))
	}
	if typ == domain.TransactionTypeDebit && !wallet.HasSufficientBalance(leg.Amount) {
		return nil, apperror.ErrInsufficientFunds()
	}

	// Work on a copy so a failed write leaves the caller's wallet untouched.
	next := wallet.Clone()
	before := next.Balance
	switch typ {
	case domain.TransactionTypeCredit:
		next.Balance = next.Balance.Add(leg.Amount)
		next.TotalCredited = next.TotalCredited.Add(leg.Amount)
	case domain.TransactionTypeDebit:
		next.Balance = next.Balance.Sub(leg.Amount)
		next.TotalDebited = next.TotalDebited.Add(leg.Amount)
	}
	if next.Balance.GreaterThan(domain.MaxAmount) ||
		next.TotalCredited.GreaterThan(domain.MaxAmount) ||
		next.TotalDebited.GreaterThan(domain.MaxAmount) {
		return nil, apperror.ErrInvalidAmount()
	}

	if err := e.walletRepo.UpdateBalances(ctx, tx, next); err != nil {
		return nil, storeError(fmt.Errorf("update wallet %s: %w", wallet.ID, err))
	}

	now := e.now()
	txn := &domain.Transaction{
		ID:            uuid.New(),
		Reference:     domain.NewReference(now),
		WalletID:      wallet.ID,
		Type:          typ,
		Category:      leg.Category,
		Amount:        leg.Amount,
		BalanceBefore: before,
		BalanceAfter:  next.Balance,
		Description:   leg.Description,
		Reason:        leg.Reason,
		ProofFile:     leg.ProofFile,
		InvoiceID:     leg.InvoiceID,
		TimesheetID:   leg.TimesheetID,
		PerformedBy:   leg.PerformedBy,
		CreatedAt:     now,
	}
	if err := e.txRepo.Create(ctx, tx, txn); err != nil {
		return nil, storeError(fmt.Errorf("create transaction: %w", err))
	}

	*wallet = *next

	e.log.Debug().
		Str("wallet_id", wallet.ID.String()).
		Str("tx_ref", txn.Reference).
		Str("type", string(typ)).
		Str("amount", leg.Amount.StringFixed(domain.MoneyScale)).
		Str("balance_after", wallet.Balance.StringFixed(domain.MoneyScale)).
		Msg("ledger leg written")

	return txn, nil
}

// storeError maps a store failure to its AppError: contention becomes a
// retryable conflict, anything else a persistence error.
func storeError(err error) error {
	if domain.IsContention(err) {
		return apperror.ErrConcurrencyConflict(err)
	}
	return apperror.ErrPersistence(err)
}
