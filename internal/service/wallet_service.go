package service

import (
	"context"
	"fmt"

	"staffing-ledger/internal/core/domain"
	"staffing-ledger/internal/core/ports"
	"staffing-ledger/pkg/apperror"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// WalletServiceImpl implements ports.WalletAccessor.
type WalletServiceImpl struct {
	walletRepo ports.WalletRepository
	currency   string
	log        zerolog.Logger
}

// NewWalletService creates a wallet accessor holding wallets in currency.
func NewWalletService(walletRepo ports.WalletRepository, currency string, log zerolog.Logger) *WalletServiceImpl {
	if currency == "" {
		currency = domain.DefaultCurrency
	}
	return &WalletServiceImpl{
		walletRepo: walletRepo,
		currency:   currency,
		log:        log,
	}
}

// GetOrCreate returns the owner's wallet, creating an empty one on first
// access.
func (s *WalletServiceImpl) GetOrCreate(ctx context.Context, owner domain.Owner) (*domain.Wallet, error) {
	if !owner.Type.Valid() {
		return nil, apperror.ErrInvalidOwner()
	}
	w, err := s.walletRepo.GetOrCreate(ctx, owner, s.currency)
	if err != nil {
		return nil, apperror.ErrPersistence(fmt.Errorf("get or create wallet for %s: %w", owner, err))
	}
	if w == nil {
		return nil, apperror.ErrPersistence(fmt.Errorf("wallet for %s vanished after upsert", owner))
	}
	return w, nil
}

// GetOrCreateTx resolves the owner's wallet inside tx, so a wallet created
// for a unit that rolls back never becomes visible.
func (s *WalletServiceImpl) GetOrCreateTx(ctx context.Context, tx pgx.Tx, owner domain.Owner) (*domain.Wallet, error) {
	if !owner.Type.Valid() {
		return nil, apperror.ErrInvalidOwner()
	}
	w, err := s.walletRepo.GetOrCreateTx(ctx, tx, owner, s.currency)
	if err != nil {
		return nil, storeError(fmt.Errorf("get or create wallet for %s: %w", owner, err))
	}
	if w == nil {
		return nil, apperror.ErrPersistence(fmt.Errorf("wallet for %s vanished after upsert", owner))
	}
	return w, nil
}

// HasSufficientBalance reports whether wallet can cover amount.
func (s *WalletServiceImpl) HasSufficientBalance(wallet *domain.Wallet, amount decimal.Decimal) bool {
	return wallet.HasSufficientBalance(amount)
}
