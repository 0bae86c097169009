package memory

import (
	"context"
	"fmt"
	"time"

	"staffing-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// WalletRepo implements ports.WalletRepository.
type WalletRepo struct {
	store *Store
}

// NewWalletRepo creates a WalletRepo over s.
func NewWalletRepo(s *Store) *WalletRepo {
	return &WalletRepo{store: s}
}

// GetOrCreate returns the owner's wallet, creating it on first access.
func (r *WalletRepo) GetOrCreate(ctx context.Context, owner domain.Owner, currency string) (*domain.Wallet, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.walletByOwner[owner]; ok {
		return s.wallets[id].Clone(), nil
	}
	w := domain.NewWallet(owner, currency)
	s.wallets[w.ID] = w
	s.walletByOwner[owner] = w.ID
	return w.Clone(), nil
}

// GetOrCreateTx stages a new wallet in tx when the owner has none. The owner
// stays locked until tx ends, as an uncommitted unique insert would.
func (r *WalletRepo) GetOrCreateTx(ctx context.Context, tx pgx.Tx, owner domain.Owner, currency string) (*domain.Wallet, error) {
	mt, err := asMemTx(tx)
	if err != nil {
		return nil, err
	}
	if w, _ := r.GetByOwner(ctx, owner); w != nil {
		return w, nil
	}
	if err := mt.lock(ctx, ownerLockKey(owner)); err != nil {
		return nil, fmt.Errorf("lock wallet owner: %w", err)
	}
	if w, _ := r.GetByOwner(ctx, owner); w != nil {
		return w, nil
	}

	mt.mu.Lock()
	defer mt.mu.Unlock()
	if id, ok := mt.created[owner]; ok {
		return mt.wallets[id].wallet.Clone(), nil
	}
	w := domain.NewWallet(owner, currency)
	mt.created[owner] = w.ID
	mt.wallets[w.ID] = stagedWallet{wallet: w.Clone(), created: true}
	return w, nil
}

func (r *WalletRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Wallet, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	if w, ok := s.wallets[id]; ok {
		return w.Clone(), nil
	}
	return nil, nil
}

func (r *WalletRepo) GetByOwner(ctx context.Context, owner domain.Owner) (*domain.Wallet, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	if id, ok := s.walletByOwner[owner]; ok {
		return s.wallets[id].Clone(), nil
	}
	return nil, nil
}

// GetByIDForUpdate locks the wallet for the rest of tx.
func (r *WalletRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Wallet, error) {
	mt, err := asMemTx(tx)
	if err != nil {
		return nil, err
	}
	if err := mt.lock(ctx, walletLockKey(id)); err != nil {
		return nil, fmt.Errorf("lock wallet: %w", err)
	}

	mt.mu.Lock()
	sw, staged := mt.wallets[id]
	mt.mu.Unlock()
	if staged {
		return sw.wallet.Clone(), nil
	}
	return r.GetByID(ctx, id)
}

// GetByIDForShare takes the wallet's row lock, so no writer can move the
// wallet until tx ends.
func (r *WalletRepo) GetByIDForShare(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Wallet, error) {
	return r.GetByIDForUpdate(ctx, tx, id)
}

// UpdateBalances stages the wallet write guarded by its version.
func (r *WalletRepo) UpdateBalances(ctx context.Context, tx pgx.Tx, w *domain.Wallet) error {
	mt, err := asMemTx(tx)
	if err != nil {
		return err
	}

	mt.mu.Lock()
	defer mt.mu.Unlock()

	sw, staged := mt.wallets[w.ID]
	var current int64
	if staged {
		current = sw.wallet.Version
	} else {
		r.store.mu.RLock()
		committed, ok := r.store.wallets[w.ID]
		if ok {
			current = committed.Version
		}
		r.store.mu.RUnlock()
		if !ok {
			return fmt.Errorf("wallet not found: %s", w.ID)
		}
		sw.baseVersion = current
	}
	if current != w.Version {
		return fmt.Errorf("wallet %s at version %d: %w", w.ID, w.Version, domain.ErrStaleWallet)
	}

	w.Version++
	w.UpdatedAt = time.Now().UTC()
	sw.wallet = w.Clone()
	mt.wallets[w.ID] = sw
	return nil
}
