package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"staffing-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const walletColumns = `id, owner_type, owner_id, balance::text, total_credited::text, total_debited::text,
		currency, version, created_at, updated_at`

const insertWalletQuery = `INSERT INTO wallets (id, owner_type, owner_id, balance, total_credited, total_debited, currency, version, created_at, updated_at)
		VALUES ($1, $2, $3, 0, 0, 0, $4, 0, $5, $5)
		ON CONFLICT (owner_type, owner_id) DO NOTHING`

// WalletRepo implements ports.WalletRepository.
type WalletRepo struct {
	pool Pool
}

// NewWalletRepo creates a new WalletRepo.
func NewWalletRepo(pool Pool) *WalletRepo {
	return &WalletRepo{pool: pool}
}

// GetOrCreate inserts an empty wallet unless the owner already has one, then
// reads it back. The unique (owner_type, owner_id) key makes concurrent first
// access converge on one row.
func (r *WalletRepo) GetOrCreate(ctx context.Context, owner domain.Owner, currency string) (*domain.Wallet, error) {
	w := domain.NewWallet(owner, currency)

	if _, err := r.pool.Exec(ctx, insertWalletQuery, w.ID, string(owner.Type), owner.ID, currency, w.CreatedAt); err != nil {
		return nil, fmt.Errorf("upsert wallet: %w", classify(err))
	}

	existing, err := r.GetByOwner(ctx, owner)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, fmt.Errorf("wallet for %s vanished after upsert", owner)
	}
	return existing, nil
}

// GetOrCreateTx is GetOrCreate inside tx. An insert here waits on any other
// open transaction inserting the same owner and disappears on rollback.
func (r *WalletRepo) GetOrCreateTx(ctx context.Context, tx pgx.Tx, owner domain.Owner, currency string) (*domain.Wallet, error) {
	w := domain.NewWallet(owner, currency)

	if _, err := tx.Exec(ctx, insertWalletQuery, w.ID, string(owner.Type), owner.ID, currency, w.CreatedAt); err != nil {
		return nil, fmt.Errorf("upsert wallet: %w", classify(err))
	}

	query := `SELECT ` + walletColumns + ` FROM wallets WHERE owner_type = $1 AND owner_id = $2`
	existing, err := scanWallet(tx.QueryRow(ctx, query, string(owner.Type), owner.ID))
	if err != nil {
		return nil, fmt.Errorf("get wallet by owner: %w", classify(err))
	}
	if existing == nil {
		return nil, fmt.Errorf("wallet for %s vanished after upsert", owner)
	}
	return existing, nil
}

// GetByID fetches a wallet by its UUID (without locking).
func (r *WalletRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE id = $1`

	w, err := scanWallet(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("get wallet by id: %w", err)
	}
	return w, nil
}

// GetByOwner fetches the owner's wallet (non-locking read).
func (r *WalletRepo) GetByOwner(ctx context.Context, owner domain.Owner) (*domain.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE owner_type = $1 AND owner_id = $2`

	w, err := scanWallet(r.pool.QueryRow(ctx, query, string(owner.Type), owner.ID))
	if err != nil {
		return nil, fmt.Errorf("get wallet by owner: %w", err)
	}
	return w, nil
}

// GetByIDForUpdate fetches a wallet by ID with pessimistic locking.
// This MUST be called within a transaction.
func (r *WalletRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE id = $1 FOR UPDATE`

	w, err := scanWallet(tx.QueryRow(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("get wallet for update by id: %w", classify(err))
	}
	return w, nil
}

// GetByIDForShare reads a wallet under a share lock, which keeps writers
// out until tx ends.
func (r *WalletRepo) GetByIDForShare(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE id = $1 FOR SHARE`

	w, err := scanWallet(tx.QueryRow(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("get wallet for share by id: %w", classify(err))
	}
	return w, nil
}

// UpdateBalances writes the wallet's balance and totals guarded by its version.
func (r *WalletRepo) UpdateBalances(ctx context.Context, tx pgx.Tx, w *domain.Wallet) error {
	now := time.Now().UTC()
	query := `UPDATE wallets
		SET balance = $1::numeric, total_credited = $2::numeric, total_debited = $3::numeric,
			version = version + 1, updated_at = $4
		WHERE id = $5 AND version = $6`

	tag, err := tx.Exec(ctx, query,
		money(w.Balance), money(w.TotalCredited), money(w.TotalDebited),
		now, w.ID, w.Version,
	)
	if err != nil {
		return fmt.Errorf("update wallet balances: %w", classify(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("wallet %s at version %d: %w", w.ID, w.Version, domain.ErrStaleWallet)
	}
	w.Version++
	w.UpdatedAt = now
	return nil
}

// scanWallet returns nil, nil when the row does not exist.
func scanWallet(row pgx.Row) (*domain.Wallet, error) {
	w := &domain.Wallet{}
	var ownerType, balance, credited, debited string
	err := row.Scan(
		&w.ID, &ownerType, &w.OwnerID, &balance, &credited, &debited,
		&w.Currency, &w.Version, &w.CreatedAt, &w.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	w.OwnerType = domain.OwnerType(ownerType)
	if w.Balance, err = parseMoney(balance); err != nil {
		return nil, err
	}
	if w.TotalCredited, err = parseMoney(credited); err != nil {
		return nil, err
	}
	if w.TotalDebited, err = parseMoney(debited); err != nil {
		return nil, err
	}
	return w, nil
}
