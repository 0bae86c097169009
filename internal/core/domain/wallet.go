package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DefaultCurrency is the only currency the ledger holds.
const DefaultCurrency = "GBP"

// Wallet is a single owner's running balance plus lifetime credit and debit
// totals. Balance is a cached projection of the wallet's transaction history.
type Wallet struct {
	ID            uuid.UUID       `json:"id"`
	OwnerType     OwnerType       `json:"owner_type"`
	OwnerID       uuid.UUID       `json:"owner_id"`
	Balance       decimal.Decimal `json:"balance"`
	TotalCredited decimal.Decimal `json:"total_credited"`
	TotalDebited  decimal.Decimal `json:"total_debited"`
	Currency      string          `json:"currency"`
	Version       int64           `json:"-"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// NewWallet returns an empty wallet for owner.
func NewWallet(owner Owner, currency string) *Wallet {
	now := time.Now().UTC()
	return &Wallet{
		ID:            uuid.New(),
		OwnerType:     owner.Type,
		OwnerID:       owner.ID,
		Balance:       decimal.Zero,
		TotalCredited: decimal.Zero,
		TotalDebited:  decimal.Zero,
		Currency:      currency,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// Owner returns the wallet's owner reference.
func (w *Wallet) Owner() Owner {
	return Owner{Type: w.OwnerType, ID: w.OwnerID}
}

// HasSufficientBalance reports whether the wallet can cover amount.
func (w *Wallet) HasSufficientBalance(amount decimal.Decimal) bool {
	return w.Balance.GreaterThanOrEqual(amount)
}

// IsConsistent checks balance == total_credited - total_debited.
func (w *Wallet) IsConsistent() bool {
	return w.Balance.Equal(w.TotalCredited.Sub(w.TotalDebited))
}

// Clone returns a copy that can be mutated without touching w.
func (w *Wallet) Clone() *Wallet {
	c := *w
	return &c
}
