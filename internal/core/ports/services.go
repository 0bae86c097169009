package ports

import (
	"context"
	"time"

	"staffing-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// SignatureService handles HMAC-SHA256 signing and verification.
type SignatureService interface {
	Sign(secretKey string, payload string) string
	Verify(secretKey string, payload string, signature string) bool
}

// TokenService handles JWT token operations.
type TokenService interface {
	Generate(userID uuid.UUID, role string) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	UserID uuid.UUID
	Role   string
}

// IdempotencyCache is the Redis-layer replay cache for adjustments.
type IdempotencyCache interface {
	Get(ctx context.Context, key string) ([]byte, error) // Returns cached response JSON or nil
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// RequestLock marks a keyed request as in flight.
type RequestLock interface {
	// Acquire returns true if the key was free and is now held.
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// EventPublisher ships ledger events to downstream consumers.
type EventPublisher interface {
	// Publish ships events in one write.
	Publish(ctx context.Context, events ...domain.LedgerEvent) error
	Close() error
}

// AuditService records audit entries without blocking the caller.
type AuditService interface {
	Log(ctx context.Context, entry *domain.AuditLog)
}

// --- Service Ports (Business Logic) ---

// WalletAccessor resolves wallets for owners.
type WalletAccessor interface {
	GetOrCreate(ctx context.Context, owner domain.Owner) (*domain.Wallet, error)
	// GetOrCreateTx resolves the owner's wallet inside tx. A wallet created
	// here only exists if tx commits.
	GetOrCreateTx(ctx context.Context, tx pgx.Tx, owner domain.Owner) (*domain.Wallet, error)
	HasSufficientBalance(wallet *domain.Wallet, amount decimal.Decimal) bool
}

// LegRequest describes one credit or debit.
type LegRequest struct {
	Amount      decimal.Decimal
	Category    domain.Category
	Description string
	PerformedBy *uuid.UUID
	Reason      *string
	ProofFile   *string
	InvoiceID   *uuid.UUID
	TimesheetID *uuid.UUID
}

// TransactionEngine is the only code path that changes a wallet balance.
// Both calls run inside the caller's database transaction; the wallet must
// have been locked in that transaction.
type TransactionEngine interface {
	Credit(ctx context.Context, tx pgx.Tx, wallet *domain.Wallet, leg LegRequest) (*domain.Transaction, error)
	Debit(ctx context.Context, tx pgx.Tx, wallet *domain.Wallet, leg LegRequest) (*domain.Transaction, error)
}

// SettlementService settles invoices.
type SettlementService interface {
	SettleInvoice(ctx context.Context, req SettleRequest) (*domain.SettlementResult, error)
}

// SettleRequest holds validated input for an invoice settlement.
type SettleRequest struct {
	InvoiceID     uuid.UUID
	PerformedBy   *uuid.UUID
	PaymentMethod string
}

// AdjustmentService applies manual credits and debits.
type AdjustmentService interface {
	Adjust(ctx context.Context, req AdjustmentRequest) (*domain.Transaction, error)
}

// AdjustmentRequest holds validated input for a manual adjustment.
type AdjustmentRequest struct {
	Owner          domain.Owner
	Direction      domain.TransactionType
	Amount         decimal.Decimal
	Category       domain.Category // empty = manual_credit / manual_debit
	Reason         string
	ProofFile      *string
	PerformedBy    uuid.UUID
	IdempotencyKey string
}

// LedgerQueryService serves read-side ledger queries.
type LedgerQueryService interface {
	GetWallet(ctx context.Context, owner domain.Owner, page, pageSize int) (*WalletStatement, error)
	GetTransaction(ctx context.Context, idOrReference string) (*TransactionDetail, error)
	ReconcileWallet(ctx context.Context, owner domain.Owner) (*domain.Reconciliation, error)
}

// WalletStatement is a wallet plus one page of its history.
type WalletStatement struct {
	Wallet       *domain.Wallet
	Transactions []domain.Transaction
	Total        int64
	Page         int
	PageSize     int
}

// TransactionDetail is a transaction with its owner and resolved links.
type TransactionDetail struct {
	Transaction *domain.Transaction
	Wallet      *domain.Wallet
	Invoice     *domain.Invoice
	Timesheet   *domain.Timesheet
}

// Notifier is informed of committed ledger changes. Errors are reported to
// the caller but never undo the change.
type Notifier interface {
	Name() string
	InvoiceSettled(ctx context.Context, invoice *domain.Invoice, result *domain.SettlementResult) error
	WalletAdjusted(ctx context.Context, wallet *domain.Wallet, txn *domain.Transaction) error
}
