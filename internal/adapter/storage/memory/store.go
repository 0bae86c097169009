// Package memory is a process-local ledger store with the same transactional
// contract as the PostgreSQL adapter: row locks with a bounded wait, staged
// writes applied on commit, and a version check on wallet writes.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"staffing-ledger/internal/core/domain"
	"staffing-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// DefaultLockTimeout bounds row-lock waits when none is configured.
const DefaultLockTimeout = 5 * time.Second

var errForeignTx = errors.New("memory store: transaction was not started by this store")

// Store holds every ledger relation in memory.
type Store struct {
	mu            sync.RWMutex
	wallets       map[uuid.UUID]*domain.Wallet
	walletByOwner map[domain.Owner]uuid.UUID
	txns          map[uuid.UUID]*domain.Transaction
	txnByRef      map[string]uuid.UUID
	txnOrder      []uuid.UUID
	invoices      map[uuid.UUID]*domain.Invoice
	timesheets    map[uuid.UUID]*domain.Timesheet
	audit         []domain.AuditLog
	deliveries    map[uuid.UUID]*domain.NotificationDelivery

	locksMu     sync.Mutex
	locks       map[string]chan struct{}
	lockTimeout time.Duration
}

// NewStore creates an empty store. lockTimeout <= 0 uses DefaultLockTimeout.
func NewStore(lockTimeout time.Duration) *Store {
	if lockTimeout <= 0 {
		lockTimeout = DefaultLockTimeout
	}
	return &Store{
		wallets:       make(map[uuid.UUID]*domain.Wallet),
		walletByOwner: make(map[domain.Owner]uuid.UUID),
		txns:          make(map[uuid.UUID]*domain.Transaction),
		txnByRef:      make(map[string]uuid.UUID),
		invoices:      make(map[uuid.UUID]*domain.Invoice),
		timesheets:    make(map[uuid.UUID]*domain.Timesheet),
		deliveries:    make(map[uuid.UUID]*domain.NotificationDelivery),
		locks:         make(map[string]chan struct{}),
		lockTimeout:   lockTimeout,
	}
}

// Begin implements ports.DBTransactor.
func (s *Store) Begin(ctx context.Context) (pgx.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &memTx{
		store:    s,
		wallets:  make(map[uuid.UUID]stagedWallet),
		created:  make(map[domain.Owner]uuid.UUID),
		links:    make(map[uuid.UUID]link),
		invoices: make(map[uuid.UUID]*domain.Invoice),
	}, nil
}

// Ping implements ports.HealthChecker.
func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Name implements ports.HealthChecker.
func (s *Store) Name() string {
	return "memory"
}

// SeedInvoice stores an invoice and its timesheets as the host application
// would have written them.
func (s *Store) SeedInvoice(inv *domain.Invoice) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := *inv
	c.Timesheets = nil
	s.invoices[inv.ID] = &c
	for i := range inv.Timesheets {
		ts := inv.Timesheets[i]
		ts.InvoiceID = inv.ID
		s.timesheets[ts.ID] = &ts
	}
}

// TransactionCount returns the number of committed transactions.
func (s *Store) TransactionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.txnOrder)
}

// AuditLogs returns a copy of the committed audit entries.
func (s *Store) AuditLogs() []domain.AuditLog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.AuditLog, len(s.audit))
	copy(out, s.audit)
	return out
}

// Deliveries returns a copy of the recorded notification deliveries.
func (s *Store) Deliveries() []domain.NotificationDelivery {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.NotificationDelivery, 0, len(s.deliveries))
	for _, d := range s.deliveries {
		out = append(out, *d)
	}
	return out
}

// acquire takes the named row lock, waiting at most the lock timeout.
func (s *Store) acquire(ctx context.Context, key string) error {
	s.locksMu.Lock()
	ch, ok := s.locks[key]
	if !ok {
		ch = make(chan struct{}, 1)
		s.locks[key] = ch
	}
	s.locksMu.Unlock()

	timer := time.NewTimer(s.lockTimeout)
	defer timer.Stop()

	select {
	case ch <- struct{}{}:
		return nil
	case <-timer.C:
		return fmt.Errorf("%s: %w", key, domain.ErrLockNotAvailable)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Store) release(key string) {
	s.locksMu.Lock()
	ch := s.locks[key]
	s.locksMu.Unlock()
	if ch != nil {
		<-ch
	}
}

func walletLockKey(id uuid.UUID) string  { return "wallet:" + id.String() }
func ownerLockKey(o domain.Owner) string { return "owner:" + o.String() }
func invoiceLockKey(id uuid.UUID) string { return "invoice:" + id.String() }

func cloneTransaction(t *domain.Transaction) *domain.Transaction {
	c := *t
	return &c
}

func cloneInvoice(inv *domain.Invoice) *domain.Invoice {
	c := *inv
	c.Timesheets = nil
	return &c
}

var (
	_ ports.WalletRepository               = (*WalletRepo)(nil)
	_ ports.TransactionRepository          = (*TransactionRepo)(nil)
	_ ports.InvoiceRepository              = (*InvoiceRepo)(nil)
	_ ports.AuditRepository                = (*AuditRepo)(nil)
	_ ports.NotificationDeliveryRepository = (*NotificationRepo)(nil)
	_ ports.DBTransactor                   = (*Store)(nil)
	_ ports.HealthChecker                  = (*Store)(nil)
)
