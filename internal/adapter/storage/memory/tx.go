package memory

import (
	"context"
	"fmt"
	"sync"

	"staffing-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type stagedWallet struct {
	wallet      *domain.Wallet
	baseVersion int64
	// created marks a wallet inserted by this tx; it has no committed row.
	created bool
}

type link struct {
	invoiceID   *uuid.UUID
	timesheetID *uuid.UUID
}

// memTx stages writes until Commit. Only Commit and Rollback are supported
// from the pgx.Tx surface; the embedded interface is nil.
type memTx struct {
	pgx.Tx

	store *Store

	mu       sync.Mutex
	held     []string
	wallets  map[uuid.UUID]stagedWallet
	created  map[domain.Owner]uuid.UUID
	txns     []*domain.Transaction
	links    map[uuid.UUID]link
	invoices map[uuid.UUID]*domain.Invoice
	closed   bool
}

func asMemTx(tx pgx.Tx) (*memTx, error) {
	mt, ok := tx.(*memTx)
	if !ok {
		return nil, errForeignTx
	}
	mt.mu.Lock()
	closed := mt.closed
	mt.mu.Unlock()
	if closed {
		return nil, pgx.ErrTxClosed
	}
	return mt, nil
}

func (t *memTx) lock(ctx context.Context, key string) error {
	t.mu.Lock()
	for _, k := range t.held {
		if k == key {
			t.mu.Unlock()
			return nil
		}
	}
	t.mu.Unlock()

	if err := t.store.acquire(ctx, key); err != nil {
		return err
	}

	t.mu.Lock()
	t.held = append(t.held, key)
	t.mu.Unlock()
	return nil
}

func (t *memTx) releaseAll() {
	for i := len(t.held) - 1; i >= 0; i-- {
		t.store.release(t.held[i])
	}
	t.held = nil
}

// Commit applies the staged writes atomically. A wallet whose committed
// version moved since it was staged aborts the whole unit.
func (t *memTx) Commit(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return pgx.ErrTxClosed
	}
	t.closed = true
	defer t.releaseAll()

	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, sw := range t.wallets {
		if sw.created {
			// Someone else committed a wallet for this owner first.
			if _, taken := s.walletByOwner[sw.wallet.Owner()]; taken {
				return fmt.Errorf("wallet for %s: %w", sw.wallet.Owner(), domain.ErrStaleWallet)
			}
			continue
		}
		current, ok := s.wallets[id]
		if !ok {
			return fmt.Errorf("wallet %s: not found", id)
		}
		if current.Version != sw.baseVersion {
			return fmt.Errorf("wallet %s: %w", id, domain.ErrStaleWallet)
		}
	}
	for _, txn := range t.txns {
		if _, dup := s.txnByRef[txn.Reference]; dup {
			return fmt.Errorf("duplicate transaction reference %s", txn.Reference)
		}
	}

	for id, sw := range t.wallets {
		w := sw.wallet.Clone()
		s.wallets[id] = w
		if sw.created {
			s.walletByOwner[w.Owner()] = id
		}
	}
	for _, txn := range t.txns {
		s.txns[txn.ID] = cloneTransaction(txn)
		s.txnByRef[txn.Reference] = txn.ID
		s.txnOrder = append(s.txnOrder, txn.ID)
	}
	for id, l := range t.links {
		committed, ok := s.txns[id]
		if !ok {
			continue
		}
		if committed.InvoiceID == nil && l.invoiceID != nil {
			v := *l.invoiceID
			committed.InvoiceID = &v
		}
		if committed.TimesheetID == nil && l.timesheetID != nil {
			v := *l.timesheetID
			committed.TimesheetID = &v
		}
	}
	for id, inv := range t.invoices {
		s.invoices[id] = cloneInvoice(inv)
	}
	return nil
}

// Rollback discards the staged writes and releases held locks.
func (t *memTx) Rollback(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return pgx.ErrTxClosed
	}
	t.closed = true
	t.releaseAll()
	return nil
}
