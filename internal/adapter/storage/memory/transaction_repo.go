package memory

import (
	"context"
	"fmt"
	"sort"

	"staffing-ledger/internal/core/domain"
	"staffing-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// TransactionRepo implements ports.TransactionRepository.
type TransactionRepo struct {
	store *Store
}

// NewTransactionRepo creates a TransactionRepo over s.
func NewTransactionRepo(s *Store) *TransactionRepo {
	return &TransactionRepo{store: s}
}

func (r *TransactionRepo) Create(ctx context.Context, tx pgx.Tx, t *domain.Transaction) error {
	mt, err := asMemTx(tx)
	if err != nil {
		return err
	}
	mt.mu.Lock()
	defer mt.mu.Unlock()

	if _, staged := mt.wallets[t.WalletID]; !staged {
		r.store.mu.RLock()
		_, ok := r.store.wallets[t.WalletID]
		r.store.mu.RUnlock()
		if !ok {
			return fmt.Errorf("insert transaction: wallet %s does not exist", t.WalletID)
		}
	}
	mt.txns = append(mt.txns, cloneTransaction(t))
	return nil
}

// AttachLinks fills links that are still unset, on staged or committed rows.
func (r *TransactionRepo) AttachLinks(ctx context.Context, tx pgx.Tx, id uuid.UUID, invoiceID, timesheetID *uuid.UUID) error {
	mt, err := asMemTx(tx)
	if err != nil {
		return err
	}
	mt.mu.Lock()
	defer mt.mu.Unlock()

	for _, staged := range mt.txns {
		if staged.ID != id {
			continue
		}
		if staged.InvoiceID == nil && invoiceID != nil {
			v := *invoiceID
			staged.InvoiceID = &v
		}
		if staged.TimesheetID == nil && timesheetID != nil {
			v := *timesheetID
			staged.TimesheetID = &v
		}
		return nil
	}

	r.store.mu.RLock()
	_, ok := r.store.txns[id]
	r.store.mu.RUnlock()
	if !ok {
		return fmt.Errorf("transaction not found: %s", id)
	}
	l := mt.links[id]
	if l.invoiceID == nil {
		l.invoiceID = invoiceID
	}
	if l.timesheetID == nil {
		l.timesheetID = timesheetID
	}
	mt.links[id] = l
	return nil
}

func (r *TransactionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	if t, ok := s.txns[id]; ok {
		return cloneTransaction(t), nil
	}
	return nil, nil
}

func (r *TransactionRepo) GetByReference(ctx context.Context, reference string) (*domain.Transaction, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	if id, ok := s.txnByRef[reference]; ok {
		return cloneTransaction(s.txns[id]), nil
	}
	return nil, nil
}

// ListByWallet returns one page of history, newest first.
func (r *TransactionRepo) ListByWallet(ctx context.Context, params ports.TransactionListParams) ([]domain.Transaction, int64, error) {
	s := r.store
	s.mu.RLock()
	var matched []domain.Transaction
	for i := len(s.txnOrder) - 1; i >= 0; i-- {
		t := s.txns[s.txnOrder[i]]
		if t.WalletID != params.WalletID {
			continue
		}
		if params.Type != nil && t.Type != *params.Type {
			continue
		}
		if params.Category != nil && t.Category != *params.Category {
			continue
		}
		matched = append(matched, *t)
	}
	s.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := int64(len(matched))
	start := params.Offset()
	if start >= len(matched) {
		return []domain.Transaction{}, total, nil
	}
	end := len(matched)
	if params.PageSize > 0 && start+params.PageSize < end {
		end = start + params.PageSize
	}
	return matched[start:end], total, nil
}

// SumByWallet recomputes totals from committed history.
func (r *TransactionRepo) SumByWallet(ctx context.Context, tx pgx.Tx, walletID uuid.UUID) (*ports.WalletTotals, error) {
	if _, err := asMemTx(tx); err != nil {
		return nil, err
	}
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	totals := &ports.WalletTotals{}
	for _, id := range s.txnOrder {
		t := s.txns[id]
		if t.WalletID != walletID {
			continue
		}
		totals.Count++
		switch t.Type {
		case domain.TransactionTypeCredit:
			totals.Credited = totals.Credited.Add(t.Amount)
		case domain.TransactionTypeDebit:
			totals.Debited = totals.Debited.Add(t.Amount)
		}
	}
	return totals, nil
}
