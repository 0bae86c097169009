package memory

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"time"

	"staffing-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// InvoiceRepo implements ports.InvoiceRepository.
type InvoiceRepo struct {
	store *Store
}

// NewInvoiceRepo creates an InvoiceRepo over s.
func NewInvoiceRepo(s *Store) *InvoiceRepo {
	return &InvoiceRepo{store: s}
}

func (r *InvoiceRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Invoice, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	inv, ok := s.invoices[id]
	if !ok {
		return nil, nil
	}
	c := cloneInvoice(inv)
	c.Timesheets = r.timesheetsLocked(id)
	return c, nil
}

// GetByIDForUpdate locks the invoice for the rest of tx.
func (r *InvoiceRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Invoice, error) {
	mt, err := asMemTx(tx)
	if err != nil {
		return nil, err
	}
	if err := mt.lock(ctx, invoiceLockKey(id)); err != nil {
		return nil, fmt.Errorf("lock invoice: %w", err)
	}

	mt.mu.Lock()
	staged, ok := mt.invoices[id]
	mt.mu.Unlock()
	if ok {
		return cloneInvoice(staged), nil
	}

	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	inv, ok := s.invoices[id]
	if !ok {
		return nil, nil
	}
	return cloneInvoice(inv), nil
}

func (r *InvoiceRepo) ListTimesheets(ctx context.Context, tx pgx.Tx, invoiceID uuid.UUID) ([]domain.Timesheet, error) {
	if _, err := asMemTx(tx); err != nil {
		return nil, err
	}
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	return r.timesheetsLocked(invoiceID), nil
}

// timesheetsLocked expects s.mu to be held.
func (r *InvoiceRepo) timesheetsLocked(invoiceID uuid.UUID) []domain.Timesheet {
	var out []domain.Timesheet
	for _, ts := range r.store.timesheets {
		if ts.InvoiceID == invoiceID {
			out = append(out, *ts)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i].ID[:], out[j].ID[:]) < 0
	})
	return out
}

// MarkPaid stages the paid transition.
func (r *InvoiceRepo) MarkPaid(ctx context.Context, tx pgx.Tx, id uuid.UUID, paidAt time.Time, method string, paymentTxnID uuid.UUID) error {
	mt, err := asMemTx(tx)
	if err != nil {
		return err
	}
	inv, err := r.GetByIDForUpdate(ctx, tx, id)
	if err != nil {
		return err
	}
	if inv == nil || inv.IsPaid() {
		return fmt.Errorf("invoice %s not found or already paid", id)
	}

	inv.Status = domain.InvoiceStatusPaid
	inv.PaidAt = &paidAt
	inv.PaymentMethod = &method
	inv.PaymentTransactionID = &paymentTxnID

	mt.mu.Lock()
	mt.invoices[id] = inv
	mt.mu.Unlock()
	return nil
}

func (r *InvoiceRepo) GetTimesheet(ctx context.Context, id uuid.UUID) (*domain.Timesheet, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	if ts, ok := s.timesheets[id]; ok {
		c := *ts
		return &c, nil
	}
	return nil, nil
}
