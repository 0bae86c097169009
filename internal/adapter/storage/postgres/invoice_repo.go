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

const invoiceColumns = `id, number, care_home_id, status, total::text, paid_at, payment_method, payment_transaction_id`

// InvoiceRepo implements ports.InvoiceRepository over the host application's
// invoices and timesheets tables.
type InvoiceRepo struct {
	pool Pool
}

// NewInvoiceRepo creates a new InvoiceRepo.
func NewInvoiceRepo(pool Pool) *InvoiceRepo {
	return &InvoiceRepo{pool: pool}
}

// GetByID loads an invoice with its timesheets.
func (r *InvoiceRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE id = $1`

	inv, err := scanInvoice(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("get invoice by id: %w", err)
	}
	if inv == nil {
		return nil, nil
	}

	inv.Timesheets, err = r.listTimesheets(ctx, r.pool, id)
	if err != nil {
		return nil, err
	}
	return inv, nil
}

// GetByIDForUpdate locks the invoice row for the rest of the transaction.
func (r *InvoiceRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE id = $1 FOR UPDATE`

	inv, err := scanInvoice(tx.QueryRow(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("get invoice for update: %w", classify(err))
	}
	return inv, nil
}

// ListTimesheets returns the invoice's timesheets ordered by id.
func (r *InvoiceRepo) ListTimesheets(ctx context.Context, tx pgx.Tx, invoiceID uuid.UUID) ([]domain.Timesheet, error) {
	return r.listTimesheets(ctx, tx, invoiceID)
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func (r *InvoiceRepo) listTimesheets(ctx context.Context, q querier, invoiceID uuid.UUID) ([]domain.Timesheet, error) {
	query := `SELECT id, invoice_id, worker_id, total_pay::text
		FROM timesheets WHERE invoice_id = $1 ORDER BY id`

	rows, err := q.Query(ctx, query, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("list timesheets: %w", classify(err))
	}
	defer rows.Close()

	var sheets []domain.Timesheet
	for rows.Next() {
		ts, err := scanTimesheet(rows)
		if err != nil {
			return nil, fmt.Errorf("scan timesheet row: %w", err)
		}
		sheets = append(sheets, *ts)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate timesheet rows: %w", err)
	}
	return sheets, nil
}

// MarkPaid transitions the invoice to paid and records the payer transaction.
func (r *InvoiceRepo) MarkPaid(ctx context.Context, tx pgx.Tx, id uuid.UUID, paidAt time.Time, method string, paymentTxnID uuid.UUID) error {
	query := `UPDATE invoices
		SET status = $1, paid_at = $2, payment_method = $3, payment_transaction_id = $4
		WHERE id = $5 AND status <> $1`

	tag, err := tx.Exec(ctx, query, string(domain.InvoiceStatusPaid), paidAt, method, paymentTxnID, id)
	if err != nil {
		return fmt.Errorf("mark invoice paid: %w", classify(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("invoice %s not found or already paid", id)
	}
	return nil
}

// GetTimesheet fetches a single timesheet.
func (r *InvoiceRepo) GetTimesheet(ctx context.Context, id uuid.UUID) (*domain.Timesheet, error) {
	query := `SELECT id, invoice_id, worker_id, total_pay::text FROM timesheets WHERE id = $1`

	ts, err := scanTimesheet(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get timesheet: %w", err)
	}
	return ts, nil
}

func scanInvoice(row pgx.Row) (*domain.Invoice, error) {
	inv := &domain.Invoice{}
	var status, total string
	err := row.Scan(
		&inv.ID, &inv.Number, &inv.CareHomeID, &status, &total,
		&inv.PaidAt, &inv.PaymentMethod, &inv.PaymentTransactionID,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	inv.Status = domain.InvoiceStatus(status)
	if inv.Total, err = parseMoney(total); err != nil {
		return nil, err
	}
	return inv, nil
}

func scanTimesheet(row pgx.Row) (*domain.Timesheet, error) {
	ts := &domain.Timesheet{}
	var pay string
	if err := row.Scan(&ts.ID, &ts.InvoiceID, &ts.WorkerID, &pay); err != nil {
		return nil, err
	}
	var err error
	if ts.TotalPay, err = parseMoney(pay); err != nil {
		return nil, err
	}
	return ts, nil
}
