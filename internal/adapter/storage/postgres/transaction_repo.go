package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"staffing-ledger/internal/core/domain"
	"staffing-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const transactionColumns = `id, reference, wallet_id, type, category, amount::text, balance_before::text, balance_after::text,
		description, reason, proof_file, invoice_id, timesheet_id, performed_by, created_at`

// TransactionRepo implements ports.TransactionRepository.
type TransactionRepo struct {
	pool Pool
}

// NewTransactionRepo creates a new TransactionRepo.
func NewTransactionRepo(pool Pool) *TransactionRepo {
	return &TransactionRepo{pool: pool}
}

// Create inserts a new transaction within a DB transaction.
func (r *TransactionRepo) Create(ctx context.Context, tx pgx.Tx, t *domain.Transaction) error {
	query := `INSERT INTO transactions
		(id, reference, wallet_id, type, category, amount, balance_before, balance_after,
		 description, reason, proof_file, invoice_id, timesheet_id, performed_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6::numeric, $7::numeric, $8::numeric, $9, $10, $11, $12, $13, $14, $15)`

	_, err := tx.Exec(ctx, query,
		t.ID, t.Reference, t.WalletID, string(t.Type), string(t.Category),
		money(t.Amount), money(t.BalanceBefore), money(t.BalanceAfter),
		t.Description, t.Reason, t.ProofFile, t.InvoiceID, t.TimesheetID,
		t.PerformedBy, t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", classify(err))
	}
	return nil
}

// AttachLinks fills invoice/timesheet links that are still NULL.
func (r *TransactionRepo) AttachLinks(ctx context.Context, tx pgx.Tx, id uuid.UUID, invoiceID, timesheetID *uuid.UUID) error {
	query := `UPDATE transactions
		SET invoice_id = COALESCE(invoice_id, $1), timesheet_id = COALESCE(timesheet_id, $2)
		WHERE id = $3`

	tag, err := tx.Exec(ctx, query, invoiceID, timesheetID, id)
	if err != nil {
		return fmt.Errorf("attach transaction links: %w", classify(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("transaction not found: %s", id)
	}
	return nil
}

// GetByID fetches a transaction by its UUID.
func (r *TransactionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`

	t, err := scanTransaction(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("get transaction by id: %w", err)
	}
	return t, nil
}

// GetByReference fetches a transaction by its external reference.
func (r *TransactionRepo) GetByReference(ctx context.Context, reference string) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE reference = $1`

	t, err := scanTransaction(r.pool.QueryRow(ctx, query, reference))
	if err != nil {
		return nil, fmt.Errorf("get transaction by reference: %w", err)
	}
	return t, nil
}

// ListByWallet retrieves a page of a wallet's history, newest first.
func (r *TransactionRepo) ListByWallet(ctx context.Context, params ports.TransactionListParams) ([]domain.Transaction, int64, error) {
	var conditions []string
	var args []any
	argIdx := 1

	conditions = append(conditions, fmt.Sprintf("wallet_id = $%d", argIdx))
	args = append(args, params.WalletID)
	argIdx++

	if params.Type != nil {
		conditions = append(conditions, fmt.Sprintf("type = $%d", argIdx))
		args = append(args, string(*params.Type))
		argIdx++
	}
	if params.Category != nil {
		conditions = append(conditions, fmt.Sprintf("category = $%d", argIdx))
		args = append(args, string(*params.Category))
		argIdx++
	}

	where := "WHERE " + strings.Join(conditions, " AND ")

	// Count total
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM transactions %s", where)
	var total int64
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count transactions: %w", err)
	}

	offset := params.Offset()
	if offset > 0 && int64(offset) >= total {
		return []domain.Transaction{}, total, nil
	}

	// Fetch page
	dataQuery := fmt.Sprintf(`SELECT %s FROM transactions %s
		ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`, transactionColumns, where, argIdx, argIdx+1)
	args = append(args, params.PageSize, offset)

	rows, err := r.pool.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	txns := make([]domain.Transaction, 0, params.PageSize)
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan transaction row: %w", err)
		}
		txns = append(txns, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate transaction rows: %w", err)
	}
	return txns, total, nil
}

// SumByWallet recomputes a wallet's credit and debit totals from history.
func (r *TransactionRepo) SumByWallet(ctx context.Context, tx pgx.Tx, walletID uuid.UUID) (*ports.WalletTotals, error) {
	query := `SELECT
		COALESCE(SUM(amount) FILTER (WHERE type = 'credit'), 0)::text AS credited,
		COALESCE(SUM(amount) FILTER (WHERE type = 'debit'), 0)::text AS debited,
		COUNT(*) AS total
		FROM transactions WHERE wallet_id = $1`

	var credited, debited string
	totals := &ports.WalletTotals{}
	if err := tx.QueryRow(ctx, query, walletID).Scan(&credited, &debited, &totals.Count); err != nil {
		return nil, fmt.Errorf("sum wallet transactions: %w", classify(err))
	}
	var err error
	if totals.Credited, err = parseMoney(credited); err != nil {
		return nil, err
	}
	if totals.Debited, err = parseMoney(debited); err != nil {
		return nil, err
	}
	return totals, nil
}

// scanTransaction returns nil, nil when the row does not exist.
func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	t := &domain.Transaction{}
	var txType, category, amount, before, after string
	err := row.Scan(
		&t.ID, &t.Reference, &t.WalletID, &txType, &category,
		&amount, &before, &after,
		&t.Description, &t.Reason, &t.ProofFile, &t.InvoiceID, &t.TimesheetID,
		&t.PerformedBy, &t.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	t.Type = domain.TransactionType(txType)
	t.Category = domain.Category(category)
	if t.Amount, err = parseMoney(amount); err != nil {
		return nil, err
	}
	if t.BalanceBefore, err = parseMoney(before); err != nil {
		return nil, err
	}
	if t.BalanceAfter, err = parseMoney(after); err != nil {
		return nil, err
	}
	return t, nil
}
