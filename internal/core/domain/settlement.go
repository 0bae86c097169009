package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SettlementResult is the outcome of a committed invoice settlement.
type SettlementResult struct {
	InvoiceID         uuid.UUID      `json:"invoice_id"`
	InvoiceNumber     string         `json:"invoice_number"`
	Status            InvoiceStatus  `json:"status"`
	PaidAt            time.Time      `json:"paid_at"`
	PaymentMethod     string         `json:"payment_method"`
	PayerWalletID     uuid.UUID      `json:"payer_wallet_id"`
	PayerTransaction  *Transaction   `json:"payer_transaction"`
	PayeeTransactions []*Transaction `json:"payee_transactions"`
}

// TransactionIDs lists the references of every leg, payer first.
func (r *SettlementResult) TransactionIDs() []string {
	ids := make([]string, 0, len(r.PayeeTransactions)+1)
	if r.PayerTransaction != nil {
		ids = append(ids, r.PayerTransaction.Reference)
	}
	for _, t := range r.PayeeTransactions {
		ids = append(ids, t.Reference)
	}
	return ids
}

// PaidOut sums the worker credits. It may differ from the invoice total; the
// difference is platform margin.
func (r *SettlementResult) PaidOut() decimal.Decimal {
	sum := decimal.Zero
	for _, t := range r.PayeeTransactions {
		sum = sum.Add(t.Amount)
	}
	return sum
}

// Reconciliation compares a wallet's cached projection with its history.
type Reconciliation struct {
	WalletID         uuid.UUID       `json:"wallet_id"`
	Balance          decimal.Decimal `json:"balance"`
	TotalCredited    decimal.Decimal `json:"total_credited"`
	TotalDebited     decimal.Decimal `json:"total_debited"`
	ComputedCredited decimal.Decimal `json:"computed_credited"`
	ComputedDebited  decimal.Decimal `json:"computed_debited"`
	ComputedBalance  decimal.Decimal `json:"computed_balance"`
	TransactionCount int64           `json:"transaction_count"`
	Consistent       bool            `json:"consistent"`
	Discrepancies    []string        `json:"discrepancies,omitempty"`
	CheckedAt        time.Time       `json:"checked_at"`
}

// NewReconciliation fills the computed side and records every mismatch.
func NewReconciliation(w *Wallet, credited, debited decimal.Decimal, count int64) *Reconciliation {
	r := &Reconciliation{
		WalletID:         w.ID,
		Balance:          w.Balance,
		TotalCredited:    w.TotalCredited,
		TotalDebited:     w.TotalDebited,
		ComputedCredited: credited,
		ComputedDebited:  debited,
		ComputedBalance:  credited.Sub(debited),
		TransactionCount: count,
		CheckedAt:        time.Now().UTC(),
	}
	if !w.TotalCredited.Equal(credited) {
		r.Discrepancies = append(r.Discrepancies, "total_credited differs from sum of credits")
	}
	if !w.TotalDebited.Equal(debited) {
		r.Discrepancies = append(r.Discrepancies, "total_debited differs from sum of debits")
	}
	if !w.Balance.Equal(r.ComputedBalance) {
		r.Discrepancies = append(r.Discrepancies, "balance differs from transaction history")
	}
	if w.Balance.IsNegative() {
		r.Discrepancies = append(r.Discrepancies, "balance is negative")
	}
	r.Consistent = len(r.Discrepancies) == 0
	return r
}
