package dto

import (
	"encoding/json"
	"time"

	"staffing-ledger/internal/core/domain"
	"staffing-ledger/internal/core/ports"

	"github.com/shopspring/decimal"
)

// SettleInvoiceRequest is the optional body of an invoice settlement.
type SettleInvoiceRequest struct {
	PaymentMethod string `json:"payment_method" binding:"omitempty,max=30,safe_id"`
}

// AdjustmentRequest is the body of a manual wallet adjustment. Amount
// accepts a JSON number or a numeric string.
type AdjustmentRequest struct {
	Direction string      `json:"direction" binding:"required,oneof=credit debit"`
	Amount    json.Number `json:"amount" binding:"required,money"`
	Reason    string      `json:"reason" binding:"required,max=500"`
	ProofFile *string     `json:"proof_file,omitempty" binding:"omitempty,max=500"`
	Category  string      `json:"category,omitempty" binding:"omitempty,oneof=manual_credit manual_debit refund adjustment withdrawal"`
}

// TransactionResponse is the wire shape of a ledger transaction.
type TransactionResponse struct {
	ID            string  `json:"id"`
	Reference     string  `json:"reference"`
	WalletID      string  `json:"wallet_id"`
	Type          string  `json:"type"`
	Category      string  `json:"category"`
	Amount        string  `json:"amount"`
	BalanceBefore string  `json:"balance_before"`
	BalanceAfter  string  `json:"balance_after"`
	Description   string  `json:"description"`
	Reason        *string `json:"reason,omitempty"`
	ProofFile     *string `json:"proof_file,omitempty"`
	InvoiceID     *string `json:"invoice_id,omitempty"`
	TimesheetID   *string `json:"timesheet_id,omitempty"`
	PerformedBy   *string `json:"performed_by,omitempty"`
	CreatedAt     string  `json:"created_at"`
}

// WalletResponse is the wire shape of a wallet projection.
type WalletResponse struct {
	ID            string `json:"id"`
	OwnerType     string `json:"owner_type"`
	OwnerID       string `json:"owner_id"`
	Balance       string `json:"balance"`
	TotalCredited string `json:"total_credited"`
	TotalDebited  string `json:"total_debited"`
	Currency      string `json:"currency"`
	UpdatedAt     string `json:"updated_at"`
}

// WalletStatementResponse is a wallet with one page of history.
type WalletStatementResponse struct {
	Wallet       WalletResponse        `json:"wallet"`
	Transactions []TransactionResponse `json:"transactions"`
}

// SettlementResponse is the outcome of a settled invoice.
type SettlementResponse struct {
	InvoiceID         string                `json:"invoice_id"`
	InvoiceNumber     string                `json:"invoice_number"`
	Status            string                `json:"status"`
	PaidAt            string                `json:"paid_at"`
	PaymentMethod     string                `json:"payment_method"`
	PayerTransaction  *TransactionResponse  `json:"payer_transaction"`
	PayeeTransactions []TransactionResponse `json:"payee_transactions"`
	TransactionIDs    []string              `json:"transaction_ids"`
	PaidOut           string                `json:"paid_out"`
}

// InvoiceSummary is the invoice linkage shown on a transaction detail.
type InvoiceSummary struct {
	ID     string  `json:"id"`
	Number string  `json:"number"`
	Status string  `json:"status"`
	Total  string  `json:"total"`
	PaidAt *string `json:"paid_at,omitempty"`
}

// TimesheetSummary is the timesheet linkage shown on a transaction detail.
type TimesheetSummary struct {
	ID       string `json:"id"`
	WorkerID string `json:"worker_id"`
	TotalPay string `json:"total_pay"`
}

// TransactionDetailResponse is a transaction with its owner and links.
type TransactionDetailResponse struct {
	Transaction TransactionResponse `json:"transaction"`
	Wallet      *WalletResponse     `json:"wallet,omitempty"`
	Invoice     *InvoiceSummary     `json:"invoice,omitempty"`
	Timesheet   *TimesheetSummary   `json:"timesheet,omitempty"`
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func money(d decimal.Decimal) string {
	return d.StringFixed(domain.MoneyScale)
}

func optionalID[T interface{ String() string }](v *T) *string {
	if v == nil {
		return nil
	}
	s := (*v).String()
	return &s
}

// NewTransactionResponse converts a domain transaction.
func NewTransactionResponse(t *domain.Transaction) TransactionResponse {
	return TransactionResponse{
		ID:            t.ID.String(),
		Reference:     t.Reference,
		WalletID:      t.WalletID.String(),
		Type:          string(t.Type),
		Category:      string(t.Category),
		Amount:        money(t.Amount),
		BalanceBefore: money(t.BalanceBefore),
		BalanceAfter:  money(t.BalanceAfter),
		Description:   t.Description,
		Reason:        t.Reason,
		ProofFile:     t.ProofFile,
		InvoiceID:     optionalID(t.InvoiceID),
		TimesheetID:   optionalID(t.TimesheetID),
		PerformedBy:   optionalID(t.PerformedBy),
		CreatedAt:     formatTime(t.CreatedAt),
	}
}

// NewWalletResponse converts a domain wallet.
func NewWalletResponse(w *domain.Wallet) WalletResponse {
	return WalletResponse{
		ID:            w.ID.String(),
		OwnerType:     string(w.OwnerType),
		OwnerID:       w.OwnerID.String(),
		Balance:       money(w.Balance),
		TotalCredited: money(w.TotalCredited),
		TotalDebited:  money(w.TotalDebited),
		Currency:      w.Currency,
		UpdatedAt:     formatTime(w.UpdatedAt),
	}
}

// NewWalletStatementResponse converts a wallet statement.
func NewWalletStatementResponse(st *ports.WalletStatement) WalletStatementResponse {
	resp := WalletStatementResponse{
		Wallet:       NewWalletResponse(st.Wallet),
		Transactions: make([]TransactionResponse, 0, len(st.Transactions)),
	}
	for i := range st.Transactions {
		resp.Transactions = append(resp.Transactions, NewTransactionResponse(&st.Transactions[i]))
	}
	return resp
}

// NewSettlementResponse converts a settlement result.
func NewSettlementResponse(res *domain.SettlementResult) SettlementResponse {
	resp := SettlementResponse{
		InvoiceID:         res.InvoiceID.String(),
		InvoiceNumber:     res.InvoiceNumber,
		Status:            string(res.Status),
		PaidAt:            formatTime(res.PaidAt),
		PaymentMethod:     res.PaymentMethod,
		PayeeTransactions: make([]TransactionResponse, 0, len(res.PayeeTransactions)),
		TransactionIDs:    res.TransactionIDs(),
		PaidOut:           money(res.PaidOut()),
	}
	if res.PayerTransaction != nil {
		payer := NewTransactionResponse(res.PayerTransaction)
		resp.PayerTransaction = &payer
	}
	for _, t := range res.PayeeTransactions {
		resp.PayeeTransactions = append(resp.PayeeTransactions, NewTransactionResponse(t))
	}
	return resp
}

// NewTransactionDetailResponse converts a transaction detail.
func NewTransactionDetailResponse(d *ports.TransactionDetail) TransactionDetailResponse {
	resp := TransactionDetailResponse{Transaction: NewTransactionResponse(d.Transaction)}
	if d.Wallet != nil {
		w := NewWalletResponse(d.Wallet)
		resp.Wallet = &w
	}
	if inv := d.Invoice; inv != nil {
		resp.Invoice = &InvoiceSummary{
			ID:     inv.ID.String(),
			Number: inv.Number,
			Status: string(inv.Status),
			Total:  money(inv.Total),
		}
		if inv.PaidAt != nil {
			s := formatTime(*inv.PaidAt)
			resp.Invoice.PaidAt = &s
		}
	}
	if ts := d.Timesheet; ts != nil {
		resp.Timesheet = &TimesheetSummary{
			ID:       ts.ID.String(),
			WorkerID: ts.WorkerID.String(),
			TotalPay: money(ts.TotalPay),
		}
	}
	return resp
}
