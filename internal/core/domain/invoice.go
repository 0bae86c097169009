package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InvoiceStatus is the billing state of an invoice.
type InvoiceStatus string

const (
	InvoiceStatusDraft     InvoiceStatus = "draft"
	InvoiceStatusSent      InvoiceStatus = "sent"
	InvoiceStatusOverdue   InvoiceStatus = "overdue"
	InvoiceStatusPaid      InvoiceStatus = "paid"
	InvoiceStatusCancelled InvoiceStatus = "cancelled"
)

// DefaultPaymentMethod is recorded when the caller names none.
const DefaultPaymentMethod = "wallet"

// Invoice bills a care home for a set of timesheets. The ledger reads it and
// owns only its transition to paid.
type Invoice struct {
	ID                   uuid.UUID       `json:"id"`
	Number               string          `json:"number"`
	CareHomeID           uuid.UUID       `json:"care_home_id"`
	Status               InvoiceStatus   `json:"status"`
	Total                decimal.Decimal `json:"total"`
	PaidAt               *time.Time      `json:"paid_at,omitempty"`
	PaymentMethod        *string         `json:"payment_method,omitempty"`
	PaymentTransactionID *uuid.UUID      `json:"payment_transaction_id,omitempty"`
	Timesheets           []Timesheet     `json:"timesheets,omitempty"`
}

// IsPaid reports whether the invoice has been settled.
func (i *Invoice) IsPaid() bool {
	return i.Status == InvoiceStatusPaid
}

// IsPayable reports whether the invoice may be settled now.
func (i *Invoice) IsPayable() bool {
	switch i.Status {
	case InvoiceStatusDraft, InvoiceStatusSent, InvoiceStatusOverdue:
		return true
	}
	return false
}

// Payer is the care home wallet owner debited on settlement.
func (i *Invoice) Payer() Owner {
	return CareHomeOwner(i.CareHomeID)
}

// Timesheet is one worker's billed work on an invoice.
type Timesheet struct {
	ID        uuid.UUID       `json:"id"`
	InvoiceID uuid.UUID       `json:"invoice_id"`
	WorkerID  uuid.UUID       `json:"worker_id"`
	TotalPay  decimal.Decimal `json:"total_pay"`
}

// Payee is the worker wallet owner credited for this timesheet.
func (t *Timesheet) Payee() Owner {
	return WorkerOwner(t.WorkerID)
}
