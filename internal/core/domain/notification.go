package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EventType names a ledger event published to downstream systems.
type EventType string

const (
	EventInvoiceSettled EventType = "invoice.settled"
	EventWalletAdjusted EventType = "wallet.adjusted"
)

// LedgerEvent is the message body published after a ledger change commits.
type LedgerEvent struct {
	ID          uuid.UUID       `json:"id"`
	Type        EventType       `json:"type"`
	Owner       Owner           `json:"owner"`
	InvoiceID   *uuid.UUID      `json:"invoice_id,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
	References  []string        `json:"transaction_references"`
	PerformedBy *uuid.UUID      `json:"performed_by,omitempty"`
	OccurredAt  time.Time       `json:"occurred_at"`
}

// NotificationKind names a message sent to an account holder.
type NotificationKind string

const (
	NotificationWorkerPaid        NotificationKind = "worker_paid"
	NotificationPayerConfirmation NotificationKind = "payer_confirmation"
	NotificationWalletAdjusted    NotificationKind = "wallet_adjusted"
)

// Notification is one message handed to the mail dispatcher.
type Notification struct {
	ID            uuid.UUID        `json:"id"`
	Kind          NotificationKind `json:"kind"`
	Recipient     Owner            `json:"recipient"`
	InvoiceID     *uuid.UUID       `json:"invoice_id,omitempty"`
	InvoiceNumber string           `json:"invoice_number,omitempty"`
	Amount        decimal.Decimal  `json:"amount"`
	Reference     string           `json:"transaction_reference"`
	CreatedAt     time.Time        `json:"created_at"`
}

// SettlementNotifications builds the worker notices and payer confirmation
// for a committed settlement.
func SettlementNotifications(inv *Invoice, res *SettlementResult) []Notification {
	now := time.Now().UTC()
	out := make([]Notification, 0, len(res.PayeeTransactions)+1)
	byTimesheet := make(map[uuid.UUID]Timesheet, len(inv.Timesheets))
	for _, ts := range inv.Timesheets {
		byTimesheet[ts.ID] = ts
	}
	invoiceID := inv.ID
	for _, t := range res.PayeeTransactions {
		if t.TimesheetID == nil {
			continue
		}
		ts, ok := byTimesheet[*t.TimesheetID]
		if !ok {
			continue
		}
		out = append(out, Notification{
			ID:            uuid.New(),
			Kind:          NotificationWorkerPaid,
			Recipient:     ts.Payee(),
			InvoiceID:     &invoiceID,
			InvoiceNumber: inv.Number,
			Amount:        t.Amount,
			Reference:     t.Reference,
			CreatedAt:     now,
		})
	}
	if res.PayerTransaction != nil {
		out = append(out, Notification{
			ID:            uuid.New(),
			Kind:          NotificationPayerConfirmation,
			Recipient:     inv.Payer(),
			InvoiceID:     &invoiceID,
			InvoiceNumber: inv.Number,
			Amount:        res.PayerTransaction.Amount,
			Reference:     res.PayerTransaction.Reference,
			CreatedAt:     now,
		})
	}
	return out
}

// DeliveryStatus is the state of a notification hand-off to the mailer.
type DeliveryStatus string

const (
	DeliveryStatusPending   DeliveryStatus = "pending"
	DeliveryStatusDelivered DeliveryStatus = "delivered"
	DeliveryStatusFailed    DeliveryStatus = "failed"
)

// NotificationDelivery records the attempts made for one notification.
type NotificationDelivery struct {
	ID             uuid.UUID        `json:"id"`
	NotificationID uuid.UUID        `json:"notification_id"`
	Kind           NotificationKind `json:"kind"`
	InvoiceID      *uuid.UUID       `json:"invoice_id,omitempty"`
	Endpoint       string           `json:"endpoint"`
	Payload        string           `json:"payload"` // JSON string
	HTTPStatus     *int             `json:"http_status"`
	Attempt        int              `json:"attempt"`
	Status         DeliveryStatus   `json:"status"`
	LastError      *string          `json:"last_error"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}
