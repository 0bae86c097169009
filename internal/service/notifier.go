package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"staffing-ledger/internal/core/domain"
	"staffing-ledger/internal/core/ports"

	"github.com/google/uuid"
)

// MultiNotifier fans a ledger change out to every configured notifier. One
// failing notifier does not stop the others.
type MultiNotifier struct {
	notifiers []ports.Notifier
}

// NewMultiNotifier skips nil entries.
func NewMultiNotifier(notifiers ...ports.Notifier) *MultiNotifier {
	m := &MultiNotifier{}
	for _, n := range notifiers {
		if n != nil {
			m.notifiers = append(m.notifiers, n)
		}
	}
	return m
}

func (m *MultiNotifier) Name() string { return "multi" }

// Len returns the number of wrapped notifiers.
func (m *MultiNotifier) Len() int { return len(m.notifiers) }

func (m *MultiNotifier) InvoiceSettled(ctx context.Context, inv *domain.Invoice, res *domain.SettlementResult) error {
	var errs []error
	for _, n := range m.notifiers {
		if err := n.InvoiceSettled(ctx, inv, res); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", n.Name(), err))
		}
	}
	return errors.Join(errs...)
}

func (m *MultiNotifier) WalletAdjusted(ctx context.Context, w *domain.Wallet, txn *domain.Transaction) error {
	var errs []error
	for _, n := range m.notifiers {
		if err := n.WalletAdjusted(ctx, w, txn); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", n.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// EventNotifier turns ledger changes into events on a publisher, one event
// per affected owner.
type EventNotifier struct {
	publisher ports.EventPublisher
}

// NewEventNotifier creates an EventNotifier.
func NewEventNotifier(publisher ports.EventPublisher) *EventNotifier {
	return &EventNotifier{publisher: publisher}
}

func (n *EventNotifier) Name() string { return "events" }

func (n *EventNotifier) InvoiceSettled(ctx context.Context, inv *domain.Invoice, res *domain.SettlementResult) error {
	now := time.Now().UTC()
	invoiceID := res.InvoiceID
	var performedBy *uuid.UUID
	if res.PayerTransaction != nil {
		performedBy = res.PayerTransaction.PerformedBy
	}

	events := []domain.LedgerEvent{{
		ID:          uuid.New(),
		Type:        domain.EventInvoiceSettled,
		Owner:       inv.Payer(),
		InvoiceID:   &invoiceID,
		Amount:      inv.Total,
		References:  res.TransactionIDs(),
		PerformedBy: performedBy,
		OccurredAt:  now,
	}}
	for _, note := range domain.SettlementNotifications(inv, res) {
		if note.Kind != domain.NotificationWorkerPaid {
			continue
		}
		events = append(events, domain.LedgerEvent{
			ID:          uuid.New(),
			Type:        domain.EventInvoiceSettled,
			Owner:       note.Recipient,
			InvoiceID:   &invoiceID,
			Amount:      note.Amount,
			References:  []string{note.Reference},
			PerformedBy: performedBy,
			OccurredAt:  now,
		})
	}

	return n.publisher.Publish(ctx, events...)
}

func (n *EventNotifier) WalletAdjusted(ctx context.Context, w *domain.Wallet, txn *domain.Transaction) error {
	return n.publisher.Publish(ctx, domain.LedgerEvent{
		ID:          uuid.New(),
		Type:        domain.EventWalletAdjusted,
		Owner:       w.Owner(),
		Amount:      txn.SignedAmount(),
		References:  []string{txn.Reference},
		PerformedBy: txn.PerformedBy,
		OccurredAt:  time.Now().UTC(),
	})
}
