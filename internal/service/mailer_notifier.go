package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"staffing-ledger/internal/core/domain"
	"staffing-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// mailerRetryIntervals is the wait before each redelivery attempt.
var mailerRetryIntervals = []time.Duration{
	15 * time.Second,
	60 * time.Second,
	2 * time.Minute,
	5 * time.Minute,
	10 * time.Minute,
}

// SignatureHeader carries the hex HMAC-SHA256 of the request body.
const SignatureHeader = "X-Ledger-Signature"

// HTTPClient interface for testability.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// MailerPayload is the JSON body posted to the mail dispatcher.
type MailerPayload struct {
	EventType domain.NotificationKind `json:"event_type"`
	Data      domain.Notification     `json:"data"`
	Signature string                  `json:"signature"`
}

// MailerNotifier hands notices to the mail-dispatch endpoint, which turns
// them into in-app notifications and emails. Delivery runs in the
// background with retries; every attempt is recorded.
type MailerNotifier struct {
	endpoint   string
	secret     string
	sigSvc     ports.SignatureService
	deliveries ports.NotificationDeliveryRepository
	httpClient HTTPClient
	retries    []time.Duration
	log        zerolog.Logger
	wg         sync.WaitGroup
}

// NewMailerNotifier creates a MailerNotifier. deliveries may be nil.
func NewMailerNotifier(
	endpoint, secret string,
	sigSvc ports.SignatureService,
	deliveries ports.NotificationDeliveryRepository,
	httpClient HTTPClient,
	log zerolog.Logger,
) *MailerNotifier {
	return &MailerNotifier{
		endpoint:   endpoint,
		secret:     secret,
		sigSvc:     sigSvc,
		deliveries: deliveries,
		httpClient: httpClient,
		retries:    mailerRetryIntervals,
		log:        log,
	}
}

func (m *MailerNotifier) Name() string { return "mailer" }

// InvoiceSettled sends one notice per paid worker and a confirmation to the
// care home. A notice that cannot be queued does not hold back the others.
func (m *MailerNotifier) InvoiceSettled(ctx context.Context, inv *domain.Invoice, res *domain.SettlementResult) error {
	var errs []error
	for _, note := range domain.SettlementNotifications(inv, res) {
		if err := m.enqueue(ctx, note); err != nil {
			errs = append(errs, fmt.Errorf("%s for %s: %w", note.Kind, note.Recipient, err))
		}
	}
	return errors.Join(errs...)
}

func (m *MailerNotifier) WalletAdjusted(ctx context.Context, w *domain.Wallet, txn *domain.Transaction) error {
	return m.enqueue(ctx, domain.Notification{
		ID:        uuid.New(),
		Kind:      domain.NotificationWalletAdjusted,
		Recipient: w.Owner(),
		Amount:    txn.SignedAmount(),
		Reference: txn.Reference,
		CreatedAt: time.Now().UTC(),
	})
}

// Wait blocks until every background delivery has finished.
func (m *MailerNotifier) Wait() {
	m.wg.Wait()
}

func (m *MailerNotifier) enqueue(ctx context.Context, note domain.Notification) error {
	data, err := json.Marshal(note)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	body, err := json.Marshal(MailerPayload{
		EventType: note.Kind,
		Data:      note,
		Signature: m.sigSvc.Sign(m.secret, string(data)),
	})
	if err != nil {
		return fmt.Errorf("marshal mailer payload: %w", err)
	}

	now := time.Now().UTC()
	delivery := &domain.NotificationDelivery{
		ID:             uuid.New(),
		NotificationID: note.ID,
		Kind:           note.Kind,
		InvoiceID:      note.InvoiceID,
		Endpoint:       m.endpoint,
		Payload:        string(body),
		Status:         domain.DeliveryStatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if m.deliveries != nil {
		if err := m.deliveries.Create(ctx, delivery); err != nil {
			return fmt.Errorf("record notification delivery: %w", err)
		}
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.deliverWithRetries(context.WithoutCancel(ctx), delivery, body)
	}()
	return nil
}

// deliverWithRetries posts body until a 2xx answer or the schedule runs out.
func (m *MailerNotifier) deliverWithRetries(ctx context.Context, d *domain.NotificationDelivery, body []byte) {
	log := m.log.With().
		Str("notification_id", d.NotificationID.String()).
		Str("kind", string(d.Kind)).
		Logger()

	for attempt := 0; attempt <= len(m.retries); attempt++ {
		if attempt > 0 {
			time.Sleep(m.retries[attempt-1])
		}
		d.Attempt = attempt + 1

		status, err := m.post(ctx, body)
		if err == nil {
			d.HTTPStatus = &status
			d.Status = domain.DeliveryStatusDelivered
			d.LastError = nil
			m.record(ctx, d)
			log.Info().Int("attempt", d.Attempt).Int("status", status).Msg("mailer: delivered")
			return
		}

		msg := err.Error()
		d.LastError = &msg
		if status != 0 {
			d.HTTPStatus = &status
		}
		m.record(ctx, d)
		log.Warn().Err(err).Int("attempt", d.Attempt).Msg("mailer: delivery failed")
	}

	d.Status = domain.DeliveryStatusFailed
	m.record(ctx, d)
	log.Error().Msg("mailer: all retry attempts exhausted")
}

func (m *MailerNotifier) post(ctx context.Context, body []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(SignatureHeader, m.sigSvc.Sign(m.secret, string(body)))

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	if resp.Body != nil {
		resp.Body.Close()
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, fmt.Errorf("non-2xx response: %d", resp.StatusCode)
	}
	return resp.StatusCode, nil
}

func (m *MailerNotifier) record(ctx context.Context, d *domain.NotificationDelivery) {
	if m.deliveries == nil {
		return
	}
	d.UpdatedAt = time.Now().UTC()
	if err := m.deliveries.Update(ctx, d); err != nil {
		m.log.Warn().Err(err).Str("delivery_id", d.ID.String()).Msg("mailer: failed to record delivery attempt")
	}
}
