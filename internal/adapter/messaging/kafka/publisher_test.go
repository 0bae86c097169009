package kafka

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"staffing-ledger/config"
	"staffing-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	msgs   []kafka.Message
	calls  int
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	f.calls++
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func TestPublisher_Publish(t *testing.T) {
	w := &fakeWriter{}
	p := newPublisherWithWriter(w)

	owner := domain.WorkerOwner(uuid.New())
	invoiceID := uuid.New()
	event := domain.LedgerEvent{
		ID:         uuid.New(),
		Type:       domain.EventInvoiceSettled,
		Owner:      owner,
		InvoiceID:  &invoiceID,
		Amount:     decimal.RequireFromString("60.00"),
		References: []string{"TXN-20260101-ABCDEFGHJK"},
		OccurredAt: time.Now().UTC(),
	}

	require.NoError(t, p.Publish(context.Background(), event))
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, owner.String(), string(msg.Key))
	assert.Equal(t, "invoice.settled", string(msg.Headers[0].Value))

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, "invoice.settled", decoded["type"])
	assert.Equal(t, "60", decoded["amount"])
	assert.Equal(t, invoiceID.String(), decoded["invoice_id"])
}

func TestPublisher_PublishBatchesInOneWrite(t *testing.T) {
	w := &fakeWriter{}
	p := newPublisherWithWriter(w)

	payer := domain.CareHomeOwner(uuid.New())
	worker := domain.WorkerOwner(uuid.New())
	require.NoError(t, p.Publish(context.Background(),
		domain.LedgerEvent{ID: uuid.New(), Type: domain.EventInvoiceSettled, Owner: payer},
		domain.LedgerEvent{ID: uuid.New(), Type: domain.EventInvoiceSettled, Owner: worker},
		domain.LedgerEvent{ID: uuid.New(), Type: domain.EventInvoiceSettled, Owner: worker},
	))

	assert.Equal(t, 1, w.calls)
	require.Len(t, w.msgs, 3)
	assert.Equal(t, payer.String(), string(w.msgs[0].Key))
	assert.Equal(t, worker.String(), string(w.msgs[2].Key))

	require.NoError(t, p.Publish(context.Background()))
	assert.Equal(t, 1, w.calls, "no write for an empty batch")
}

func TestPublisher_PublishError(t *testing.T) {
	w := &fakeWriter{err: errors.New("broker down")}
	p := newPublisherWithWriter(w)

	err := p.Publish(context.Background(), domain.LedgerEvent{Type: domain.EventWalletAdjusted})
	assert.ErrorContains(t, err, "broker down")
}

func TestPublisher_Close(t *testing.T) {
	w := &fakeWriter{}
	require.NoError(t, newPublisherWithWriter(w).Close())
	assert.True(t, w.closed)
}

func TestNewPublisher_Config(t *testing.T) {
	p := NewPublisher(config.KafkaConfig{
		Brokers:      []string{"b1:9092", "b2:9092"},
		Topic:        "ledger.events",
		Async:        true,
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 2 * time.Second,
		MaxAttempts:  3,
	}, zerolog.Nop())
	kw, ok := p.writer.(*kafka.Writer)
	require.True(t, ok)
	assert.Equal(t, "ledger.events", kw.Topic)
	assert.Equal(t, "tcp", kw.Addr.Network())
	assert.True(t, kw.Async)
	assert.NotNil(t, kw.Completion)
	assert.Equal(t, 10*time.Millisecond, kw.BatchTimeout)
	assert.Equal(t, 2*time.Second, kw.WriteTimeout)
	assert.Equal(t, 3, kw.MaxAttempts)

	blocking := NewPublisher(config.KafkaConfig{Brokers: []string{"b1:9092"}, Topic: "t"}, zerolog.Nop())
	assert.Nil(t, blocking.writer.(*kafka.Writer).Completion)
}

func TestCompletionLogger_LogsFailedBatches(t *testing.T) {
	var buf bytes.Buffer
	done := completionLogger(zerolog.New(&buf))

	done([]kafka.Message{{Key: []byte("worker:1")}}, nil)
	assert.Zero(t, buf.Len())

	done([]kafka.Message{{Key: []byte("worker:1")}, {Key: []byte("care_home:2")}}, errors.New("leader not available"))
	assert.Contains(t, buf.String(), "leader not available")
	assert.Contains(t, buf.String(), `"messages":2`)
	assert.Contains(t, buf.String(), "care_home:2")
}
