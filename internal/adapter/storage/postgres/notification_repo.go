package postgres

import (
	"context"
	"fmt"
	"time"

	"staffing-ledger/internal/core/domain"
)

// NotificationRepo implements ports.NotificationDeliveryRepository.
type NotificationRepo struct {
	pool Pool
}

// NewNotificationRepo creates a PostgreSQL-backed delivery log.
func NewNotificationRepo(pool Pool) *NotificationRepo {
	return &NotificationRepo{pool: pool}
}

func (r *NotificationRepo) Create(ctx context.Context, d *domain.NotificationDelivery) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO notification_deliveries
		(id, notification_id, kind, invoice_id, endpoint, payload, http_status, attempt, status, last_error, created_at, updated_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		d.ID, d.NotificationID, string(d.Kind), d.InvoiceID, d.Endpoint,
		d.Payload, d.HTTPStatus, d.Attempt, string(d.Status),
		d.LastError, d.CreatedAt, d.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert notification delivery: %w", err)
	}
	return nil
}

func (r *NotificationRepo) Update(ctx context.Context, d *domain.NotificationDelivery) error {
	d.UpdatedAt = time.Now().UTC()
	_, err := r.pool.Exec(ctx,
		`UPDATE notification_deliveries
		 SET http_status=$1, attempt=$2, status=$3, last_error=$4, updated_at=$5
		 WHERE id=$6`,
		d.HTTPStatus, d.Attempt, string(d.Status), d.LastError, d.UpdatedAt, d.ID,
	)
	if err != nil {
		return fmt.Errorf("update notification delivery: %w", err)
	}
	return nil
}
