package memory

import (
	"context"

	"staffing-ledger/internal/core/domain"
)

// AuditRepo implements ports.AuditRepository.
type AuditRepo struct {
	store *Store
}

// NewAuditRepo creates an AuditRepo over s.
func NewAuditRepo(s *Store) *AuditRepo {
	return &AuditRepo{store: s}
}

func (r *AuditRepo) Create(ctx context.Context, log *domain.AuditLog) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.audit = append(r.store.audit, *log)
	return nil
}

// NotificationRepo implements ports.NotificationDeliveryRepository.
type NotificationRepo struct {
	store *Store
}

// NewNotificationRepo creates a NotificationRepo over s.
func NewNotificationRepo(s *Store) *NotificationRepo {
	return &NotificationRepo{store: s}
}

func (r *NotificationRepo) Create(ctx context.Context, d *domain.NotificationDelivery) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	c := *d
	r.store.deliveries[d.ID] = &c
	return nil
}

func (r *NotificationRepo) Update(ctx context.Context, d *domain.NotificationDelivery) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	c := *d
	r.store.deliveries[d.ID] = &c
	return nil
}
