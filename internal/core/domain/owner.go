package domain

import (
	"fmt"

	"github.com/google/uuid"
)

// OwnerType tags which kind of account a wallet belongs to.
type OwnerType string

const (
	OwnerTypeCareHome OwnerType = "care_home"
	OwnerTypeWorker   OwnerType = "worker"
)

// Valid reports whether t is one of the known owner kinds.
func (t OwnerType) Valid() bool {
	switch t {
	case OwnerTypeCareHome, OwnerTypeWorker:
		return true
	}
	return false
}

// Owner identifies the account holder of a wallet.
type Owner struct {
	Type OwnerType `json:"owner_type"`
	ID   uuid.UUID `json:"owner_id"`
}

// CareHomeOwner builds the owner reference for a care home (payer side).
func CareHomeOwner(id uuid.UUID) Owner {
	return Owner{Type: OwnerTypeCareHome, ID: id}
}

// WorkerOwner builds the owner reference for a worker (payee side).
func WorkerOwner(id uuid.UUID) Owner {
	return Owner{Type: OwnerTypeWorker, ID: id}
}

// ParseOwner builds an owner from its path representation.
func ParseOwner(ownerType, ownerID string) (Owner, error) {
	t := OwnerType(ownerType)
	if !t.Valid() {
		return Owner{}, fmt.Errorf("unknown owner type %q", ownerType)
	}
	id, err := uuid.Parse(ownerID)
	if err != nil {
		return Owner{}, fmt.Errorf("invalid owner id: %w", err)
	}
	if id == uuid.Nil {
		return Owner{}, fmt.Errorf("owner id must not be nil")
	}
	return Owner{Type: t, ID: id}, nil
}

func (o Owner) String() string {
	return string(o.Type) + ":" + o.ID.String()
}
