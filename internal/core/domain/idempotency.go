package domain

import (
	"github.com/google/uuid"
)

// BuildAdjustmentIdempotencyKey scopes a client key to the acting user and
// the wallet owner, so two users cannot replay each other's results.
func BuildAdjustmentIdempotencyKey(actorID uuid.UUID, owner Owner, clientKey string) string {
	return "adjustment:" + actorID.String() + ":" + owner.String() + ":" + clientKey
}
