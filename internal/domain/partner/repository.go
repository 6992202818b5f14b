package partner

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines partner lookup operations. Lookups only return active
// partners; a deactivated partner is indistinguishable from a missing one.
type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Partner, error)
	GetByAPIKeyHash(ctx context.Context, hash string) (*Partner, error)
	GetByShortCode(ctx context.Context, shortCode string) (*Partner, error)
}

// ErrPartnerNotFound indicates no active partner matched the lookup
type ErrPartnerNotFound struct {
	Key string
}

func (e ErrPartnerNotFound) Error() string {
	return "partner not found: " + e.Key
}
