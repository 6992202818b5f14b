package c2b

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Repository defines inbound transaction persistence operations.
type Repository interface {
	Create(ctx context.Context, tx *Transaction) error
	GetByID(ctx context.Context, id uuid.UUID) (*Transaction, error)
	// GetByTransactionID returns nil, nil when the gateway transaction id
	// has not been seen, so callers can detect duplicates without treating
	// absence as an error.
	GetByTransactionID(ctx context.Context, transactionID string) (*Transaction, error)
	// Allocate assigns an unmatched transaction to a partner. Returns
	// false when the transaction is no longer unmatched.
	Allocate(ctx context.Context, id uuid.UUID, partnerID uuid.UUID) (bool, error)
	List(ctx context.Context, status string, limit, offset int) ([]*Transaction, error)
	Count(ctx context.Context, status string) (int64, error)

	WithTx(tx pgx.Tx) Repository
}

// ErrTransactionNotFound indicates a missing inbound transaction
type ErrTransactionNotFound struct {
	ID uuid.UUID
}

func (e ErrTransactionNotFound) Error() string {
	return "inbound transaction not found: " + e.ID.String()
}
