package balance

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines balance check request persistence operations.
type Repository interface {
	Create(ctx context.Context, req *Request) error
	// SetConversationIDs records the gateway's identifiers once the query
	// has been accepted; the row must exist before the gateway is called.
	SetConversationIDs(ctx context.Context, id uuid.UUID, conversationID, originatorConversationID string) error
	GetByID(ctx context.Context, id uuid.UUID) (*Request, error)
	// GetByConversationID returns nil, nil when no pending or completed
	// balance request matches the conversation id.
	GetByConversationID(ctx context.Context, conversationID string) (*Request, error)
	// Complete transitions a pending request to completed with the
	// callback result. Returns false on redelivery.
	Complete(ctx context.Context, id uuid.UUID, res *Result) (bool, error)
	List(ctx context.Context, limit, offset int) ([]*Request, error)
}

// ErrRequestNotFound indicates a missing balance check request
type ErrRequestNotFound struct {
	ID uuid.UUID
}

func (e ErrRequestNotFound) Error() string {
	return "balance request not found: " + e.ID.String()
}
