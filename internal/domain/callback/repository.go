package callback

import "context"

// Repository defines callback audit persistence operations.
type Repository interface {
	Insert(ctx context.Context, rec *Record) error
	ListByConversationID(ctx context.Context, conversationID string, limit int) ([]*Record, error)
	// ListUnmatched returns callbacks that matched nothing, newest first.
	ListUnmatched(ctx context.Context, limit int) ([]*Record, error)
}
