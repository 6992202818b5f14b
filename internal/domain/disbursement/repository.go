package disbursement

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// FinalResult carries the typed fields extracted from a result callback
// that finalizes a request.
type FinalResult struct {
	ResultCode     string
	ResultDesc     string
	TransactionID  string
	ReceiptNumber  string
	SettledAmount  *int64
	SettlementDate string
	WorkingBalance *int64
	UtilityBalance *int64
	ChargesBalance *int64
}

// Repository defines disbursement request persistence operations.
//
// All state transitions are conditional on the row still being
// non-terminal; implementations report whether a transition was applied so
// callers can distinguish a first delivery from a redelivery.
type Repository interface {
	Create(ctx context.Context, req *Request) error
	GetByID(ctx context.Context, id uuid.UUID) (*Request, error)
	// GetByClientRequestID returns nil, nil when no request exists for the
	// partner and idempotency key.
	GetByClientRequestID(ctx context.Context, partnerID uuid.UUID, clientRequestID string) (*Request, error)
	GetByConversationID(ctx context.Context, conversationID string) (*Request, error)
	GetByOriginatorConversationID(ctx context.Context, originatorID string) (*Request, error)
	ListByPartner(ctx context.Context, partnerID uuid.UUID, status string, limit, offset int) ([]*Request, error)
	CountByPartner(ctx context.Context, partnerID uuid.UUID, status string) (int64, error)

	// MarkSubmitted transitions a non-terminal request to submitted with
	// fresh conversation identifiers. Returns false when the row was
	// already terminal.
	MarkSubmitted(ctx context.Context, id uuid.UUID, conversationID, originatorID string) (bool, error)
	// MarkFailed applies a permanent terminal failure
	MarkFailed(ctx context.Context, id uuid.UUID, resultCode, resultDesc string) (bool, error)
	// MarkPendingRetry records a transient failure and schedules the next
	// attempt; the request stays non-terminal.
	MarkPendingRetry(ctx context.Context, id uuid.UUID, resultCode, resultDesc string, nextRetryAt time.Time) (bool, error)
	// FinalizeSuccess applies the terminal success transition with the
	// settlement details from the result callback.
	FinalizeSuccess(ctx context.Context, id uuid.UUID, res *FinalResult) (bool, error)
	// RecordProcessing stores a "still processing" result without leaving
	// the pending state.
	RecordProcessing(ctx context.Context, id uuid.UUID, resultCode, resultDesc string) (bool, error)

	// ClaimRetryable atomically selects retry-eligible requests and
	// advances their retry bookkeeping so concurrent scans cannot claim
	// the same rows. The returned requests reflect the post-claim
	// retry_count.
	ClaimRetryable(ctx context.Context, now time.Time, limit int, baseDelay, maxDelay time.Duration, transientCodes []string) ([]*Request, error)
	// FlagForReview marks an exhausted request for operator attention
	FlagForReview(ctx context.Context, id uuid.UUID) error

	AppendRetryLog(ctx context.Context, entry *RetryLogEntry) error
	ListRetryLog(ctx context.Context, disbursementID uuid.UUID) ([]*RetryLogEntry, error)

	WithTx(tx pgx.Tx) Repository
}

// ErrRequestNotFound indicates a missing disbursement request
type ErrRequestNotFound struct {
	ID uuid.UUID
}

func (e ErrRequestNotFound) Error() string {
	return "disbursement request not found: " + e.ID.String()
}

// ErrDuplicateClientRequestID indicates the partner already submitted this
// idempotency key; the existing request must be returned instead.
type ErrDuplicateClientRequestID struct {
	ClientRequestID string
}

func (e ErrDuplicateClientRequestID) Error() string {
	return "disbursement request already exists for client request id: " + e.ClientRequestID
}
