package disbursement

import (
	"errors"
	"regexp"
	"time"

	"github.com/google/uuid"
)

// Common errors
var (
	ErrInvalidAmount    = errors.New("amount must be positive")
	ErrFractionalAmount = errors.New("amount must be a whole number of currency units")
	ErrInvalidMsisdn    = errors.New("destination number must match 254XXXXXXXXX")
	ErrMissingClientRef = errors.New("client request id cannot be empty")
)

var msisdnPattern = regexp.MustCompile(`^254[0-9]{9}$`)

// Status defines disbursement request lifecycle states
type Status string

const (
	// StatusQueued means the request is persisted but not yet handed to the gateway
	StatusQueued Status = "queued"
	// StatusSubmitted means the gateway synchronously accepted the request
	// and an asynchronous result is expected
	StatusSubmitted Status = "submitted"
	// StatusPending means the outcome is unknown: still processing at the
	// gateway, or a transient failure awaiting retry
	StatusPending Status = "pending"
	// StatusSuccess and StatusFailed are terminal and immutable
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// NonTerminalStatuses are the states a request may still transition out of.
// Conditional updates use this set so a terminal row is never rewritten.
var NonTerminalStatuses = []string{string(StatusQueued), string(StatusSubmitted), string(StatusPending)}

// IsTerminal reports whether the status permits no further transitions
func (s Status) IsTerminal() bool {
	return s == StatusSuccess || s == StatusFailed
}

// Request represents one outbound payment intent. A row is never deleted;
// retry attempts are recorded as append-only RetryLogEntry rows.
type Request struct {
	ID                       uuid.UUID `json:"id"`
	PartnerID                uuid.UUID `json:"partner_id"`
	ClientRequestID          string    `json:"client_request_id"`
	Msisdn                   string    `json:"msisdn"`
	Amount                   int64     `json:"amount"` // Minor units (cents)
	Currency                 string    `json:"currency"`
	Status                   Status    `json:"status"`
	ConversationID           string    `json:"conversation_id,omitempty"`
	OriginatorConversationID string    `json:"originator_conversation_id,omitempty"`
	TransactionID            string    `json:"transaction_id,omitempty"` // Gateway-assigned, set by the result callback
	ResultCode               string    `json:"result_code,omitempty"`
	ResultDesc               string    `json:"result_desc,omitempty"`
	ReceiptNumber            string    `json:"receipt_number,omitempty"`
	SettledAmount            *int64    `json:"settled_amount,omitempty"`
	SettlementDate           string    `json:"settlement_date,omitempty"`
	WorkingBalance           *int64    `json:"working_balance,omitempty"`
	UtilityBalance           *int64    `json:"utility_balance,omitempty"`
	ChargesBalance           *int64    `json:"charges_balance,omitempty"`
	RetryCount               int       `json:"retry_count"`
	MaxRetries               int       `json:"max_retries"`
	NextRetryAt              *time.Time `json:"next_retry_at,omitempty"`
	NeedsReview              bool      `json:"needs_review"`
	CreatedAt                time.Time `json:"created_at"`
	UpdatedAt                time.Time `json:"updated_at"`
}

// NewRequest creates a queued disbursement request after validating the intent
func NewRequest(partnerID uuid.UUID, clientRequestID, msisdn string, amount int64, currency string, maxRetries int) (*Request, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	// The B2C API only accepts whole currency units; a truncated remainder
	// would disburse less than the ledger records.
	if amount%100 != 0 {
		return nil, ErrFractionalAmount
	}
	if !msisdnPattern.MatchString(msisdn) {
		return nil, ErrInvalidMsisdn
	}
	if clientRequestID == "" {
		return nil, ErrMissingClientRef
	}
	if currency == "" {
		currency = "KES"
	}

	now := time.Now()
	return &Request{
		ID:              uuid.New(),
		PartnerID:       partnerID,
		ClientRequestID: clientRequestID,
		Msisdn:          msisdn,
		Amount:          amount,
		Currency:        currency,
		Status:          StatusQueued,
		MaxRetries:      maxRetries,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

// StatusEvent is published to downstream consumers when a request reaches a
// terminal state or exhausts its retry budget.
type StatusEvent struct {
	DisbursementID  uuid.UUID `json:"disbursement_id"`
	PartnerID       uuid.UUID `json:"partner_id"`
	ClientRequestID string    `json:"client_request_id"`
	Status          Status    `json:"status"`
	ResultCode      string    `json:"result_code,omitempty"`
	ResultDesc      string    `json:"result_desc,omitempty"`
	ReceiptNumber   string    `json:"receipt_number,omitempty"`
	Amount          int64     `json:"amount"`
	Msisdn          string    `json:"msisdn"`
	CorrelationID   string    `json:"correlation_id,omitempty"`
	OccurredAt      time.Time `json:"occurred_at"`
}
