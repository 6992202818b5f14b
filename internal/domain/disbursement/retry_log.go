package disbursement

import (
	"time"

	"github.com/google/uuid"
)

// RetryOutcome summarizes one attempt's result for the retry log
type RetryOutcome string

const (
	RetryOutcomeResubmitted RetryOutcome = "resubmitted"
	RetryOutcomeRejected    RetryOutcome = "rejected"
	RetryOutcomeUnavailable RetryOutcome = "gateway_unavailable"
	RetryOutcomeExhausted   RetryOutcome = "exhausted"
)

// RetryLogEntry records one retry attempt. Entries are append-only and are
// never mutated; the full attempt history of a request is the ordered list
// of its entries.
type RetryLogEntry struct {
	ID             int64        `json:"id"`
	DisbursementID uuid.UUID    `json:"disbursement_id"`
	Attempt        int          `json:"attempt"`
	Outcome        RetryOutcome `json:"outcome"`
	Reason         string       `json:"reason,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
}
