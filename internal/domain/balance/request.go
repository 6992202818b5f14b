package balance

import (
	"time"

	"github.com/google/uuid"
)

// Balance check request statuses
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
)

// Request is an operator-triggered account balance check. The gateway
// answers asynchronously through the result callback channel, so the
// request row records the intent until a matching callback arrives.
type Request struct {
	ID                       uuid.UUID `json:"id"`
	ConversationID           string    `json:"conversation_id"`
	OriginatorConversationID string    `json:"originator_conversation_id"`
	Status                   string    `json:"status"`
	WorkingBalance           *int64    `json:"working_balance,omitempty"`
	UtilityBalance           *int64    `json:"utility_balance,omitempty"`
	ChargesBalance           *int64    `json:"charges_balance,omitempty"`
	ResultCode               string    `json:"result_code,omitempty"`
	ResultDesc               string    `json:"result_desc,omitempty"`
	CreatedAt                time.Time `json:"created_at"`
	UpdatedAt                time.Time `json:"updated_at"`
}

// Result carries the balances extracted from a balance query callback.
type Result struct {
	ResultCode     string
	ResultDesc     string
	WorkingBalance *int64
	UtilityBalance *int64
	ChargesBalance *int64
}
