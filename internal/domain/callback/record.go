package callback

import (
	"time"

	"github.com/google/uuid"
)

// Callback kinds
const (
	KindResult       = "result"
	KindTimeout      = "timeout"
	KindNotification = "notification"
)

// Match outcomes recorded with each callback
const (
	MatchDisbursement = "disbursement"
	MatchBalance      = "balance"
	MatchNone         = "none"
)

// Record is an audit copy of a gateway callback, stored verbatim before
// any matching or state change so the raw payload survives processing
// failures.
type Record struct {
	ID                       uuid.UUID `bson:"_id" json:"id"`
	Kind                     string    `bson:"kind" json:"kind"`
	ConversationID           string    `bson:"conversation_id,omitempty" json:"conversation_id,omitempty"`
	OriginatorConversationID string    `bson:"originator_conversation_id,omitempty" json:"originator_conversation_id,omitempty"`
	TransactionID            string    `bson:"transaction_id,omitempty" json:"transaction_id,omitempty"`
	MatchOutcome             string    `bson:"match_outcome" json:"match_outcome"`
	MatchedID                string    `bson:"matched_id,omitempty" json:"matched_id,omitempty"`
	Payload                  string    `bson:"payload" json:"payload"`
	ReceivedAt               time.Time `bson:"received_at" json:"received_at"`
}
