package c2b

import (
	"time"

	"github.com/google/uuid"
)

// Inbound transaction statuses
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusUnmatched = "unmatched"
	StatusRejected  = "rejected"
)

// Transaction is an inbound customer payment received through the bank
// paybill notification channel.
type Transaction struct {
	ID             uuid.UUID  `json:"id"`
	TransactionID  string     `json:"transaction_id"`
	TransType      string     `json:"trans_type"`
	TransTime      string     `json:"trans_time"`
	Amount         int64      `json:"amount"`
	ShortCode      string     `json:"short_code"`
	BillRefNumber  string     `json:"bill_ref_number"`
	AccountNumber  string     `json:"account_number"`
	Msisdn         string     `json:"msisdn"`
	CustomerName   string     `json:"customer_name"`
	PartnerID      *uuid.UUID `json:"partner_id,omitempty"`
	Status         string     `json:"status"`
	FailureReason  string     `json:"failure_reason,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}
