package handler

// SubmitDisbursementRequest represents a request to create a new disbursement.
// Amount is in minor units (cents).
type SubmitDisbursementRequest struct {
	ClientRequestID string `json:"client_request_id" binding:"required"`
	Msisdn          string `json:"msisdn" binding:"required"`
	Amount          int64  `json:"amount" binding:"required,gt=0"`
	Currency        string `json:"currency" binding:"omitempty,len=3"`
}

// DisbursementResponse represents a disbursement request in API responses
type DisbursementResponse struct {
	ID                       string `json:"id"`
	ClientRequestID          string `json:"client_request_id"`
	Msisdn                   string `json:"msisdn"`
	Amount                   int64  `json:"amount"`
	Currency                 string `json:"currency"`
	Status                   string `json:"status"`
	ConversationID           string `json:"conversation_id,omitempty"`
	OriginatorConversationID string `json:"originator_conversation_id,omitempty"`
	ResultCode               string `json:"result_code,omitempty"`
	ResultDesc               string `json:"result_desc,omitempty"`
	ReceiptNumber            string `json:"receipt_number,omitempty"`
	RetryCount               int    `json:"retry_count"`
	MaxRetries               int    `json:"max_retries"`
	NextRetryAt              string `json:"next_retry_at,omitempty"`
	NeedsReview              bool   `json:"needs_review"`
	CreatedAt                string `json:"created_at"`
	UpdatedAt                string `json:"updated_at"`
}

// RetryLogEntryResponse represents one retry attempt in API responses
type RetryLogEntryResponse struct {
	Attempt   int    `json:"attempt"`
	Outcome   string `json:"outcome"`
	Reason    string `json:"reason,omitempty"`
	CreatedAt string `json:"created_at"`
}

// WalletResponse represents a partner wallet in API responses
type WalletResponse struct {
	PartnerID string `json:"partner_id"`
	Balance   int64  `json:"balance"`
	Currency  string `json:"currency"`
	UpdatedAt string `json:"updated_at"`
}

// WalletTransactionResponse represents one ledger entry in API responses
type WalletTransactionResponse struct {
	ID           int64  `json:"id"`
	Type         string `json:"type"`
	Amount       int64  `json:"amount"`
	BalanceAfter int64  `json:"balance_after"`
	Reference    string `json:"reference"`
	Description  string `json:"description,omitempty"`
	CreatedAt    string `json:"created_at"`
}

// InboundTransactionResponse represents an inbound paybill payment in API responses
type InboundTransactionResponse struct {
	ID            string `json:"id"`
	TransactionID string `json:"transaction_id"`
	Amount        int64  `json:"amount"`
	BillRefNumber string `json:"bill_ref_number"`
	Msisdn        string `json:"msisdn"`
	CustomerName  string `json:"customer_name,omitempty"`
	PartnerID     string `json:"partner_id,omitempty"`
	Status        string `json:"status"`
	CreatedAt     string `json:"created_at"`
}

// AllocateRequest assigns an unmatched inbound transaction to a partner
type AllocateRequest struct {
	PartnerID string `json:"partner_id" binding:"required,uuid"`
}

// BalanceRequestResponse represents a balance check intent in API responses
type BalanceRequestResponse struct {
	ID             string `json:"id"`
	ConversationID string `json:"conversation_id"`
	Status         string `json:"status"`
	WorkingBalance *int64 `json:"working_balance,omitempty"`
	UtilityBalance *int64 `json:"utility_balance,omitempty"`
	ChargesBalance *int64 `json:"charges_balance,omitempty"`
	ResultCode     string `json:"result_code,omitempty"`
	CreatedAt      string `json:"created_at"`
	UpdatedAt      string `json:"updated_at"`
}

// PaginationParams represents pagination parameters for list endpoints
type PaginationParams struct {
	Page    int `form:"page,default=1" binding:"min=1"`
	PerPage int `form:"per_page,default=10" binding:"min=1,max=100"`
}

// StatusFilterParams represents an optional status filter for list endpoints
type StatusFilterParams struct {
	Status string `form:"status"`
}
