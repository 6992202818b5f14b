package mpesa

// tokenResponse is the OAuth token grant response
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   string `json:"expires_in"`
}

// B2CRequest is the payload for a business payment request
type B2CRequest struct {
	InitiatorName      string `json:"InitiatorName"`
	SecurityCredential string `json:"SecurityCredential"`
	CommandID          string `json:"CommandID"`
	Amount             string `json:"Amount"`
	PartyA             string `json:"PartyA"`
	PartyB             string `json:"PartyB"`
	Remarks            string `json:"Remarks"`
	QueueTimeOutURL    string `json:"QueueTimeOutURL"`
	ResultURL          string `json:"ResultURL"`
	Occasion           string `json:"Occasion"`
}

// AccountBalanceRequest is the payload for an account balance query
type AccountBalanceRequest struct {
	Initiator          string `json:"Initiator"`
	SecurityCredential string `json:"SecurityCredential"`
	CommandID          string `json:"CommandID"`
	PartyA             string `json:"PartyA"`
	IdentifierType     string `json:"IdentifierType"`
	Remarks            string `json:"Remarks"`
	QueueTimeOutURL    string `json:"QueueTimeOutURL"`
	ResultURL          string `json:"ResultURL"`
}

// GatewayResponse is the synchronous acknowledgement returned for B2C and
// balance requests. ResponseCode "0" means the request was accepted for
// asynchronous processing; the outcome arrives later on the result URL.
type GatewayResponse struct {
	ConversationID           string `json:"ConversationID"`
	OriginatorConversationID string `json:"OriginatorConversationID"`
	ResponseCode             string `json:"ResponseCode"`
	ResponseDescription      string `json:"ResponseDescription"`

	// Populated on synchronous rejections
	RequestID    string `json:"requestId,omitempty"`
	ErrorCode    string `json:"errorCode,omitempty"`
	ErrorMessage string `json:"errorMessage,omitempty"`
}

// Accepted reports whether the gateway took the request for async processing
func (r *GatewayResponse) Accepted() bool {
	return r.ResponseCode == "0"
}

// Code returns the response code, falling back to the error code on
// synchronous rejections
func (r *GatewayResponse) Code() string {
	if r.ResponseCode != "" {
		return r.ResponseCode
	}
	return r.ErrorCode
}

// Description returns the human-readable outcome description
func (r *GatewayResponse) Description() string {
	if r.ResponseDescription != "" {
		return r.ResponseDescription
	}
	return r.ErrorMessage
}
