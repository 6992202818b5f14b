package reconcile

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Result parameter keys delivered by the gateway
const (
	paramTransactionReceipt = "TransactionReceipt"
	paramTransactionAmount  = "TransactionAmount"
	paramTransactionDate    = "TransactionCompletedDateTime"
	paramOccasion           = "Occasion"
	paramWorkingFunds       = "B2CWorkingAccountAvailableFunds"
	paramUtilityFunds       = "B2CUtilityAccountAvailableFunds"
	paramChargesFunds       = "B2CChargesPaidAccountAvailableFunds"
	paramAccountBalance     = "AccountBalance"
)

// ResultEnvelope is the outer shape of a gateway result callback
type ResultEnvelope struct {
	Result ResultBody `json:"Result"`
}

// ResultBody carries the asynchronous outcome of a B2C or balance request
type ResultBody struct {
	ResultType               int            `json:"ResultType"`
	ResultCode               FlexibleCode   `json:"ResultCode"`
	ResultDesc               string         `json:"ResultDesc"`
	OriginatorConversationID string         `json:"OriginatorConversationID"`
	ConversationID           string         `json:"ConversationID"`
	TransactionID            string         `json:"TransactionID"`
	ResultParameters         ResultParams   `json:"ResultParameters"`
	ReferenceData            *ReferenceData `json:"ReferenceData,omitempty"`
}

// ResultParams wraps the gateway's key-value parameter list
type ResultParams struct {
	ResultParameter []ResultParameter `json:"ResultParameter"`
}

// ResultParameter is one key-value pair. The gateway sends numbers for
// amounts and strings for everything else, so Value stays untyped until a
// caller asks for a specific shape.
type ResultParameter struct {
	Key   string      `json:"Key"`
	Value interface{} `json:"Value"`
}

// ReferenceData carries the reference items echoed back from the request
type ReferenceData struct {
	ReferenceItem []ResultParameter `json:"ReferenceItem"`
}

// FlexibleCode accepts a result code sent as either a JSON number or string
// and normalizes it to a string.
type FlexibleCode string

func (c *FlexibleCode) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		*c = ""
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*c = FlexibleCode(str)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return fmt.Errorf("result code is neither string nor number: %w", err)
	}
	*c = FlexibleCode(num.String())
	return nil
}

func (c FlexibleCode) String() string {
	return string(c)
}

// stringParam returns the named parameter rendered as a string
func (b *ResultBody) stringParam(key string) string {
	for _, p := range b.allParams() {
		if p.Key != key {
			continue
		}
		switch v := p.Value.(type) {
		case string:
			return v
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return ""
}

// amountParam returns the named parameter converted from major currency
// units to minor units, or nil when the parameter is absent or unparseable.
func (b *ResultBody) amountParam(key string) *int64 {
	for _, p := range b.allParams() {
		if p.Key != key {
			continue
		}
		switch v := p.Value.(type) {
		case float64:
			minor := int64(math.Round(v * 100))
			return &minor
		case string:
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return nil
			}
			minor := int64(math.Round(f * 100))
			return &minor
		}
	}
	return nil
}

// parseMajorAmount converts a decimal major-unit amount string to minor units
func parseMajorAmount(s string) (int64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, err
	}
	return int64(math.Round(f * 100)), nil
}

func (b *ResultBody) allParams() []ResultParameter {
	params := b.ResultParameters.ResultParameter
	if b.ReferenceData != nil {
		params = append(params, b.ReferenceData.ReferenceItem...)
	}
	return params
}

// Occasion returns the request identifier echoed back by the gateway, either
// as a result parameter or a reference item. Empty when the gateway dropped it.
func (b *ResultBody) Occasion() string {
	return b.stringParam(paramOccasion)
}
