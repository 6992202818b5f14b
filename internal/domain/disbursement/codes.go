package disbursement

import "strconv"

// Result/response code classification. The gateway reports failures both
// synchronously (ResponseCode on submit) and asynchronously (ResultCode on
// the result callback); both share the same code space for our purposes.
//
// Transient failures are eligible for retry under backoff. Permanent
// failures (invalid destination, insufficient gateway-side float, and the
// rest of the numeric rejection codes) are terminal and never retried.

const (
	// ResultCodeSuccess is the gateway's success code
	ResultCodeSuccess = "0"
	// ResultCodeProcessing means the gateway is still working on the
	// request; not a terminal outcome
	ResultCodeProcessing = "1"
	// ResultCodeTimeout is the internal marker for queue-timeout
	// notifications and client-side deadline expiry
	ResultCodeTimeout = "TIMEOUT"
	// ResultCodeUnavailable is the internal marker for 5xx and transport
	// failures where the outcome is unknown
	ResultCodeUnavailable = "SERVICE_UNAVAILABLE"
)

// transientCodes are retryable: the gateway may still complete the payment,
// or a later attempt may go through. An empty code means no outcome was
// recorded at all and is treated the same way.
var transientCodes = map[string]struct{}{
	"":                    {},
	ResultCodeProcessing:  {},
	ResultCodeTimeout:     {},
	ResultCodeUnavailable: {},
}

// IsTransientCode reports whether a stored failure reason is retryable
func IsTransientCode(code string) bool {
	_, ok := transientCodes[code]
	return ok
}

// IsPermanentCode reports whether a code is an explicit terminal rejection.
// All numeric gateway rejection codes other than 0 and 1 are permanent.
func IsPermanentCode(code string) bool {
	if IsTransientCode(code) || code == ResultCodeSuccess {
		return false
	}
	if _, err := strconv.Atoi(code); err == nil {
		return true
	}
	// Non-numeric, unrecognized codes are treated as permanent so a
	// malformed rejection does not loop forever in the scheduler.
	return true
}

// TransientCodes returns the retryable code set for use in eligibility
// queries.
func TransientCodes() []string {
	codes := make([]string, 0, len(transientCodes))
	for c := range transientCodes {
		codes = append(codes, c)
	}
	return codes
}
