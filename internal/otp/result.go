package otp

// Outcome is the closed set of answers Verify can produce.
type Outcome int

const (
	// OutcomeAccepted means the provider confirmed the code.
	OutcomeAccepted Outcome = iota + 1
	// OutcomeRejected means the provider understood the request and the code did not match.
	OutcomeRejected
	// OutcomeProviderError covers an errors payload from the provider and transport failures.
	OutcomeProviderError
	// OutcomeUnrecognized is a response matching no known shape.
	OutcomeUnrecognized
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAccepted:
		return "accepted"
	case OutcomeRejected:
		return "rejected"
	case OutcomeProviderError:
		return "provider_error"
	case OutcomeUnrecognized:
		return "unrecognized"
	default:
		return "unknown"
	}
}

// VerifyResult is the outcome of a verification attempt.
type VerifyResult struct {
	Outcome Outcome
	// Unavailable is set for OutcomeProviderError when the provider could not be reached.
	Unavailable bool
	// Detail is the provider errors payload or the transport error text.
	Detail string
	// Raw keeps the response body for diagnostics.
	Raw string
}

// SendResult is returned by a successful dispatch.
type SendResult struct {
	Ref string
}
