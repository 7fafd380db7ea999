package upstream

// OutcomeKind classifies the result of a conditional revalidation. The
// revalidation client only classifies; what to serve on a non-success
// outcome is the fallback policy's decision.
type OutcomeKind int

const (
	// OutcomeFresh: the upstream returned new data (2xx).
	OutcomeFresh OutcomeKind = iota

	// OutcomeNotModified: the upstream confirmed the cached payload is
	// still current (304).
	OutcomeNotModified

	// OutcomeRateLimited: the upstream rejected the request (429).
	OutcomeRateLimited

	// OutcomeError: any other non-2xx response or a network-level failure.
	OutcomeError
)

// String returns the outcome kind name for logs and metrics.
func (k OutcomeKind) String() string {
	switch k {
	case OutcomeFresh:
		return "fresh"
	case OutcomeNotModified:
		return "not_modified"
	case OutcomeRateLimited:
		return "rate_limited"
	case OutcomeError:
		return "error"
	default:
		return "unknown"
	}
}

// Outcome is the classified result of one revalidation cycle.
type Outcome struct {
	Kind OutcomeKind

	// Body is the response payload. Set only for OutcomeFresh.
	Body []byte

	// Validator is the ETag to store for the next conditional request.
	// Set for OutcomeFresh; defaults to the prior validator when the
	// response carried none.
	Validator string

	// StatusCode is the upstream HTTP status, 0 on network failure.
	StatusCode int

	// Detail carries the response body text or transport error for
	// diagnostics. Set for OutcomeRateLimited and OutcomeError.
	Detail string
}
