// Package fallback implements the stale-fallback policy: given a classified
// revalidation outcome and the previously cached entry, it decides what the
// request serves. Availability wins over freshness; a read should rarely
// hard-fail while any prior data exists.
package fallback

import (
	"net/http"

	"github.com/matchdayhq/facade/pkg/cache"
	"github.com/matchdayhq/facade/pkg/upstream"
)

// Cache disposition labels exposed via the x-cache response header.
const (
	LabelHit         = "HIT"
	LabelMiss        = "MISS"
	LabelNotModified = "ETAG-NOTMODIFIED"
	LabelStale       = "STALE"
	LabelErrorStale  = "ERROR-STALE"
)

// Kind is the terminal disposition of one request cycle.
type Kind int

const (
	// ServeFresh: new upstream data; write to cache, respond 200 MISS.
	ServeFresh Kind = iota

	// ServeCachedUnchanged: 304 from upstream; touch the entry's
	// timestamp, respond 200 ETAG-NOTMODIFIED with the cached payload.
	ServeCachedUnchanged

	// ServeStale: upstream failed or rate-limited but a prior payload
	// exists; respond 200 with the old payload.
	ServeStale

	// Fail: upstream failed and no prior payload exists.
	Fail
)

// Disposition tells the caller what to serve and how to label it.
type Disposition struct {
	Kind Kind

	// Payload to serve. The fresh body for ServeFresh, the prior cached
	// payload for ServeCachedUnchanged and ServeStale, nil for Fail.
	Payload []byte

	// Validator to store alongside a fresh payload.
	Validator string

	// CacheLabel is the x-cache header value.
	CacheLabel string

	// StatusCode and Message describe the failure for Kind == Fail.
	StatusCode int
	Message    string
}

// Decide maps a revalidation outcome and the prior cache entry to a terminal
// disposition. No retries happen here: retry is the natural next-request
// cache-expiry cycle, bounded by the TTL.
func Decide(outcome upstream.Outcome, prior *cache.Entry) Disposition {
	switch outcome.Kind {
	case upstream.OutcomeFresh:
		return Disposition{
			Kind:       ServeFresh,
			Payload:    outcome.Body,
			Validator:  outcome.Validator,
			CacheLabel: LabelMiss,
		}

	case upstream.OutcomeNotModified:
		if prior == nil {
			// A 304 without a cached payload means the validator and
			// entry got out of sync; nothing can be served.
			return Disposition{
				Kind:       Fail,
				StatusCode: http.StatusInternalServerError,
				Message:    "upstream returned 304 but no cached payload exists",
			}
		}
		return Disposition{
			Kind:       ServeCachedUnchanged,
			Payload:    prior.Payload,
			Validator:  prior.Validator,
			CacheLabel: LabelNotModified,
		}

	case upstream.OutcomeRateLimited:
		if prior != nil {
			return Disposition{
				Kind:       ServeStale,
				Payload:    prior.Payload,
				Validator:  prior.Validator,
				CacheLabel: LabelStale,
			}
		}
		return Disposition{
			Kind:       Fail,
			StatusCode: http.StatusInternalServerError,
			Message:    "upstream rate limited and no cached data available",
		}

	default: // upstream.OutcomeError
		if prior != nil {
			return Disposition{
				Kind:       ServeStale,
				Payload:    prior.Payload,
				Validator:  prior.Validator,
				CacheLabel: LabelErrorStale,
			}
		}
		return Disposition{
			Kind:       Fail,
			StatusCode: http.StatusInternalServerError,
			Message:    "upstream error and no cached data available: " + outcome.Detail,
		}
	}
}
