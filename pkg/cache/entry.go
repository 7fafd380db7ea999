// Package cache provides the cache entry store backing the aggregation
// façade, with in-memory and Redis backends and a circuit breaker on the
// Redis connector.
package cache

import (
	"encoding/json"
	"time"
)

// Entry is a cached upstream payload together with its revalidation state.
// Entries are replaced wholesale on write, never partially updated; the only
// timestamp-only mutation is Touch after a 304 Not Modified revalidation.
type Entry struct {
	// Key identifies the cached resource (e.g. "matches", "standings").
	Key string `json:"key"`

	// Payload is the upstream response body, stored verbatim.
	Payload json.RawMessage `json:"payload"`

	// StoredAt is when the payload was stored or last revalidated.
	// Monotonically non-decreasing per key within a process.
	StoredAt time.Time `json:"stored_at"`

	// Validator is the upstream ETag used for conditional requests
	// (If-None-Match). Empty when the upstream returned none.
	Validator string `json:"validator,omitempty"`

	// TTLHint is an optional validity override. Zero means the TTL policy
	// decides from payload content.
	TTLHint time.Duration `json:"ttl_hint,omitempty"`
}

// Age returns how long ago the entry was stored or last revalidated.
func (e *Entry) Age(now time.Time) time.Duration {
	return now.Sub(e.StoredAt)
}

// FreshFor reports whether the entry is still valid for the given TTL.
// The TTLHint, when set, takes precedence over the computed TTL.
func (e *Entry) FreshFor(ttl time.Duration, now time.Time) bool {
	if e.TTLHint > 0 {
		ttl = e.TTLHint
	}
	if ttl <= 0 {
		return false
	}
	return e.Age(now) < ttl
}
