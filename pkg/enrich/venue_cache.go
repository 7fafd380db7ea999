// Package enrich fills missing venue fields on fixture records by fanning
// out to the per-team lookup API, with a per-team cache so a venue is fetched
// at most once per week.
package enrich

import (
	"sync"
	"time"
)

// VenueTTL is the fixed validity of a cached venue. Venues change rarely; a
// week keeps lookup volume negligible while still picking up ground moves.
const VenueTTL = 7 * 24 * time.Hour

// VenueEntry is one cached team venue.
type VenueEntry struct {
	Venue     string
	FetchedAt time.Time
}

// VenueCache is a process-lifetime per-team venue cache, filled lazily on
// first miss. Entries are never explicitly deleted; a stale entry simply
// stops being returned, which forces a refresh attempt.
type VenueCache struct {
	mu      sync.RWMutex
	entries map[int64]VenueEntry
}

// NewVenueCache creates an empty venue cache.
func NewVenueCache() *VenueCache {
	return &VenueCache{
		entries: make(map[int64]VenueEntry),
	}
}

// Get returns the cached venue for a team if present and younger than
// VenueTTL. A stale entry is a miss so the caller attempts a refresh.
func (c *VenueCache) Get(teamID int64, now time.Time) (string, bool) {
	c.mu.RLock()
	entry, ok := c.entries[teamID]
	c.mu.RUnlock()
	if !ok || now.Sub(entry.FetchedAt) > VenueTTL {
		return "", false
	}
	return entry.Venue, true
}

// Set stores a freshly resolved venue.
func (c *VenueCache) Set(teamID int64, venue string, now time.Time) {
	c.mu.Lock()
	c.entries[teamID] = VenueEntry{Venue: venue, FetchedAt: now}
	c.mu.Unlock()
}

// Len returns the number of cached venues, fresh or stale.
func (c *VenueCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
