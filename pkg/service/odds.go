package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/matchdayhq/facade/pkg/upstream"
)

// oddsTTL bounds how long a fetched odds record is reused. The odds upstream
// has no conditional-GET support, so this is a plain time-based cache.
const oddsTTL = 5 * time.Minute

type oddsEntry struct {
	odds      *upstream.Odds
	fetchedAt time.Time
}

// oddsCache is a small per-pairing TTL cache for the odds path.
type oddsCache struct {
	mu      sync.RWMutex
	entries map[string]oddsEntry
	now     func() time.Time
}

func newOddsCache() *oddsCache {
	return &oddsCache{
		entries: make(map[string]oddsEntry),
		now:     time.Now,
	}
}

func (c *oddsCache) get(key string) (*upstream.Odds, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || c.now().Sub(entry.fetchedAt) > oddsTTL {
		return nil, false
	}
	return entry.odds, true
}

func (c *oddsCache) set(key string, odds *upstream.Odds) {
	c.mu.Lock()
	c.entries[key] = oddsEntry{odds: odds, fetchedAt: c.now()}
	c.mu.Unlock()
}

// Odds serves bookmaker odds for a home/away pairing, cached per pair.
// Returns upstream.ErrNoOdds when the pairing has no record and
// upstream.ErrNotConfigured when the odds API key is missing.
func (s *Service) Odds(ctx context.Context, home, away string) (*upstream.Odds, error) {
	key := strings.ToLower(home) + "|" + strings.ToLower(away)

	if odds, ok := s.oddsCache.get(key); ok {
		return odds, nil
	}

	v, err, _ := s.sf.Do("odds:"+key, func() (interface{}, error) {
		odds, err := s.up.FetchOdds(ctx, home, away)
		if err != nil {
			return nil, err
		}
		s.oddsCache.set(key, odds)
		return odds, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*upstream.Odds), nil
}
