package enrich

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/matchdayhq/facade/pkg/upstream"
)

// TeamFetcher resolves a team record from the upstream lookup API.
type TeamFetcher interface {
	FetchTeam(ctx context.Context, teamID int64) (*upstream.Team, error)
}

// Enricher fills missing fixture venues. Lookups within a batch run
// concurrently (the observed cardinality is at most ~20 teams per league, so
// the fan-out is unbounded), and a failure on one team never fails or delays
// the others.
type Enricher struct {
	fetcher TeamFetcher
	venues  *VenueCache
	logger  zerolog.Logger

	// sf coalesces concurrent lookups for the same team across batches.
	sf singleflight.Group
}

// NewEnricher creates an enricher with an empty venue cache.
func NewEnricher(fetcher TeamFetcher, logger zerolog.Logger) *Enricher {
	return &Enricher{
		fetcher: fetcher,
		venues:  NewVenueCache(),
		logger:  logger,
	}
}

// Venues exposes the venue cache (for tests and diagnostics).
func (e *Enricher) Venues() *VenueCache {
	return e.venues
}

// Enrich resolves missing venues for a batch of fixtures. The output has
// exactly the input's records in the input's order, each with a non-nil
// venue string (possibly empty). Fixtures sharing a home team trigger exactly
// one lookup.
func (e *Enricher) Enrich(ctx context.Context, fixtures []upstream.Fixture) []upstream.Fixture {
	now := time.Now()

	// Step 1: collect the set of distinct home-team IDs needing lookup.
	need := make(map[int64]struct{})
	for _, f := range fixtures {
		if f.Venue == "" && f.HomeTeam.ID != 0 {
			need[f.HomeTeam.ID] = struct{}{}
		}
	}

	if len(need) == 0 {
		return fixtures
	}

	// Step 2: resolve each ID, concurrently on cache miss.
	resolved := make(map[int64]string, len(need))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for teamID := range need {
		if venue, ok := e.venues.Get(teamID, now); ok {
			resolved[teamID] = venue
			continue
		}

		wg.Add(1)
		go func(teamID int64) {
			defer wg.Done()
			venue := e.lookup(ctx, teamID)
			mu.Lock()
			resolved[teamID] = venue
			mu.Unlock()
		}(teamID)
	}
	wg.Wait()

	// Step 3: merge back in the original record order.
	out := make([]upstream.Fixture, len(fixtures))
	copy(out, fixtures)
	for i := range out {
		if out[i].Venue == "" {
			out[i].Venue = resolved[out[i].HomeTeam.ID]
		}
	}
	return out
}

// lookup fetches one team's venue, coalescing concurrent requests for the
// same team. A failed lookup resolves to the empty venue; only successes are
// cached so the next batch retries.
func (e *Enricher) lookup(ctx context.Context, teamID int64) string {
	venueLookups.Inc()

	v, err, _ := e.sf.Do(fmt.Sprintf("%d", teamID), func() (interface{}, error) {
		team, err := e.fetcher.FetchTeam(ctx, teamID)
		if err != nil {
			return nil, err
		}
		return team.Venue, nil
	})
	if err != nil {
		venueLookupFailures.Inc()
		e.logger.Warn().
			Err(err).
			Int64("team_id", teamID).
			Msg("Venue lookup failed, resolving to empty venue")
		return ""
	}

	venue := v.(string)
	e.venues.Set(teamID, venue, time.Now())
	return venue
}
