// Package service orchestrates the façade's read path: cache lookup,
// content-driven TTL check, coalesced conditional revalidation, stale
// fallback, venue enrichment and perf sampling. A Service is constructed once
// at process start and shared by reference across request handlers.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/matchdayhq/facade/pkg/cache"
	"github.com/matchdayhq/facade/pkg/fallback"
	"github.com/matchdayhq/facade/pkg/perf"
	"github.com/matchdayhq/facade/pkg/ttl"
	"github.com/matchdayhq/facade/pkg/upstream"
)

// Cache keys for the two revalidated data sources.
const (
	KeyMatches   = "matches"
	KeyStandings = "standings"
)

// Revalidator is the upstream surface the service drives.
type Revalidator interface {
	RevalidateMatches(ctx context.Context, validator string) upstream.Outcome
	RevalidateStandings(ctx context.Context, validator string) upstream.Outcome
	FetchOdds(ctx context.Context, home, away string) (*upstream.Odds, error)
}

// FixtureEnricher fills missing venues on the fixtures path.
type FixtureEnricher interface {
	Enrich(ctx context.Context, fixtures []upstream.Fixture) []upstream.Fixture
}

// Error is a request-terminal failure carrying the HTTP status to surface.
type Error struct {
	StatusCode int
	Message    string
	Details    string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s", e.Message, e.Details)
	}
	return e.Message
}

// Timings is the per-cycle breakdown exposed via x-timings-* headers.
type Timings struct {
	FetchMs  float64
	ParseMs  float64
	EnrichMs float64
	TotalMs  float64
}

// Result is a successfully served payload.
type Result struct {
	// Payload is the JSON array served to the client.
	Payload json.RawMessage

	// CacheStatus is the x-cache header value.
	CacheStatus string

	// Validator is the ETag header value (may be empty).
	Validator string

	Timings Timings
}

// Service is the injectable cache-service object shared by all handlers.
type Service struct {
	store    cache.Store
	up       Revalidator
	enricher FixtureEnricher
	logger   zerolog.Logger

	perfMatches   *perf.Buffer
	perfStandings *perf.Buffer

	oddsCache *oddsCache

	// sf coalesces concurrent cache-miss revalidations per key so only
	// one upstream call is in flight per data source.
	sf singleflight.Group

	now func() time.Time
}

// New creates a Service.
func New(store cache.Store, up Revalidator, enricher FixtureEnricher, logger zerolog.Logger) *Service {
	return &Service{
		store:         store,
		up:            up,
		enricher:      enricher,
		logger:        logger,
		perfMatches:   perf.NewBuffer(),
		perfStandings: perf.NewBuffer(),
		oddsCache:     newOddsCache(),
		now:           time.Now,
	}
}

// SetClock sets a custom time source (for testing).
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
	s.oddsCache.now = now
}

// PerfMatches returns the fixtures-path perf buffer.
func (s *Service) PerfMatches() *perf.Buffer { return s.perfMatches }

// PerfStandings returns the standings-path perf buffer.
func (s *Service) PerfStandings() *perf.Buffer { return s.perfStandings }

// Matches serves the enriched fixture list.
func (s *Service) Matches(ctx context.Context) (*Result, error) {
	return s.serve(ctx, KeyMatches, s.perfMatches,
		func(payload json.RawMessage, now time.Time) time.Duration {
			var fixtures []upstream.Fixture
			if err := json.Unmarshal(payload, &fixtures); err != nil {
				return 0
			}
			return ttl.Fixtures(fixtures, now)
		},
		func(ctx context.Context, validator string) upstream.Outcome {
			return s.up.RevalidateMatches(ctx, validator)
		},
		s.parseAndEnrichFixtures,
	)
}

// Standings serves the standings table.
func (s *Service) Standings(ctx context.Context) (*Result, error) {
	return s.serve(ctx, KeyStandings, s.perfStandings,
		func(payload json.RawMessage, now time.Time) time.Duration {
			var rows []upstream.StandingRow
			if err := json.Unmarshal(payload, &rows); err != nil {
				return 0
			}
			return ttl.Standings(rows, now)
		},
		func(ctx context.Context, validator string) upstream.Outcome {
			return s.up.RevalidateStandings(ctx, validator)
		},
		s.parseStandings,
	)
}

// serve runs one request cycle for a revalidated data source: cached entries
// still valid under the content TTL are served immediately; otherwise the
// revalidation, fallback and write-back steps run under singleflight so
// concurrent misses for the same key share one upstream call.
func (s *Service) serve(
	ctx context.Context,
	key string,
	buf *perf.Buffer,
	computeTTL func(json.RawMessage, time.Time) time.Duration,
	revalidate func(context.Context, string) upstream.Outcome,
	transform func(context.Context, []byte) (json.RawMessage, float64, float64, error),
) (*Result, error) {
	start := s.now()

	entry, err := s.store.Get(ctx, key)
	if err != nil && !errors.Is(err, cache.ErrCacheMiss) {
		// Backing store trouble degrades to a miss, never a crash.
		s.logger.Warn().Err(err).Str("key", key).Msg("Cache get failed, treating as miss")
		entry = nil
	}

	if entry != nil && entry.FreshFor(computeTTL(entry.Payload, start), start) {
		s.logger.Debug().Str("key", key).Str("cache", fallback.LabelHit).Msg("Serving cached payload")
		return &Result{
			Payload:     entry.Payload,
			CacheStatus: fallback.LabelHit,
			Validator:   entry.Validator,
		}, nil
	}

	v, err, _ := s.sf.Do(key, func() (interface{}, error) {
		return s.revalidateCycle(ctx, key, entry, start, buf, revalidate, transform)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Result), nil
}

// revalidateCycle performs the conditional fetch, applies the stale-fallback
// policy and records the timing sample.
func (s *Service) revalidateCycle(
	ctx context.Context,
	key string,
	entry *cache.Entry,
	start time.Time,
	buf *perf.Buffer,
	revalidate func(context.Context, string) upstream.Outcome,
	transform func(context.Context, []byte) (json.RawMessage, float64, float64, error),
) (*Result, error) {
	validator := ""
	if entry != nil {
		validator = entry.Validator
	}

	fetchStart := s.now()
	outcome := revalidate(ctx, validator)
	fetchMs := msSince(fetchStart, s.now())

	disp := fallback.Decide(outcome, entry)

	var parseMs, enrichMs float64
	result := &Result{CacheStatus: disp.CacheLabel, Validator: disp.Validator}

	switch disp.Kind {
	case fallback.ServeFresh:
		payload, pMs, eMs, err := transform(ctx, disp.Payload)
		if err != nil {
			// Malformed upstream JSON is surfaced, not retried.
			return nil, &Error{
				StatusCode: http.StatusInternalServerError,
				Message:    "failed to parse upstream response",
				Details:    err.Error(),
			}
		}
		parseMs, enrichMs = pMs, eMs

		newEntry := &cache.Entry{
			Key:       key,
			Payload:   payload,
			StoredAt:  s.now(),
			Validator: disp.Validator,
		}
		if err := s.store.Set(ctx, newEntry); err != nil {
			s.logger.Warn().Err(err).Str("key", key).Msg("Cache write failed, serving uncached")
		}
		result.Payload = payload

	case fallback.ServeCachedUnchanged:
		if err := s.store.Touch(ctx, key, s.now()); err != nil {
			s.logger.Warn().Err(err).Str("key", key).Msg("Cache touch failed")
		}
		result.Payload = disp.Payload

	case fallback.ServeStale:
		s.logger.Warn().
			Str("key", key).
			Str("cache", disp.CacheLabel).
			Int("status_code", outcome.StatusCode).
			Msg("Serving stale payload")
		result.Payload = disp.Payload

	default: // fallback.Fail
		s.logger.Error().
			Str("key", key).
			Int("status_code", outcome.StatusCode).
			Str("detail", outcome.Detail).
			Msg("Request failed with no cached fallback")
		return nil, &Error{
			StatusCode: disp.StatusCode,
			Message:    disp.Message,
			Details:    outcome.Detail,
		}
	}

	totalMs := msSince(start, s.now())
	result.Timings = Timings{FetchMs: fetchMs, ParseMs: parseMs, EnrichMs: enrichMs, TotalMs: totalMs}
	buf.Record(perf.Sample{
		FetchMs:    fetchMs,
		ParseMs:    parseMs,
		EnrichMs:   enrichMs,
		TotalMs:    totalMs,
		RecordedAt: s.now(),
	})
	return result, nil
}

// parseAndEnrichFixtures validates a fresh schedule body and runs venue
// enrichment. Returns the payload to store plus parse/enrich timings.
func (s *Service) parseAndEnrichFixtures(ctx context.Context, body []byte) (json.RawMessage, float64, float64, error) {
	parseStart := s.now()
	fixtures, err := upstream.ParseFixtures(body)
	if err != nil {
		return nil, 0, 0, err
	}
	parseMs := msSince(parseStart, s.now())

	enrichStart := s.now()
	fixtures = s.enricher.Enrich(ctx, fixtures)
	enrichMs := msSince(enrichStart, s.now())

	payload, err := json.Marshal(fixtures)
	if err != nil {
		return nil, parseMs, enrichMs, err
	}
	return payload, parseMs, enrichMs, nil
}

// parseStandings validates a fresh standings body. No enrichment on this path.
func (s *Service) parseStandings(_ context.Context, body []byte) (json.RawMessage, float64, float64, error) {
	parseStart := s.now()
	rows, err := upstream.ParseStandings(body)
	if err != nil {
		return nil, 0, 0, err
	}
	parseMs := msSince(parseStart, s.now())

	payload, err := json.Marshal(rows)
	if err != nil {
		return nil, parseMs, 0, err
	}
	return payload, parseMs, 0, nil
}

func msSince(from, to time.Time) float64 {
	return float64(to.Sub(from).Microseconds()) / 1000
}
