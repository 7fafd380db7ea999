package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/matchdayhq/facade/internal/testutil"
	"github.com/matchdayhq/facade/pkg/cache"
	"github.com/matchdayhq/facade/pkg/enrich"
	"github.com/matchdayhq/facade/pkg/fallback"
	"github.com/matchdayhq/facade/pkg/upstream"
)

// fakeClock lets tests cross TTL boundaries without sleeping.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(now time.Time) *fakeClock {
	return &fakeClock{now: now}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// twoFixtures is a schedule three days after the test clock: one fixture with
// a venue, one missing it (home team 7).
const twoFixtures = `[
	{"id":1,"utcDate":"2026-03-05T15:00:00Z","status":"SCHEDULED",
	 "homeTeam":{"id":5,"name":"Liverpool"},"awayTeam":{"id":6,"name":"Everton"},"venue":"Anfield"},
	{"id":2,"utcDate":"2026-03-05T17:30:00Z","status":"SCHEDULED",
	 "homeTeam":{"id":7,"name":"Arsenal"},"awayTeam":{"id":8,"name":"Chelsea"},"venue":""}
]`

func setupService(t *testing.T) (*Service, *testutil.MockUpstream, *fakeClock) {
	t.Helper()

	mock := testutil.NewMockUpstream()
	t.Cleanup(mock.Close)

	client := upstream.NewClient(upstream.Config{
		ScheduleURL:  mock.URL() + "/matches",
		StandingsURL: mock.URL() + "/standings",
		TeamURLBase:  mock.URL() + "/teams",
		OddsURL:      mock.URL() + "/odds",
		AuthToken:    "test-token",
		OddsAPIKey:   "test-key",
	}, zerolog.Nop())

	enricher := enrich.NewEnricher(client, zerolog.Nop())
	svc := New(cache.NewMemoryStore(), client, enricher, zerolog.Nop())

	clk := newFakeClock(time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC))
	svc.SetClock(clk.Now)

	return svc, mock, clk
}

func TestMatches_EndToEnd(t *testing.T) {
	svc, mock, clk := setupService(t)
	ctx := context.Background()

	mock.SetResponse("/matches", testutil.NewScheduleResponse(`"v1"`, twoFixtures))
	mock.SetTeam(7, "Arsenal", "Emirates Stadium")

	// Cold cache: MISS with the validator stored and the venue enriched.
	first, err := svc.Matches(ctx)
	if err != nil {
		t.Fatalf("Matches failed: %v", err)
	}
	if first.CacheStatus != fallback.LabelMiss {
		t.Errorf("CacheStatus = %s, want MISS", first.CacheStatus)
	}
	if first.Validator != `"v1"` {
		t.Errorf("Validator = %s, want \"v1\"", first.Validator)
	}

	var fixtures []upstream.Fixture
	if err := json.Unmarshal(first.Payload, &fixtures); err != nil {
		t.Fatalf("payload unmarshal: %v", err)
	}
	if len(fixtures) != 2 {
		t.Fatalf("len(fixtures) = %d, want 2", len(fixtures))
	}
	if fixtures[0].Venue != "Anfield" {
		t.Errorf("fixtures[0].Venue = %q, want Anfield", fixtures[0].Venue)
	}
	if fixtures[1].Venue != "Emirates Stadium" {
		t.Errorf("fixtures[1].Venue = %q, want enriched venue", fixtures[1].Venue)
	}

	// Second request within TTL: HIT with an identical body and no
	// additional upstream call.
	second, err := svc.Matches(ctx)
	if err != nil {
		t.Fatalf("Matches failed: %v", err)
	}
	if second.CacheStatus != fallback.LabelHit {
		t.Errorf("CacheStatus = %s, want HIT", second.CacheStatus)
	}
	if string(second.Payload) != string(first.Payload) {
		t.Error("HIT body differs from MISS body")
	}
	if got := mock.GetPathCount("/matches"); got != 1 {
		t.Errorf("upstream calls = %d, want 1", got)
	}

	// Past TTL with a 304 upstream: ETAG-NOTMODIFIED, body unchanged.
	clk.Advance(2 * time.Hour)
	mock.SetResponse("/matches", testutil.NewNotModifiedResponse())

	third, err := svc.Matches(ctx)
	if err != nil {
		t.Fatalf("Matches failed: %v", err)
	}
	if third.CacheStatus != fallback.LabelNotModified {
		t.Errorf("CacheStatus = %s, want ETAG-NOTMODIFIED", third.CacheStatus)
	}
	if string(third.Payload) != string(first.Payload) {
		t.Error("304 body differs from original body")
	}
	if mock.GetConditionalCount() == 0 {
		t.Error("revalidation should have sent If-None-Match")
	}

	// Past TTL again with the upstream rate limiting: STALE, 200, body
	// unchanged.
	clk.Advance(2 * time.Hour)
	mock.SetResponse("/matches", testutil.NewRateLimitResponse())

	fourth, err := svc.Matches(ctx)
	if err != nil {
		t.Fatalf("Matches should serve stale, got error: %v", err)
	}
	if fourth.CacheStatus != fallback.LabelStale {
		t.Errorf("CacheStatus = %s, want STALE", fourth.CacheStatus)
	}
	if string(fourth.Payload) != string(first.Payload) {
		t.Error("stale body differs from original body")
	}
}

func TestMatches_ErrorStaleOnUpstreamFailure(t *testing.T) {
	svc, mock, clk := setupService(t)
	ctx := context.Background()

	mock.SetResponse("/matches", testutil.NewScheduleResponse(`"v1"`, twoFixtures))
	mock.SetTeam(7, "Arsenal", "Emirates Stadium")

	if _, err := svc.Matches(ctx); err != nil {
		t.Fatalf("Matches failed: %v", err)
	}

	clk.Advance(2 * time.Hour)
	mock.SetResponse("/matches", testutil.NewServerErrorResponse())

	result, err := svc.Matches(ctx)
	if err != nil {
		t.Fatalf("Matches should serve stale on upstream error, got: %v", err)
	}
	if result.CacheStatus != fallback.LabelErrorStale {
		t.Errorf("CacheStatus = %s, want ERROR-STALE", result.CacheStatus)
	}
}

func TestMatches_FailWithoutCache(t *testing.T) {
	svc, mock, _ := setupService(t)

	mock.SetResponse("/matches", testutil.NewServerErrorResponse())

	_, err := svc.Matches(context.Background())
	if err == nil {
		t.Fatal("Matches should fail with no cached fallback")
	}

	var svcErr *Error
	if !errors.As(err, &svcErr) {
		t.Fatalf("err = %T, want *service.Error", err)
	}
	if svcErr.StatusCode != http.StatusInternalServerError {
		t.Errorf("StatusCode = %d, want 500", svcErr.StatusCode)
	}
}

func TestMatches_ParseErrorSurfaced(t *testing.T) {
	svc, mock, _ := setupService(t)

	mock.SetResponse("/matches", testutil.MockResponse{
		StatusCode: http.StatusOK,
		Body:       `this is not json`,
		Headers:    map[string]string{"ETag": `"v1"`},
	})

	_, err := svc.Matches(context.Background())
	if err == nil {
		t.Fatal("Matches should surface the parse error")
	}

	var svcErr *Error
	if !errors.As(err, &svcErr) {
		t.Fatalf("err = %T, want *service.Error", err)
	}
	if svcErr.StatusCode != http.StatusInternalServerError {
		t.Errorf("StatusCode = %d, want 500", svcErr.StatusCode)
	}
	if !strings.Contains(svcErr.Message, "parse") {
		t.Errorf("Message = %q, want parse failure message", svcErr.Message)
	}
}

func TestMatches_CoalescesConcurrentMisses(t *testing.T) {
	svc, mock, _ := setupService(t)

	resp := testutil.NewScheduleResponse(`"v1"`, twoFixtures)
	resp.Delay = 50 * time.Millisecond
	mock.SetResponse("/matches", resp)
	mock.SetTeam(7, "Arsenal", "Emirates Stadium")

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Matches(context.Background()); err != nil {
				t.Errorf("Matches failed: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := mock.GetPathCount("/matches"); got != 1 {
		t.Errorf("upstream calls = %d, want 1 (singleflight)", got)
	}
}

func TestStandings_RevalidationFlow(t *testing.T) {
	svc, mock, clk := setupService(t)
	ctx := context.Background()

	rows := `[
		{"position":1,"team":{"id":5,"name":"Liverpool"},"playedGames":10,"won":8,"draw":1,"lost":1,"points":25,"form":"W,W,D"},
		{"position":2,"team":{"id":7,"name":"Arsenal"},"playedGames":10,"won":7,"draw":2,"lost":1,"points":23,"form":"D,W,L"}
	]`
	mock.SetResponse("/standings", testutil.NewStandingsResponse(`"s1"`, rows))

	first, err := svc.Standings(ctx)
	if err != nil {
		t.Fatalf("Standings failed: %v", err)
	}
	if first.CacheStatus != fallback.LabelMiss {
		t.Errorf("CacheStatus = %s, want MISS", first.CacheStatus)
	}

	var got []upstream.StandingRow
	if err := json.Unmarshal(first.Payload, &got); err != nil {
		t.Fatalf("payload unmarshal: %v", err)
	}
	if len(got) != 2 || got[0].Points != 25 {
		t.Errorf("rows = %+v", got)
	}

	// A recent win holds the 5 minute TTL: still fresh after 4 minutes.
	clk.Advance(4 * time.Minute)
	second, err := svc.Standings(ctx)
	if err != nil {
		t.Fatalf("Standings failed: %v", err)
	}
	if second.CacheStatus != fallback.LabelHit {
		t.Errorf("CacheStatus = %s, want HIT within the recent-win TTL", second.CacheStatus)
	}

	// Expired two minutes later; the 304 refreshes the timestamp only.
	clk.Advance(2 * time.Minute)
	mock.SetResponse("/standings", testutil.NewNotModifiedResponse())

	third, err := svc.Standings(ctx)
	if err != nil {
		t.Fatalf("Standings failed: %v", err)
	}
	if third.CacheStatus != fallback.LabelNotModified {
		t.Errorf("CacheStatus = %s, want ETAG-NOTMODIFIED", third.CacheStatus)
	}
	if string(third.Payload) != string(first.Payload) {
		t.Error("304 body differs from original body")
	}

	// Touched entry serves HIT again without another upstream call.
	before := mock.GetPathCount("/standings")
	fourth, err := svc.Standings(ctx)
	if err != nil {
		t.Fatalf("Standings failed: %v", err)
	}
	if fourth.CacheStatus != fallback.LabelHit {
		t.Errorf("CacheStatus = %s, want HIT after touch", fourth.CacheStatus)
	}
	if mock.GetPathCount("/standings") != before {
		t.Error("unexpected upstream call after touch")
	}
}

func TestOdds_CachedPerPairing(t *testing.T) {
	svc, mock, _ := setupService(t)
	ctx := context.Background()

	mock.SetResponse("/odds", testutil.MockResponse{
		StatusCode: http.StatusOK,
		Body:       `{"homeTeam":"Arsenal","awayTeam":"Chelsea","homeWin":2.1,"draw":3.4,"awayWin":3.2,"bookmaker":"testbook"}`,
		Headers:    map[string]string{"Content-Type": "application/json"},
	})

	odds, err := svc.Odds(ctx, "Arsenal", "Chelsea")
	if err != nil {
		t.Fatalf("Odds failed: %v", err)
	}
	if odds.HomeWin != 2.1 {
		t.Errorf("HomeWin = %v, want 2.1", odds.HomeWin)
	}

	if _, err := svc.Odds(ctx, "Arsenal", "Chelsea"); err != nil {
		t.Fatalf("Odds failed: %v", err)
	}
	if got := mock.GetPathCount("/odds"); got != 1 {
		t.Errorf("upstream odds calls = %d, want 1 (cached)", got)
	}
}

func TestOdds_NoOddsFound(t *testing.T) {
	svc, mock, _ := setupService(t)

	mock.SetResponse("/odds", testutil.MockResponse{StatusCode: http.StatusNotFound})

	_, err := svc.Odds(context.Background(), "Nowhere", "Nobody")
	if !errors.Is(err, upstream.ErrNoOdds) {
		t.Errorf("err = %v, want ErrNoOdds", err)
	}
}

func TestMatches_PerfSampleRecorded(t *testing.T) {
	svc, mock, _ := setupService(t)

	mock.SetResponse("/matches", testutil.NewScheduleResponse(`"v1"`, twoFixtures))
	mock.SetTeam(7, "Arsenal", "Emirates Stadium")

	if _, err := svc.Matches(context.Background()); err != nil {
		t.Fatalf("Matches failed: %v", err)
	}

	if svc.PerfMatches().Len() != 1 {
		t.Errorf("perf samples = %d, want 1", svc.PerfMatches().Len())
	}
	if svc.PerfStandings().Len() != 0 {
		t.Errorf("standings perf samples = %d, want 0", svc.PerfStandings().Len())
	}
}
