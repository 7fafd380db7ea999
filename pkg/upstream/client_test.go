package upstream

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
)

func testClient(serverURL string) *Client {
	return NewClient(Config{
		ScheduleURL:  serverURL + "/matches",
		StandingsURL: serverURL + "/standings",
		TeamURLBase:  serverURL + "/teams",
		OddsURL:      serverURL + "/odds",
		AuthToken:    "test-token",
		OddsAPIKey:   "test-key",
	}, zerolog.Nop())
}

func TestRevalidate_Fresh(t *testing.T) {
	var gotAuth, gotConditional string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("X-Auth-Token")
		gotConditional = r.Header.Get("If-None-Match")
		w.Header().Set("ETag", `"v1"`)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"matches":[{"id":1}]}`))
	}))
	defer server.Close()

	client := testClient(server.URL)
	outcome := client.RevalidateMatches(context.Background(), "")

	if outcome.Kind != OutcomeFresh {
		t.Fatalf("Kind = %s, want fresh", outcome.Kind)
	}
	if outcome.Validator != `"v1"` {
		t.Errorf("Validator = %s, want \"v1\"", outcome.Validator)
	}
	if string(outcome.Body) != `{"matches":[{"id":1}]}` {
		t.Errorf("Body = %s", outcome.Body)
	}
	if gotAuth != "test-token" {
		t.Errorf("X-Auth-Token = %q, want test-token", gotAuth)
	}
	if gotConditional != "" {
		t.Errorf("If-None-Match sent without a validator: %q", gotConditional)
	}
}

func TestRevalidate_ConditionalNotModified(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		t.Errorf("expected conditional request, got If-None-Match=%q", r.Header.Get("If-None-Match"))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := testClient(server.URL)
	outcome := client.RevalidateMatches(context.Background(), `"v1"`)

	if outcome.Kind != OutcomeNotModified {
		t.Fatalf("Kind = %s, want not_modified", outcome.Kind)
	}
	if outcome.Validator != `"v1"` {
		t.Errorf("Validator = %s, want prior validator", outcome.Validator)
	}
}

func TestRevalidate_RateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":"too many requests"}`))
	}))
	defer server.Close()

	client := testClient(server.URL)
	outcome := client.RevalidateStandings(context.Background(), "")

	if outcome.Kind != OutcomeRateLimited {
		t.Fatalf("Kind = %s, want rate_limited", outcome.Kind)
	}
	if outcome.StatusCode != http.StatusTooManyRequests {
		t.Errorf("StatusCode = %d, want 429", outcome.StatusCode)
	}
}

func TestRevalidate_UpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream exploded"))
	}))
	defer server.Close()

	client := testClient(server.URL)
	outcome := client.RevalidateMatches(context.Background(), "")

	if outcome.Kind != OutcomeError {
		t.Fatalf("Kind = %s, want error", outcome.Kind)
	}
	if outcome.Detail != "upstream exploded" {
		t.Errorf("Detail = %q, want response body text", outcome.Detail)
	}
}

func TestRevalidate_NetworkFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // Connection refused

	client := testClient(server.URL)
	outcome := client.RevalidateMatches(context.Background(), "")

	if outcome.Kind != OutcomeError {
		t.Fatalf("Kind = %s, want error for network failure", outcome.Kind)
	}
	if outcome.Detail == "" {
		t.Error("Detail should carry the transport error")
	}
}

func TestRevalidate_ValidatorFallback(t *testing.T) {
	// A 2xx response without an ETag keeps the prior validator.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"matches":[]}`))
	}))
	defer server.Close()

	client := testClient(server.URL)
	outcome := client.RevalidateMatches(context.Background(), `"prior"`)

	if outcome.Kind != OutcomeFresh {
		t.Fatalf("Kind = %s, want fresh", outcome.Kind)
	}
	if outcome.Validator != `"prior"` {
		t.Errorf("Validator = %s, want prior validator", outcome.Validator)
	}
}

func TestRevalidate_NotConfigured(t *testing.T) {
	client := NewClient(Config{ScheduleURL: "http://example.invalid"}, zerolog.Nop())
	outcome := client.RevalidateMatches(context.Background(), "")

	if outcome.Kind != OutcomeError {
		t.Fatalf("Kind = %s, want error when token missing", outcome.Kind)
	}
	if outcome.Detail != ErrNotConfigured.Error() {
		t.Errorf("Detail = %q, want not-configured", outcome.Detail)
	}
}

func TestFetchTeam(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/teams/42" {
			t.Errorf("path = %s, want /teams/42", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"id":42,"name":"Arsenal","venue":"Emirates Stadium"}`))
	}))
	defer server.Close()

	client := testClient(server.URL)
	team, err := client.FetchTeam(context.Background(), 42)
	if err != nil {
		t.Fatalf("FetchTeam failed: %v", err)
	}
	if team.Venue != "Emirates Stadium" {
		t.Errorf("Venue = %q, want Emirates Stadium", team.Venue)
	}
}

func TestFetchTeam_Error(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := testClient(server.URL)
	if _, err := client.FetchTeam(context.Background(), 99); err == nil {
		t.Error("FetchTeam should fail on 404")
	}
}

func TestFetchOdds(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("apiKey") != "test-key" {
			t.Errorf("apiKey = %q, want test-key", q.Get("apiKey"))
		}
		if q.Get("home") != "Arsenal" || q.Get("away") != "Chelsea" {
			t.Errorf("params = home=%q away=%q", q.Get("home"), q.Get("away"))
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"homeTeam":"Arsenal","awayTeam":"Chelsea","homeWin":2.1,"draw":3.4,"awayWin":3.2}`))
	}))
	defer server.Close()

	client := testClient(server.URL)
	odds, err := client.FetchOdds(context.Background(), "Arsenal", "Chelsea")
	if err != nil {
		t.Fatalf("FetchOdds failed: %v", err)
	}
	if odds.HomeWin != 2.1 {
		t.Errorf("HomeWin = %v, want 2.1", odds.HomeWin)
	}
}

func TestFetchOdds_NoOdds(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "404 from upstream",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNotFound)
			},
		},
		{
			name: "empty odds record",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				w.Write([]byte(`{"homeTeam":"A","awayTeam":"B"}`))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			client := testClient(server.URL)
			_, err := client.FetchOdds(context.Background(), "A", "B")
			if !errors.Is(err, ErrNoOdds) {
				t.Errorf("err = %v, want ErrNoOdds", err)
			}
		})
	}
}

func TestFetchOdds_NotConfigured(t *testing.T) {
	client := NewClient(Config{OddsURL: "http://example.invalid"}, zerolog.Nop())
	_, err := client.FetchOdds(context.Background(), "A", "B")
	if !errors.Is(err, ErrNotConfigured) {
		t.Errorf("err = %v, want ErrNotConfigured", err)
	}
}

func TestParseFixtures_Malformed(t *testing.T) {
	if _, err := ParseFixtures([]byte(`not json`)); err == nil {
		t.Error("ParseFixtures should fail on malformed JSON")
	}
}

func TestParseStandings_Malformed(t *testing.T) {
	if _, err := ParseStandings([]byte(`{`)); err == nil {
		t.Error("ParseStandings should fail on malformed JSON")
	}
}

func TestFixture_IsLive(t *testing.T) {
	tests := []struct {
		status string
		want   bool
	}{
		{"LIVE", true},
		{"IN_PLAY", true},
		{"PAUSED", true},
		{"SCHEDULED", false},
		{"FINISHED", false},
		{"", false},
		{"garbage", false},
	}

	for _, tt := range tests {
		f := Fixture{Status: tt.status}
		if got := f.IsLive(); got != tt.want {
			t.Errorf("IsLive(%q) = %v, want %v", tt.status, got, tt.want)
		}
	}
}
