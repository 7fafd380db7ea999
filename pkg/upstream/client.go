package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
)

// Common errors returned by the upstream client.
var (
	// ErrNotConfigured indicates a required upstream credential is missing.
	// Fails fast, never retried.
	ErrNotConfigured = errors.New("upstream credential not configured")

	// ErrNoOdds indicates the odds API has no record for the pairing.
	ErrNoOdds = errors.New("no odds found")
)

// defaultTimeout bounds every upstream call. The natural retry cycle is the
// next cache-expiry request; there are no in-request retries.
const defaultTimeout = 15 * time.Second

// Config holds the upstream client configuration.
type Config struct {
	// ScheduleURL is the match-schedule API endpoint (conditional GET
	// supported via ETag).
	ScheduleURL string

	// StandingsURL is the standings API endpoint (same conditional
	// contract as the schedule API).
	StandingsURL string

	// TeamURLBase is the per-team lookup endpoint base; the team ID is
	// appended as a path segment.
	TeamURLBase string

	// OddsURL is the odds API endpoint (API key query param, no
	// conditional support).
	OddsURL string

	// AuthToken authenticates schedule, standings and team lookups.
	AuthToken string

	// OddsAPIKey authenticates odds lookups.
	OddsAPIKey string

	// Timeout per upstream call. Defaults to 15s.
	Timeout time.Duration
}

// Client performs conditional revalidations and direct lookups against the
// upstream providers. It classifies outcomes; fallback decisions live in the
// fallback package.
type Client struct {
	httpClient *http.Client
	cfg        Config
	logger     zerolog.Logger
}

// NewClient creates an upstream client.
func NewClient(cfg Config, logger zerolog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		cfg:    cfg,
		logger: logger,
	}
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// RevalidateMatches performs a conditional fetch of the match schedule.
func (c *Client) RevalidateMatches(ctx context.Context, validator string) Outcome {
	return c.revalidate(ctx, "matches", c.cfg.ScheduleURL, validator)
}

// RevalidateStandings performs a conditional fetch of the standings table.
func (c *Client) RevalidateStandings(ctx context.Context, validator string) Outcome {
	return c.revalidate(ctx, "standings", c.cfg.StandingsURL, validator)
}

// revalidate issues a GET with the stored validator attached as
// If-None-Match and classifies the response.
func (c *Client) revalidate(ctx context.Context, endpoint, rawURL, validator string) Outcome {
	if c.cfg.AuthToken == "" {
		return Outcome{Kind: OutcomeError, Detail: ErrNotConfigured.Error()}
	}

	start := time.Now()
	defer func() {
		requestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return c.classify(endpoint, nil, validator, fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("X-Auth-Token", c.cfg.AuthToken)
	req.Header.Set("Accept", "application/json")
	if validator != "" {
		req.Header.Set("If-None-Match", validator)
		conditionalRequests.Inc()
		c.logger.Debug().
			Str("endpoint", endpoint).
			Str("validator", validator).
			Msg("Making conditional request")
	}

	resp, err := c.httpClient.Do(req)
	return c.classify(endpoint, resp, validator, err)
}

// classify folds a response or transport error into an Outcome.
func (c *Client) classify(endpoint string, resp *http.Response, priorValidator string, err error) Outcome {
	if err != nil {
		// Timeouts and connection resets are folded into OutcomeError.
		c.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("Upstream request failed")
		requestsTotal.WithLabelValues(endpoint, "network_error").Inc()
		errorsTotal.WithLabelValues("network").Inc()
		return Outcome{Kind: OutcomeError, Detail: err.Error()}
	}
	defer resp.Body.Close()

	requestsTotal.WithLabelValues(endpoint, fmt.Sprintf("%d", resp.StatusCode)).Inc()

	switch {
	case resp.StatusCode == http.StatusNotModified:
		notModifiedTotal.Inc()
		c.logger.Debug().Str("endpoint", endpoint).Msg("304 Not Modified")
		return Outcome{Kind: OutcomeNotModified, StatusCode: resp.StatusCode, Validator: priorValidator}

	case resp.StatusCode == http.StatusTooManyRequests:
		errorsTotal.WithLabelValues("rate_limit").Inc()
		detail := readBodyText(resp.Body)
		c.logger.Warn().Str("endpoint", endpoint).Msg("Upstream rate limited")
		return Outcome{Kind: OutcomeRateLimited, StatusCode: resp.StatusCode, Detail: detail}

	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		body, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			errorsTotal.WithLabelValues("network").Inc()
			return Outcome{Kind: OutcomeError, StatusCode: resp.StatusCode, Detail: readErr.Error()}
		}
		validator := resp.Header.Get("ETag")
		if validator == "" {
			validator = priorValidator
		}
		return Outcome{Kind: OutcomeFresh, StatusCode: resp.StatusCode, Body: body, Validator: validator}

	default:
		class := "server"
		if resp.StatusCode < 500 {
			class = "client"
		}
		errorsTotal.WithLabelValues(class).Inc()
		detail := readBodyText(resp.Body)
		c.logger.Warn().
			Str("endpoint", endpoint).
			Int("status_code", resp.StatusCode).
			Msg("Upstream error response")
		return Outcome{Kind: OutcomeError, StatusCode: resp.StatusCode, Detail: detail}
	}
}

// FetchTeam looks up a single team record for venue enrichment.
func (c *Client) FetchTeam(ctx context.Context, teamID int64) (*Team, error) {
	if c.cfg.AuthToken == "" {
		return nil, ErrNotConfigured
	}

	start := time.Now()
	defer func() {
		requestDuration.WithLabelValues("team").Observe(time.Since(start).Seconds())
	}()

	teamURL := fmt.Sprintf("%s/%d", c.cfg.TeamURLBase, teamID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, teamURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("X-Auth-Token", c.cfg.AuthToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		requestsTotal.WithLabelValues("team", "network_error").Inc()
		return nil, fmt.Errorf("team lookup: %w", err)
	}
	defer resp.Body.Close()

	requestsTotal.WithLabelValues("team", fmt.Sprintf("%d", resp.StatusCode)).Inc()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("team lookup status %d: %s", resp.StatusCode, readBodyText(resp.Body))
	}

	var team Team
	if err := json.NewDecoder(resp.Body).Decode(&team); err != nil {
		return nil, fmt.Errorf("parse team: %w", err)
	}
	return &team, nil
}

// FetchOdds looks up bookmaker odds for a home/away pairing. The odds API has
// no conditional-GET support; callers cache the result themselves.
func (c *Client) FetchOdds(ctx context.Context, home, away string) (*Odds, error) {
	if c.cfg.OddsAPIKey == "" {
		return nil, ErrNotConfigured
	}

	start := time.Now()
	defer func() {
		requestDuration.WithLabelValues("odds").Observe(time.Since(start).Seconds())
	}()

	oddsURL, err := url.Parse(c.cfg.OddsURL)
	if err != nil {
		return nil, fmt.Errorf("parse odds url: %w", err)
	}
	q := oddsURL.Query()
	q.Set("apiKey", c.cfg.OddsAPIKey)
	q.Set("home", home)
	q.Set("away", away)
	oddsURL.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, oddsURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		requestsTotal.WithLabelValues("odds", "network_error").Inc()
		return nil, fmt.Errorf("odds lookup: %w", err)
	}
	defer resp.Body.Close()

	requestsTotal.WithLabelValues("odds", fmt.Sprintf("%d", resp.StatusCode)).Inc()
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNoOdds
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("odds lookup status %d: %s", resp.StatusCode, readBodyText(resp.Body))
	}

	var odds Odds
	if err := json.NewDecoder(resp.Body).Decode(&odds); err != nil {
		return nil, fmt.Errorf("parse odds: %w", err)
	}
	if odds.HomeWin == 0 && odds.Draw == 0 && odds.AwayWin == 0 {
		return nil, ErrNoOdds
	}
	return &odds, nil
}

// PingSchedule checks schedule API reachability for the health probe without
// mutating any cache state. A 2xx, 304 or 429 all prove reachability.
func (c *Client) PingSchedule(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.ScheduleURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if c.cfg.AuthToken != "" {
		req.Header.Set("X-Auth-Token", c.cfg.AuthToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("schedule probe: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 500 {
		return fmt.Errorf("schedule probe status %d", resp.StatusCode)
	}
	return nil
}

// readBodyText reads a bounded amount of a response body for diagnostics.
func readBodyText(r io.Reader) string {
	body, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil {
		return ""
	}
	return string(body)
}
