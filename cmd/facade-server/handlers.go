package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/matchdayhq/facade/pkg/health"
	"github.com/matchdayhq/facade/pkg/perf"
	"github.com/matchdayhq/facade/pkg/service"
	"github.com/matchdayhq/facade/pkg/upstream"
)

// server holds the handler dependencies, constructed once at startup.
type server struct {
	svc         *service.Service
	health      *health.Aggregator
	version     string
	environment string
	startedAt   time.Time
	logger      zerolog.Logger
}

func newServer(svc *service.Service, aggregator *health.Aggregator, version, environment string, logger zerolog.Logger) *server {
	return &server{
		svc:         svc,
		health:      aggregator,
		version:     version,
		environment: environment,
		startedAt:   time.Now(),
		logger:      logger,
	}
}

// routes builds the HTTP surface.
func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /matches", s.handleMatches)
	mux.HandleFunc("GET /standings", s.handleStandings)
	mux.HandleFunc("GET /odds", s.handleOdds)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /perf", s.handlePerf)
	mux.Handle("GET /metrics", promhttp.Handler())
	return mux
}

func (s *server) handleMatches(w http.ResponseWriter, r *http.Request) {
	result, err := s.svc.Matches(r.Context())
	s.writeDataResult(w, "matches", result, err)
}

func (s *server) handleStandings(w http.ResponseWriter, r *http.Request) {
	result, err := s.svc.Standings(r.Context())
	s.writeDataResult(w, "standings", result, err)
}

// writeDataResult writes a data endpoint response: the cached/served payload
// with the x-cache, ETag and x-timings-* headers, or the failure body.
func (s *server) writeDataResult(w http.ResponseWriter, endpoint string, result *service.Result, err error) {
	if err != nil {
		status := http.StatusInternalServerError
		message := "internal error"
		details := err.Error()

		var svcErr *service.Error
		if errors.As(err, &svcErr) {
			status = svcErr.StatusCode
			message = svcErr.Message
			details = svcErr.Details
		}
		s.logger.Error().Str("endpoint", endpoint).Int("status_code", status).Err(err).Msg("Data request failed")
		s.writeError(w, status, message, details)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("x-cache", result.CacheStatus)
	if result.Validator != "" {
		w.Header().Set("ETag", result.Validator)
	}
	w.Header().Set("x-timings-fetch", formatMs(result.Timings.FetchMs))
	w.Header().Set("x-timings-parse", formatMs(result.Timings.ParseMs))
	w.Header().Set("x-timings-enrich", formatMs(result.Timings.EnrichMs))

	w.WriteHeader(http.StatusOK)
	w.Write(result.Payload)
}

func (s *server) handleOdds(w http.ResponseWriter, r *http.Request) {
	home := r.URL.Query().Get("home")
	away := r.URL.Query().Get("away")
	if home == "" || away == "" {
		s.writeError(w, http.StatusBadRequest, "missing required query parameters", "home and away are required")
		return
	}

	odds, err := s.svc.Odds(r.Context(), home, away)
	switch {
	case errors.Is(err, upstream.ErrNoOdds):
		s.writeError(w, http.StatusNotFound, "no odds found", fmt.Sprintf("no odds for %s vs %s", home, away))
		return
	case errors.Is(err, upstream.ErrNotConfigured):
		s.writeError(w, http.StatusInternalServerError, "odds API not configured", err.Error())
		return
	case err != nil:
		s.writeError(w, http.StatusInternalServerError, "odds lookup failed", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, odds)
}

// healthBody is the /health response shape.
type healthBody struct {
	Status             health.Status `json:"status"`
	Timestamp          time.Time     `json:"timestamp"`
	Uptime             string        `json:"uptime"`
	Checks             health.Checks `json:"checks"`
	CircuitBreakerOpen bool          `json:"circuitBreakerOpen"`
	Version            string        `json:"version"`
	Environment        string        `json:"environment"`
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	// The health endpoint always returns a body, even if a probe panics.
	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Error().Interface("panic", rec).Msg("Health handler panic")
			s.writeError(w, http.StatusInternalServerError, "health check failed", fmt.Sprintf("%v", rec))
		}
	}()

	start := time.Now()
	report := s.health.CheckHealth(r.Context())

	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("x-health-check-duration", formatMs(float64(time.Since(start).Microseconds())/1000))

	writeJSON(w, report.HTTPStatus(), healthBody{
		Status:             report.Status,
		Timestamp:          time.Now(),
		Uptime:             time.Since(s.startedAt).Round(time.Second).String(),
		Checks:             report.Checks,
		CircuitBreakerOpen: report.CircuitBreakerOpen,
		Version:            s.version,
		Environment:        s.environment,
	})
}

// perfBody is the /perf response shape.
type perfBody struct {
	Matches   perfSource `json:"matches"`
	Standings perfSource `json:"standings"`
}

type perfSource struct {
	Last    *perf.Sample  `json:"last"`
	Average perf.Averages `json:"average"`
}

func (s *server) handlePerf(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Cache-Control", "s-maxage=30")
	writeJSON(w, http.StatusOK, perfBody{
		Matches:   perfSourceOf(s.svc.PerfMatches()),
		Standings: perfSourceOf(s.svc.PerfStandings()),
	})
}

func perfSourceOf(buf *perf.Buffer) perfSource {
	src := perfSource{Average: buf.Average()}
	if last, ok := buf.Last(); ok {
		src.Last = &last
	}
	return src
}

// writeError writes the {error, details} failure body. Diagnostic detail is
// withheld in production.
func (s *server) writeError(w http.ResponseWriter, status int, message, details string) {
	body := map[string]string{"error": message}
	if details != "" && s.environment != "production" {
		body["details"] = details
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func formatMs(ms float64) string {
	return fmt.Sprintf("%.1fms", ms)
}
