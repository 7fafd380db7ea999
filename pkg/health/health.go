// Package health runs independent probes against the cache backing store,
// the upstream API and process memory, and composes them into one tri-state
// status for the /health endpoint. Probes never mutate cache state.
package health

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Status is the aggregate health state.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// Probe thresholds.
const (
	// upstreamProbeTimeout is the hard deadline for the upstream probe.
	// A probe past the deadline is abandoned and reported as a timeout.
	upstreamProbeTimeout = 5 * time.Second

	// cacheLatencyThreshold degrades status when the backing store ping
	// takes longer than this.
	cacheLatencyThreshold = 2 * time.Second

	// upstreamLatencyThreshold degrades status when the upstream probe
	// takes longer than this.
	upstreamLatencyThreshold = 5 * time.Second

	// memoryScoreThreshold degrades status when the memory health score
	// falls below it.
	memoryScoreThreshold = 50
)

// Check is the result of one probe, computed fresh per health request.
type Check struct {
	Healthy   bool    `json:"healthy"`
	LatencyMs float64 `json:"latencyMs,omitempty"`
	Error     string  `json:"error,omitempty"`

	// Score is set for the memory check only (0-100).
	Score int `json:"score,omitempty"`
}

// Checks groups the three probe results.
type Checks struct {
	CacheStore  Check `json:"cacheStore"`
	UpstreamAPI Check `json:"upstreamApi"`
	Memory      Check `json:"memory"`
}

// Report is the aggregate health report.
type Report struct {
	Status             Status `json:"status"`
	Checks             Checks `json:"checks"`
	CircuitBreakerOpen bool   `json:"circuitBreakerOpen"`
}

// HTTPStatus maps the aggregate status to a response code. Degraded is still
// serviceable.
func (r Report) HTTPStatus() int {
	if r.Status == StatusUnhealthy {
		return 503
	}
	return 200
}

// StorePinger is the backing store surface the aggregator reads. The breaker
// flag is read-only from here.
type StorePinger interface {
	Ping(ctx context.Context) error
	BreakerOpen() bool
}

// UpstreamProber checks upstream API reachability.
type UpstreamProber interface {
	PingSchedule(ctx context.Context) error
}

// Aggregator composes the probes.
type Aggregator struct {
	store    StorePinger
	upstream UpstreamProber
	logger   zerolog.Logger
}

// NewAggregator creates a health aggregator.
func NewAggregator(store StorePinger, upstream UpstreamProber, logger zerolog.Logger) *Aggregator {
	return &Aggregator{
		store:    store,
		upstream: upstream,
		logger:   logger,
	}
}

// CheckHealth runs all probes concurrently and composes the result.
func (a *Aggregator) CheckHealth(ctx context.Context) Report {
	var report Report
	var wg sync.WaitGroup

	wg.Add(3)
	go func() {
		defer wg.Done()
		report.Checks.CacheStore = a.probeCacheStore(ctx)
	}()
	go func() {
		defer wg.Done()
		report.Checks.UpstreamAPI = a.probeUpstream(ctx)
	}()
	go func() {
		defer wg.Done()
		report.Checks.Memory = probeMemory()
	}()
	wg.Wait()

	report.CircuitBreakerOpen = a.store.BreakerOpen()
	report.Status = compose(report.Checks, report.CircuitBreakerOpen)

	if report.Status != StatusHealthy {
		a.logger.Warn().
			Str("status", string(report.Status)).
			Bool("breaker_open", report.CircuitBreakerOpen).
			Msg("Health check not healthy")
	}
	return report
}

// compose applies the aggregation rule: either hard dependency down means
// unhealthy; an open breaker, low memory score or slow probe only degrades.
func compose(checks Checks, breakerOpen bool) Status {
	if !checks.CacheStore.Healthy || !checks.UpstreamAPI.Healthy {
		return StatusUnhealthy
	}

	switch {
	case breakerOpen:
		return StatusDegraded
	case checks.Memory.Score < memoryScoreThreshold:
		return StatusDegraded
	case checks.CacheStore.LatencyMs > float64(cacheLatencyThreshold.Milliseconds()):
		return StatusDegraded
	case checks.UpstreamAPI.LatencyMs > float64(upstreamLatencyThreshold.Milliseconds()):
		return StatusDegraded
	}

	return StatusHealthy
}

// probeCacheStore pings the backing store. A panic or error degrades to an
// unhealthy check rather than propagating.
func (a *Aggregator) probeCacheStore(ctx context.Context) (check Check) {
	defer recoverIntoCheck(&check)

	start := time.Now()
	err := a.store.Ping(ctx)
	check.LatencyMs = float64(time.Since(start).Microseconds()) / 1000

	if err != nil {
		check.Healthy = false
		check.Error = err.Error()
		return check
	}
	check.Healthy = true
	return check
}

// probeUpstream checks upstream reachability under a hard 5s deadline.
func (a *Aggregator) probeUpstream(ctx context.Context) (check Check) {
	defer recoverIntoCheck(&check)

	probeCtx, cancel := context.WithTimeout(ctx, upstreamProbeTimeout)
	defer cancel()

	start := time.Now()
	done := make(chan error, 1)
	go func() {
		done <- a.upstream.PingSchedule(probeCtx)
	}()

	var err error
	select {
	case err = <-done:
	case <-probeCtx.Done():
		// Abandon the probe; it is reported as a timeout.
		err = fmt.Errorf("upstream probe timed out after %s", upstreamProbeTimeout)
	}
	check.LatencyMs = float64(time.Since(start).Microseconds()) / 1000

	if err != nil {
		check.Healthy = false
		check.Error = err.Error()
		return check
	}
	check.Healthy = true
	return check
}

// probeMemory computes the 0-100 memory health score from heap statistics.
func probeMemory() Check {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	score := MemoryScore(m.HeapAlloc, m.HeapSys)
	return Check{
		Healthy: true,
		Score:   score,
	}
}

// MemoryScore starts at 100 and subtracts penalties for heap pressure:
// 40/25/10 for a used/total ratio above 90/75/60 percent, plus 20/10 for
// absolute heap use above 512/256 MB. Floored at 0.
func MemoryScore(heapUsed, heapTotal uint64) int {
	score := 100

	if heapTotal > 0 {
		ratio := float64(heapUsed) / float64(heapTotal)
		switch {
		case ratio > 0.90:
			score -= 40
		case ratio > 0.75:
			score -= 25
		case ratio > 0.60:
			score -= 10
		}
	}

	const mb = 1024 * 1024
	switch {
	case heapUsed > 512*mb:
		score -= 20
	case heapUsed > 256*mb:
		score -= 10
	}

	if score < 0 {
		score = 0
	}
	return score
}

// recoverIntoCheck converts a probe panic into an unhealthy check.
func recoverIntoCheck(check *Check) {
	if r := recover(); r != nil {
		check.Healthy = false
		check.Error = fmt.Sprintf("probe panic: %v", r)
	}
}
