// Package ttl implements the content-driven cache validity policy. The
// functions are pure: given the same records and wall-clock time they always
// return the same duration.
package ttl

import (
	"time"

	"github.com/matchdayhq/facade/pkg/upstream"
)

// Validity durations. Liveness demands near-real-time freshness; matchday
// volatility a medium window; everything else follows the expected publish
// cadence of the upstream.
const (
	Live     = 30 * time.Second
	Matchday = 15 * time.Minute
	Schedule = 1 * time.Hour

	StandingsBase      = 12 * time.Hour
	StandingsRecentWin = 5 * time.Minute
	StandingsWeekend   = 1 * time.Hour
)

// Fixtures computes the validity of a cached fixtures payload. First match
// wins: any live fixture, then any fixture on today's local calendar date,
// then the schedule default. An empty payload is always expired.
func Fixtures(fixtures []upstream.Fixture, now time.Time) time.Duration {
	if len(fixtures) == 0 {
		return 0
	}

	for _, f := range fixtures {
		if f.IsLive() {
			return Live
		}
	}

	for _, f := range fixtures {
		if sameLocalDate(f.Kickoff(), now) {
			return Matchday
		}
	}

	return Schedule
}

// Standings computes the validity of a cached standings payload. A recent win
// in any row's form signals imminent table movement, weekends a faster publish
// cadence; otherwise the 12 hour baseline holds. An empty payload is always
// expired.
func Standings(rows []upstream.StandingRow, now time.Time) time.Duration {
	if len(rows) == 0 {
		return 0
	}

	for _, row := range rows {
		if formHasWin(row.Form) {
			return StandingsRecentWin
		}
	}

	if wd := now.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return StandingsWeekend
	}

	return StandingsBase
}

// sameLocalDate compares calendar dates in local time, not UTC instants.
// A zero kickoff (absent or malformed date field) is never "today".
func sameLocalDate(kickoff, now time.Time) bool {
	if kickoff.IsZero() {
		return false
	}
	ky, km, kd := kickoff.Local().Date()
	ny, nm, nd := now.Local().Date()
	return ky == ny && km == nm && kd == nd
}

// formHasWin reports whether a recent-form string records a win.
func formHasWin(form string) bool {
	for _, r := range form {
		if r == 'W' {
			return true
		}
	}
	return false
}
