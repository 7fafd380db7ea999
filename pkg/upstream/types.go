// Package upstream provides typed access to the rate-limited data providers
// behind the façade: the match-schedule API, the standings API, the odds API
// and the per-team venue lookup. Responses are validated into explicit record
// types at this boundary so malformed upstream data fails fast instead of
// propagating untyped values downstream.
package upstream

import (
	"encoding/json"
	"fmt"
	"time"
)

// Live match statuses. A fixture in any of these states demands near-real-time
// cache freshness.
const (
	StatusLive   = "LIVE"
	StatusInPlay = "IN_PLAY"
	StatusPaused = "PAUSED"
)

// TeamRef identifies a team within a fixture or standing row.
type TeamRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Score holds the current fixture score. Pointers distinguish "not started"
// from zero goals.
type Score struct {
	Home *int `json:"home"`
	Away *int `json:"away"`
}

// Fixture is one scheduled or running match.
type Fixture struct {
	ID       int64   `json:"id"`
	UTCDate  string  `json:"utcDate"`
	Status   string  `json:"status"`
	HomeTeam TeamRef `json:"homeTeam"`
	AwayTeam TeamRef `json:"awayTeam"`
	Score    Score   `json:"score"`

	// Venue is filled by enrichment when the schedule API omits it.
	// Always present in façade output, possibly empty.
	Venue string `json:"venue"`
}

// IsLive reports whether the fixture is currently in a live state.
// An absent or unrecognized status is not live.
func (f Fixture) IsLive() bool {
	switch f.Status {
	case StatusLive, StatusInPlay, StatusPaused:
		return true
	}
	return false
}

// Kickoff parses the fixture's UTC date. Returns the zero time when the field
// is absent or malformed; callers treat that as "not today".
func (f Fixture) Kickoff() time.Time {
	if f.UTCDate == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, f.UTCDate)
	if err != nil {
		return time.Time{}
	}
	return t
}

// StandingRow is one row of a league table.
type StandingRow struct {
	Position int     `json:"position"`
	Team     TeamRef `json:"team"`
	Played   int     `json:"playedGames"`
	Won      int     `json:"won"`
	Draw     int     `json:"draw"`
	Lost     int     `json:"lost"`
	Points   int     `json:"points"`

	// Form is the recent-form string, most recent result first
	// (e.g. "W,D,L,W,W"). May be empty early in the season.
	Form string `json:"form"`
}

// Odds is the bookmaker odds record for one fixture pairing.
type Odds struct {
	HomeTeam   string  `json:"homeTeam"`
	AwayTeam   string  `json:"awayTeam"`
	HomeWin    float64 `json:"homeWin"`
	Draw       float64 `json:"draw"`
	AwayWin    float64 `json:"awayWin"`
	Bookmaker  string  `json:"bookmaker"`
	LastUpdate string  `json:"lastUpdate"`
}

// Team is the team-lookup record carrying the venue used for enrichment.
type Team struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Venue string `json:"venue"`
}

// scheduleEnvelope is the wire shape of the match-schedule API.
type scheduleEnvelope struct {
	Matches []Fixture `json:"matches"`
}

// standingsEnvelope is the wire shape of the standings API.
type standingsEnvelope struct {
	Standings []StandingRow `json:"standings"`
}

// ParseFixtures validates a schedule API body into fixture records.
func ParseFixtures(body []byte) ([]Fixture, error) {
	var env scheduleEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("parse fixtures: %w", err)
	}
	return env.Matches, nil
}

// ParseStandings validates a standings API body into standing rows.
func ParseStandings(body []byte) ([]StandingRow, error) {
	var env standingsEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("parse standings: %w", err)
	}
	return env.Standings, nil
}
