package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// FixtureID is a stable fixture identifier. Upstream feeds and older clients
// send it either as a JSON number or as a numeric string.
type FixtureID int64

func (id *FixtureID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 1 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		return id.parse(s)
	}
	var n int64
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("fixture id: %w", err)
	}
	*id = FixtureID(n)
	return nil
}

func (id *FixtureID) parse(s string) error {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("fixture id %q: %w", s, err)
	}
	*id = FixtureID(n)
	return nil
}

// ParseFixtureID parses a fixture id from a path or query parameter
func ParseFixtureID(s string) (FixtureID, error) {
	var id FixtureID
	err := id.parse(s)
	return id, err
}

func (id FixtureID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// Fixture is a scheduled match handed to the generation coordinator
type Fixture struct {
	ID         FixtureID `json:"fixtureId" validate:"required"`
	HomeTeamID int       `json:"homeTeamId" validate:"required"`
	AwayTeamID int       `json:"awayTeamId" validate:"required"`
	HomeTeam   string    `json:"homeTeam" validate:"required"`
	AwayTeam   string    `json:"awayTeam" validate:"required"`
	LeagueID   int       `json:"leagueId" validate:"required"`
	League     string    `json:"league" validate:"required"`
	Season     int       `json:"season" validate:"required"`
	Kickoff    time.Time `json:"kickoff" validate:"required"`
}

// StandingRow is one line of a league table
type StandingRow struct {
	Rank         int    `json:"rank"`
	TeamID       int    `json:"teamId"`
	Team         string `json:"team"`
	Played       int    `json:"played"`
	Points       int    `json:"points"`
	GoalsFor     int    `json:"goalsFor"`
	GoalsAgainst int    `json:"goalsAgainst"`
	Form         string `json:"form"`
}

// MatchResult is a completed match used for head-to-head and form sequences
type MatchResult struct {
	FixtureID FixtureID `json:"fixtureId"`
	Date      time.Time `json:"date"`
	HomeTeam  string    `json:"homeTeam"`
	AwayTeam  string    `json:"awayTeam"`
	HomeGoals int       `json:"homeGoals"`
	AwayGoals int       `json:"awayGoals"`
}

// TeamSeasonStats is a team's season summary in one league
type TeamSeasonStats struct {
	TeamID          int     `json:"teamId"`
	Played          int     `json:"played"`
	Wins            int     `json:"wins"`
	Draws           int     `json:"draws"`
	Losses          int     `json:"losses"`
	GoalsForAvg     float64 `json:"goalsForAvg"`
	GoalsAgainstAvg float64 `json:"goalsAgainstAvg"`
	CleanSheets     int     `json:"cleanSheets"`
	FailedToScore   int     `json:"failedToScore"`
}

// Injury is an unavailable player reported by the injury feed
type Injury struct {
	Player string `json:"player"`
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

// AggregatedContext is everything the upstream feeds returned for a fixture.
// Nil or empty members mean the call failed or had no data.
type AggregatedContext struct {
	Standings     []StandingRow    `json:"standings,omitempty"`
	HeadToHead    []MatchResult    `json:"headToHead,omitempty"`
	HomeStats     *TeamSeasonStats `json:"homeStats,omitempty"`
	AwayStats     *TeamSeasonStats `json:"awayStats,omitempty"`
	HomeInjuries  []Injury         `json:"homeInjuries,omitempty"`
	AwayInjuries  []Injury         `json:"awayInjuries,omitempty"`
	HomeForm      []MatchResult    `json:"homeForm,omitempty"`
	AwayForm      []MatchResult    `json:"awayForm,omitempty"`
	InjuriesKnown bool             `json:"injuriesKnown"`
	Failures      []string         `json:"failures,omitempty"`
}

// DataRichness summarizes how much upstream context was available
type DataRichness struct {
	Score  int    `json:"score"`
	Level  string `json:"level"`
	Reason string `json:"reason"`
}
