package feeds

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/matchcast/predictions-api/internal/models"
)

const apiKeyHeader = "x-apisports-key"

// Options configures the football data client
type Options struct {
	BaseURL string
	APIKey  string
	HTTP    HTTPOptions
}

// Client implements logic.FeedClient against an API-Football compatible
// REST API. Every endpoint wraps its payload in {"response": ...}.
type Client struct {
	baseURL string
	apiKey  string
	http    *httpDoer
	logger  *zap.SugaredLogger
}

func NewClient(opts Options, logger *zap.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		apiKey:  opts.APIKey,
		http:    newHTTPDoer(opts.HTTP),
		logger:  logger.Sugar().With("component", "feeds"),
	}
}

type envelope[T any] struct {
	Response T               `json:"response"`
	Errors   json.RawMessage `json:"errors"`
}

// feedErrors reports API-level errors, which arrive as [] when empty or an
// object keyed by parameter otherwise.
func feedErrors(raw json.RawMessage) error {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "[]" || s == "{}" || s == "null" {
		return nil
	}
	return fmt.Errorf("feed error: %s", s)
}

func get[T any](ctx context.Context, c *Client, path string, params url.Values) (T, error) {
	var zero T
	u := c.baseURL + path + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return zero, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set(apiKeyHeader, c.apiKey)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.do(ctx, req)
	if err != nil {
		return zero, fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	var env envelope[T]
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return zero, fmt.Errorf("decoding %s: %w", path, err)
	}
	if err := feedErrors(env.Errors); err != nil {
		return zero, err
	}

	c.logger.Debugw("Feed call", "path", path, "duration", time.Since(start))
	return env.Response, nil
}

// Wire shapes

type apiTeam struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type apiStanding struct {
	Rank   int     `json:"rank"`
	Team   apiTeam `json:"team"`
	Points int     `json:"points"`
	Form   string  `json:"form"`
	All    struct {
		Played int `json:"played"`
		Goals  struct {
			For     int `json:"for"`
			Against int `json:"against"`
		} `json:"goals"`
	} `json:"all"`
}

type apiLeagueStandings struct {
	League struct {
		Standings [][]apiStanding `json:"standings"`
	} `json:"league"`
}

type apiFixture struct {
	Fixture struct {
		ID   models.FixtureID `json:"id"`
		Date time.Time        `json:"date"`
	} `json:"fixture"`
	Teams struct {
		Home apiTeam `json:"home"`
		Away apiTeam `json:"away"`
	} `json:"teams"`
	Goals struct {
		Home *int `json:"home"`
		Away *int `json:"away"`
	} `json:"goals"`
}

// numString decodes numbers the feed sometimes sends as strings
type numString float64

func (n *numString) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*n = 0
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*n = numString(f)
	return nil
}

type apiTotal struct {
	Total int `json:"total"`
}

type apiTeamStatistics struct {
	Team     apiTeam `json:"team"`
	Fixtures struct {
		Played apiTotal `json:"played"`
		Wins   apiTotal `json:"wins"`
		Draws  apiTotal `json:"draws"`
		Loses  apiTotal `json:"loses"`
	} `json:"fixtures"`
	Goals struct {
		For struct {
			Average struct {
				Total numString `json:"total"`
			} `json:"average"`
		} `json:"for"`
		Against struct {
			Average struct {
				Total numString `json:"total"`
			} `json:"average"`
		} `json:"against"`
	} `json:"goals"`
	CleanSheet    apiTotal `json:"clean_sheet"`
	FailedToScore apiTotal `json:"failed_to_score"`
}

type apiInjury struct {
	Player struct {
		Name   string `json:"name"`
		Type   string `json:"type"`
		Reason string `json:"reason"`
	} `json:"player"`
}

// LeagueTable returns the first standings group for the league season
func (c *Client) LeagueTable(ctx context.Context, leagueID, season int) ([]models.StandingRow, error) {
	params := url.Values{}
	params.Set("league", strconv.Itoa(leagueID))
	params.Set("season", strconv.Itoa(season))

	data, err := get[[]apiLeagueStandings](ctx, c, "/standings", params)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 || len(data[0].League.Standings) == 0 {
		return nil, fmt.Errorf("no standings for league %d season %d", leagueID, season)
	}

	group := data[0].League.Standings[0]
	rows := make([]models.StandingRow, 0, len(group))
	for _, s := range group {
		rows = append(rows, models.StandingRow{
			Rank:         s.Rank,
			TeamID:       s.Team.ID,
			Team:         s.Team.Name,
			Played:       s.All.Played,
			Points:       s.Points,
			GoalsFor:     s.All.Goals.For,
			GoalsAgainst: s.All.Goals.Against,
			Form:         s.Form,
		})
	}
	return rows, nil
}

// HeadToHead returns the last ten meetings between the two teams
func (c *Client) HeadToHead(ctx context.Context, homeTeamID, awayTeamID int) ([]models.MatchResult, error) {
	params := url.Values{}
	params.Set("h2h", fmt.Sprintf("%d-%d", homeTeamID, awayTeamID))
	params.Set("last", "10")

	data, err := get[[]apiFixture](ctx, c, "/fixtures/headtohead", params)
	if err != nil {
		return nil, err
	}
	return toResults(data), nil
}

func (c *Client) TeamStats(ctx context.Context, teamID, leagueID, season int) (*models.TeamSeasonStats, error) {
	params := url.Values{}
	params.Set("team", strconv.Itoa(teamID))
	params.Set("league", strconv.Itoa(leagueID))
	params.Set("season", strconv.Itoa(season))

	s, err := get[apiTeamStatistics](ctx, c, "/teams/statistics", params)
	if err != nil {
		return nil, err
	}
	if s.Fixtures.Played.Total == 0 {
		return nil, fmt.Errorf("no statistics for team %d", teamID)
	}
	return &models.TeamSeasonStats{
		TeamID:          teamID,
		Played:          s.Fixtures.Played.Total,
		Wins:            s.Fixtures.Wins.Total,
		Draws:           s.Fixtures.Draws.Total,
		Losses:          s.Fixtures.Loses.Total,
		GoalsForAvg:     float64(s.Goals.For.Average.Total),
		GoalsAgainstAvg: float64(s.Goals.Against.Average.Total),
		CleanSheets:     s.CleanSheet.Total,
		FailedToScore:   s.FailedToScore.Total,
	}, nil
}

func (c *Client) Injuries(ctx context.Context, teamID int, fixtureID models.FixtureID) ([]models.Injury, error) {
	params := url.Values{}
	params.Set("team", strconv.Itoa(teamID))
	params.Set("fixture", fixtureID.String())

	data, err := get[[]apiInjury](ctx, c, "/injuries", params)
	if err != nil {
		return nil, err
	}
	out := make([]models.Injury, 0, len(data))
	for _, in := range data {
		out = append(out, models.Injury{Player: in.Player.Name, Type: in.Player.Type, Reason: in.Player.Reason})
	}
	return out, nil
}

// RecentForm returns the team's last completed matches, newest first
func (c *Client) RecentForm(ctx context.Context, teamID, last int) ([]models.MatchResult, error) {
	params := url.Values{}
	params.Set("team", strconv.Itoa(teamID))
	params.Set("last", strconv.Itoa(last))

	data, err := get[[]apiFixture](ctx, c, "/fixtures", params)
	if err != nil {
		return nil, err
	}
	return toResults(data), nil
}

// toResults keeps finished matches only; unplayed ones have null goals
func toResults(fixtures []apiFixture) []models.MatchResult {
	out := make([]models.MatchResult, 0, len(fixtures))
	for _, f := range fixtures {
		if f.Goals.Home == nil || f.Goals.Away == nil {
			continue
		}
		out = append(out, models.MatchResult{
			FixtureID: f.Fixture.ID,
			Date:      f.Fixture.Date,
			HomeTeam:  f.Teams.Home.Name,
			AwayTeam:  f.Teams.Away.Name,
			HomeGoals: *f.Goals.Home,
			AwayGoals: *f.Goals.Away,
		})
	}
	return out
}
