package logic

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/matchcast/predictions-api/internal/models"
)

var errFeedDown = errors.New("feed down")

// MockFeedClient implements FeedClient for testing
type MockFeedClient struct {
	LeagueTableFunc func(ctx context.Context, leagueID, season int) ([]models.StandingRow, error)
	HeadToHeadFunc  func(ctx context.Context, homeTeamID, awayTeamID int) ([]models.MatchResult, error)
	TeamStatsFunc   func(ctx context.Context, teamID, leagueID, season int) (*models.TeamSeasonStats, error)
	InjuriesFunc    func(ctx context.Context, teamID int, fixtureID models.FixtureID) ([]models.Injury, error)
	RecentFormFunc  func(ctx context.Context, teamID, last int) ([]models.MatchResult, error)

	calls atomic.Int32
}

func (m *MockFeedClient) LeagueTable(ctx context.Context, leagueID, season int) ([]models.StandingRow, error) {
	m.calls.Add(1)
	if m.LeagueTableFunc != nil {
		return m.LeagueTableFunc(ctx, leagueID, season)
	}
	return nil, errFeedDown
}

func (m *MockFeedClient) HeadToHead(ctx context.Context, homeTeamID, awayTeamID int) ([]models.MatchResult, error) {
	m.calls.Add(1)
	if m.HeadToHeadFunc != nil {
		return m.HeadToHeadFunc(ctx, homeTeamID, awayTeamID)
	}
	return nil, errFeedDown
}

func (m *MockFeedClient) TeamStats(ctx context.Context, teamID, leagueID, season int) (*models.TeamSeasonStats, error) {
	m.calls.Add(1)
	if m.TeamStatsFunc != nil {
		return m.TeamStatsFunc(ctx, teamID, leagueID, season)
	}
	return nil, errFeedDown
}

func (m *MockFeedClient) Injuries(ctx context.Context, teamID int, fixtureID models.FixtureID) ([]models.Injury, error) {
	m.calls.Add(1)
	if m.InjuriesFunc != nil {
		return m.InjuriesFunc(ctx, teamID, fixtureID)
	}
	return nil, errFeedDown
}

func (m *MockFeedClient) RecentForm(ctx context.Context, teamID, last int) ([]models.MatchResult, error) {
	m.calls.Add(1)
	if m.RecentFormFunc != nil {
		return m.RecentFormFunc(ctx, teamID, last)
	}
	return nil, errFeedDown
}

// fullFeeds answers every call with enough data for a score of 100
func fullFeeds() *MockFeedClient {
	matches := func(n int) []models.MatchResult {
		out := make([]models.MatchResult, n)
		for i := range out {
			out[i] = models.MatchResult{HomeGoals: 1, AwayGoals: 0}
		}
		return out
	}
	return &MockFeedClient{
		LeagueTableFunc: func(ctx context.Context, leagueID, season int) ([]models.StandingRow, error) {
			return []models.StandingRow{{Rank: 1, TeamID: 1}}, nil
		},
		HeadToHeadFunc: func(ctx context.Context, homeTeamID, awayTeamID int) ([]models.MatchResult, error) {
			return matches(4), nil
		},
		TeamStatsFunc: func(ctx context.Context, teamID, leagueID, season int) (*models.TeamSeasonStats, error) {
			return &models.TeamSeasonStats{TeamID: teamID, Played: 10}, nil
		},
		InjuriesFunc: func(ctx context.Context, teamID int, fixtureID models.FixtureID) ([]models.Injury, error) {
			return []models.Injury{}, nil
		},
		RecentFormFunc: func(ctx context.Context, teamID, last int) ([]models.MatchResult, error) {
			return matches(last), nil
		},
	}
}

// MockAccuracySink records enqueued accuracy records
type MockAccuracySink struct {
	Records []*models.AccuracyRecord
}

func (m *MockAccuracySink) Enqueue(rec *models.AccuracyRecord) bool {
	m.Records = append(m.Records, rec)
	return true
}

// FailingKV wraps a KVStore and fails Set calls
type FailingKV struct {
	KVStore
	SetErr error
}

func (f *FailingKV) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if f.SetErr != nil {
		return f.SetErr
	}
	return f.KVStore.Set(ctx, key, value, ttl)
}

func testFixture(id models.FixtureID) models.Fixture {
	return models.Fixture{
		ID:         id,
		HomeTeamID: 42,
		AwayTeamID: 49,
		HomeTeam:   "Arsenal",
		AwayTeam:   "Chelsea",
		LeagueID:   39,
		League:     "Premier League",
		Season:     2026,
		Kickoff:    time.Date(2026, 10, 24, 15, 0, 0, 0, time.UTC),
	}
}
