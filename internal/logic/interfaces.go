package logic

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/matchcast/predictions-api/internal/models"
)

// ErrKeyNotFound is returned by KVStore reads on a miss
var ErrKeyNotFound = errors.New("kv: key not found")

// KVStore is the eventually-consistent key-value store the cache sits on.
// Hash operations back the daily index and the accuracy projection.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	Del(ctx context.Context, key string) error
	// DelIfEquals deletes key only while it still holds value
	DelIfEquals(ctx context.Context, key string, value []byte) (bool, error)
	HSet(ctx context.Context, key, field string, value []byte) error
	HSetNX(ctx context.Context, key, field string, value []byte) (bool, error)
	HDel(ctx context.Context, key, field string) error
	HGetAll(ctx context.Context, key string) (map[string][]byte, error)
	Ping(ctx context.Context) error
}

// PgPool defines the interface for PostgreSQL connection pool
type PgPool interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Ping(ctx context.Context) error
}

// FeedClient is the set of upstream football data calls the aggregator fans out to
type FeedClient interface {
	LeagueTable(ctx context.Context, leagueID, season int) ([]models.StandingRow, error)
	HeadToHead(ctx context.Context, homeTeamID, awayTeamID int) ([]models.MatchResult, error)
	TeamStats(ctx context.Context, teamID, leagueID, season int) (*models.TeamSeasonStats, error)
	Injuries(ctx context.Context, teamID int, fixtureID models.FixtureID) ([]models.Injury, error)
	RecentForm(ctx context.Context, teamID, last int) ([]models.MatchResult, error)
}

// Generator is the opaque model call
type Generator interface {
	Generate(ctx context.Context, fixture models.Fixture, fc *models.AggregatedContext) (*models.Prediction, error)
}

// GeneratorFunc adapts a function to Generator
type GeneratorFunc func(ctx context.Context, fixture models.Fixture, fc *models.AggregatedContext) (*models.Prediction, error)

func (f GeneratorFunc) Generate(ctx context.Context, fixture models.Fixture, fc *models.AggregatedContext) (*models.Prediction, error) {
	return f(ctx, fixture, fc)
}

// ContextAggregator builds the generation context for a fixture
type ContextAggregator interface {
	Aggregate(ctx context.Context, fixture models.Fixture) (*models.AggregatedContext, models.DataRichness)
}

// AccuracySink receives accuracy records for offline analytics
type AccuracySink interface {
	Enqueue(rec *models.AccuracyRecord) bool
}

// PredictionService is the handler-facing surface of the engine
type PredictionService interface {
	Put(ctx context.Context, rec *models.PredictionRecord) error
	Get(ctx context.Context, key models.CacheKey) (*Lookup, error)
	GetLatest(ctx context.Context, fixtureID models.FixtureID) (*Lookup, error)
	GetByDate(ctx context.Context, date time.Time) ([]*models.PredictionRecord, error)
	GetLegacy(ctx context.Context, fixtureID models.FixtureID) (*Lookup, error)
	Ping(ctx context.Context) error
}

// VerificationService locks and scores predictions once a result is known
type VerificationService interface {
	Verify(ctx context.Context, fixtureID models.FixtureID, actual models.ActualResult, source string) (*models.PredictionRecord, error)
	Stats(ctx context.Context) (*models.AccuracyStats, error)
}

// GenerationService runs single-flight generation
type GenerationService interface {
	Generate(ctx context.Context, fixture models.Fixture) (*models.PredictionRecord, error)
}

// ReportService answers grouped accuracy questions from the analytics store
type ReportService interface {
	Breakdown(ctx context.Context, q AccuracyQuery) ([]models.AccuracyBreakdownRow, error)
}
