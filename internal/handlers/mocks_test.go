package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/matchcast/predictions-api/internal/logic"
	"github.com/matchcast/predictions-api/internal/models"
)

const testAPIKey = "test-secret"

// MockGenerationService
type MockGenerationService struct {
	GenerateFunc func(ctx context.Context, f models.Fixture) (*models.PredictionRecord, error)
	Calls        []models.Fixture
}

func (m *MockGenerationService) Generate(ctx context.Context, f models.Fixture) (*models.PredictionRecord, error) {
	m.Calls = append(m.Calls, f)
	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, f)
	}
	return &models.PredictionRecord{ID: "gen-1", FixtureID: f.ID, HomeTeam: f.HomeTeam, AwayTeam: f.AwayTeam}, nil
}

// MockPredictionService fails every read; used to exercise degraded paths
type MockPredictionService struct {
	logic.PredictionService
	Err error
}

func (m *MockPredictionService) Get(ctx context.Context, key models.CacheKey) (*logic.Lookup, error) {
	return nil, m.Err
}

func (m *MockPredictionService) GetByDate(ctx context.Context, date time.Time) ([]*models.PredictionRecord, error) {
	return nil, m.Err
}

func (m *MockPredictionService) Ping(ctx context.Context) error { return m.Err }

// MockReportService
type MockReportService struct {
	BreakdownFunc func(ctx context.Context, q logic.AccuracyQuery) ([]models.AccuracyBreakdownRow, error)
	LastQuery     logic.AccuracyQuery
}

func (m *MockReportService) Breakdown(ctx context.Context, q logic.AccuracyQuery) ([]models.AccuracyBreakdownRow, error) {
	m.LastQuery = q
	if m.BreakdownFunc != nil {
		return m.BreakdownFunc(ctx, q)
	}
	return nil, nil
}

// MockAnalyticsQueue
type MockAnalyticsQueue struct {
	Depth   int
	PingErr error
}

func (m *MockAnalyticsQueue) QueueDepth() int                { return m.Depth }
func (m *MockAnalyticsQueue) Ping(ctx context.Context) error { return m.PingErr }

var errStoreDown = errors.New("dial tcp 10.0.0.7:6379: connection refused")

// testEnv is a router over a real cache and verifier on the in-memory store
type testEnv struct {
	handler *Handler
	router  http.Handler
	store   *logic.CacheStore
	gen     *MockGenerationService
}

const testRequestTimeout = 5 * time.Second

func newTestEnv(t *testing.T, mutate ...func(*Config)) *testEnv {
	t.Helper()
	logger := zap.NewNop()
	kv := logic.NewMemoryKV()
	store := logic.NewCacheStore(kv, logic.CacheConfig{ModelVersion: "v2", DataVersion: "d7"}, logger)
	gen := &MockGenerationService{}

	cfg := Config{
		Predictions:  store,
		Verification: logic.NewVerifier(store, kv, nil, logger),
		Generation:   gen,
		Logger:       logger,
		APIKey:       testAPIKey,
		ModelVersion: "v2",
		DataVersion:  "d7",
	}
	for _, m := range mutate {
		m(&cfg)
	}
	h := New(cfg)
	return &testEnv{handler: h, router: NewRouter(h, []string{"*"}, testRequestTimeout), store: store, gen: gen}
}

func (e *testEnv) do(method, path, body string, withKey bool) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if withKey {
		req.Header.Set(apiKeyHeader, testAPIKey)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

const validStoreBody = `{
	"fixtureId": "1001",
	"homeTeam": "Arsenal",
	"awayTeam": "Chelsea",
	"league": "Premier League",
	"matchDate": "2026-10-24T15:00:00Z",
	"prediction": {
		"outcome": {"home": 50, "draw": 25, "away": 25},
		"predictedScore": "2-1",
		"btts": {"yes": 60, "no": 40},
		"confidenceLevel": "Medium",
		"confidenceReason": "Both sides in form"
	}
}`
