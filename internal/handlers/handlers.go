package handlers

import (
	"context"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/matchcast/predictions-api/internal/logic"
)

// MaxBodySize limits the size of request bodies to 1MB
const MaxBodySize = 1048576

// AnalyticsQueue is the accuracy worker pool as seen by the readiness probe
type AnalyticsQueue interface {
	QueueDepth() int
	Ping(ctx context.Context) error
}

type Config struct {
	// Services. A nil Predictions leaves the store unbound and every
	// prediction route answers 500 config_error.
	Predictions  logic.PredictionService
	Verification logic.VerificationService
	Generation   logic.GenerationService
	Reports      logic.ReportService

	// Optional stores used by /ready and /system/install
	Postgres   logic.PgPool
	ClickHouse driver.Conn
	Analytics  AnalyticsQueue

	Logger *zap.Logger
	APIKey string

	// Defaults for the freshness-aware read
	ModelVersion  string
	DataVersion   string
	PreKickoffTTL time.Duration
	MaxStaleness  time.Duration
}

type Handler struct {
	predictions  logic.PredictionService
	verification logic.VerificationService
	generation   logic.GenerationService
	reports      logic.ReportService
	pg           logic.PgPool
	ch           driver.Conn
	analytics    AnalyticsQueue
	logger       *zap.SugaredLogger
	validator    *validator.Validate
	apiKey       string

	modelVersion  string
	dataVersion   string
	preKickoffTTL time.Duration
	maxStaleness  time.Duration
	now           func() time.Time
}

func New(cfg Config) *Handler {
	if cfg.ModelVersion == "" {
		cfg.ModelVersion = "v1"
	}
	if cfg.DataVersion == "" {
		cfg.DataVersion = "v1"
	}
	if cfg.PreKickoffTTL <= 0 {
		cfg.PreKickoffTTL = logic.DefaultPreKickoffTTL
	}
	if cfg.MaxStaleness <= 0 {
		cfg.MaxStaleness = logic.DefaultMaxStaleness
	}
	return &Handler{
		predictions:   cfg.Predictions,
		verification:  cfg.Verification,
		generation:    cfg.Generation,
		reports:       cfg.Reports,
		pg:            cfg.Postgres,
		ch:            cfg.ClickHouse,
		analytics:     cfg.Analytics,
		logger:        cfg.Logger.Sugar(),
		validator:     validator.New(),
		apiKey:        cfg.APIKey,
		modelVersion:  cfg.ModelVersion,
		dataVersion:   cfg.DataVersion,
		preKickoffTTL: cfg.PreKickoffTTL,
		maxStaleness:  cfg.MaxStaleness,
		now:           time.Now,
	}
}
