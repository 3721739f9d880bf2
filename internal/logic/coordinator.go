package logic

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/matchcast/predictions-api/internal/models"
)

// DefaultGenerationTimeout bounds aggregation plus generation
const DefaultGenerationTimeout = 60 * time.Second

// leaseGrace keeps a cross-instance lease alive slightly past the timeout
// so the cache write after generation is still covered.
const leaseGrace = 10 * time.Second

// PredictionWriter persists generated records. Put must refuse to replace a
// verified record.
type PredictionWriter interface {
	Get(ctx context.Context, key models.CacheKey) (*Lookup, error)
	Put(ctx context.Context, rec *models.PredictionRecord) error
}

type CoordinatorConfig struct {
	Timeout      time.Duration
	ModelVersion string
	DataVersion  string
	// Lease enables cross-instance single-flight; nil keeps it per instance
	Lease Lease
}

// Coordinator runs at most one generation per fixture at a time. A second
// request for a fixture that is already generating fails immediately with
// an already_in_progress error instead of waiting.
type Coordinator struct {
	aggregator ContextAggregator
	generator  Generator
	cache      PredictionWriter
	registry   *flightRegistry
	config     CoordinatorConfig
	logger     *zap.SugaredLogger
	now        func() time.Time
}

func NewCoordinator(aggregator ContextAggregator, generator Generator, cache PredictionWriter, cfg CoordinatorConfig, logger *zap.Logger) *Coordinator {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultGenerationTimeout
	}
	if cfg.ModelVersion == "" {
		cfg.ModelVersion = "v1"
	}
	if cfg.DataVersion == "" {
		cfg.DataVersion = "v1"
	}
	return &Coordinator{
		aggregator: aggregator,
		generator:  generator,
		cache:      cache,
		registry:   newFlightRegistry(),
		config:     cfg,
		logger:     logger.Sugar(),
		now:        time.Now,
	}
}

type generationResult struct {
	prediction *models.Prediction
	richness   models.DataRichness
	err        error
}

// InFlight reports whether this instance is generating the fixture
func (c *Coordinator) InFlight(id models.FixtureID) bool {
	return c.registry.inFlight(id)
}

// Generate aggregates context, calls the generator and writes the record
// through the cache. The in-flight slot is released on every exit path.
func (c *Coordinator) Generate(ctx context.Context, f models.Fixture) (*models.PredictionRecord, error) {
	release, ok := c.registry.acquire(f.ID)
	if !ok {
		generationsTotal.WithLabelValues("in_progress").Inc()
		return nil, newError(KindAlreadyInProgress, fmt.Sprintf("generation already in progress for fixture %d", f.ID), nil)
	}
	defer release()

	if c.config.Lease != nil {
		unlock, acquired, err := c.config.Lease.Acquire(ctx, f.ID, c.config.Timeout+leaseGrace)
		if err != nil {
			return nil, Internal("acquire generation lease", err)
		}
		if !acquired {
			generationsTotal.WithLabelValues("in_progress").Inc()
			return nil, newError(KindAlreadyInProgress, fmt.Sprintf("generation already in progress for fixture %d", f.ID), nil)
		}
		defer unlock(context.WithoutCancel(ctx))
	}

	// Skip the model call when the result could never be stored
	key := models.CacheKey{FixtureID: f.ID, ModelVersion: c.config.ModelVersion, DataVersion: c.config.DataVersion}
	if lk, err := c.cache.Get(ctx, key); err != nil {
		c.logger.Warnw("Failed to read existing prediction", "fixtureId", f.ID, "error", err)
	} else if lk.Found() && lk.Source == SourceStrong && lk.Record.Verified {
		generationsTotal.WithLabelValues("verified").Inc()
		return nil, newError(KindConflict, fmt.Sprintf("prediction for fixture %d is already verified", f.ID), nil)
	}

	start := c.now()
	runCtx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	// Buffered so an abandoned run can always deliver and exit
	done := make(chan generationResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- generationResult{err: fmt.Errorf("generation panic: %v", r)}
			}
		}()
		fc, richness := c.aggregator.Aggregate(runCtx, f)
		pred, err := c.generator.Generate(runCtx, f, fc)
		done <- generationResult{prediction: pred, richness: richness, err: err}
	}()

	var res generationResult
	select {
	case res = <-done:
	case <-runCtx.Done():
		res.err = runCtx.Err()
	}
	generationDuration.Observe(time.Since(start).Seconds())

	if res.err != nil {
		if errors.Is(res.err, context.DeadlineExceeded) && ctx.Err() == nil {
			generationsTotal.WithLabelValues("timeout").Inc()
			c.logger.Warnw("Generation timed out", "fixtureId", f.ID, "timeout", c.config.Timeout)
			return nil, newError(KindGenerationTimeout, fmt.Sprintf("generation exceeded %s", c.config.Timeout), res.err)
		}
		generationsTotal.WithLabelValues("error").Inc()
		c.logger.Errorw("Generation failed", "fixtureId", f.ID, "error", res.err)
		return nil, Internal("generation failed", res.err)
	}
	if res.prediction == nil {
		generationsTotal.WithLabelValues("error").Inc()
		return nil, Internal("generation failed", errors.New("generator returned no prediction"))
	}

	applyRichness(res.prediction, res.richness)

	rec := &models.PredictionRecord{
		ID:           uuid.NewString(),
		FixtureID:    f.ID,
		HomeTeam:     f.HomeTeam,
		AwayTeam:     f.AwayTeam,
		League:       f.League,
		MatchDate:    f.Kickoff.UTC(),
		ModelVersion: c.config.ModelVersion,
		DataVersion:  c.config.DataVersion,
		Prediction:   *res.prediction,
		DataRichness: &res.richness,
		CreatedAt:    c.now().UTC(),
	}
	rec.IntegrityHash = IntegrityHash(rec)

	if err := c.cache.Put(ctx, rec); err != nil {
		if KindOf(err) == KindConflict {
			generationsTotal.WithLabelValues("verified").Inc()
		} else {
			generationsTotal.WithLabelValues("error").Inc()
		}
		return nil, err
	}

	generationsTotal.WithLabelValues("success").Inc()
	c.logger.Infow("Generated prediction",
		"fixtureId", f.ID,
		"predictionId", rec.ID,
		"richness", res.richness.Score,
		"duration", time.Since(start),
	)
	return rec, nil
}

// applyRichness fills confidence fields the generator left empty
func applyRichness(p *models.Prediction, r models.DataRichness) {
	if p.ConfidenceLevel == "" {
		p.ConfidenceLevel = r.Level
	}
	if p.Confidence == nil {
		score := float64(r.Score)
		p.Confidence = &score
	}
	if p.ConfidenceReason == "" {
		p.ConfidenceReason = r.Reason
	}
}
