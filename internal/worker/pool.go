// Package worker implements the buffered worker pool that ships verified
// prediction accuracy records to ClickHouse. It decouples the verification
// request from the analytics write:
// - Backpressure handling via load shedding
// - Batch inserts for efficient ClickHouse writes
// - Graceful shutdown with flush guarantees

package worker

import (
	"context"
	"sync"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/matchcast/predictions-api/internal/models"
)

// Prometheus metrics
var (
	recordsIngested = promauto.NewCounter(prometheus.CounterOpts{
		Name: "predictions_accuracy_records_ingested_total",
		Help: "Total number of accuracy records queued for analytics",
	})

	recordsProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "predictions_accuracy_records_processed_total",
		Help: "Total number of accuracy records written to ClickHouse",
	})

	recordsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "predictions_accuracy_records_failed_total",
		Help: "Total number of accuracy records that failed to write",
	})

	queueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "predictions_worker_queue_depth",
		Help: "Current depth of the worker queue",
	})

	batchInsertDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "predictions_batch_insert_duration_seconds",
		Help:    "Duration of batch inserts to ClickHouse",
		Buckets: prometheus.DefBuckets,
	})

	recordsLoadShed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "predictions_accuracy_records_load_shed_total",
		Help: "Total number of accuracy records dropped due to load shedding",
	})
)

const insertAccuracySQL = `
	INSERT INTO prediction_accuracy (
		verified_at, prediction_id, fixture_id, home_team, away_team, league,
		match_date, model_version, predicted_score, actual_score, confidence_level,
		outcome_correct, scoreline_correct, btts_correct, goal_line_correct,
		clean_sheet_correct, markets_correct, source
	)
`

// Job represents a unit of work for the worker pool
type Job struct {
	Record    *models.AccuracyRecord
	Timestamp time.Time
}

// PoolConfig configures the worker pool
type PoolConfig struct {
	WorkerCount   int
	QueueSize     int
	BatchSize     int
	FlushInterval time.Duration
	ClickHouse    driver.Conn
	Logger        *zap.Logger
}

// Pool manages a pool of workers for async analytics writes
type Pool struct {
	config   PoolConfig
	jobQueue chan Job
	wg       sync.WaitGroup
	ctx      context.Context
	cancel   context.CancelFunc
	logger   *zap.SugaredLogger

	mu      sync.RWMutex
	stopped bool
}

// NewPool creates a new worker pool
func NewPool(cfg PoolConfig) *Pool {
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 2
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 10000
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 500
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = time.Second
	}

	return &Pool{
		config:   cfg,
		jobQueue: make(chan Job, cfg.QueueSize),
		logger:   cfg.Logger.Sugar(),
	}
}

// Start launches the worker goroutines
func (p *Pool) Start(ctx context.Context) {
	p.ctx, p.cancel = context.WithCancel(ctx)

	for i := 0; i < p.config.WorkerCount; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}

	go p.reportQueueDepth()

	p.logger.Infow("Worker pool started",
		"workers", p.config.WorkerCount,
		"queueSize", p.config.QueueSize,
		"batchSize", p.config.BatchSize,
	)
}

// Stop drains the queue, flushes every worker's batch and waits for them
func (p *Pool) Stop() {
	p.logger.Info("Stopping worker pool...")

	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	close(p.jobQueue)
	p.mu.Unlock()

	p.wg.Wait()
	if p.cancel != nil {
		p.cancel()
	}
	p.logger.Info("Worker pool stopped")
}

// Enqueue adds a record to the queue without blocking. A full queue or a
// stopped pool sheds the record and returns false.
func (p *Pool) Enqueue(rec *models.AccuracyRecord) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.stopped {
		recordsLoadShed.Inc()
		return false
	}

	select {
	case p.jobQueue <- Job{Record: rec, Timestamp: time.Now()}:
		recordsIngested.Inc()
		return true
	default:
		p.logger.Warnw("Worker queue full, dropping accuracy record", "predictionId", rec.PredictionID)
		recordsLoadShed.Inc()
		return false
	}
}

// QueueDepth returns current queue size
func (p *Pool) QueueDepth() int {
	return len(p.jobQueue)
}

// Ping checks the analytics store
func (p *Pool) Ping(ctx context.Context) error {
	return p.config.ClickHouse.Ping(ctx)
}

// worker processes jobs from the queue in batches
func (p *Pool) worker(id int) {
	defer p.wg.Done()

	batch := make([]Job, 0, p.config.BatchSize)
	ticker := time.NewTicker(p.config.FlushInterval)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}

		start := time.Now()
		if err := p.processBatch(batch); err != nil {
			p.logger.Errorw("Batch processing failed",
				"worker", id,
				"batchSize", len(batch),
				"error", err,
			)
			recordsFailed.Add(float64(len(batch)))
		} else {
			p.logger.Debugw("Batch processed", "worker", id, "batchSize", len(batch), "duration", time.Since(start))
			recordsProcessed.Add(float64(len(batch)))
		}
		batchInsertDuration.Observe(time.Since(start).Seconds())

		batch = batch[:0]
	}

	for {
		select {
		case job, ok := <-p.jobQueue:
			if !ok {
				flush()
				return
			}
			batch = append(batch, job)
			if len(batch) >= p.config.BatchSize {
				flush()
			}

		case <-ticker.C:
			flush()

		case <-p.ctx.Done():
			flush()
			return
		}
	}
}

// processBatch writes a batch of accuracy records in one insert
func (p *Pool) processBatch(batch []Job) error {
	if len(batch) == 0 {
		return nil
	}

	// Detached so a shutdown still lets the final flush land
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	chBatch, err := p.config.ClickHouse.PrepareBatch(ctx, insertAccuracySQL)
	if err != nil {
		return err
	}

	for _, job := range batch {
		r := job.Record
		a := r.Accuracy
		err := chBatch.Append(
			r.VerifiedAt,
			r.PredictionID,
			int64(r.FixtureID),
			r.HomeTeam,
			r.AwayTeam,
			r.League,
			r.MatchDate,
			r.ModelVersion,
			r.PredictedScore,
			r.ActualScore,
			r.Confidence,
			boolToUInt8(a.Outcome),
			boolToUInt8(a.Scoreline),
			boolToUInt8(a.BTTS),
			boolToUInt8(a.GoalLine),
			boolToUInt8(a.CleanSheet),
			uint8(a.Correct),
			r.Source,
		)
		if err != nil {
			p.logger.Warnw("Failed to append accuracy record to batch", "error", err, "predictionId", r.PredictionID)
			continue
		}
	}

	if err := chBatch.Send(); err != nil {
		p.logger.Errorw("Failed to send batch to ClickHouse", "error", err, "batchSize", len(batch))
		return err
	}
	return nil
}

func (p *Pool) reportQueueDepth() {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			queueDepth.Set(float64(len(p.jobQueue)))
		case <-p.ctx.Done():
			return
		}
	}
}

func boolToUInt8(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
