package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/matchcast/predictions-api/internal/config"
	"github.com/matchcast/predictions-api/internal/feeds"
	"github.com/matchcast/predictions-api/internal/generator"
	"github.com/matchcast/predictions-api/internal/handlers"
	"github.com/matchcast/predictions-api/internal/logic"
	"github.com/matchcast/predictions-api/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Key-value store. A missing URL leaves the prediction routes unbound.
	kv, pg, closeKV, err := openKV(ctx, cfg)
	if err != nil {
		sugar.Fatalw("Failed to open key-value store", "backend", cfg.KVBackend, "error", err)
	}
	defer closeKV()
	if kv == nil {
		sugar.Warnw("No key-value store bound; prediction routes will answer config_error", "backend", cfg.KVBackend)
	}

	// Optional analytics store
	var (
		ch      driver.Conn
		pool    *worker.Pool
		sink    logic.AccuracySink
		reports logic.ReportService
	)
	if cfg.ClickHouseURL != "" {
		ch, err = openClickHouse(ctx, cfg.ClickHouseURL)
		if err != nil {
			sugar.Fatalw("Failed to connect to ClickHouse", "error", err)
		}
		defer ch.Close()

		pool = worker.NewPool(worker.PoolConfig{
			WorkerCount:   cfg.WorkerCount,
			QueueSize:     cfg.QueueSize,
			BatchSize:     cfg.BatchSize,
			FlushInterval: cfg.FlushInterval,
			ClickHouse:    ch,
			Logger:        logger,
		})
		// Not tied to the signal context: Stop drains the queue on shutdown
		pool.Start(context.Background())
		sink = pool
		reports = logic.NewAccuracyReports(ch, logger)
	}

	hcfg := handlers.Config{
		ClickHouse:    ch,
		Reports:       reports,
		Logger:        logger,
		APIKey:        cfg.APIKey,
		ModelVersion:  cfg.ModelVersion,
		DataVersion:   cfg.DataVersion,
		PreKickoffTTL: cfg.PreKickoffTTL,
		MaxStaleness:  cfg.MaxStaleness,
	}
	hcfg.Postgres = pg
	if pool != nil {
		hcfg.Analytics = pool
	}

	if kv != nil {
		store := logic.NewCacheStore(kv, logic.CacheConfig{
			ModelVersion: cfg.ModelVersion,
			DataVersion:  cfg.DataVersion,
			RecordTTL:    cfg.RecordTTL,
		}, logger)
		hcfg.Predictions = store
		hcfg.Verification = logic.NewVerifier(store, kv, sink, logger)

		if cfg.OpenAIAPIKey != "" {
			feedClient := feeds.NewClient(feeds.Options{
				BaseURL: cfg.FeedBaseURL,
				APIKey:  cfg.FeedAPIKey,
				HTTP: feeds.HTTPOptions{
					Timeout:        cfg.FeedTimeout,
					RequestsPerSec: cfg.FeedRequestsPerSec,
				},
			}, logger)
			gen := generator.NewOpenAIGenerator(generator.Options{
				APIKey:  cfg.OpenAIAPIKey,
				Model:   cfg.OpenAIModel,
				BaseURL: cfg.OpenAIBaseURL,
			}, logger)

			ccfg := logic.CoordinatorConfig{
				Timeout:      cfg.GenerationTimeout,
				ModelVersion: cfg.ModelVersion,
				DataVersion:  cfg.DataVersion,
			}
			if cfg.DistributedSingleFlight {
				ccfg.Lease = logic.NewStoreLease(kv)
			}
			hcfg.Generation = logic.NewCoordinator(logic.NewAggregator(feedClient, logger), gen, store, ccfg, logger)
		} else {
			sugar.Warnw("OPENAI_API_KEY not set; generation is disabled")
		}
	}

	h := handlers.New(hcfg)
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handlers.NewRouter(h, cfg.AllowedOrigins, cfg.RequestTimeout()),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.RequestTimeout() + 5*time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		sugar.Infow("Starting server", "port", cfg.Port, "env", cfg.Env, "kvBackend", cfg.KVBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			sugar.Fatalw("Server failed", "error", err)
		}
	}()

	<-ctx.Done()
	sugar.Infow("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		sugar.Errorw("Server shutdown failed", "error", err)
	}
	if pool != nil {
		pool.Stop()
	}
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	var zcfg zap.Config
	if cfg.IsProduction() {
		zcfg = zap.NewProductionConfig()
	} else {
		zcfg = zap.NewDevelopmentConfig()
	}
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)
	return zcfg.Build()
}

// openKV connects the selected backend. It returns a nil store when the
// backend's URL is empty.
func openKV(ctx context.Context, cfg *config.Config) (logic.KVStore, logic.PgPool, func(), error) {
	noop := func() {}

	switch cfg.KVBackend {
	case config.KVMemory:
		return logic.NewMemoryKV(), nil, noop, nil

	case config.KVRedis:
		if cfg.RedisURL == "" {
			return nil, nil, noop, nil
		}
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, nil, noop, fmt.Errorf("parse REDIS_URL: %w", err)
		}
		client := redis.NewClient(opts)
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, nil, noop, fmt.Errorf("ping redis: %w", err)
		}
		return logic.NewRedisKV(client), nil, func() { client.Close() }, nil

	case config.KVPostgres:
		if cfg.PostgresURL == "" {
			return nil, nil, noop, nil
		}
		pool, err := pgxpool.New(ctx, cfg.PostgresURL)
		if err != nil {
			return nil, nil, noop, fmt.Errorf("connect postgres: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, nil, noop, fmt.Errorf("ping postgres: %w", err)
		}
		return logic.NewPostgresKV(pool), pool, pool.Close, nil
	}
	return nil, nil, noop, fmt.Errorf("unknown KV backend %q", cfg.KVBackend)
}

func openClickHouse(ctx context.Context, url string) (driver.Conn, error) {
	opts, err := clickhouse.ParseDSN(url)
	if err != nil {
		return nil, fmt.Errorf("parse CLICKHOUSE_URL: %w", err)
	}
	conn, err := clickhouse.Open(opts)
	if err != nil {
		return nil, err
	}
	if err := conn.Ping(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}
