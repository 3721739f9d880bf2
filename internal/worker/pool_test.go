package worker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/matchcast/predictions-api/internal/models"
)

func accuracyRecord(id string) *models.AccuracyRecord {
	return &models.AccuracyRecord{
		PredictionID:   id,
		FixtureID:      1001,
		HomeTeam:       "Arsenal",
		AwayTeam:       "Chelsea",
		League:         "Premier League",
		MatchDate:      time.Date(2026, 10, 24, 15, 0, 0, 0, time.UTC),
		ModelVersion:   "v2",
		PredictedScore: "2-1",
		ActualScore:    "2-1",
		Confidence:     models.ConfidenceHigh,
		Accuracy:       models.AccuracyBreakdown{Outcome: true, Scoreline: true, Correct: 2, Markets: 5},
		Source:         "manual",
		VerifiedAt:     time.Date(2026, 10, 24, 17, 0, 0, 0, time.UTC),
	}
}

func TestEnqueueFull(t *testing.T) {
	// Create a pool manually to avoid starting workers
	cfg := PoolConfig{
		QueueSize: 1,
		Logger:    zap.NewNop(),
	}

	pool := &Pool{
		config:   cfg,
		jobQueue: make(chan Job, cfg.QueueSize),
		logger:   cfg.Logger.Sugar(),
	}

	// Fill the queue
	if !pool.Enqueue(accuracyRecord("1")) {
		t.Fatal("Failed to enqueue first record")
	}

	// Try to enqueue second record, it should return false immediately
	start := time.Now()
	enqueued := pool.Enqueue(accuracyRecord("2"))
	duration := time.Since(start)

	if enqueued {
		t.Error("Enqueue should have returned false when queue is full")
	}

	if duration > 10*time.Millisecond {
		t.Errorf("Enqueue took too long (%v), expected immediate return", duration)
	}
}

func TestPool_FlushOnStop(t *testing.T) {
	conn := &MockClickHouseConn{}
	pool := NewPool(PoolConfig{
		WorkerCount:   1,
		BatchSize:     100,
		FlushInterval: time.Hour,
		ClickHouse:    conn,
		Logger:        zap.NewNop(),
	})
	pool.Start(context.Background())

	for i := 0; i < 5; i++ {
		if !pool.Enqueue(accuracyRecord(fmt.Sprintf("pred-%d", i))) {
			t.Fatalf("enqueue %d rejected", i)
		}
	}
	pool.Stop()

	rows := conn.SentRows()
	if len(rows) != 5 {
		t.Fatalf("sent %d rows, want 5", len(rows))
	}
	if !strings.Contains(conn.Queries[0], "prediction_accuracy") {
		t.Errorf("unexpected insert: %s", conn.Queries[0])
	}

	// verified_at, prediction_id, fixture_id ... outcome_correct
	first := rows[0]
	if first[1] != "pred-0" || first[2] != int64(1001) || first[11] != uint8(1) || first[16] != uint8(2) {
		t.Errorf("row = %v", first)
	}

	if pool.Enqueue(accuracyRecord("late")) {
		t.Error("stopped pool accepted a record")
	}
	// Second stop is a no-op
	pool.Stop()
}

func TestPool_FlushOnBatchSize(t *testing.T) {
	conn := &MockClickHouseConn{}
	pool := NewPool(PoolConfig{
		WorkerCount:   1,
		BatchSize:     3,
		FlushInterval: time.Hour,
		ClickHouse:    conn,
		Logger:        zap.NewNop(),
	})
	pool.Start(context.Background())
	defer pool.Stop()

	for i := 0; i < 3; i++ {
		pool.Enqueue(accuracyRecord(fmt.Sprintf("pred-%d", i)))
	}

	deadline := time.Now().Add(time.Second)
	for len(conn.SentRows()) < 3 {
		if time.Now().After(deadline) {
			t.Fatalf("batch not flushed, sent %d rows", len(conn.SentRows()))
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestPool_SendFailure(t *testing.T) {
	conn := &MockClickHouseConn{SendErr: errors.New("clickhouse unavailable")}
	pool := NewPool(PoolConfig{WorkerCount: 1, ClickHouse: conn, Logger: zap.NewNop()})

	err := pool.processBatch([]Job{{Record: accuracyRecord("1"), Timestamp: time.Now()}})
	if err == nil {
		t.Fatal("expected send error")
	}
	if len(conn.SentRows()) != 0 {
		t.Error("failed batch should not be recorded as sent")
	}
}

func TestPool_Ping(t *testing.T) {
	pool := NewPool(PoolConfig{ClickHouse: &MockClickHouseConn{PingErr: errors.New("down")}, Logger: zap.NewNop()})
	if err := pool.Ping(context.Background()); err == nil {
		t.Error("expected ping error")
	}
}
