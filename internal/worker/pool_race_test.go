package worker

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestPool_RaceCondition(t *testing.T) {
	conn := &MockClickHouseConn{}
	cfg := PoolConfig{
		WorkerCount:   2,
		QueueSize:     1000,
		BatchSize:     10,
		FlushInterval: 10 * time.Millisecond,
		ClickHouse:    conn,
		Logger:        zap.NewNop(),
	}

	p := NewPool(cfg)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)

	// Enqueue from many goroutines while Stop races with the tail
	var wg sync.WaitGroup
	var accepted atomic.Int64
	producers := 10
	perProducer := 50

	for i := 0; i < producers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < perProducer; j++ {
				if p.Enqueue(accuracyRecord(fmt.Sprintf("pred-%d-%d", i, j))) {
					accepted.Add(1)
				}
				if j%10 == 0 {
					time.Sleep(time.Millisecond)
				}
			}
		}(i)
	}

	wg.Wait()
	p.Stop()

	if got := int64(len(conn.SentRows())); got != accepted.Load() {
		t.Errorf("sent %d rows, accepted %d", got, accepted.Load())
	}
}
