package worker

import (
	"context"
	"sync"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

// MockClickHouseConn implements driver.Conn for testing. Rows appended to
// successfully sent batches are collected in Sent.
type MockClickHouseConn struct {
	driver.Conn

	PrepareErr error
	SendErr    error
	PingErr    error

	mu      sync.Mutex
	Queries []string
	Sent    [][]any
}

func (m *MockClickHouseConn) PrepareBatch(ctx context.Context, query string, opts ...driver.PrepareBatchOption) (driver.Batch, error) {
	if m.PrepareErr != nil {
		return nil, m.PrepareErr
	}
	m.mu.Lock()
	m.Queries = append(m.Queries, query)
	m.mu.Unlock()
	return &MockBatch{conn: m}, nil
}

func (m *MockClickHouseConn) Ping(ctx context.Context) error {
	return m.PingErr
}

func (m *MockClickHouseConn) SentRows() [][]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]any(nil), m.Sent...)
}

type MockBatch struct {
	driver.Batch
	conn *MockClickHouseConn
	rows [][]any
	sent bool
}

func (m *MockBatch) IsSent() bool {
	return m.sent
}

func (m *MockBatch) Rows() int {
	return len(m.rows)
}

func (m *MockBatch) Append(v ...any) error {
	m.rows = append(m.rows, v)
	return nil
}

func (m *MockBatch) Send() error {
	if m.conn.SendErr != nil {
		return m.conn.SendErr
	}
	m.conn.mu.Lock()
	m.conn.Sent = append(m.conn.Sent, m.rows...)
	m.conn.mu.Unlock()
	m.sent = true
	return nil
}

func (m *MockBatch) Abort() error {
	return nil
}
