package logic

import (
	"context"
	"errors"
	"reflect"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

// MockConn serves canned rows to Query and records what was asked
type MockConn struct {
	driver.Conn
	Rows     [][]interface{}
	QueryErr error

	QueryCalls int
	LastQuery  string
	LastArgs   []interface{}
}

func (m *MockConn) Query(ctx context.Context, query string, args ...interface{}) (driver.Rows, error) {
	m.QueryCalls++
	m.LastQuery = query
	m.LastArgs = args
	if m.QueryErr != nil {
		return nil, m.QueryErr
	}
	return &MockRows{rows: m.Rows}, nil
}

type MockRows struct {
	driver.Rows
	rows     [][]interface{}
	rowIndex int
}

func (m *MockRows) Next() bool {
	m.rowIndex++
	return m.rowIndex <= len(m.rows)
}

func (m *MockRows) Scan(dest ...interface{}) error {
	row := m.rows[m.rowIndex-1]
	if len(row) != len(dest) {
		return errors.New("mock: column count mismatch")
	}
	for i := range dest {
		assign(dest[i], row[i])
	}
	return nil
}

func (m *MockRows) Close() error { return nil }

func (m *MockRows) Err() error { return nil }

func assign(dest interface{}, val interface{}) {
	v := reflect.ValueOf(dest).Elem()
	v.Set(reflect.ValueOf(val))
}
