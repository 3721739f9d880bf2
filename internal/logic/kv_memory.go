package logic

import (
	"bytes"
	"context"
	"sync"
	"time"
)

type memEntry struct {
	value     []byte
	expiresAt time.Time
}

func (e memEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// MemoryKV is a process-local KVStore used with KV_BACKEND=memory and in tests
type MemoryKV struct {
	mu     sync.Mutex
	values map[string]memEntry
	hashes map[string]map[string][]byte
	now    func() time.Time
}

func NewMemoryKV() *MemoryKV {
	return &MemoryKV{
		values: make(map[string]memEntry),
		hashes: make(map[string]map[string][]byte),
		now:    time.Now,
	}
}

func (m *MemoryKV) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.values[key]
	if !ok || e.expired(m.now()) {
		return nil, ErrKeyNotFound
	}
	return bytes.Clone(e.value), nil
}

func (m *MemoryKV) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.values[key] = m.entry(value, ttl)
	return nil
}

func (m *MemoryKV) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.values[key]; ok && !e.expired(m.now()) {
		return false, nil
	}
	m.values[key] = m.entry(value, ttl)
	return true, nil
}

func (m *MemoryKV) Del(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.values, key)
	delete(m.hashes, key)
	return nil
}

func (m *MemoryKV) DelIfEquals(ctx context.Context, key string, value []byte) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.values[key]
	if !ok || e.expired(m.now()) || !bytes.Equal(e.value, value) {
		return false, nil
	}
	delete(m.values, key)
	return true, nil
}

func (m *MemoryKV) HSet(ctx context.Context, key, field string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.hash(key)[field] = bytes.Clone(value)
	return nil
}

func (m *MemoryKV) HSetNX(ctx context.Context, key, field string, value []byte) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	h := m.hash(key)
	if _, ok := h[field]; ok {
		return false, nil
	}
	h[field] = bytes.Clone(value)
	return true, nil
}

func (m *MemoryKV) HDel(ctx context.Context, key, field string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.hashes[key], field)
	return nil
}

func (m *MemoryKV) HGetAll(ctx context.Context, key string) (map[string][]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string][]byte, len(m.hashes[key]))
	for f, v := range m.hashes[key] {
		out[f] = bytes.Clone(v)
	}
	return out, nil
}

func (m *MemoryKV) Ping(ctx context.Context) error { return nil }

func (m *MemoryKV) entry(value []byte, ttl time.Duration) memEntry {
	e := memEntry{value: bytes.Clone(value)}
	if ttl > 0 {
		e.expiresAt = m.now().Add(ttl)
	}
	return e
}

func (m *MemoryKV) hash(key string) map[string][]byte {
	h, ok := m.hashes[key]
	if !ok {
		h = make(map[string][]byte)
		m.hashes[key] = h
	}
	return h
}
