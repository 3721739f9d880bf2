package logic

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/matchcast/predictions-api/internal/models"
)

// flightRegistry is the per-instance set of fixtures currently generating
type flightRegistry struct {
	mu     sync.Mutex
	active map[models.FixtureID]struct{}
}

func newFlightRegistry() *flightRegistry {
	return &flightRegistry{active: make(map[models.FixtureID]struct{})}
}

// acquire claims the fixture's slot. The returned release is idempotent.
func (r *flightRegistry) acquire(id models.FixtureID) (func(), bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, busy := r.active[id]; busy {
		return nil, false
	}
	r.active[id] = struct{}{}
	generationsInFlight.Inc()

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			delete(r.active, id)
			r.mu.Unlock()
			generationsInFlight.Dec()
		})
	}, true
}

func (r *flightRegistry) inFlight(id models.FixtureID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, busy := r.active[id]
	return busy
}

// Lease is a cross-instance generation lock
type Lease interface {
	Acquire(ctx context.Context, id models.FixtureID, ttl time.Duration) (release func(context.Context), ok bool, err error)
}

// StoreLease implements Lease with SETNX plus a random owner token. The TTL
// bounds how long a crashed instance can hold a fixture.
type StoreLease struct {
	kv KVStore
}

func NewStoreLease(kv KVStore) *StoreLease {
	return &StoreLease{kv: kv}
}

func leaseKey(id models.FixtureID) string { return "lock:generate:" + id.String() }

func (l *StoreLease) Acquire(ctx context.Context, id models.FixtureID, ttl time.Duration) (func(context.Context), bool, error) {
	token := []byte(uuid.NewString())
	ok, err := l.kv.SetNX(ctx, leaseKey(id), token, ttl)
	if err != nil || !ok {
		return nil, false, err
	}
	return func(ctx context.Context) {
		_, _ = l.kv.DelIfEquals(ctx, leaseKey(id), token)
	}, true, nil
}
