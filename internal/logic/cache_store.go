package logic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/matchcast/predictions-api/internal/models"
)

// Lookup sources
const (
	SourceStrong = "strong"
	SourceLegacy = "legacy"
	SourceMiss   = "miss"
)

// Lookup is the result of a cache read. A miss is not an error: Record is
// nil, Source is SourceMiss and Stale is true.
type Lookup struct {
	Record *models.PredictionRecord
	Key    models.CacheKey
	Source string
	Stale  bool
}

func (l *Lookup) Found() bool { return l != nil && l.Record != nil }

func missLookup(key models.CacheKey) *Lookup {
	cacheLookups.WithLabelValues(SourceMiss).Inc()
	return &Lookup{Key: key, Source: SourceMiss, Stale: true}
}

// CacheConfig configures the cache store
type CacheConfig struct {
	ModelVersion string
	DataVersion  string
	// RecordTTL is passed to the store on every write, zero keeps records forever
	RecordTTL time.Duration
}

// CacheStore is the versioned prediction cache with its daily index
type CacheStore struct {
	kv     KVStore
	config CacheConfig
	logger *zap.SugaredLogger
}

func NewCacheStore(kv KVStore, cfg CacheConfig, logger *zap.Logger) *CacheStore {
	if cfg.ModelVersion == "" {
		cfg.ModelVersion = "v1"
	}
	if cfg.DataVersion == "" {
		cfg.DataVersion = "v1"
	}
	return &CacheStore{kv: kv, config: cfg, logger: logger.Sugar()}
}

func legacyKey(id models.FixtureID) string  { return "prediction:" + id.String() }
func currentKey(id models.FixtureID) string { return "prediction:current:" + id.String() }

// DateKey returns the daily index key for the UTC calendar date of t
func DateKey(t time.Time) string {
	return "predictions:date:" + t.UTC().Format("2006-01-02")
}

// DefaultKey builds a strong key with the configured versions
func (s *CacheStore) DefaultKey(id models.FixtureID) models.CacheKey {
	return models.CacheKey{FixtureID: id, ModelVersion: s.config.ModelVersion, DataVersion: s.config.DataVersion}
}

// Write lock on a strong key, held only for the read-check-write in Put
const (
	writeLockTTL     = 10 * time.Second
	writeLockBackoff = 20 * time.Millisecond
	writeLockRetries = 100
)

var errWriteLockBusy = errors.New("write lock busy")

func writeLockKey(key models.CacheKey) string { return "lock:write:" + key.String() }

// Put writes the record under its strong key, moves the fixture's current
// pointer to it and sets the fixture's entry in the kickoff date index. The
// index is one hash field per fixture, so concurrent writers for the same
// date never lose each other's entries and a re-put does not duplicate one.
//
// A strong key whose record is verified, or whose verification is claimed,
// only accepts the verified version of that same prediction. Anything else
// is a KindConflict.
func (s *CacheStore) Put(ctx context.Context, rec *models.PredictionRecord) error {
	if rec.ModelVersion == "" {
		rec.ModelVersion = s.config.ModelVersion
	}
	if rec.DataVersion == "" {
		rec.DataVersion = s.config.DataVersion
	}
	key := rec.Key()

	unlock, err := s.lockKey(ctx, key)
	if err != nil {
		return err
	}
	defer unlock()

	prev, err := s.readRecord(ctx, key.String())
	switch {
	case err == nil:
		if err := s.checkWritable(ctx, prev, rec); err != nil {
			return err
		}
	case errors.Is(err, ErrKeyNotFound):
		prev = nil
	default:
		return err
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return Internal("encode prediction", err)
	}
	if err := s.kv.Set(ctx, key.String(), data, s.config.RecordTTL); err != nil {
		return Internal("write prediction", fmt.Errorf("set %s: %w", key, err))
	}
	if err := s.kv.Set(ctx, currentKey(rec.FixtureID), []byte(key.String()), s.config.RecordTTL); err != nil {
		return Internal("write prediction", fmt.Errorf("set current pointer: %w", err))
	}

	entry, _ := json.Marshal(models.DailyIndexEntry{
		FixtureID:    rec.FixtureID,
		PredictionID: rec.ID,
		HomeTeam:     rec.HomeTeam,
		AwayTeam:     rec.AwayTeam,
		League:       rec.League,
		ModelVersion: rec.ModelVersion,
		DataVersion:  rec.DataVersion,
	})
	if err := s.kv.HSet(ctx, DateKey(rec.MatchDate), rec.FixtureID.String(), entry); err != nil {
		return Internal("write prediction", fmt.Errorf("index %s: %w", DateKey(rec.MatchDate), err))
	}
	if prev != nil && DateKey(prev.MatchDate) != DateKey(rec.MatchDate) {
		if err := s.dropIndexEntry(ctx, prev); err != nil {
			return err
		}
	}

	s.logger.Debugw("Stored prediction", "key", key.String(), "predictionId", rec.ID)
	return nil
}

// lockKey serialises writers of one strong key across instances
func (s *CacheStore) lockKey(ctx context.Context, key models.CacheKey) (func(), error) {
	lk := writeLockKey(key)
	token := []byte(uuid.NewString())

	acquire := func() error {
		ok, err := s.kv.SetNX(ctx, lk, token, writeLockTTL)
		if err != nil {
			return backoff.Permanent(err)
		}
		if !ok {
			return errWriteLockBusy
		}
		return nil
	}
	b := backoff.WithMaxRetries(backoff.NewConstantBackOff(writeLockBackoff), writeLockRetries)
	if err := backoff.Retry(acquire, backoff.WithContext(b, ctx)); err != nil {
		if errors.Is(err, errWriteLockBusy) {
			return nil, newError(KindConflict, fmt.Sprintf("concurrent write to %s", key), err)
		}
		return nil, Internal("acquire write lock", err)
	}

	return func() {
		if _, err := s.kv.DelIfEquals(context.WithoutCancel(ctx), lk, token); err != nil {
			s.logger.Warnw("Failed to release write lock", "key", key.String(), "error", err)
		}
	}, nil
}

// checkWritable refuses to replace a verified or claimed record with
// anything but its own verified version
func (s *CacheStore) checkWritable(ctx context.Context, prev, rec *models.PredictionRecord) error {
	if rec.Verified && rec.ID == prev.ID {
		return nil
	}
	locked := prev.Verified
	if !locked && prev.ID != "" {
		_, err := s.kv.Get(ctx, verificationClaimKey(prev.ID))
		switch {
		case err == nil:
			locked = true
		case !errors.Is(err, ErrKeyNotFound):
			return Internal("read verification claim", err)
		}
	}
	if locked {
		return newError(KindConflict, fmt.Sprintf("prediction for fixture %d is already verified", rec.FixtureID), nil)
	}
	return nil
}

// dropIndexEntry removes prev's field from its old date index, unless that
// field already points at a different model or data version
func (s *CacheStore) dropIndexEntry(ctx context.Context, prev *models.PredictionRecord) error {
	dk := DateKey(prev.MatchDate)
	field := prev.FixtureID.String()

	fields, err := s.kv.HGetAll(ctx, dk)
	if err != nil {
		return Internal("read daily index", err)
	}
	raw, ok := fields[field]
	if !ok {
		return nil
	}
	var e models.DailyIndexEntry
	if err := json.Unmarshal(raw, &e); err == nil && (e.ModelVersion != prev.ModelVersion || e.DataVersion != prev.DataVersion) {
		return nil
	}
	if err := s.kv.HDel(ctx, dk, field); err != nil {
		return Internal("write prediction", fmt.Errorf("unindex %s: %w", dk, err))
	}
	return nil
}

// Get reads the strong key, falling back to the legacy fixture-only key
func (s *CacheStore) Get(ctx context.Context, key models.CacheKey) (*Lookup, error) {
	rec, err := s.readRecord(ctx, key.String())
	if err == nil {
		cacheLookups.WithLabelValues(SourceStrong).Inc()
		return &Lookup{Record: rec, Key: key, Source: SourceStrong}, nil
	}
	if !errors.Is(err, ErrKeyNotFound) {
		return nil, err
	}

	legacy, err := s.readLegacy(ctx, key.FixtureID)
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return missLookup(key), nil
		}
		return nil, err
	}
	legacy.ModelVersion = key.ModelVersion
	legacy.DataVersion = key.DataVersion
	cacheLookups.WithLabelValues(SourceLegacy).Inc()
	return &Lookup{Record: legacy, Key: key, Source: SourceLegacy}, nil
}

// GetLatest resolves the fixture's most recently written record
func (s *CacheStore) GetLatest(ctx context.Context, id models.FixtureID) (*Lookup, error) {
	ptr, err := s.kv.Get(ctx, currentKey(id))
	switch {
	case err == nil:
		rec, err := s.readRecord(ctx, string(ptr))
		if err == nil {
			cacheLookups.WithLabelValues(SourceStrong).Inc()
			return &Lookup{Record: rec, Key: rec.Key(), Source: SourceStrong}, nil
		}
		if !errors.Is(err, ErrKeyNotFound) {
			return nil, err
		}
		s.logger.Warnw("Current pointer references a missing record", "fixtureId", id, "key", string(ptr))
	case !errors.Is(err, ErrKeyNotFound):
		return nil, Internal("read prediction", err)
	}
	return s.GetLegacy(ctx, id)
}

// GetLegacy reads the pre-versioning key and translates it to the current shape
func (s *CacheStore) GetLegacy(ctx context.Context, id models.FixtureID) (*Lookup, error) {
	key := s.DefaultKey(id)
	rec, err := s.readLegacy(ctx, id)
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return missLookup(key), nil
		}
		return nil, err
	}
	rec.ModelVersion = key.ModelVersion
	rec.DataVersion = key.DataVersion
	cacheLookups.WithLabelValues(SourceLegacy).Inc()
	return &Lookup{Record: rec, Key: key, Source: SourceLegacy}, nil
}

// GetByDate lists every indexed prediction for the UTC date. Entries whose
// record has gone, or has since moved to another date, are skipped.
func (s *CacheStore) GetByDate(ctx context.Context, date time.Time) ([]*models.PredictionRecord, error) {
	fields, err := s.kv.HGetAll(ctx, DateKey(date))
	if err != nil {
		return nil, Internal("read daily index", err)
	}

	entries := make([]models.DailyIndexEntry, 0, len(fields))
	for field, raw := range fields {
		var e models.DailyIndexEntry
		if err := json.Unmarshal(raw, &e); err != nil {
			s.logger.Warnw("Skipping malformed index entry", "date", DateKey(date), "field", field, "error", err)
			continue
		}
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].FixtureID < entries[j].FixtureID })

	records := make([]*models.PredictionRecord, 0, len(entries))
	for _, e := range entries {
		key := models.CacheKey{FixtureID: e.FixtureID, ModelVersion: e.ModelVersion, DataVersion: e.DataVersion}
		rec, err := s.readRecord(ctx, key.String())
		if err != nil {
			if !errors.Is(err, ErrKeyNotFound) {
				s.logger.Warnw("Failed to read indexed prediction", "key", key.String(), "error", err)
			}
			continue
		}
		if DateKey(rec.MatchDate) != DateKey(date) {
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

func (s *CacheStore) Ping(ctx context.Context) error {
	return s.kv.Ping(ctx)
}

func (s *CacheStore) readRecord(ctx context.Context, key string) (*models.PredictionRecord, error) {
	raw, err := s.kv.Get(ctx, key)
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return nil, err
		}
		return nil, Internal("read prediction", fmt.Errorf("get %s: %w", key, err))
	}
	var rec models.PredictionRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, Internal("decode prediction", fmt.Errorf("%s: %w", key, err))
	}
	return &rec, nil
}

func (s *CacheStore) readLegacy(ctx context.Context, id models.FixtureID) (*models.PredictionRecord, error) {
	raw, err := s.kv.Get(ctx, legacyKey(id))
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return nil, err
		}
		return nil, Internal("read legacy prediction", err)
	}
	var legacy models.LegacyPrediction
	if err := json.Unmarshal(raw, &legacy); err != nil {
		return nil, Internal("decode legacy prediction", fmt.Errorf("%s: %w", legacyKey(id), err))
	}
	rec := legacy.ToRecord()
	if rec.FixtureID == 0 {
		rec.FixtureID = id
	}
	return rec, nil
}
