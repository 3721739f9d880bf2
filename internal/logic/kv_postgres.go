package logic

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
)

// PostgresKV implements KVStore on two tables, see migrations/postgres/001_kv_store.sql
type PostgresKV struct {
	db PgPool
}

func NewPostgresKV(db PgPool) *PostgresKV {
	return &PostgresKV{db: db}
}

func expiry(ttl time.Duration) *time.Time {
	if ttl <= 0 {
		return nil
	}
	t := time.Now().Add(ttl)
	return &t
}

func (s *PostgresKV) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRow(ctx, `
		SELECT value FROM kv_entries
		WHERE key = $1 AND (expires_at IS NULL OR expires_at > NOW())
	`, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrKeyNotFound
	}
	return value, err
}

func (s *PostgresKV) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO kv_entries (key, value, expires_at) VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at
	`, key, value, expiry(ttl))
	return err
}

func (s *PostgresKV) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	// An expired row counts as absent
	tag, err := s.db.Exec(ctx, `
		INSERT INTO kv_entries (key, value, expires_at) VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at
		WHERE kv_entries.expires_at IS NOT NULL AND kv_entries.expires_at <= NOW()
	`, key, value, expiry(ttl))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresKV) Del(ctx context.Context, key string) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM kv_entries WHERE key = $1`, key); err != nil {
		return err
	}
	_, err := s.db.Exec(ctx, `DELETE FROM kv_fields WHERE key = $1`, key)
	return err
}

func (s *PostgresKV) DelIfEquals(ctx context.Context, key string, value []byte) (bool, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM kv_entries WHERE key = $1 AND value = $2`, key, value)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresKV) HSet(ctx context.Context, key, field string, value []byte) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO kv_fields (key, field, value) VALUES ($1, $2, $3)
		ON CONFLICT (key, field) DO UPDATE SET value = EXCLUDED.value
	`, key, field, value)
	return err
}

func (s *PostgresKV) HSetNX(ctx context.Context, key, field string, value []byte) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		INSERT INTO kv_fields (key, field, value) VALUES ($1, $2, $3)
		ON CONFLICT (key, field) DO NOTHING
	`, key, field, value)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresKV) HDel(ctx context.Context, key, field string) error {
	_, err := s.db.Exec(ctx, `DELETE FROM kv_fields WHERE key = $1 AND field = $2`, key, field)
	return err
}

func (s *PostgresKV) HGetAll(ctx context.Context, key string) (map[string][]byte, error) {
	rows, err := s.db.Query(ctx, `SELECT field, value FROM kv_fields WHERE key = $1`, key)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string][]byte)
	for rows.Next() {
		var field string
		var value []byte
		if err := rows.Scan(&field, &value); err != nil {
			return nil, err
		}
		out[field] = value
	}
	return out, rows.Err()
}

func (s *PostgresKV) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}
