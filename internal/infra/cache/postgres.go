package cache

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// PostgresBackend keeps cache rows in the 'cache_entries' table, one row per key.
type PostgresBackend struct {
	db  *sql.DB
	now func() time.Time
}

func NewPostgresBackend(db *sql.DB, now func() time.Time) *PostgresBackend {
	if now == nil {
		now = time.Now
	}
	return &PostgresBackend{db: db, now: now}
}

func (b *PostgresBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	query := `SELECT value FROM cache_entries WHERE key = $1 AND expires_at > $2`
	var value []byte
	err := b.db.QueryRowContext(ctx, query, key, b.now()).Scan(&value)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("error reading cache entry: %w", err)
	}
	return value, true, nil
}

func (b *PostgresBackend) Set(ctx context.Context, key, campusID string, value []byte, ttl time.Duration) error {
	now := b.now()
	query := `INSERT INTO cache_entries (key, campus_id, value, calculated_at, expires_at)
               VALUES ($1, $2, $3, $4, $5)
               ON CONFLICT (key) DO UPDATE
               SET value = EXCLUDED.value, calculated_at = EXCLUDED.calculated_at, expires_at = EXCLUDED.expires_at`
	if _, err := b.db.ExecContext(ctx, query, key, campusID, value, now, now.Add(ttl)); err != nil {
		return fmt.Errorf("error writing cache entry: %w", err)
	}
	return nil
}

func (b *PostgresBackend) Delete(ctx context.Context, key string) error {
	if _, err := b.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE key = $1`, key); err != nil {
		return fmt.Errorf("error deleting cache entry: %w", err)
	}
	return nil
}

func (b *PostgresBackend) DeleteMatching(ctx context.Context, pattern string) (int, error) {
	res, err := b.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE key LIKE $1 ESCAPE '\'`, globToLike(pattern))
	if err != nil {
		return 0, fmt.Errorf("error deleting cache entries by pattern: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("error reading deleted cache entry count: %w", err)
	}
	return int(n), nil
}

func (b *PostgresBackend) Ping(ctx context.Context) error {
	return b.db.PingContext(ctx)
}
