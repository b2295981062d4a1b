package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"pastoral_care_worker/internal/domain/joblock"
)

type PostgresJobLockRepository struct {
	db *sql.DB
}

func NewPostgresJobLockRepository(db *sql.DB) *PostgresJobLockRepository {
	return &PostgresJobLockRepository{db: db}
}

// TryAcquire is one conditional upsert: the insert wins on an empty slot and
// the update only fires when the existing lease has ended. Both timestamps
// come from the database clock so workers with skewed clocks agree on expiry;
// only the lease length is taken from lock.
func (r *PostgresJobLockRepository) TryAcquire(ctx context.Context, lock joblock.Lock) (bool, error) {
	query := `INSERT INTO job_locks (lock_id, job_name, lock_date, owner, acquired_at, expires_at)
               VALUES ($1, $2, $3::date, $4, now(), now() + make_interval(secs => $5::double precision))
               ON CONFLICT (lock_id) DO UPDATE
               SET owner = EXCLUDED.owner, acquired_at = EXCLUDED.acquired_at, expires_at = EXCLUDED.expires_at
               WHERE job_locks.expires_at < now()
               RETURNING lock_id`
	var id string
	err := r.db.QueryRowContext(ctx, query,
		lock.LockID, lock.JobName, lock.LockDate, lock.Owner, leaseSeconds(lock),
	).Scan(&id)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("error acquiring job lock %s: %w", lock.LockID, err)
	}
	return true, nil
}

func leaseSeconds(lock joblock.Lock) float64 {
	d := lock.ExpiresAt.Sub(lock.AcquiredAt)
	if d < 0 {
		return 0
	}
	return d.Seconds()
}

func (r *PostgresJobLockRepository) Release(ctx context.Context, lockID, owner string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM job_locks WHERE lock_id = $1 AND owner = $2`, lockID, owner); err != nil {
		return fmt.Errorf("error releasing job lock %s: %w", lockID, err)
	}
	return nil
}

func (r *PostgresJobLockRepository) Get(ctx context.Context, lockID string) (*joblock.Lock, error) {
	query := `SELECT lock_id, job_name, to_char(lock_date, 'YYYY-MM-DD'), owner, acquired_at, expires_at
               FROM job_locks WHERE lock_id = $1`
	l := &joblock.Lock{}
	err := r.db.QueryRowContext(ctx, query, lockID).Scan(&l.LockID, &l.JobName, &l.LockDate, &l.Owner, &l.AcquiredAt, &l.ExpiresAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, joblock.ErrNotFound
		}
		return nil, fmt.Errorf("error getting job lock %s: %w", lockID, err)
	}
	return l, nil
}

func (r *PostgresJobLockRepository) PurgeExpired(ctx context.Context, before time.Time) (int64, error) {
	// A caller clock running ahead must not purge a lease the database still considers live.
	res, err := r.db.ExecContext(ctx, `DELETE FROM job_locks WHERE expires_at < $1 AND expires_at < now()`, before)
	if err != nil {
		return 0, fmt.Errorf("error purging expired job locks: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("error reading purged job lock count: %w", err)
	}
	return n, nil
}
