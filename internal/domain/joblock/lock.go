// internal/domain/joblock/lock.go
package joblock

import (
	"context"
	"fmt"
	"time"
)

// Lock is a time-boxed lease granting one worker the right to run a named job
// for one calendar day. Corresponds to the 'job_locks' table.
type Lock struct {
	LockID     string    // job_lock_<job>_<YYYY-MM-DD>
	JobName    string
	LockDate   string    // calendar day in the organisational timezone
	Owner      string    // worker identity that holds the lease
	AcquiredAt time.Time
	ExpiresAt  time.Time
}

// Expired reports whether the lease is free at now.
func (l *Lock) Expired(now time.Time) bool {
	return now.After(l.ExpiresAt)
}

// LockID derives the per-day key for jobName.
func LockID(jobName, dateKey string) string {
	return fmt.Sprintf("job_lock_%s_%s", jobName, dateKey)
}

// Repository is the shared store behind the lock.
type Repository interface {
	// TryAcquire writes lock if no row exists for lock.LockID or the existing row
	// expired before lock.AcquiredAt. It must be a single atomic conditional write.
	// A shared store may stamp the lease with its own clock, keeping the length
	// ExpiresAt-AcquiredAt. It returns true iff lock now holds the lease.
	TryAcquire(ctx context.Context, lock Lock) (bool, error)
	// Release deletes the row for lockID held by owner. Missing rows are not an error.
	Release(ctx context.Context, lockID, owner string) error
	Get(ctx context.Context, lockID string) (*Lock, error)
	// PurgeExpired deletes rows whose lease ended before the cutoff.
	PurgeExpired(ctx context.Context, before time.Time) (int64, error)
}

var ErrNotFound = fmt.Errorf("job lock not found")
