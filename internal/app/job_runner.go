// internal/app/job_runner.go
package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"pastoral_care_worker/internal/domain/joblock"
	"pastoral_care_worker/internal/infra/clock"
)

const releaseTimeout = 10 * time.Second

// JobLocker gates scheduled jobs so that one worker of the fleet runs each
// job per organisational calendar day.
//
// A lease is only as good as its TTL: if a job outlives the TTL another
// worker may acquire the expired lease and run the same job concurrently.
// Pick a TTL above the worst-case runtime of the job.
//
// With the Postgres store lease timestamps come from the database clock, so
// worker clock skew only shifts which calendar day a worker computes for the
// lock key. The in-memory store serves a single process and uses its clock.
type JobLocker struct {
	repo   joblock.Repository
	clock  clock.Source
	owner  string
	logger *logrus.Entry
}

func NewJobLocker(repo joblock.Repository, clk clock.Source, logger *logrus.Entry) *JobLocker {
	return &JobLocker{
		repo:   repo,
		clock:  clk,
		owner:  workerIdentity(),
		logger: logger,
	}
}

func workerIdentity() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "worker"
	}
	return fmt.Sprintf("%s-%s", host, uuid.NewString())
}

// Owner is this worker's lease identity.
func (l *JobLocker) Owner() string {
	return l.owner
}

// Acquire tries to take today's lease for jobName. Contention is (false, nil);
// a store failure is (false, err) so callers never run a job they could not lock.
func (l *JobLocker) Acquire(ctx context.Context, jobName string, ttl time.Duration) (bool, error) {
	_, acquired, err := l.acquire(ctx, jobName, ttl)
	return acquired, err
}

func (l *JobLocker) acquire(ctx context.Context, jobName string, ttl time.Duration) (string, bool, error) {
	if ttl <= 0 {
		return "", false, fmt.Errorf("job lock ttl must be positive, got %s", ttl)
	}
	now := l.clock.Now()
	day := clock.DateKey(now)
	lock := joblock.Lock{
		LockID:     joblock.LockID(jobName, day),
		JobName:    jobName,
		LockDate:   day,
		Owner:      l.owner,
		AcquiredAt: now,
		ExpiresAt:  now.Add(ttl),
	}
	acquired, err := l.repo.TryAcquire(ctx, lock)
	if err != nil {
		return lock.LockID, false, fmt.Errorf("failed to acquire job lock %s: %w", lock.LockID, err)
	}
	return lock.LockID, acquired, nil
}

// Release frees today's lease for jobName if this worker holds it.
// Releasing a lease that is absent or held by someone else is a no-op.
func (l *JobLocker) Release(ctx context.Context, jobName string) error {
	return l.release(ctx, joblock.LockID(jobName, clock.DateKey(l.clock.Now())))
}

func (l *JobLocker) release(ctx context.Context, lockID string) error {
	if err := l.repo.Release(ctx, lockID, l.owner); err != nil {
		return fmt.Errorf("failed to release job lock %s: %w", lockID, err)
	}
	return nil
}

// RunExclusive runs fn only if today's lease for jobName could be taken.
// It reports whether fn ran. The lease is released afterwards even when fn
// fails or ctx has been cancelled.
func (l *JobLocker) RunExclusive(ctx context.Context, jobName string, ttl time.Duration, fn func(ctx context.Context) error) (bool, error) {
	log := l.logger.WithFields(logrus.Fields{"job": jobName, "owner": l.owner})

	lockID, acquired, err := l.acquire(ctx, jobName, ttl)
	if err != nil {
		log.WithError(err).Error("Could not acquire job lock, skipping run")
		return false, err
	}
	if !acquired {
		log.Info("Job already running or completed on another worker, skipping")
		return false, nil
	}

	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
		defer cancel()
		if err := l.release(releaseCtx, lockID); err != nil {
			log.WithError(err).Warn("Failed to release job lock; it will expire on its own")
		}
	}()

	start := time.Now()
	log.Info("Job started")
	if err := fn(ctx); err != nil {
		log.WithError(err).WithField("duration", time.Since(start).String()).Error("Job failed")
		return true, err
	}
	log.WithField("duration", time.Since(start).String()).Info("Job finished")
	return true, nil
}

// PurgeExpired deletes leases that ended before now.
func (l *JobLocker) PurgeExpired(ctx context.Context) (int64, error) {
	n, err := l.repo.PurgeExpired(ctx, l.clock.Now())
	if err != nil {
		return 0, fmt.Errorf("failed to purge expired job locks: %w", err)
	}
	return n, nil
}
