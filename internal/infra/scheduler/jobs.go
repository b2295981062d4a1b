package scheduler

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// Job names double as the job-lock names.
const (
	JobDailyDigest       = "daily_digest"
	JobEngagementRefresh = "engagement_refresh"
	JobDashboardRefresh  = "dashboard_cache_refresh"
	JobLockCleanup       = "job_lock_cleanup"
)

// Specs are the cron expressions of the built-in jobs.
type Specs struct {
	Digest       string
	Engagement   string
	CacheRefresh string
	LockCleanup  string
}

// BuiltinJobs returns the four scheduled jobs. lockTTL is the lease every
// job takes; per-run timeouts stay below it so a lease never outlives its run.
func BuiltinJobs(
	specs Specs,
	lockTTL time.Duration,
	digest func(ctx context.Context) (sent, failed int, err error),
	engagement func(ctx context.Context) (updated int64, err error),
	dashboard func(ctx context.Context) (refreshed int, err error),
	purgeLocks func(ctx context.Context) (purged int64, err error),
	logger *logrus.Entry,
) []Job {
	timeout := lockTTL - lockTTL/10
	return []Job{
		{
			Name: JobDailyDigest, Spec: specs.Digest, TTL: lockTTL, Timeout: timeout,
			Run: func(ctx context.Context) error {
				sent, failed, err := digest(ctx)
				logger.WithFields(logrus.Fields{"job": JobDailyDigest, "sent": sent, "failed": failed}).Info("Daily digest job done")
				return err
			},
		},
		{
			Name: JobEngagementRefresh, Spec: specs.Engagement, TTL: lockTTL, Timeout: timeout,
			Run: func(ctx context.Context) error {
				updated, err := engagement(ctx)
				logger.WithFields(logrus.Fields{"job": JobEngagementRefresh, "updated": updated}).Info("Engagement refresh job done")
				return err
			},
		},
		{
			Name: JobDashboardRefresh, Spec: specs.CacheRefresh, TTL: lockTTL, Timeout: timeout,
			Run: func(ctx context.Context) error {
				n, err := dashboard(ctx)
				logger.WithFields(logrus.Fields{"job": JobDashboardRefresh, "campuses": n}).Info("Dashboard cache refresh job done")
				return err
			},
		},
		{
			Name: JobLockCleanup, Spec: specs.LockCleanup, TTL: lockTTL, Timeout: timeout,
			Run: func(ctx context.Context) error {
				n, err := purgeLocks(ctx)
				logger.WithFields(logrus.Fields{"job": JobLockCleanup, "purged": n}).Info("Job lock cleanup done")
				return err
			},
		},
	}
}
