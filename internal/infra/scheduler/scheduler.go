package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Runner gates a job behind the shared per-day lock. *app.JobLocker implements it.
type Runner interface {
	RunExclusive(ctx context.Context, job string, ttl time.Duration, fn func(ctx context.Context) error) (bool, error)
}

// Job is one scheduled unit of work.
type Job struct {
	Name    string
	Spec    string        // cron expression in the scheduler's location
	TTL     time.Duration // lease length of the job lock
	Timeout time.Duration // bound on a single run
	Run     func(ctx context.Context) error
}

// JobScheduler fires registered jobs on their cron specs. Each run goes
// through the Runner, so at most one worker executes a job per day.
type JobScheduler struct {
	cronEngine *cron.Cron
	runner     Runner
	logger     *logrus.Entry

	mu   sync.Mutex
	jobs map[string]Job
}

func NewJobScheduler(runner Runner, loc *time.Location, logger *logrus.Entry) *JobScheduler {
	cronLogger := cron.PrintfLogger(logger)
	return &JobScheduler{
		cronEngine: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cronLogger),
			cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		),
		runner: runner,
		logger: logger,
		jobs:   make(map[string]Job),
	}
}

// Register adds a job. It fails on a malformed spec or a duplicate name.
func (s *JobScheduler) Register(job Job) error {
	if job.Run == nil {
		return fmt.Errorf("job %s has no run function", job.Name)
	}
	if job.TTL <= 0 {
		return fmt.Errorf("job %s needs a positive lock ttl", job.Name)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.Name]; exists {
		return fmt.Errorf("job %s is already registered", job.Name)
	}
	if _, err := s.cronEngine.AddFunc(job.Spec, func() { s.execute(context.Background(), job) }); err != nil {
		return fmt.Errorf("could not add %s cron job: %w", job.Name, err)
	}
	s.jobs[job.Name] = job
	return nil
}

func (s *JobScheduler) Start() {
	s.logger.WithField("jobs", len(s.jobs)).Info("Starting job scheduler")
	s.cronEngine.Start()
}

// RunNow executes a registered job immediately, still behind the lock.
// It reports whether this worker ran it.
func (s *JobScheduler) RunNow(ctx context.Context, name string) (bool, error) {
	s.mu.Lock()
	job, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return false, fmt.Errorf("unknown job %s", name)
	}
	return s.execute(ctx, job)
}

func (s *JobScheduler) execute(parent context.Context, job Job) (bool, error) {
	ctx := parent
	if job.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(parent, job.Timeout)
		defer cancel()
	}

	s.logger.WithField("job", job.Name).Debug("Job triggered")
	return s.runner.RunExclusive(ctx, job.Name, job.TTL, job.Run)
}

// Stop prevents new runs and waits for running jobs to finish.
func (s *JobScheduler) Stop() {
	s.logger.Info("Stopping job scheduler...")
	ctx := s.cronEngine.Stop()
	<-ctx.Done()
	s.logger.Info("Job scheduler gracefully stopped")
}
