package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-adp-reconciler/internal/models"
	appErrors "github.com/noah-isme/sma-adp-reconciler/pkg/errors"
	"github.com/noah-isme/sma-adp-reconciler/pkg/jobs"
)

// JobTypeReconcile tags queued reconciler runs.
const JobTypeReconcile = "reconcile"

// RunRequest is the payload of a queued reconciler run.
type RunRequest struct {
	Name string
	Now  *time.Time
}

type runExecutor interface {
	Run(ctx context.Context, name string, override *time.Time) (*models.RunSummary, error)
}

type jobEnqueuer interface {
	Enqueue(job jobs.Job) (string, error)
}

// NewRunJobHandler adapts a runner to the job queue. Skipped and unknown runs are
// not retried.
func NewRunJobHandler(runner runExecutor) jobs.Handler {
	return func(ctx context.Context, job jobs.Job) error {
		req, ok := job.Payload.(RunRequest)
		if !ok {
			return jobs.Permanent(fmt.Errorf("unexpected payload %T for job %s", job.Payload, job.ID))
		}
		_, err := runner.Run(ctx, req.Name, req.Now)
		if err == nil {
			return nil
		}
		if errors.Is(err, appErrors.ErrRunInProgress) || errors.Is(err, appErrors.ErrNotFound) {
			return jobs.Permanent(err)
		}
		return err
	}
}

// ScheduledJob runs a reconciler on Cron when set, otherwise every Interval.
type ScheduledJob struct {
	Name     string
	Interval time.Duration
	Cron     string
}

func (j ScheduledJob) spec() string {
	if j.Cron != "" {
		return j.Cron
	}
	if j.Interval > 0 {
		return "@every " + j.Interval.String()
	}
	return ""
}

// cronLogger routes cron's own logging through zap.
type cronLogger struct {
	log *zap.SugaredLogger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.log.Debugw(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.log.Errorw(msg, append(keysAndValues, "error", err)...)
}

// Scheduler enqueues reconciler runs on a cron. Entries that are still
// enqueueing when they fire again are skipped.
type Scheduler struct {
	queue  jobEnqueuer
	jobs   []ScheduledJob
	logger *zap.Logger
	cron   *cron.Cron
}

// NewScheduler constructs a scheduler. Jobs with neither a cron spec nor a
// positive interval are ignored.
func NewScheduler(queue jobEnqueuer, logger *zap.Logger, scheduled ...ScheduledJob) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	active := make([]ScheduledJob, 0, len(scheduled))
	for _, job := range scheduled {
		if job.spec() != "" {
			active = append(active, job)
		}
	}
	cl := cronLogger{log: logger.Sugar()}
	return &Scheduler{
		queue:  queue,
		jobs:   active,
		logger: logger,
		cron:   cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl))),
	}
}

// Trigger enqueues a single run and returns its job id. Runs at the current
// time coalesce with one already waiting for the same reconciler; runs with an
// override are always queued.
func (s *Scheduler) Trigger(name string, override *time.Time) (string, error) {
	job := jobs.Job{Type: JobTypeReconcile, Payload: RunRequest{Name: name, Now: override}}
	if override == nil {
		job.Key = name
	}
	id, err := s.queue.Enqueue(job)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to enqueue reconciler run")
	}
	return id, nil
}

// Start registers every scheduled job, enqueues one run of each right away and
// starts the cron.
func (s *Scheduler) Start() error {
	for _, job := range s.jobs {
		job := job
		if _, err := s.cron.AddFunc(job.spec(), func() { s.tick(job) }); err != nil {
			return fmt.Errorf("schedule %s %q: %w", job.Name, job.spec(), err)
		}
	}
	for _, job := range s.jobs {
		s.tick(job)
	}
	s.cron.Start()
	s.logger.Info("scheduler started", zap.Int("jobs", len(s.jobs)))
	return nil
}

// Stop halts the cron. The returned context is done once in-flight ticks have
// returned.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

func (s *Scheduler) tick(job ScheduledJob) {
	id, err := s.Trigger(job.Name, nil)
	if err != nil {
		s.logger.Warn("scheduled run not enqueued", zap.String("reconciler", job.Name), zap.Error(err))
		return
	}
	s.logger.Debug("scheduled run enqueued", zap.String("reconciler", job.Name), zap.String("job_id", id))
}
