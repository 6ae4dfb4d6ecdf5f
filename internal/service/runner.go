package service

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-adp-reconciler/internal/models"
	"github.com/noah-isme/sma-adp-reconciler/pkg/clock"
	appErrors "github.com/noah-isme/sma-adp-reconciler/pkg/errors"
	"github.com/noah-isme/sma-adp-reconciler/pkg/lock"
	"github.com/noah-isme/sma-adp-reconciler/pkg/logger"
)

// Reconciler is a periodic job deriving stored status from the current time.
type Reconciler interface {
	Name() string
	Reconcile(ctx context.Context, now time.Time) (map[string]int, error)
}

// RunnerConfig tunes lock and summary retention.
type RunnerConfig struct {
	LockTTL time.Duration
}

// Runner executes reconcilers under a per-reconciler lock and reports each run.
type Runner struct {
	reconcilers map[string]Reconciler
	clock       clock.Clock
	locker      lock.Locker
	metrics     *MetricsService
	history     *RunHistoryService
	logger      *zap.Logger
	cfg         RunnerConfig
}

// NewRunner registers reconcilers by name.
func NewRunner(clk clock.Clock, locker lock.Locker, metrics *MetricsService, history *RunHistoryService, logger *zap.Logger, cfg RunnerConfig, reconcilers ...Reconciler) *Runner {
	if clk == nil {
		clk = clock.NewSystem(time.UTC)
	}
	if locker == nil {
		locker = lock.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 15 * time.Minute
	}
	registry := make(map[string]Reconciler, len(reconcilers))
	for _, rec := range reconcilers {
		registry[rec.Name()] = rec
	}
	return &Runner{
		reconcilers: registry,
		clock:       clk,
		locker:      locker,
		metrics:     metrics,
		history:     history,
		logger:      logger,
		cfg:         cfg,
	}
}

// Names lists the registered reconcilers in sorted order.
func (r *Runner) Names() []string {
	names := make([]string, 0, len(r.reconcilers))
	for name := range r.reconcilers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Has reports whether name is registered.
func (r *Runner) Has(name string) bool {
	_, ok := r.reconciler(name)
	return ok
}

func (r *Runner) reconciler(name string) (Reconciler, bool) {
	rec, ok := r.reconcilers[name]
	return rec, ok
}

// Run executes the named reconciler once. override, when set, replaces the
// current time for this run. A run whose lock is held elsewhere is skipped with
// ErrRunInProgress.
func (r *Runner) Run(ctx context.Context, name string, override *time.Time) (*models.RunSummary, error) {
	rec, ok := r.reconciler(name)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "unknown reconciler "+name)
	}

	clk := r.clock
	if override != nil {
		clk = clock.At(r.clock, *override)
	}
	summary := &models.RunSummary{
		RunID:      uuid.NewString(),
		Reconciler: name,
		Now:        clk.Now(),
		StartedAt:  time.Now().UTC(),
	}
	log := logger.ForReconciler(r.logger, name, summary.RunID)

	lease, err := r.locker.Acquire(ctx, "reconciler:"+name, r.cfg.LockTTL)
	if err != nil {
		if errors.Is(err, lock.ErrNotAcquired) {
			summary.Outcome = models.RunOutcomeSkipped
			summary.FinishedAt = time.Now().UTC()
			r.metrics.ObserveRun(summary)
			log.Info("reconciler run skipped, previous run still in progress")
			return summary, appErrors.Clone(appErrors.ErrRunInProgress, "reconciler "+name+" is already running")
		}
		log.Error("failed to acquire reconciler lock", zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to acquire reconciler lock")
	}
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := lease.Release(releaseCtx); err != nil {
			log.Warn("failed to release reconciler lock", zap.Error(err))
		}
	}()

	log.Info("reconciler run started", zap.Time("now", summary.Now))
	counts, runErr := rec.Reconcile(ctx, summary.Now)
	summary.FinishedAt = time.Now().UTC()
	summary.Counts = counts
	if summary.Counts == nil {
		summary.Counts = map[string]int{}
	}

	fields := []zap.Field{
		zap.Any("counts", summary.Counts),
		zap.Duration("duration", summary.FinishedAt.Sub(summary.StartedAt)),
	}
	if runErr != nil {
		summary.Outcome = models.RunOutcomeFailed
		summary.Error = runErr.Error()
		log.Error("reconciler run failed", append(fields, zap.Error(runErr))...)
	} else {
		summary.Outcome = models.RunOutcomeSucceeded
		log.Info("reconciler run finished", fields...)
	}

	r.metrics.ObserveRun(summary)
	if err := r.history.Record(ctx, summary); err != nil {
		log.Warn("failed to record run summary", zap.Error(err))
	}

	if runErr != nil {
		var appErr *appErrors.Error
		if errors.As(runErr, &appErr) {
			return summary, appErr
		}
		return summary, appErrors.Wrap(runErr, appErrors.ErrReconcileFailed.Code, appErrors.ErrReconcileFailed.Status, "reconciler "+name+" failed")
	}
	return summary, nil
}

// RunAll runs every registered reconciler in name order. Skipped runs are not
// errors; the first failure is returned after all reconcilers have run.
func (r *Runner) RunAll(ctx context.Context, override *time.Time) ([]*models.RunSummary, error) {
	var (
		summaries []*models.RunSummary
		firstErr  error
	)
	for _, name := range r.Names() {
		summary, err := r.Run(ctx, name, override)
		if summary != nil {
			summaries = append(summaries, summary)
		}
		if err != nil && !errors.Is(err, appErrors.ErrRunInProgress) && firstErr == nil {
			firstErr = err
		}
	}
	return summaries, firstErr
}

// LastSummary returns the summary of the latest recorded run of name.
func (r *Runner) LastSummary(ctx context.Context, name string) (*models.RunSummary, error) {
	if err := r.checkHistory(name); err != nil {
		return nil, err
	}
	summary, err := r.history.Latest(ctx, name)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to read run summary")
	}
	if summary == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "no recorded run for "+name)
	}
	return summary, nil
}

// History returns up to limit recorded runs of name, newest first.
func (r *Runner) History(ctx context.Context, name string, limit int) ([]models.RunSummary, error) {
	if err := r.checkHistory(name); err != nil {
		return nil, err
	}
	summaries, err := r.history.History(ctx, name, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to read run history")
	}
	if summaries == nil {
		summaries = []models.RunSummary{}
	}
	return summaries, nil
}

func (r *Runner) checkHistory(name string) error {
	if !r.Has(name) {
		return appErrors.Clone(appErrors.ErrNotFound, "unknown reconciler "+name)
	}
	if !r.history.Enabled() {
		return appErrors.Clone(appErrors.ErrUnavailable, "run summaries are not recorded")
	}
	return nil
}
