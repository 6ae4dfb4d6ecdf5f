package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-adp-reconciler/internal/handler"
	"github.com/noah-isme/sma-adp-reconciler/internal/models"
	"github.com/noah-isme/sma-adp-reconciler/internal/repository"
	"github.com/noah-isme/sma-adp-reconciler/internal/service"
	"github.com/noah-isme/sma-adp-reconciler/pkg/cache"
	"github.com/noah-isme/sma-adp-reconciler/pkg/clock"
	"github.com/noah-isme/sma-adp-reconciler/pkg/config"
	"github.com/noah-isme/sma-adp-reconciler/pkg/database"
	"github.com/noah-isme/sma-adp-reconciler/pkg/jobs"
	"github.com/noah-isme/sma-adp-reconciler/pkg/lock"
	"github.com/noah-isme/sma-adp-reconciler/pkg/logger"
)

// app holds the wired dependency graph shared by every command.
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	db      *sqlx.DB
	redis   *redis.Client
	metrics *service.MetricsService
	runner  *service.Runner
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	a := &app{cfg: cfg, logger: logr, db: db, metrics: service.NewMetricsService()}

	rdb, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		if cfg.Reconcile.LockBackend == config.LockBackendRedis {
			a.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		logr.Warn("redis unavailable, run summaries will not be cached", zap.Error(err))
	} else {
		a.redis = rdb
	}

	a.runner = a.buildRunner()
	return a, nil
}

func (a *app) locker() lock.Locker {
	switch a.cfg.Reconcile.LockBackend {
	case config.LockBackendRedis:
		return lock.NewRedisLocker(a.redis, "lock:")
	case config.LockBackendPostgres:
		return lock.NewPostgresLocker(a.db)
	default:
		a.logger.Warn("reconciler locking disabled, overlapping runs are possible")
		return lock.Nop{}
	}
}

func (a *app) buildRunner() *service.Runner {
	rc := a.cfg.Reconcile

	var history *service.RunHistoryService
	if a.redis != nil {
		store := repository.NewRunHistoryRepository(a.redis, rc.HistorySize)
		history = service.NewRunHistoryService(store, a.metrics, rc.SummaryTTL, a.logger.Named("history"))
	}

	users := repository.NewUserRepository(a.db)
	slots := repository.NewTimeSlotRepository(a.db)
	leaves := repository.NewLeaveRequestRepository(a.db)
	attendance := repository.NewAttendanceRepository(a.db)
	qrCodes := repository.NewQRCodeRepository(a.db)
	missions := repository.NewMissionRepository()

	var reconcilers []service.Reconciler
	if rc.Attendance.Enabled {
		resolver := service.NewSlotResolver(slots, rc.AttendanceLookbackDays, a.logger.Named("slots"))
		reconcilers = append(reconcilers, service.NewAttendanceReconciler(users, resolver, leaves, attendance, qrCodes, a.logger.Named("attendance")))
	}
	if rc.LeaveExpiry.Enabled {
		reconcilers = append(reconcilers, service.NewLeaveExpiryReconciler(leaves, rc.LeaveExpiryBasis, a.logger.Named("leave_expiry")))
	}
	if rc.Missions.Enabled {
		reconcilers = append(reconcilers, service.NewMissionReconciler(a.db, missions, a.logger.Named("missions")))
	}

	return service.NewRunner(
		clock.NewSystem(rc.Location()),
		a.locker(),
		a.metrics,
		history,
		a.logger,
		service.RunnerConfig{LockTTL: rc.LockTTL},
		reconcilers...,
	)
}

func (a *app) newQueue() *jobs.Queue {
	rc := a.cfg.Reconcile
	return jobs.NewQueue("reconcilers", service.NewRunJobHandler(a.runner), jobs.QueueConfig{
		Workers:    rc.Workers,
		MaxRetries: rc.MaxRetries,
		RetryDelay: rc.RetryDelay,
		Logger:     a.logger.Named("queue"),
	})
}

func (a *app) scheduledJobs() []service.ScheduledJob {
	rc := a.cfg.Reconcile
	var scheduled []service.ScheduledJob
	add := func(name string, job config.JobConfig) {
		if job.Enabled {
			scheduled = append(scheduled, service.ScheduledJob{
				Name:     name,
				Interval: job.Interval,
				Cron:     cronInZone(job.Cron, rc.Timezone),
			})
		}
	}
	add(models.ReconcilerAttendance, rc.Attendance)
	add(models.ReconcilerLeaveExpiry, rc.LeaveExpiry)
	add(models.ReconcilerMissions, rc.Missions)
	return scheduled
}

// cronInZone pins a cron spec to the reconcile time zone unless it names one.
func cronInZone(spec, tz string) string {
	if spec == "" || strings.HasPrefix(spec, "CRON_TZ=") || strings.HasPrefix(spec, "TZ=") {
		return spec
	}
	return "CRON_TZ=" + tz + " " + spec
}

func (a *app) newReconcileService(trigger *service.Scheduler) *service.ReconcileService {
	return service.NewReconcileService(a.runner, trigger, validator.New(), a.logger.Named("trigger"))
}

// readinessChecks probes the stores the reconcilers depend on.
func (a *app) readinessChecks() map[string]handler.Check {
	checks := map[string]handler.Check{"postgres": a.db.PingContext}
	if a.redis != nil {
		checks["redis"] = func(ctx context.Context) error { return a.redis.Ping(ctx).Err() }
	}
	return checks
}

// Close releases connections.
func (a *app) Close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("failed to close redis", zap.Error(err))
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("failed to close postgres", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}
