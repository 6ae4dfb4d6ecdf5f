package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-adp-reconciler/internal/models"
	"github.com/noah-isme/sma-adp-reconciler/pkg/clock"
	appErrors "github.com/noah-isme/sma-adp-reconciler/pkg/errors"
)

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

type missionUpdater interface {
	MarkOverdueTx(ctx context.Context, tx sqlx.ExecerContext, today string, at time.Time) (int64, error)
	ActivateTx(ctx context.Context, tx sqlx.ExecerContext, today string, at time.Time) (int64, error)
}

// MissionReconciler advances mission status from dates alone. Completed
// missions are never touched.
type MissionReconciler struct {
	tx       txProvider
	missions missionUpdater
	logger   *zap.Logger
}

// NewMissionReconciler constructs the reconciler.
func NewMissionReconciler(tx txProvider, missions missionUpdater, logger *zap.Logger) *MissionReconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MissionReconciler{tx: tx, missions: missions, logger: logger}
}

// Name implements Reconciler.
func (r *MissionReconciler) Name() string { return models.ReconcilerMissions }

// Reconcile implements Reconciler.
func (r *MissionReconciler) Reconcile(ctx context.Context, now time.Time) (map[string]int, error) {
	result, err := r.Run(ctx, now)
	if err != nil {
		return nil, err
	}
	return result.Counts(), nil
}

// Run applies both lifecycle rules in one transaction. Overdue is applied first
// so a mission already past due is never activated.
func (r *MissionReconciler) Run(ctx context.Context, now time.Time) (result *models.MissionRunResult, err error) {
	today := clock.FormatDate(clock.StartOfDay(now))
	at := now.UTC()

	tx, err := r.tx.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrReconcileFailed.Code, appErrors.ErrReconcileFailed.Status, "failed to begin mission transaction")
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				r.logger.Warn("mission transaction rollback failed", zap.Error(rbErr))
			}
		}
	}()

	overdue, err := r.missions.MarkOverdueTx(ctx, tx, today, at)
	if err != nil {
		err = appErrors.Wrap(err, appErrors.ErrReconcileFailed.Code, appErrors.ErrReconcileFailed.Status, "failed to mark overdue missions")
		return nil, err
	}
	started, err := r.missions.ActivateTx(ctx, tx, today, at)
	if err != nil {
		err = appErrors.Wrap(err, appErrors.ErrReconcileFailed.Code, appErrors.ErrReconcileFailed.Status, "failed to activate missions")
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrReconcileFailed.Code, appErrors.ErrReconcileFailed.Status, "failed to commit mission transaction")
		return nil, err
	}

	r.logger.Info("mission lifecycle applied",
		zap.String("today", today),
		zap.Int64("overdue", overdue),
		zap.Int64("in_progress", started),
	)
	return &models.MissionRunResult{Overdue: overdue, InProgress: started}, nil
}
