package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-adp-reconciler/internal/models"
	"github.com/noah-isme/sma-adp-reconciler/pkg/clock"
	"github.com/noah-isme/sma-adp-reconciler/pkg/config"
	appErrors "github.com/noah-isme/sma-adp-reconciler/pkg/errors"
)

type pendingLeaveStore interface {
	ListPending(ctx context.Context) ([]models.LeaveRequest, error)
	Reject(ctx context.Context, id string, at time.Time) (bool, error)
}

// LeaveExpiryReconciler auto-rejects pending leave requests whose comparison
// date has passed.
type LeaveExpiryReconciler struct {
	repo   pendingLeaveStore
	basis  string
	logger *zap.Logger
}

// NewLeaveExpiryReconciler constructs the reconciler. basis selects which date is
// compared against today: config.LeaveExpiryBasisStartDate (default) or
// config.LeaveExpiryBasisEndDate.
func NewLeaveExpiryReconciler(repo pendingLeaveStore, basis string, logger *zap.Logger) *LeaveExpiryReconciler {
	if basis != config.LeaveExpiryBasisEndDate {
		basis = config.LeaveExpiryBasisStartDate
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LeaveExpiryReconciler{repo: repo, basis: basis, logger: logger}
}

// Name implements Reconciler.
func (r *LeaveExpiryReconciler) Name() string { return models.ReconcilerLeaveExpiry }

// Reconcile implements Reconciler.
func (r *LeaveExpiryReconciler) Reconcile(ctx context.Context, now time.Time) (map[string]int, error) {
	result, err := r.Run(ctx, now)
	if result == nil {
		return nil, err
	}
	return result.Counts(), err
}

// Run rejects every pending request whose comparison date is before the
// calendar date of now.
func (r *LeaveExpiryReconciler) Run(ctx context.Context, now time.Time) (*models.LeaveExpiryRunResult, error) {
	today := clock.StartOfDay(now)
	r.logger.Info("leave expiry run", zap.String("basis", r.basis), zap.String("today", clock.FormatDate(today)))

	pending, err := r.repo.ListPending(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrReconcileFailed.Code, appErrors.ErrReconcileFailed.Status, "failed to list pending leave requests")
	}

	result := &models.LeaveExpiryRunResult{}
	for _, req := range pending {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		result.Examined++

		raw := req.StartDate
		if r.basis == config.LeaveExpiryBasisEndDate {
			raw = req.EndDate
		}
		date, err := models.ParseLeaveDate(raw, today.Location())
		if err != nil {
			r.logger.Warn("skipping leave request with malformed date",
				zap.String("leave_request_id", req.ID),
				zap.String(r.basis, raw),
			)
			result.Skipped++
			continue
		}
		if !today.After(date) {
			continue
		}

		rejected, err := r.repo.Reject(ctx, req.ID, now.UTC())
		if err != nil {
			r.logger.Error("failed to reject expired leave request", zap.String("leave_request_id", req.ID), zap.Error(err))
			result.Failed++
			continue
		}
		if rejected {
			result.Rejected++
		}
	}
	return result, nil
}
