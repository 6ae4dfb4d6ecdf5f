package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-adp-reconciler/internal/models"
)

// MissionRepository performs predicate-scoped status updates on missions. Both
// updates run on a caller-provided transaction.
type MissionRepository struct{}

// NewMissionRepository constructs the repository.
func NewMissionRepository() *MissionRepository {
	return &MissionRepository{}
}

// MarkOverdueTx flags pending or in-progress missions whose due date has passed.
func (r *MissionRepository) MarkOverdueTx(ctx context.Context, tx sqlx.ExecerContext, today string, at time.Time) (int64, error) {
	const query = `UPDATE missions SET status = $1, updated_at = $2
WHERE status IN ($3, $4) AND due_date < $5::date`
	res, err := tx.ExecContext(ctx, query,
		models.MissionStatusOverdue, at,
		models.MissionStatusPending, models.MissionStatusInProgress,
		today,
	)
	if err != nil {
		return 0, fmt.Errorf("mark overdue missions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("mark overdue missions rows: %w", err)
	}
	return n, nil
}

// ActivateTx starts pending missions whose window contains today.
func (r *MissionRepository) ActivateTx(ctx context.Context, tx sqlx.ExecerContext, today string, at time.Time) (int64, error) {
	const query = `UPDATE missions SET status = $1, updated_at = $2
WHERE status = $3 AND assigned_date <= $4::date AND due_date >= $4::date`
	res, err := tx.ExecContext(ctx, query,
		models.MissionStatusInProgress, at,
		models.MissionStatusPending,
		today,
	)
	if err != nil {
		return 0, fmt.Errorf("activate missions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("activate missions rows: %w", err)
	}
	return n, nil
}
