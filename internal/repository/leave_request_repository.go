package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-adp-reconciler/internal/models"
)

const leaveRequestColumns = `id, user_id, start_date, end_date, status, approved_by, approved_at, updated_at`

// LeaveRequestRepository persists leave requests.
type LeaveRequestRepository struct {
	db *sqlx.DB
}

// NewLeaveRequestRepository constructs the repository.
func NewLeaveRequestRepository(db *sqlx.DB) *LeaveRequestRepository {
	return &LeaveRequestRepository{db: db}
}

// ListApprovedByUser returns every approved request of userID. Date filtering
// happens in Go because stored dates may be malformed.
func (r *LeaveRequestRepository) ListApprovedByUser(ctx context.Context, userID string) ([]models.LeaveRequest, error) {
	query := `SELECT ` + leaveRequestColumns + ` FROM leave_requests WHERE user_id = $1 AND status = $2 ORDER BY start_date, id`
	var rows []models.LeaveRequest
	if err := r.db.SelectContext(ctx, &rows, query, userID, models.LeaveStatusApproved); err != nil {
		return nil, fmt.Errorf("list approved leave requests: %w", err)
	}
	return rows, nil
}

// ListPending returns every pending request.
func (r *LeaveRequestRepository) ListPending(ctx context.Context) ([]models.LeaveRequest, error) {
	query := `SELECT ` + leaveRequestColumns + ` FROM leave_requests WHERE status = $1 ORDER BY id`
	var rows []models.LeaveRequest
	if err := r.db.SelectContext(ctx, &rows, query, models.LeaveStatusPending); err != nil {
		return nil, fmt.Errorf("list pending leave requests: %w", err)
	}
	return rows, nil
}

// Reject moves a still-pending request to rejected and clears approval metadata.
// It returns false when the row was no longer pending.
func (r *LeaveRequestRepository) Reject(ctx context.Context, id string, at time.Time) (bool, error) {
	const query = `UPDATE leave_requests
SET status = $1, approved_by = NULL, approved_at = NULL, updated_at = $2
WHERE id = $3 AND status = $4`
	res, err := r.db.ExecContext(ctx, query, models.LeaveStatusRejected, at, id, models.LeaveStatusPending)
	if err != nil {
		return false, fmt.Errorf("reject leave request %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("reject leave request %s rows: %w", id, err)
	}
	return affected > 0, nil
}
