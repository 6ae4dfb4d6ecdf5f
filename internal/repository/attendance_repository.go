package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-adp-reconciler/internal/models"
)

// AttendanceRepository persists reconciled attendance records. It never updates
// or deletes rows.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository constructs the repository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// ExistingKeys returns the (slot, date) keys already recorded for userID. An
// empty fromDate returns every key.
func (r *AttendanceRepository) ExistingKeys(ctx context.Context, userID, fromDate string) (map[models.AttendanceKey]struct{}, error) {
	query := `SELECT time_slot_id, to_char(attendance_date, 'YYYY-MM-DD') AS attendance_date
FROM attendance_records WHERE user_id = $1`
	args := []interface{}{userID}
	if fromDate != "" {
		args = append(args, fromDate)
		query += fmt.Sprintf(" AND attendance_date >= $%d::date", len(args))
	}
	rows := []struct {
		TimeSlotID string `db:"time_slot_id"`
		Date       string `db:"attendance_date"`
	}{}
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list existing attendance keys: %w", err)
	}
	keys := make(map[models.AttendanceKey]struct{}, len(rows))
	for _, row := range rows {
		keys[models.AttendanceKey{TimeSlotID: row.TimeSlotID, Date: row.Date}] = struct{}{}
	}
	return keys, nil
}

// InsertIfAbsent writes record unless one already exists for its key. It
// reports whether a row was created.
func (r *AttendanceRepository) InsertIfAbsent(ctx context.Context, record *models.AttendanceRecord) (bool, error) {
	now := time.Now().UTC()
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = record.CreatedAt
	const query = `INSERT INTO attendance_records
	(id, user_id, time_slot_id, attendance_date, status, leave_request_id, qr_code_id, scanned_at, device, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, NULL, NULL, $8, $9)
ON CONFLICT (user_id, time_slot_id, attendance_date) DO NOTHING
RETURNING id`
	var insertedID string
	err := r.db.QueryRowxContext(ctx, query,
		record.ID,
		record.UserID,
		record.TimeSlotID,
		record.AttendanceDate.Format("2006-01-02"),
		record.Status,
		record.LeaveRequestID,
		record.QRCodeID,
		record.CreatedAt,
		record.UpdatedAt,
	).Scan(&insertedID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("insert attendance record for user %s slot %s: %w", record.UserID, record.TimeSlotID, err)
	}
	return true, nil
}
