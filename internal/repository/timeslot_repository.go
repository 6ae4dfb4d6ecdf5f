package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-adp-reconciler/internal/models"
)

const timeSlotColumns = `ts.id, ts.timetable_id, ts.teacher_id, ts.subject_id, ts.location_id, ts.date, ts.time_window`

// TimeSlotRepository reads timetable slots. Slots are never written here.
type TimeSlotRepository struct {
	db *sqlx.DB
}

// NewTimeSlotRepository constructs the repository.
func NewTimeSlotRepository(db *sqlx.DB) *TimeSlotRepository {
	return &TimeSlotRepository{db: db}
}

// ListForStudent returns the distinct slots of every timetable of every group the
// student belongs to. An empty fromDate disables the look-back filter.
func (r *TimeSlotRepository) ListForStudent(ctx context.Context, studentID, fromDate string) ([]models.TimeSlot, error) {
	query := `SELECT DISTINCT ` + timeSlotColumns + `
FROM time_slots ts
JOIN timetables tt ON tt.id = ts.timetable_id
JOIN group_members gm ON gm.group_id = tt.group_id
WHERE gm.user_id = $1`
	args := []interface{}{studentID}
	if fromDate != "" {
		args = append(args, fromDate)
		query += fmt.Sprintf(" AND ts.date >= $%d", len(args))
	}
	query += " ORDER BY ts.date, ts.id"

	var slots []models.TimeSlot
	if err := r.db.SelectContext(ctx, &slots, query, args...); err != nil {
		return nil, fmt.Errorf("list student time slots: %w", err)
	}
	return slots, nil
}

// ListForTeacher returns every slot taught by teacherID.
func (r *TimeSlotRepository) ListForTeacher(ctx context.Context, teacherID, fromDate string) ([]models.TimeSlot, error) {
	query := `SELECT ` + timeSlotColumns + `
FROM time_slots ts
WHERE ts.teacher_id = $1`
	args := []interface{}{teacherID}
	if fromDate != "" {
		args = append(args, fromDate)
		query += fmt.Sprintf(" AND ts.date >= $%d", len(args))
	}
	query += " ORDER BY ts.date, ts.id"

	var slots []models.TimeSlot
	if err := r.db.SelectContext(ctx, &slots, query, args...); err != nil {
		return nil, fmt.Errorf("list teacher time slots: %w", err)
	}
	return slots, nil
}
