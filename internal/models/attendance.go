package models

import "time"

// AttendanceStatus represents the status for attendance records.
type AttendanceStatus string

const (
	AttendanceStatusPresent AttendanceStatus = "PRESENT"
	AttendanceStatusLate    AttendanceStatus = "LATE"
	AttendanceStatusAbsent  AttendanceStatus = "ABSENT"
	AttendanceStatusOnLeave AttendanceStatus = "ON_LEAVE"
	AttendanceStatusNoClass AttendanceStatus = "NO_CLASS"
)

// Valid returns true when the status is a supported value.
func (s AttendanceStatus) Valid() bool {
	switch s {
	case AttendanceStatusPresent, AttendanceStatusLate, AttendanceStatusAbsent, AttendanceStatusOnLeave, AttendanceStatusNoClass:
		return true
	default:
		return false
	}
}

// AttendanceRecord is unique per (user, slot, date). Scan fields are filled by
// the scan intake path only.
type AttendanceRecord struct {
	ID             string           `db:"id" json:"id"`
	UserID         string           `db:"user_id" json:"user_id"`
	TimeSlotID     string           `db:"time_slot_id" json:"time_slot_id"`
	AttendanceDate time.Time        `db:"attendance_date" json:"attendance_date"`
	Status         AttendanceStatus `db:"status" json:"status"`
	LeaveRequestID *string          `db:"leave_request_id" json:"leave_request_id,omitempty"`
	QRCodeID       *string          `db:"qr_code_id" json:"qr_code_id,omitempty"`
	ScannedAt      *time.Time       `db:"scanned_at" json:"scanned_at,omitempty"`
	Device         *string          `db:"device" json:"device,omitempty"`
	CreatedAt      time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time        `db:"updated_at" json:"updated_at"`
}

// AttendanceKey identifies an attendance record.
type AttendanceKey struct {
	TimeSlotID string
	Date       string
}

// StatusDecision is the outcome of a status strategy for one occurrence.
type StatusDecision struct {
	Status   AttendanceStatus
	Leave    *LeaveRequest
	QRCodeID *string
}
