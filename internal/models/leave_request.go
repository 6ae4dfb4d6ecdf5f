package models

import (
	"fmt"
	"strings"
	"time"
)

// LeaveStatus is the approval state of a leave request.
type LeaveStatus string

const (
	LeaveStatusPending  LeaveStatus = "PENDING"
	LeaveStatusApproved LeaveStatus = "APPROVED"
	LeaveStatusRejected LeaveStatus = "REJECTED"
)

// LeaveRequest is an absence request for a date range. Dates are stored as text
// and may be malformed; callers parse them with ParseLeaveDate.
type LeaveRequest struct {
	ID         string      `db:"id" json:"id"`
	UserID     string      `db:"user_id" json:"user_id"`
	StartDate  string      `db:"start_date" json:"start_date"`
	EndDate    string      `db:"end_date" json:"end_date"`
	Status     LeaveStatus `db:"status" json:"status"`
	ApprovedBy *string     `db:"approved_by" json:"approved_by,omitempty"`
	ApprovedAt *time.Time  `db:"approved_at" json:"approved_at,omitempty"`
	UpdatedAt  time.Time   `db:"updated_at" json:"updated_at"`
}

var leaveDateLayouts = []string{"2006-01-02", "2006-01-02 15:04:05", time.RFC3339}

// ParseLeaveDate parses a stored leave date and returns that calendar day at
// midnight in loc. The day is taken as written, even when the value carries
// its own offset.
func ParseLeaveDate(raw string, loc *time.Location) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range leaveDateLayouts {
		t, err := time.ParseInLocation(layout, raw, loc)
		if err == nil {
			y, m, d := t.Date()
			return time.Date(y, m, d, 0, 0, 0, 0, loc), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable leave date %q", raw)
}
