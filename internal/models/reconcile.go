package models

import "time"

// Reconciler names.
const (
	ReconcilerAttendance  = "attendance"
	ReconcilerLeaveExpiry = "leave-expiry"
	ReconcilerMissions    = "missions"
)

// RunOutcome labels a finished run.
type RunOutcome string

const (
	RunOutcomeSucceeded RunOutcome = "succeeded"
	RunOutcomeFailed    RunOutcome = "failed"
	RunOutcomeSkipped   RunOutcome = "skipped"
)

// RunSummary is the structured result every reconciler run reports.
type RunSummary struct {
	RunID      string         `json:"run_id"`
	Reconciler string         `json:"reconciler"`
	Outcome    RunOutcome     `json:"outcome"`
	Now        time.Time      `json:"now"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Counts     map[string]int `json:"counts"`
	Error      string         `json:"error,omitempty"`
}

// AttendanceRunResult counts attendance reconciliation outcomes.
type AttendanceRunResult struct {
	Users    int                      `json:"users"`
	Created  map[AttendanceStatus]int `json:"created"`
	Existing int                      `json:"existing"`
	NotEnded int                      `json:"not_ended"`
	Skipped  int                      `json:"skipped"`
	Failed   int                      `json:"failed"`
}

// NewAttendanceRunResult returns a zeroed result.
func NewAttendanceRunResult() *AttendanceRunResult {
	return &AttendanceRunResult{Created: make(map[AttendanceStatus]int)}
}

// TotalCreated sums created records across statuses.
func (r *AttendanceRunResult) TotalCreated() int {
	total := 0
	for _, n := range r.Created {
		total += n
	}
	return total
}

// Counts flattens the result for RunSummary.
func (r *AttendanceRunResult) Counts() map[string]int {
	counts := map[string]int{
		"users":     r.Users,
		"created":   r.TotalCreated(),
		"existing":  r.Existing,
		"not_ended": r.NotEnded,
		"skipped":   r.Skipped,
		"failed":    r.Failed,
	}
	for status, n := range r.Created {
		counts["created_"+string(status)] = n
	}
	return counts
}

// LeaveExpiryRunResult counts leave expiry outcomes.
type LeaveExpiryRunResult struct {
	Examined int `json:"examined"`
	Rejected int `json:"rejected"`
	Skipped  int `json:"skipped"`
	Failed   int `json:"failed"`
}

// Counts flattens the result for RunSummary.
func (r *LeaveExpiryRunResult) Counts() map[string]int {
	return map[string]int{
		"examined": r.Examined,
		"rejected": r.Rejected,
		"skipped":  r.Skipped,
		"failed":   r.Failed,
	}
}

// MissionRunResult counts mission transitions.
type MissionRunResult struct {
	Overdue    int64 `json:"overdue"`
	InProgress int64 `json:"in_progress"`
}

// Counts flattens the result for RunSummary.
func (r *MissionRunResult) Counts() map[string]int {
	return map[string]int{
		"overdue":     int(r.Overdue),
		"in_progress": int(r.InProgress),
	}
}
