package models

// MissionStatus tracks mission progress. Completion is set outside the reconciler.
type MissionStatus string

const (
	MissionStatusPending    MissionStatus = "pending"
	MissionStatusInProgress MissionStatus = "in_progress"
	MissionStatusOverdue    MissionStatus = "overdue"
	MissionStatusCompleted  MissionStatus = "completed"
)
