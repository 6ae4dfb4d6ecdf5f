package dto

import (
	"time"

	"github.com/noah-isme/sma-adp-reconciler/internal/models"
)

// TriggerRunRequest asks for a reconciler run. Now, when set, replaces the
// current time for that run.
type TriggerRunRequest struct {
	Now  string `json:"now" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	Wait bool   `json:"-"`
}

// TriggerRunResponse describes a queued run.
type TriggerRunResponse struct {
	JobID      string     `json:"job_id"`
	Reconciler string     `json:"reconciler"`
	Status     string     `json:"status"`
	Now        *time.Time `json:"now,omitempty"`
}

// ReconcilerInfo lists a registered reconciler with its latest cached run.
type ReconcilerInfo struct {
	Name    string             `json:"name"`
	LastRun *models.RunSummary `json:"last_run,omitempty"`
}

// RunHistoryQuery pages through recorded runs. Zero means the retained maximum.
type RunHistoryQuery struct {
	Limit int `form:"limit" validate:"omitempty,min=1,max=100"`
}
