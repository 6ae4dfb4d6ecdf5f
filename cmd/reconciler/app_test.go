package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-adp-reconciler/internal/models"
	"github.com/noah-isme/sma-adp-reconciler/internal/service"
	"github.com/noah-isme/sma-adp-reconciler/pkg/config"
)

func TestScheduledJobs(t *testing.T) {
	a := &app{cfg: &config.Config{Reconcile: config.ReconcileConfig{
		Timezone:    "Asia/Jakarta",
		Attendance:  config.JobConfig{Enabled: true, Interval: 15 * time.Minute},
		LeaveExpiry: config.JobConfig{Enabled: true, Interval: 24 * time.Hour, Cron: "5 0 * * *"},
		Missions:    config.JobConfig{Enabled: false, Interval: time.Hour},
	}}}

	jobs := a.scheduledJobs()
	require.Len(t, jobs, 2)
	assert.Equal(t, service.ScheduledJob{Name: models.ReconcilerAttendance, Interval: 15 * time.Minute}, jobs[0])
	assert.Equal(t, "CRON_TZ=Asia/Jakarta 5 0 * * *", jobs[1].Cron)
}

func TestCronInZone(t *testing.T) {
	assert.Empty(t, cronInZone("", "UTC"))
	assert.Equal(t, "CRON_TZ=UTC @daily", cronInZone("@daily", "UTC"))
	assert.Equal(t, "TZ=Europe/Paris 0 1 * * *", cronInZone("TZ=Europe/Paris 0 1 * * *", "UTC"))
}
