package main

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/noah-isme/sma-adp-reconciler/internal/models"
	"github.com/noah-isme/sma-adp-reconciler/internal/service"
	"github.com/noah-isme/sma-adp-reconciler/pkg/jobs"
)

func TestStartWorkersKeepsQueueUntilSchedulerStops(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	var handled int32
	queue := jobs.NewQueue("reconcilers", func(ctx context.Context, job jobs.Job) error {
		atomic.AddInt32(&handled, 1)
		return nil
	}, jobs.QueueConfig{Workers: 1})
	scheduler := service.NewScheduler(queue, zap.New(core),
		service.ScheduledJob{Name: models.ReconcilerMissions, Cron: "@every 1s"})

	ctx, cancel := context.WithCancel(context.Background())
	stopWorkers, err := startWorkers(ctx, queue, scheduler, true, zap.New(core))
	require.NoError(t, err)

	// A signal cancels ctx before shutdown stops the workers.
	cancel()
	require.Eventually(t, func() bool { return atomic.LoadInt32(&handled) >= 2 }, 3*time.Second, 20*time.Millisecond)

	stopWorkers()
	assert.Zero(t, logs.FilterMessage("scheduled run not enqueued").Len())
}

func TestStartWorkersWithoutSchedule(t *testing.T) {
	queue := jobs.NewQueue("reconcilers", func(context.Context, jobs.Job) error { return nil }, jobs.QueueConfig{Workers: 1})
	scheduler := service.NewScheduler(queue, nil, service.ScheduledJob{Name: models.ReconcilerMissions, Interval: time.Hour})

	stopWorkers, err := startWorkers(context.Background(), queue, scheduler, false, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 0, queue.Pending(), "no run enqueued without the scheduler")
	stopWorkers()
}

func TestStartWorkersRejectsBadSchedule(t *testing.T) {
	queue := jobs.NewQueue("reconcilers", func(context.Context, jobs.Job) error { return nil }, jobs.QueueConfig{Workers: 1})
	scheduler := service.NewScheduler(queue, nil, service.ScheduledJob{Name: models.ReconcilerMissions, Cron: "never"})

	_, err := startWorkers(context.Background(), queue, scheduler, true, zap.NewNop())
	require.Error(t, err)
	_, err = queue.Enqueue(jobs.Job{Type: service.JobTypeReconcile})
	assert.Error(t, err, "queue is stopped on failure")
}
