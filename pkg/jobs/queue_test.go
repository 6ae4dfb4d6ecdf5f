package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu    sync.Mutex
	calls []Job
	done  chan struct{}
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func TestQueueRetriesTransientFailures(t *testing.T) {
	rec := &recorder{done: make(chan struct{})}
	handler := func(ctx context.Context, job Job) error {
		rec.mu.Lock()
		rec.calls = append(rec.calls, job)
		n := len(rec.calls)
		rec.mu.Unlock()
		if n < 2 {
			return errors.New("db hiccup")
		}
		close(rec.done)
		return nil
	}
	q := NewQueue("test", handler, QueueConfig{Workers: 1, MaxRetries: 2, RetryDelay: 10 * time.Millisecond})
	q.Start(context.Background())
	defer q.Stop()

	id, err := q.Enqueue(Job{Type: "missions"})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	select {
	case <-rec.done:
	case <-time.After(2 * time.Second):
		t.Fatal("job was not retried")
	}
	assert.Equal(t, 2, rec.count())
	assert.Equal(t, 1, rec.calls[1].Attempt)
	assert.Equal(t, id, rec.calls[1].ID)
}

func TestQueueDropsPermanentFailures(t *testing.T) {
	rec := &recorder{}
	handler := func(ctx context.Context, job Job) error {
		rec.mu.Lock()
		rec.calls = append(rec.calls, job)
		rec.mu.Unlock()
		return Permanent(errors.New("already running"))
	}
	q := NewQueue("test", handler, QueueConfig{Workers: 1, MaxRetries: 3, RetryDelay: 5 * time.Millisecond})
	q.Start(context.Background())

	_, err := q.Enqueue(Job{Type: "attendance"})
	require.NoError(t, err)

	time.Sleep(100 * time.Millisecond)
	q.Stop()
	assert.Equal(t, 1, rec.count())
}

func TestQueueRejectsBeforeStart(t *testing.T) {
	q := NewQueue("idle", func(context.Context, Job) error { return nil }, QueueConfig{})
	_, err := q.Enqueue(Job{Type: "missions"})
	require.Error(t, err)
}

func TestPermanentHelpers(t *testing.T) {
	assert.Nil(t, Permanent(nil))
	base := errors.New("x")
	wrapped := Permanent(base)
	assert.True(t, IsPermanent(wrapped))
	assert.ErrorIs(t, wrapped, base)
	assert.False(t, IsPermanent(base))
}

func TestQueueCoalescesKeyedJobs(t *testing.T) {
	release := make(chan struct{})
	rec := &recorder{}
	handler := func(ctx context.Context, job Job) error {
		rec.mu.Lock()
		rec.calls = append(rec.calls, job)
		rec.mu.Unlock()
		<-release
		return nil
	}
	q := NewQueue("test", handler, QueueConfig{Workers: 1, BufferSize: 4})
	q.Start(context.Background())
	defer q.Stop()

	running, err := q.Enqueue(Job{Type: "reconcile", Key: "missions"})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return rec.count() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, q.Pending())

	waiting, err := q.Enqueue(Job{Type: "reconcile", Key: "missions"})
	require.NoError(t, err)
	assert.NotEqual(t, running, waiting)

	again, err := q.Enqueue(Job{Type: "reconcile", Key: "missions"})
	require.NoError(t, err)
	assert.Equal(t, waiting, again)
	assert.Equal(t, 1, q.Pending())

	other, err := q.Enqueue(Job{Type: "reconcile", Key: "attendance"})
	require.NoError(t, err)
	assert.NotEqual(t, waiting, other)
	assert.Equal(t, 2, q.Pending())

	close(release)
	require.Eventually(t, func() bool { return rec.count() == 3 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, q.Pending())
}

func TestQueueReportsFullBuffer(t *testing.T) {
	block := make(chan struct{})
	q := NewQueue("test", func(context.Context, Job) error { <-block; return nil }, QueueConfig{Workers: 1, BufferSize: 1})
	q.Start(context.Background())
	defer q.Stop()
	defer close(block)

	_, err := q.Enqueue(Job{Type: "reconcile"})
	require.NoError(t, err)

	var full error
	for i := 0; i < 3 && full == nil; i++ {
		_, full = q.Enqueue(Job{Type: "reconcile"})
	}
	assert.ErrorIs(t, full, ErrQueueFull)
}
