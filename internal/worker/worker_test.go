package worker

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yukikurage/taskflow-api/internal/queue"
)

func newTestPool(t *testing.T, maxRetries int) (*Pool, *queue.MemoryQueue, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	q := queue.NewMemoryQueue()
	pool := NewPool(q, Options{Queue: "mailers", Concurrency: 2, MaxRetries: maxRetries, PollTimeout: 20 * time.Millisecond},
		slog.New(slog.NewJSONHandler(&buf, nil)))
	return pool, q, &buf
}

func TestBackoff(t *testing.T) {
	assert.Equal(t, 16*time.Second, Backoff(1))
	assert.Equal(t, 31*time.Second, Backoff(2))
	assert.Equal(t, 96*time.Second, Backoff(3))
}

func TestProcess_Success(t *testing.T) {
	pool, q, _ := newTestPool(t, 3)
	pool.Handle("welcome", func(context.Context, *queue.Job) error { return nil })

	pool.Process(context.Background(), queue.NewJob("mailers", "welcome", 1))

	stats, err := q.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Processed)
	assert.Zero(t, stats.Failed)
}

func TestProcess_RetriesThenDies(t *testing.T) {
	pool, q, logs := newTestPool(t, 3)
	pool.Handle("welcome", func(context.Context, *queue.Job) error { return errors.New("smtp down") })
	ctx := context.Background()

	job := queue.NewJob("mailers", "welcome", 1)
	for attempt := 1; attempt <= 3; attempt++ {
		pool.Process(ctx, job)
		assert.Equal(t, attempt, job.Attempts)
		require.NotNil(t, job.RetryAt)

		promoted, err := q.PromoteDue(ctx, time.Now().Add(time.Hour))
		require.NoError(t, err)
		require.Equal(t, 1, promoted)
		job = q.Jobs("mailers")[0]
		_, err = q.Dequeue(ctx, "mailers", time.Millisecond)
		require.NoError(t, err)
	}

	pool.Process(ctx, job)

	stats, err := q.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Dead)
	assert.Equal(t, int64(4), stats.Failed)
	assert.Zero(t, stats.Scheduled)
	assert.Equal(t, "smtp down", q.Dead()[0].LastError)
	assert.Contains(t, logs.String(), `"event":"job_dead"`)
}

func TestProcess_PermanentSkipsRetries(t *testing.T) {
	pool, q, _ := newTestPool(t, 3)
	pool.Handle("welcome", func(context.Context, *queue.Job) error {
		return Permanent(errors.New("user gone"))
	})

	pool.Process(context.Background(), queue.NewJob("mailers", "welcome", 1))

	stats, err := q.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Dead)
	assert.Zero(t, stats.Scheduled)
}

func TestProcess_UnknownKindIsDead(t *testing.T) {
	pool, q, _ := newTestPool(t, 3)

	pool.Process(context.Background(), queue.NewJob("mailers", "newsletter", 1))

	assert.Len(t, q.Dead(), 1)
}

func TestProcess_PanicIsRetried(t *testing.T) {
	pool, q, _ := newTestPool(t, 3)
	pool.Handle("welcome", func(context.Context, *queue.Job) error { panic("nil pointer") })

	pool.Process(context.Background(), queue.NewJob("mailers", "welcome", 1))

	stats, err := q.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Scheduled)
}

func TestRun_ConsumesAndHeartbeats(t *testing.T) {
	pool, q, _ := newTestPool(t, 3)
	var handled atomic.Int32
	pool.Handle("welcome", func(context.Context, *queue.Job) error {
		handled.Add(1)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = pool.Run(ctx)
	}()

	for i := 0; i < 3; i++ {
		require.NoError(t, q.Enqueue(context.Background(), queue.NewJob("mailers", "welcome", uint64(i))))
	}

	assert.Eventually(t, func() bool { return handled.Load() == 3 }, 2*time.Second, 10*time.Millisecond)

	stats, err := q.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Workers)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("pool did not stop")
	}
}
