package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen(t *testing.T) {
	q, err := Open("")
	require.NoError(t, err)
	assert.IsType(t, &MemoryQueue{}, q)

	q, err = Open("redis://localhost:6379/0")
	require.NoError(t, err)
	assert.IsType(t, &RedisQueue{}, q)
	require.NoError(t, q.Close())

	_, err = Open("http://localhost:6379")
	assert.Error(t, err)
}

func TestJob_EncodeDecode(t *testing.T) {
	job := NewJob("mailers", "welcome", 42)
	job.Attempts = 2

	payload, err := job.Encode()
	require.NoError(t, err)
	assert.Contains(t, string(payload), `"jid":"`+job.ID+`"`)

	decoded, err := Decode(payload)
	require.NoError(t, err)
	assert.Equal(t, job.Kind, decoded.Kind)
	assert.Equal(t, uint64(42), decoded.EntityID)
	assert.Equal(t, 2, decoded.Attempts)
}

func TestMemoryQueue_FIFO(t *testing.T) {
	q := NewMemoryQueue()
	ctx := context.Background()

	first := NewJob("mailers", "welcome", 1)
	second := NewJob("mailers", "welcome", 2)
	require.NoError(t, q.Enqueue(ctx, first))
	require.NoError(t, q.Enqueue(ctx, second))

	got, err := q.Dequeue(ctx, "mailers", time.Second)
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)

	got, err = q.Dequeue(ctx, "mailers", time.Second)
	require.NoError(t, err)
	assert.Equal(t, second.ID, got.ID)
}

func TestMemoryQueue_DequeueTimeout(t *testing.T) {
	q := NewMemoryQueue()

	job, err := q.Dequeue(context.Background(), "mailers", 10*time.Millisecond)

	assert.NoError(t, err)
	assert.Nil(t, job)
}

func TestMemoryQueue_DequeueWakesOnEnqueue(t *testing.T) {
	q := NewMemoryQueue()
	ctx := context.Background()

	var (
		wg  sync.WaitGroup
		got *Job
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		got, _ = q.Dequeue(ctx, "mailers", 5*time.Second)
	}()

	time.Sleep(10 * time.Millisecond)
	job := NewJob("mailers", "welcome", 7)
	require.NoError(t, q.Enqueue(ctx, job))
	wg.Wait()

	require.NotNil(t, got)
	assert.Equal(t, job.ID, got.ID)
}

func TestMemoryQueue_DequeueHonoursContext(t *testing.T) {
	q := NewMemoryQueue()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := q.Dequeue(ctx, "mailers", time.Second)

	assert.ErrorIs(t, err, context.Canceled)
}

func TestMemoryQueue_RetryAndPromote(t *testing.T) {
	q := NewMemoryQueue()
	ctx := context.Background()
	now := time.Now()

	job := NewJob("mailers", "welcome", 1)
	require.NoError(t, q.Retry(ctx, job, now.Add(time.Minute)))

	promoted, err := q.PromoteDue(ctx, now)
	require.NoError(t, err)
	assert.Zero(t, promoted)

	promoted, err = q.PromoteDue(ctx, now.Add(2*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, promoted)

	jobs := q.Jobs("mailers")
	require.Len(t, jobs, 1)
	assert.Nil(t, jobs[0].RetryAt)

	stats, err := q.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{Failed: 1, Enqueued: 1}, stats)
}

func TestMemoryQueue_KillAndStats(t *testing.T) {
	q := NewMemoryQueue()
	ctx := context.Background()

	job := NewJob("mailers", "welcome", 1)
	require.NoError(t, q.Kill(ctx, job, "smtp down"))
	require.NoError(t, q.MarkProcessed(ctx, NewJob("mailers", "welcome", 2)))
	require.NoError(t, q.Heartbeat(ctx, "worker-1", time.Minute))

	stats, err := q.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Dead)
	assert.Equal(t, int64(1), stats.Failed)
	assert.Equal(t, int64(1), stats.Processed)
	assert.Equal(t, int64(1), stats.Workers)
	assert.Equal(t, "smtp down", q.Dead()[0].LastError)
}

func TestMemoryQueue_HeartbeatExpires(t *testing.T) {
	q := NewMemoryQueue()
	current := time.Now()
	q.now = func() time.Time { return current }

	require.NoError(t, q.Heartbeat(context.Background(), "worker-1", time.Second))
	current = current.Add(2 * time.Second)

	stats, err := q.Stats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.Workers)
}

func TestMemoryQueue_Close(t *testing.T) {
	q := NewMemoryQueue()
	require.NoError(t, q.Close())

	assert.ErrorIs(t, q.Ping(context.Background()), ErrClosed)
	assert.ErrorIs(t, q.Enqueue(context.Background(), NewJob("mailers", "welcome", 1)), ErrClosed)
	_, err := q.Dequeue(context.Background(), "mailers", time.Second)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestRedisKeys(t *testing.T) {
	assert.Equal(t, "taskflow:queue:mailers", queueKey("mailers"))
	assert.Equal(t, "taskflow:worker:abc", workerKey("abc"))
}
