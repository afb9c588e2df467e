// Package queue is the durable job queue behind background mail delivery.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var ErrClosed = errors.New("queue closed")

// Job is one unit of background work. Attempts counts failed runs.
type Job struct {
	ID         string     `json:"jid"`
	Queue      string     `json:"queue"`
	Kind       string     `json:"kind"`
	EntityID   uint64     `json:"entity_id"`
	Attempts   int        `json:"attempts"`
	EnqueuedAt time.Time  `json:"enqueued_at"`
	RetryAt    *time.Time `json:"retry_at,omitempty"`
	LastError  string     `json:"last_error,omitempty"`
}

// NewJob returns a job with a fresh id, ready to enqueue.
func NewJob(queue, kind string, entityID uint64) *Job {
	return &Job{
		ID:         uuid.NewString(),
		Queue:      queue,
		Kind:       kind,
		EntityID:   entityID,
		EnqueuedAt: time.Now().UTC(),
	}
}

func (j *Job) Encode() ([]byte, error) {
	return json.Marshal(j)
}

func Decode(payload []byte) (*Job, error) {
	var job Job
	if err := json.Unmarshal(payload, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// Stats mirrors the counters exposed on /metrics and /health.
type Stats struct {
	Processed int64
	Failed    int64
	Enqueued  int64
	Scheduled int64
	Dead      int64
	Workers   int64
}

type Queue interface {
	// Enqueue appends job to job.Queue.
	Enqueue(ctx context.Context, job *Job) error

	// Dequeue blocks up to timeout for the next job on queue.
	// It returns nil, nil when nothing arrived in time.
	Dequeue(ctx context.Context, queue string, timeout time.Duration) (*Job, error)

	// Retry schedules job to run again at the given time and counts a failure.
	Retry(ctx context.Context, job *Job, at time.Time) error

	// Kill moves job to the dead set and counts a failure.
	Kill(ctx context.Context, job *Job, reason string) error

	// MarkProcessed counts a successful run.
	MarkProcessed(ctx context.Context, job *Job) error

	// PromoteDue moves scheduled jobs whose retry time has passed back onto their queue.
	PromoteDue(ctx context.Context, now time.Time) (int, error)

	// Heartbeat marks a worker alive for ttl.
	Heartbeat(ctx context.Context, workerID string, ttl time.Duration) error

	Stats(ctx context.Context) (Stats, error)
	Ping(ctx context.Context) error
	Close() error
}

// Open returns a redis queue for a redis:// URL and an in-process queue when url is empty.
func Open(url string) (Queue, error) {
	if strings.TrimSpace(url) == "" {
		return NewMemoryQueue(), nil
	}
	return NewRedisQueue(url)
}
