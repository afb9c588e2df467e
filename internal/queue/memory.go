package queue

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryQueue keeps jobs in process memory. Used in development and tests.
type MemoryQueue struct {
	mu        sync.Mutex
	queues    map[string][]*Job
	scheduled []*Job
	dead      []*Job
	processed int64
	failed    int64
	workers   map[string]time.Time
	wake      chan struct{}
	closed    bool
	now       func() time.Time
}

func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{
		queues:  make(map[string][]*Job),
		workers: make(map[string]time.Time),
		wake:    make(chan struct{}),
		now:     time.Now,
	}
}

// broadcast wakes every blocked Dequeue. Callers hold mu.
func (m *MemoryQueue) broadcast() {
	close(m.wake)
	m.wake = make(chan struct{})
}

func (m *MemoryQueue) Enqueue(_ context.Context, job *Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	m.queues[job.Queue] = append(m.queues[job.Queue], job)
	m.broadcast()
	return nil
}

func (m *MemoryQueue) Dequeue(ctx context.Context, queue string, timeout time.Duration) (*Job, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		m.mu.Lock()
		if m.closed {
			m.mu.Unlock()
			return nil, ErrClosed
		}
		if jobs := m.queues[queue]; len(jobs) > 0 {
			job := jobs[0]
			m.queues[queue] = jobs[1:]
			m.mu.Unlock()
			return job, nil
		}
		wake := m.wake
		m.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
			return nil, nil
		case <-wake:
		}
	}
}

func (m *MemoryQueue) Retry(_ context.Context, job *Job, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	at = at.UTC()
	job.RetryAt = &at
	m.scheduled = append(m.scheduled, job)
	m.failed++
	return nil
}

func (m *MemoryQueue) Kill(_ context.Context, job *Job, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	job.LastError = reason
	m.dead = append(m.dead, job)
	m.failed++
	return nil
}

func (m *MemoryQueue) MarkProcessed(context.Context, *Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.processed++
	return nil
}

func (m *MemoryQueue) PromoteDue(_ context.Context, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sort.SliceStable(m.scheduled, func(i, j int) bool {
		return m.scheduled[i].RetryAt.Before(*m.scheduled[j].RetryAt)
	})

	promoted := 0
	for len(m.scheduled) > 0 && !m.scheduled[0].RetryAt.After(now) {
		job := m.scheduled[0]
		m.scheduled = m.scheduled[1:]
		job.RetryAt = nil
		m.queues[job.Queue] = append(m.queues[job.Queue], job)
		promoted++
	}
	if promoted > 0 {
		m.broadcast()
	}
	return promoted, nil
}

func (m *MemoryQueue) Heartbeat(_ context.Context, workerID string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.workers[workerID] = m.now().Add(ttl)
	return nil
}

func (m *MemoryQueue) Stats(context.Context) (Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := Stats{
		Processed: m.processed,
		Failed:    m.failed,
		Scheduled: int64(len(m.scheduled)),
		Dead:      int64(len(m.dead)),
	}
	for _, jobs := range m.queues {
		stats.Enqueued += int64(len(jobs))
	}
	now := m.now()
	for id, expires := range m.workers {
		if expires.After(now) {
			stats.Workers++
		} else {
			delete(m.workers, id)
		}
	}
	return stats, nil
}

func (m *MemoryQueue) Ping(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	return nil
}

func (m *MemoryQueue) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.closed {
		m.closed = true
		m.broadcast()
	}
	return nil
}

// Jobs returns a copy of the jobs waiting on queue.
func (m *MemoryQueue) Jobs(queue string) []*Job {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]*Job(nil), m.queues[queue]...)
}

// Dead returns a copy of the dead set.
func (m *MemoryQueue) Dead() []*Job {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]*Job(nil), m.dead...)
}
