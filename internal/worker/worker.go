// Package worker runs queued jobs on a pool of goroutines with bounded retries.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/yukikurage/taskflow-api/internal/queue"
)

const (
	DefaultPollTimeout = 2 * time.Second
	heartbeatInterval  = 5 * time.Second
	heartbeatTTL       = 30 * time.Second
	promoteInterval    = time.Second
)

// HandlerFunc runs one job. A returned error triggers the retry policy.
type HandlerFunc func(ctx context.Context, job *queue.Job) error

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying; the job goes straight to the dead set.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// Backoff is the delay before retry number attempt (1-based): attempt^4 + 15 seconds.
func Backoff(attempt int) time.Duration {
	return time.Duration(math.Pow(float64(attempt), 4)+15) * time.Second
}

type Options struct {
	Queue       string
	Concurrency int
	MaxRetries  int
	PollTimeout time.Duration
}

// Pool consumes one queue with a fixed number of goroutines.
type Pool struct {
	id       string
	queue    queue.Queue
	opts     Options
	handlers map[string]HandlerFunc
	logger   *slog.Logger
	now      func() time.Time
}

func NewPool(q queue.Queue, opts Options, logger *slog.Logger) *Pool {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.PollTimeout <= 0 {
		opts.PollTimeout = DefaultPollTimeout
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}

	hostname, _ := os.Hostname()
	return &Pool{
		id:       fmt.Sprintf("%s:%d:%s", hostname, os.Getpid(), uuid.NewString()[:8]),
		queue:    q,
		opts:     opts,
		handlers: make(map[string]HandlerFunc),
		logger:   logger,
		now:      time.Now,
	}
}

// Handle registers fn for jobs of kind. It must be called before Run.
func (p *Pool) Handle(kind string, fn HandlerFunc) {
	p.handlers[kind] = fn
}

// Run processes jobs until ctx is cancelled, then waits for in-flight jobs.
func (p *Pool) Run(ctx context.Context) error {
	p.logger.Info("worker pool started",
		"worker_id", p.id,
		"queue", p.opts.Queue,
		"concurrency", p.opts.Concurrency,
	)

	var wg sync.WaitGroup
	wg.Add(2 + p.opts.Concurrency)
	go func() {
		defer wg.Done()
		p.heartbeatLoop(ctx)
	}()
	go func() {
		defer wg.Done()
		p.promoteLoop(ctx)
	}()
	for i := 0; i < p.opts.Concurrency; i++ {
		go func() {
			defer wg.Done()
			p.consume(ctx)
		}()
	}

	wg.Wait()
	p.logger.Info("worker pool stopped", "worker_id", p.id)
	return nil
}

func (p *Pool) consume(ctx context.Context) {
	for ctx.Err() == nil {
		job, err := p.queue.Dequeue(ctx, p.opts.Queue, p.opts.PollTimeout)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, queue.ErrClosed) {
				return
			}
			p.logger.Error("failed to dequeue job", "queue", p.opts.Queue, "error", err.Error())
			sleep(ctx, p.opts.PollTimeout)
			continue
		}
		if job == nil {
			continue
		}
		// A job that was dequeued is finished even if shutdown begins.
		p.Process(context.WithoutCancel(ctx), job)
	}
}

// Process runs a single job and applies the retry policy to its outcome.
func (p *Pool) Process(ctx context.Context, job *queue.Job) {
	err := p.run(ctx, job)
	if err == nil {
		if markErr := p.queue.MarkProcessed(ctx, job); markErr != nil {
			p.logger.Error("failed to mark job processed", "job_id", job.ID, "error", markErr.Error())
		}
		return
	}

	job.Attempts++
	job.LastError = err.Error()

	if !IsPermanent(err) && job.Attempts <= p.opts.MaxRetries {
		at := p.now().Add(Backoff(job.Attempts))
		if retryErr := p.queue.Retry(ctx, job, at); retryErr != nil {
			p.logger.Error("failed to schedule retry", "job_id", job.ID, "error", retryErr.Error())
			return
		}
		p.logger.Warn("job scheduled for retry",
			"event", "job_retry",
			"job_id", job.ID,
			"kind", job.Kind,
			"attempt", job.Attempts,
			"retry_at", at.UTC().Format(time.RFC3339),
			"error", err.Error(),
		)
		return
	}

	if killErr := p.queue.Kill(ctx, job, err.Error()); killErr != nil {
		p.logger.Error("failed to move job to dead set", "job_id", job.ID, "error", killErr.Error())
		return
	}
	p.logger.Error("job moved to dead set",
		"event", "job_dead",
		"job_id", job.ID,
		"kind", job.Kind,
		"entity_id", job.EntityID,
		"attempts", job.Attempts,
		"error", err.Error(),
	)
}

func (p *Pool) run(ctx context.Context, job *queue.Job) (err error) {
	fn, ok := p.handlers[job.Kind]
	if !ok {
		return Permanent(fmt.Errorf("no handler registered for job kind %q", job.Kind))
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()
	return fn(ctx, job)
}

func (p *Pool) heartbeatLoop(ctx context.Context) {
	beat := func() {
		if err := p.queue.Heartbeat(context.WithoutCancel(ctx), p.id, heartbeatTTL); err != nil {
			p.logger.Warn("worker heartbeat failed", "worker_id", p.id, "error", err.Error())
		}
	}

	beat()
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			beat()
		}
	}
}

func (p *Pool) promoteLoop(ctx context.Context) {
	ticker := time.NewTicker(promoteInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := p.queue.PromoteDue(ctx, p.now()); err != nil && ctx.Err() == nil {
				p.logger.Warn("failed to promote scheduled jobs", "error", err.Error())
			}
		}
	}
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
