package queue

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/url"
	"time"

	"github.com/gomodule/redigo/redis"
)

const (
	keyPrefix    = "taskflow:"
	queuesKey    = keyPrefix + "queues"
	retryKey     = keyPrefix + "retry"
	deadKey      = keyPrefix + "dead"
	processedKey = keyPrefix + "stat:processed"
	failedKey    = keyPrefix + "stat:failed"

	// deadLimit caps the dead list; older entries are trimmed.
	deadLimit    = 10000
	promoteBatch = 100
)

func queueKey(name string) string { return keyPrefix + "queue:" + name }
func workerKey(id string) string  { return keyPrefix + "worker:" + id }

// RedisQueue stores jobs in redis lists. Scheduled retries live in a sorted
// set scored by their due unix time.
type RedisQueue struct {
	pool *redis.Pool
}

// NewRedisQueue builds the connection pool. No connection is made until first use.
func NewRedisQueue(rawURL string) (*RedisQueue, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	if u.Scheme != "redis" && u.Scheme != "rediss" {
		return nil, fmt.Errorf("invalid redis url scheme %q", u.Scheme)
	}
	return &RedisQueue{pool: NewPool(rawURL)}, nil
}

// NewPool returns a redigo pool dialing rawURL lazily.
func NewPool(rawURL string) *redis.Pool {
	return &redis.Pool{
		MaxIdle:     10,
		MaxActive:   50,
		IdleTimeout: 240 * time.Second,
		Wait:        true,
		DialContext: func(ctx context.Context) (redis.Conn, error) {
			return redis.DialURLContext(ctx, rawURL,
				redis.DialConnectTimeout(5*time.Second),
				redis.DialReadTimeout(10*time.Second),
				redis.DialWriteTimeout(5*time.Second),
			)
		},
		TestOnBorrow: func(c redis.Conn, t time.Time) error {
			if time.Since(t) < time.Minute {
				return nil
			}
			_, err := c.Do("PING")
			return err
		},
	}
}

// Pool exposes the connection pool so the session store can share it.
func (q *RedisQueue) Pool() *redis.Pool {
	return q.pool
}

func (q *RedisQueue) do(ctx context.Context, cmd string, args ...any) (any, error) {
	conn, err := q.pool.GetContext(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()
	return redis.DoContext(conn, ctx, cmd, args...)
}

// Enqueue registers the queue name and pushes job onto its list in one transaction.
func (q *RedisQueue) Enqueue(ctx context.Context, job *Job) error {
	payload, err := job.Encode()
	if err != nil {
		return fmt.Errorf("failed to encode job: %w", err)
	}

	conn, err := q.pool.GetContext(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := conn.Send("MULTI"); err != nil {
		return err
	}
	if err := conn.Send("SADD", queuesKey, job.Queue); err != nil {
		return err
	}
	if err := conn.Send("LPUSH", queueKey(job.Queue), payload); err != nil {
		return err
	}
	_, err = redis.DoContext(conn, ctx, "EXEC")
	return err
}

// Dequeue blocks for up to timeout on BRPOP. It returns a nil job when the wait expires.
func (q *RedisQueue) Dequeue(ctx context.Context, queue string, timeout time.Duration) (*Job, error) {
	conn, err := q.pool.GetContext(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	seconds := int(math.Max(1, math.Ceil(timeout.Seconds())))
	reply, err := redis.ByteSlices(redis.DoWithTimeout(conn, timeout+5*time.Second, "BRPOP", queueKey(queue), seconds))
	if errors.Is(err, redis.ErrNil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(reply) != 2 {
		return nil, fmt.Errorf("unexpected BRPOP reply of %d elements", len(reply))
	}
	return Decode(reply[1])
}

// Retry schedules job in the retry set, scored by at, and counts the failure.
func (q *RedisQueue) Retry(ctx context.Context, job *Job, at time.Time) error {
	at = at.UTC()
	job.RetryAt = &at
	payload, err := job.Encode()
	if err != nil {
		return fmt.Errorf("failed to encode job: %w", err)
	}

	conn, err := q.pool.GetContext(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := conn.Send("MULTI"); err != nil {
		return err
	}
	if err := conn.Send("ZADD", retryKey, at.Unix(), payload); err != nil {
		return err
	}
	if err := conn.Send("INCR", failedKey); err != nil {
		return err
	}
	_, err = redis.DoContext(conn, ctx, "EXEC")
	return err
}

// Kill moves job to the dead list with reason and counts the failure.
func (q *RedisQueue) Kill(ctx context.Context, job *Job, reason string) error {
	job.LastError = reason
	payload, err := job.Encode()
	if err != nil {
		return fmt.Errorf("failed to encode job: %w", err)
	}

	conn, err := q.pool.GetContext(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := conn.Send("MULTI"); err != nil {
		return err
	}
	if err := conn.Send("LPUSH", deadKey, payload); err != nil {
		return err
	}
	if err := conn.Send("LTRIM", deadKey, 0, deadLimit-1); err != nil {
		return err
	}
	if err := conn.Send("INCR", failedKey); err != nil {
		return err
	}
	_, err = redis.DoContext(conn, ctx, "EXEC")
	return err
}

// MarkProcessed increments the processed counter.
func (q *RedisQueue) MarkProcessed(ctx context.Context, _ *Job) error {
	_, err := q.do(ctx, "INCR", processedKey)
	return err
}

// PromoteDue moves retries due at now back onto their queues, at most
// promoteBatch per call, and reports how many it moved.
func (q *RedisQueue) PromoteDue(ctx context.Context, now time.Time) (int, error) {
	payloads, err := redis.ByteSlices(q.do(ctx, "ZRANGEBYSCORE", retryKey, "-inf", now.Unix(), "LIMIT", 0, promoteBatch))
	if err != nil {
		return 0, err
	}

	promoted := 0
	for _, payload := range payloads {
		// Only the worker that removes the entry requeues it.
		removed, err := redis.Int(q.do(ctx, "ZREM", retryKey, payload))
		if err != nil {
			return promoted, err
		}
		if removed == 0 {
			continue
		}

		job, err := Decode(payload)
		if err != nil {
			return promoted, fmt.Errorf("failed to decode scheduled job: %w", err)
		}
		job.RetryAt = nil
		if err := q.Enqueue(ctx, job); err != nil {
			return promoted, err
		}
		promoted++
	}
	return promoted, nil
}

// Heartbeat marks workerID alive for ttl.
func (q *RedisQueue) Heartbeat(ctx context.Context, workerID string, ttl time.Duration) error {
	seconds := int(math.Max(1, math.Ceil(ttl.Seconds())))
	_, err := q.do(ctx, "SET", workerKey(workerID), time.Now().Unix(), "EX", seconds)
	return err
}

// Stats reads the counters and sizes reported by /metrics and /health.
func (q *RedisQueue) Stats(ctx context.Context) (Stats, error) {
	var stats Stats
	var err error

	if stats.Processed, err = counter(q.do(ctx, "GET", processedKey)); err != nil {
		return stats, err
	}
	if stats.Failed, err = counter(q.do(ctx, "GET", failedKey)); err != nil {
		return stats, err
	}

	queues, err := redis.Strings(q.do(ctx, "SMEMBERS", queuesKey))
	if err != nil {
		return stats, err
	}
	for _, name := range queues {
		n, err := redis.Int64(q.do(ctx, "LLEN", queueKey(name)))
		if err != nil {
			return stats, err
		}
		stats.Enqueued += n
	}

	if stats.Scheduled, err = redis.Int64(q.do(ctx, "ZCARD", retryKey)); err != nil {
		return stats, err
	}
	if stats.Dead, err = redis.Int64(q.do(ctx, "LLEN", deadKey)); err != nil {
		return stats, err
	}
	if stats.Workers, err = q.countKeys(ctx, workerKey("*")); err != nil {
		return stats, err
	}
	return stats, nil
}

func (q *RedisQueue) countKeys(ctx context.Context, pattern string) (int64, error) {
	var (
		cursor int64
		count  int64
	)
	for {
		values, err := redis.Values(q.do(ctx, "SCAN", cursor, "MATCH", pattern, "COUNT", 100))
		if err != nil {
			return 0, err
		}
		var keys []string
		if _, err := redis.Scan(values, &cursor, &keys); err != nil {
			return 0, err
		}
		count += int64(len(keys))
		if cursor == 0 {
			return count, nil
		}
	}
}

// Ping checks that redis answers PONG.
func (q *RedisQueue) Ping(ctx context.Context) error {
	reply, err := redis.String(q.do(ctx, "PING"))
	if err != nil {
		return err
	}
	if reply != "PONG" {
		return fmt.Errorf("unexpected PING reply %q", reply)
	}
	return nil
}

// Close releases the connection pool.
func (q *RedisQueue) Close() error {
	return q.pool.Close()
}

func counter(reply any, err error) (int64, error) {
	n, err := redis.Int64(reply, err)
	if errors.Is(err, redis.ErrNil) {
		return 0, nil
	}
	return n, err
}
