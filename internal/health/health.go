// Package health serves the liveness, readiness and aggregate health endpoints.
package health

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yukikurage/taskflow-api/internal/database"
	"github.com/yukikurage/taskflow-api/internal/queue"
	"gorm.io/gorm"
)

const checkTimeout = 2 * time.Second

const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
	StatusReady     = "ready"
	StatusNotReady  = "not_ready"
	StatusAlive     = "alive"

	Connected    = "connected"
	Disconnected = "disconnected"
)

// now is replaced in tests.
var now = time.Now

type Checks struct {
	Database string `json:"database"`
	Queue    string `json:"queue"`
	Workers  *int64 `json:"workers,omitempty"`
}

type Report struct {
	Status    string  `json:"status"`
	Timestamp string  `json:"timestamp"`
	Checks    *Checks `json:"checks,omitempty"`
}

// Checker probes the database and the job queue. Every endpoint answers 200;
// the status field carries the verdict.
type Checker struct {
	db     *gorm.DB
	queue  queue.Queue
	logger *slog.Logger
}

func NewChecker(db *gorm.DB, q queue.Queue, logger *slog.Logger) *Checker {
	return &Checker{db: db, queue: q, logger: logger}
}

// Health reports healthy only when the database and queue answer and at least one worker is alive.
func (h *Checker) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), checkTimeout)
	defer cancel()

	dbOK := h.checkDatabase(ctx)
	queueOK := h.checkQueue(ctx)
	workers := h.countWorkers(ctx)

	status := StatusUnhealthy
	if dbOK && queueOK && workers > 0 {
		status = StatusHealthy
	}

	c.JSON(http.StatusOK, Report{
		Status:    status,
		Timestamp: timestamp(),
		Checks: &Checks{
			Database: connection(dbOK),
			Queue:    connection(queueOK),
			Workers:  &workers,
		},
	})
}

func (h *Checker) Live(c *gin.Context) {
	c.JSON(http.StatusOK, Report{Status: StatusAlive, Timestamp: timestamp()})
}

func (h *Checker) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), checkTimeout)
	defer cancel()

	dbOK := h.checkDatabase(ctx)
	queueOK := h.checkQueue(ctx)

	status := StatusNotReady
	if dbOK && queueOK {
		status = StatusReady
	}

	c.JSON(http.StatusOK, Report{
		Status:    status,
		Timestamp: timestamp(),
		Checks: &Checks{
			Database: connection(dbOK),
			Queue:    connection(queueOK),
		},
	})
}

func (h *Checker) checkDatabase(ctx context.Context) bool {
	if err := database.Ping(ctx, h.db); err != nil {
		h.logger.ErrorContext(ctx, "database health check failed", "event", "health_check_failed", "check", "database", "error", err.Error())
		return false
	}
	return true
}

func (h *Checker) checkQueue(ctx context.Context) bool {
	if err := h.queue.Ping(ctx); err != nil {
		h.logger.ErrorContext(ctx, "queue health check failed", "event", "health_check_failed", "check", "queue", "error", err.Error())
		return false
	}
	return true
}

func (h *Checker) countWorkers(ctx context.Context) int64 {
	stats, err := h.queue.Stats(ctx)
	if err != nil {
		return 0
	}
	return stats.Workers
}

func connection(ok bool) string {
	if ok {
		return Connected
	}
	return Disconnected
}

func timestamp() string {
	return now().UTC().Format(time.RFC3339)
}
