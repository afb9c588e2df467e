// Package metrics exposes the Prometheus registry served on /metrics.
package metrics

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/yukikurage/taskflow-api/internal/database"
	"github.com/yukikurage/taskflow-api/internal/models"
	"github.com/yukikurage/taskflow-api/internal/queue"
	"github.com/yukikurage/taskflow-api/internal/repository"
	"gorm.io/gorm"
)

// FastRequestThreshold separates fast requests for the latency SLI.
const FastRequestThreshold = 200 * time.Millisecond

// scrapeTimeout bounds the database and queue reads made per scrape.
const scrapeTimeout = 2 * time.Second

type Options struct {
	DB      *gorm.DB
	Queue   queue.Queue
	Users   repository.UserRepository
	Tasks   repository.TaskRepository
	Version string
	Env     string
	Logger  *slog.Logger
}

// Metrics owns a private registry so tests can build several side by side.
type Metrics struct {
	registry *prometheus.Registry
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec

	total        atomic.Int64
	serverErrors atomic.Int64
	fast         atomic.Int64
}

func New(opts Options) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests",
		}, []string{"method", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
	}

	m.registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
		m.requests,
		m.duration,
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "sli_availability_percent",
			Help: "Service availability percentage",
		}, m.availability),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "sli_error_rate_percent",
			Help: "Error rate percentage",
		}, m.errorRate),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "sli_latency_fast_percent",
			Help: "Percentage of requests faster than 200ms",
		}, m.fastRate),
		newAppCollector(opts),
	)

	if opts.DB != nil {
		if sqlDB, err := opts.DB.DB(); err == nil {
			m.registry.MustRegister(collectors.NewDBStatsCollector(sqlDB, opts.DB.Dialector.Name()))
		}
	}

	return m
}

// Middleware counts every request by method and status.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		m.Observe(c.Request.Method, c.Writer.Status(), time.Since(start))
	}
}

func (m *Metrics) Observe(method string, status int, elapsed time.Duration) {
	m.requests.WithLabelValues(method, strconv.Itoa(status)).Inc()
	m.duration.WithLabelValues(method).Observe(elapsed.Seconds())

	m.total.Add(1)
	if status >= http.StatusInternalServerError {
		m.serverErrors.Add(1)
	}
	if elapsed < FastRequestThreshold {
		m.fast.Add(1)
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() gin.HandlerFunc {
	h := promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
	return gin.WrapH(h)
}

func (m *Metrics) availability() float64 {
	total := m.total.Load()
	if total == 0 {
		return 100
	}
	return percent(total-m.serverErrors.Load(), total)
}

func (m *Metrics) errorRate() float64 {
	total := m.total.Load()
	if total == 0 {
		return 0
	}
	return percent(m.serverErrors.Load(), total)
}

func (m *Metrics) fastRate() float64 {
	total := m.total.Load()
	if total == 0 {
		return 100
	}
	return percent(m.fast.Load(), total)
}

func percent(part, total int64) float64 {
	return float64(part) / float64(total) * 100
}

// appCollector reads database, queue and domain gauges at scrape time.
type appCollector struct {
	opts Options

	info           *prometheus.Desc
	databaseUp     *prometheus.Desc
	poolSize       *prometheus.Desc
	poolInUse      *prometheus.Desc
	queueUp        *prometheus.Desc
	queueProcessed *prometheus.Desc
	queueFailed    *prometheus.Desc
	queueEnqueued  *prometheus.Desc
	queueScheduled *prometheus.Desc
	queueDead      *prometheus.Desc
	queueProcesses *prometheus.Desc
	usersTotal     *prometheus.Desc
	tasksTotal     *prometheus.Desc
	tasksByStatus  *prometheus.Desc
}

func newAppCollector(opts Options) *appCollector {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &appCollector{
		opts:           opts,
		info:           prometheus.NewDesc("app_info", "Application information", []string{"version", "env"}, nil),
		databaseUp:     prometheus.NewDesc("database_up", "Database connection status", nil, nil),
		poolSize:       prometheus.NewDesc("database_pool_size", "Database connection pool size", nil, nil),
		poolInUse:      prometheus.NewDesc("database_pool_connections", "Database connections in use", nil, nil),
		queueUp:        prometheus.NewDesc("queue_up", "Queue backend connection status", nil, nil),
		queueProcessed: prometheus.NewDesc("queue_processed_total", "Total number of processed jobs", nil, nil),
		queueFailed:    prometheus.NewDesc("queue_failed_total", "Total number of failed jobs", nil, nil),
		queueEnqueued:  prometheus.NewDesc("queue_enqueued", "Jobs enqueued", nil, nil),
		queueScheduled: prometheus.NewDesc("queue_scheduled", "Jobs waiting for a retry", nil, nil),
		queueDead:      prometheus.NewDesc("queue_dead", "Jobs in the dead set", nil, nil),
		queueProcesses: prometheus.NewDesc("queue_processes", "Number of live worker processes", nil, nil),
		usersTotal:     prometheus.NewDesc("app_users_total", "Total number of users", nil, nil),
		tasksTotal:     prometheus.NewDesc("app_tasks_total", "Total number of tasks", nil, nil),
		tasksByStatus:  prometheus.NewDesc("app_tasks_by_status", "Tasks grouped by status", []string{"status"}, nil),
	}
}

func (a *appCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		a.info, a.databaseUp, a.poolSize, a.poolInUse,
		a.queueUp, a.queueProcessed, a.queueFailed, a.queueEnqueued, a.queueScheduled, a.queueDead, a.queueProcesses,
		a.usersTotal, a.tasksTotal, a.tasksByStatus,
	} {
		ch <- d
	}
}

func (a *appCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), scrapeTimeout)
	defer cancel()

	ch <- prometheus.MustNewConstMetric(a.info, prometheus.GaugeValue, 1, a.opts.Version, a.opts.Env)
	a.collectDatabase(ctx, ch)
	a.collectQueue(ctx, ch)
	a.collectDomain(ctx, ch)
}

func (a *appCollector) collectDatabase(ctx context.Context, ch chan<- prometheus.Metric) {
	if a.opts.DB == nil {
		return
	}
	if err := database.Ping(ctx, a.opts.DB); err != nil {
		ch <- prometheus.MustNewConstMetric(a.databaseUp, prometheus.GaugeValue, 0)
		return
	}
	ch <- prometheus.MustNewConstMetric(a.databaseUp, prometheus.GaugeValue, 1)

	if sqlDB, err := a.opts.DB.DB(); err == nil {
		stats := sqlDB.Stats()
		ch <- prometheus.MustNewConstMetric(a.poolSize, prometheus.GaugeValue, float64(stats.MaxOpenConnections))
		ch <- prometheus.MustNewConstMetric(a.poolInUse, prometheus.GaugeValue, float64(stats.InUse))
	}
}

func (a *appCollector) collectQueue(ctx context.Context, ch chan<- prometheus.Metric) {
	if a.opts.Queue == nil {
		return
	}
	if err := a.opts.Queue.Ping(ctx); err != nil {
		ch <- prometheus.MustNewConstMetric(a.queueUp, prometheus.GaugeValue, 0)
		return
	}
	ch <- prometheus.MustNewConstMetric(a.queueUp, prometheus.GaugeValue, 1)

	stats, err := a.opts.Queue.Stats(ctx)
	if err != nil {
		a.opts.Logger.ErrorContext(ctx, "queue metrics failed", "event", "metrics_error", "error", err.Error())
		return
	}
	ch <- prometheus.MustNewConstMetric(a.queueProcessed, prometheus.CounterValue, float64(stats.Processed))
	ch <- prometheus.MustNewConstMetric(a.queueFailed, prometheus.CounterValue, float64(stats.Failed))
	ch <- prometheus.MustNewConstMetric(a.queueEnqueued, prometheus.GaugeValue, float64(stats.Enqueued))
	ch <- prometheus.MustNewConstMetric(a.queueScheduled, prometheus.GaugeValue, float64(stats.Scheduled))
	ch <- prometheus.MustNewConstMetric(a.queueDead, prometheus.GaugeValue, float64(stats.Dead))
	ch <- prometheus.MustNewConstMetric(a.queueProcesses, prometheus.GaugeValue, float64(stats.Workers))
}

func (a *appCollector) collectDomain(ctx context.Context, ch chan<- prometheus.Metric) {
	if a.opts.Users != nil {
		users, err := a.opts.Users.Count(ctx, false)
		if err != nil {
			a.opts.Logger.ErrorContext(ctx, "application metrics failed", "event", "metrics_error", "error", err.Error())
		} else {
			ch <- prometheus.MustNewConstMetric(a.usersTotal, prometheus.GaugeValue, float64(users))
		}
	}

	if a.opts.Tasks != nil {
		byStatus, err := a.opts.Tasks.CountByStatus(ctx)
		if err != nil {
			a.opts.Logger.ErrorContext(ctx, "application metrics failed", "event", "metrics_error", "error", err.Error())
			return
		}
		var total int64
		for _, status := range models.TaskStatuses {
			n := byStatus[status]
			total += n
			ch <- prometheus.MustNewConstMetric(a.tasksByStatus, prometheus.GaugeValue, float64(n), string(status))
		}
		ch <- prometheus.MustNewConstMetric(a.tasksTotal, prometheus.GaugeValue, float64(total))
	}
}
