// Package metrics captures scheduler and dispatcher health signals.
package metrics

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
)

const (
	ErrorTypeDeadlineExceeded = "deadline_exceeded"
	ErrorTypeUniqueViolation  = "unique_violation"
	ErrorTypeDBLockTimeout    = "db_lock_timeout"
	ErrorTypeDB               = "db"
	ErrorTypeBusinessRule     = "business_rule"
	ErrorTypeUnknown          = "unknown"
)

// SchedulerMetrics tracks the job loop.
type SchedulerMetrics struct {
	jobRuns     *prometheus.CounterVec
	jobDuration *prometheus.HistogramVec
	jobTimeouts *prometheus.CounterVec
	jobErrors   *prometheus.CounterVec
}

// DispatcherMetrics tracks tracking-artifact materialization outcomes.
type DispatcherMetrics struct {
	artifactsCreated   *prometheus.CounterVec
	duplicatesResolved prometheus.Counter
	batchErrors        prometheus.Counter
}

var (
	schedulerOnce  sync.Once
	schedulerInst  *SchedulerMetrics
	dispatcherOnce sync.Once
	dispatcherInst *DispatcherMetrics
)

// Scheduler returns the process-wide scheduler metrics, registering them on
// first use.
func Scheduler() *SchedulerMetrics {
	schedulerOnce.Do(func() {
		schedulerInst = &SchedulerMetrics{
			jobRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "moneta_scheduler_job_runs_total",
				Help: "Scheduler job invocations.",
			}, []string{"job"}),
			jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Name:    "moneta_scheduler_job_duration_seconds",
				Help:    "Scheduler job wall time.",
				Buckets: prometheus.DefBuckets,
			}, []string{"job"}),
			jobTimeouts: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "moneta_scheduler_job_timeouts_total",
				Help: "Scheduler jobs cut off by their deadline.",
			}, []string{"job"}),
			jobErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "moneta_scheduler_job_errors_total",
				Help: "Scheduler job failures by classified error type.",
			}, []string{"job", "type"}),
		}
		prometheus.MustRegister(
			schedulerInst.jobRuns,
			schedulerInst.jobDuration,
			schedulerInst.jobTimeouts,
			schedulerInst.jobErrors,
		)
	})
	return schedulerInst
}

// Dispatcher returns the process-wide dispatcher metrics.
func Dispatcher() *DispatcherMetrics {
	dispatcherOnce.Do(func() {
		dispatcherInst = &DispatcherMetrics{
			artifactsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "moneta_tracking_artifacts_created_total",
				Help: "Tracking artifacts created by kind.",
			}, []string{"kind"}),
			duplicatesResolved: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "moneta_tracking_duplicates_resolved_total",
				Help: "Create attempts resolved to an existing artifact by the unique index.",
			}),
			batchErrors: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "moneta_tracking_batch_errors_total",
				Help: "Per-container failures collected by the daily batch.",
			}),
		}
		prometheus.MustRegister(
			dispatcherInst.artifactsCreated,
			dispatcherInst.duplicatesResolved,
			dispatcherInst.batchErrors,
		)
	})
	return dispatcherInst
}

func (m *SchedulerMetrics) IncJobRun(job string) {
	m.jobRuns.WithLabelValues(job).Inc()
}

func (m *SchedulerMetrics) ObserveJobDuration(job string, d time.Duration) {
	m.jobDuration.WithLabelValues(job).Observe(d.Seconds())
}

func (m *SchedulerMetrics) IncJobTimeout(job string) {
	m.jobTimeouts.WithLabelValues(job).Inc()
}

func (m *SchedulerMetrics) IncJobError(job string, err error) {
	m.jobErrors.WithLabelValues(job, ClassifyError(err)).Inc()
}

func (m *DispatcherMetrics) IncArtifactCreated(kind string) {
	m.artifactsCreated.WithLabelValues(kind).Inc()
}

func (m *DispatcherMetrics) IncDuplicateResolved() {
	m.duplicatesResolved.Inc()
}

func (m *DispatcherMetrics) IncBatchError() {
	m.batchErrors.Inc()
}

// ClassifyError buckets an error for the job error counter.
func ClassifyError(err error) string {
	if err == nil {
		return ErrorTypeUnknown
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return ErrorTypeDeadlineExceeded
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return ErrorTypeUniqueViolation
		case "55P03", "40P01":
			return ErrorTypeDBLockTimeout
		default:
			return ErrorTypeDB
		}
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrorTypeUniqueViolation
	}
	if errors.Is(err, gorm.ErrRecordNotFound) || errors.Is(err, gorm.ErrInvalidTransaction) {
		return ErrorTypeDB
	}
	return ErrorTypeBusinessRule
}
