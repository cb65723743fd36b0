// Package scheduler drives the unattended daily loop: materializing tracking
// artifacts, sweeping overdue statuses, and flagging ended budget periods.
// Every job is idempotent, so an interrupted run is recovered by simply
// running again.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	auditdomain "github.com/monetahq/moneta/internal/audit/domain"
	budgetdomain "github.com/monetahq/moneta/internal/budget/domain"
	"github.com/monetahq/moneta/internal/clock"
	liabilitydomain "github.com/monetahq/moneta/internal/liability/domain"
	obsmetrics "github.com/monetahq/moneta/internal/observability/metrics"
	trackingdomain "github.com/monetahq/moneta/internal/tracking/domain"
	"github.com/oklog/ulid/v2"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var ErrInvalidConfig = errors.New("scheduler: missing required dependency")

type Params struct {
	fx.In

	Log          *zap.Logger
	Clock        clock.Clock
	TrackingSvc  trackingdomain.Service
	LiabilitySvc liabilitydomain.Service
	BudgetSvc    budgetdomain.Service
	AuditSvc     auditdomain.Service
	Config       Config `optional:"true"`
}

type Scheduler struct {
	log          *zap.Logger
	cfg          Config
	clock        clock.Clock
	trackingSvc  trackingdomain.Service
	liabilitySvc liabilitydomain.Service
	budgetSvc    budgetdomain.Service
	auditSvc     auditdomain.Service
	entropy      *rand.Rand
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.Clock == nil || p.TrackingSvc == nil || p.LiabilitySvc == nil || p.BudgetSvc == nil || p.AuditSvc == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		log:          p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:          p.Config.withDefaults(),
		clock:        p.Clock,
		trackingSvc:  p.TrackingSvc,
		liabilitySvc: p.LiabilitySvc,
		budgetSvc:    p.BudgetSvc,
		auditSvc:     p.AuditSvc,
		entropy:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}, nil
}

// newRunID mints a sortable per-run identifier.
func (s *Scheduler) newRunID() string {
	return ulid.MustNew(ulid.Timestamp(s.clock.Now()), s.entropy).String()
}

func (s *Scheduler) runJob(parent context.Context, name string, fn func(ctx context.Context) error) error {
	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, s.cfg.JobTimeout)
	defer cancel()

	runID := s.newRunID()
	log := s.log.With(
		zap.String("job", name),
		zap.String("run_id", runID),
	)
	schedMetrics := obsmetrics.Scheduler()
	schedMetrics.IncJobRun(name)
	log.Debug("job started")

	err := fn(ctx)
	schedMetrics.ObserveJobDuration(name, time.Since(start))
	if err == nil {
		log.Debug("job finished")
		return nil
	}

	schedMetrics.IncJobError(name, err)
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		// Soft timeout: the next run picks up where this one stopped.
		schedMetrics.IncJobTimeout(name)
		log.Warn("job timed out",
			zap.Duration("timeout", s.cfg.JobTimeout),
			zap.Error(err),
		)
		return nil
	}

	log.Warn("job failed", zap.Error(err))
	return fmt.Errorf("%s: %w", name, err)
}

// RunOnce executes every enabled job in order and joins their failures. One
// job failing never stops the rest.
func (s *Scheduler) RunOnce(parent context.Context) error {
	var err error

	jobs := []struct {
		Name string
		Run  func(context.Context) error
	}{
		{"materialize_tracking", s.MaterializeTrackingJob},
		{"overdue_sweep", s.OverdueSweepJob},
		{"budget_reflection", s.BudgetReflectionJob},
		{"reminder_scan", s.ReminderScanJob},
	}

	for _, job := range jobs {
		if !s.isJobEnabled(job.Name) {
			continue
		}
		name := job.Name
		run := job.Run
		err = errors.Join(err, s.runJob(parent, name, run))
	}
	return err
}

// RunForever ticks RunOnce on the configured interval until the context is
// cancelled.
func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) isJobEnabled(jobName string) bool {
	// An empty allowlist enables every job.
	if len(s.cfg.EnabledJobs) == 0 {
		return true
	}
	for _, enabled := range s.cfg.EnabledJobs {
		if strings.EqualFold(enabled, jobName) {
			return true
		}
	}
	return false
}

// MaterializeTrackingJob runs the daily batch. Per-container failures are
// already collected inside the batch; they surface here as a joined error so
// the run is visibly degraded without halting the remaining jobs.
func (s *Scheduler) MaterializeTrackingJob(ctx context.Context) error {
	today := s.clock.Now()
	result, err := s.trackingSvc.ProcessDueToday(ctx, today)
	if err != nil {
		return err
	}

	s.log.Info("tracking materialized",
		zap.Int("processed", result.Processed),
		zap.Int("created", result.Created),
		zap.Int("failed", len(result.Errors)),
	)
	_ = s.auditSvc.Record(ctx, auditdomain.ActorTypeSystem, "scheduler.materialize_tracking", "batch", "", map[string]any{
		"processed": result.Processed,
		"created":   result.Created,
		"failed":    len(result.Errors),
	})

	var joined error
	for _, batchErr := range result.Errors {
		joined = errors.Join(joined, fmt.Errorf("container %s: %s", batchErr.ContainerID, batchErr.Error))
	}
	return joined
}

// OverdueSweepJob re-statuses pending tracking artifacts and liability
// installments whose due date has passed.
func (s *Scheduler) OverdueSweepJob(ctx context.Context) error {
	today := s.clock.Now()

	artifacts, err := s.trackingSvc.SweepOverdue(ctx, today)
	if err != nil {
		return err
	}
	installments, err := s.liabilitySvc.SweepOverdue(ctx, today)
	if err != nil {
		return err
	}

	if artifacts > 0 || installments > 0 {
		s.log.Info("overdue sweep",
			zap.Int("artifacts", artifacts),
			zap.Int("installments", installments),
		)
	}
	return nil
}

// BudgetReflectionJob flags ended active budgets so the host can present
// their reflection summary.
func (s *Scheduler) BudgetReflectionJob(ctx context.Context) error {
	flagged, err := s.budgetSvc.FlagEndedBudgets(ctx, s.clock.Now())
	if err != nil {
		return err
	}
	if flagged > 0 {
		s.log.Info("budgets flagged for reflection", zap.Int("count", flagged))
	}
	return nil
}

// ReminderScanJob computes which obligations deserve a nudge today. Delivery
// is the host application's concern; the scan only logs and records.
func (s *Scheduler) ReminderScanJob(ctx context.Context) error {
	if !s.cfg.ReminderLogging {
		return nil
	}
	reminders, err := s.trackingSvc.RemindersDueToday(ctx, s.clock.Now())
	if err != nil {
		return err
	}
	for _, reminder := range reminders {
		s.log.Info("reminder due",
			zap.String("container_id", reminder.ContainerID),
			zap.String("name", reminder.Name),
			zap.Int("days_until", reminder.DaysUntil),
		)
	}
	return nil
}
