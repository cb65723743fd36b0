package service

import (
	"context"
	"time"

	obsmetrics "github.com/monetahq/moneta/internal/observability/metrics"
	obligationdomain "github.com/monetahq/moneta/internal/obligation/domain"
	"github.com/monetahq/moneta/internal/recurrence"
	trackingdomain "github.com/monetahq/moneta/internal/tracking/domain"
	"go.uber.org/zap"
)

// ProcessDueToday is the only entry point that runs unattended. It is safe
// to invoke any number of times per day: EnsureTracking's idempotency lookup
// makes re-runs create nothing new.
func (s *Service) ProcessDueToday(ctx context.Context, today time.Time) (trackingdomain.BatchResult, error) {
	result := trackingdomain.BatchResult{}

	containers, err := s.obligationSvc.ListActiveAutoCreate(ctx)
	if err != nil {
		return result, err
	}

	// Containers are processed serially: together with the unique index
	// this keeps the existence-check-then-create sequence race-free.
	for _, container := range containers {
		created, err := s.processContainer(ctx, container, today)
		result.Processed++
		result.Created += created
		if err != nil {
			obsmetrics.Dispatcher().IncBatchError()
			s.log.Warn("container materialization failed",
				zap.String("container_id", container.ID.String()),
				zap.Error(err),
			)
			result.Errors = append(result.Errors, trackingdomain.BatchError{
				ContainerID: container.ID.String(),
				Error:       err.Error(),
			})
		}
	}
	return result, nil
}

func (s *Service) processContainer(ctx context.Context, container *obligationdomain.Container, today time.Time) (int, error) {
	cycles, err := s.obligationSvc.GenerateCycles(ctx, obligationdomain.GenerateCyclesRequest{
		ContainerID: container.ID.String(),
		WindowEnd:   recurrence.DateOnly(today).AddDate(0, 0, s.obligationSvc.EffectiveLeadDays(container)),
	})
	if err != nil {
		return 0, err
	}

	created := 0
	for _, cycle := range s.obligationSvc.CyclesNeedingTracking(container, cycles, today) {
		artifact, err := s.EnsureTracking(ctx, container, cycle)
		if err != nil {
			return created, err
		}
		if artifact.Created && artifact.Kind != trackingdomain.ArtifactKindManual {
			created++
		}
	}
	return created, nil
}

// RemindersDueToday computes the reminder-worthy containers: the next
// occurrence of the container's own sequence falls exactly one reminder
// offset away (or is due today). Containers without their own ReminderDays
// use the planner's offsets.
func (s *Service) RemindersDueToday(ctx context.Context, today time.Time) ([]trackingdomain.Reminder, error) {
	containers, err := s.obligationSvc.ListActiveAutoCreate(ctx)
	if err != nil {
		return nil, err
	}

	reminders := make([]trackingdomain.Reminder, 0)
	for _, container := range containers {
		def := container.Recurrence()
		if def.Validate() != nil {
			continue
		}
		next := recurrence.NextOnOrAfter(def, today)
		if next.IsZero() {
			continue
		}
		days := recurrence.DaysUntil(next, today)
		if days == 0 || s.reminderOffsetMatches(container, days) {
			reminders = append(reminders, trackingdomain.Reminder{
				ContainerID: container.ID.String(),
				Name:        container.Name,
				DueDate:     next,
				DaysUntil:   days,
			})
		}
	}
	return reminders, nil
}

func (s *Service) reminderOffsetMatches(container *obligationdomain.Container, days int) bool {
	if container.ReminderDays > 0 {
		return days == container.ReminderDays
	}
	for _, offset := range s.planner.Get().ReminderOffsets {
		if days == offset {
			return true
		}
	}
	return false
}

// sweepableStatuses are the computed statuses a sweep may rewrite. An
// artifact materialized on its due date starts as due_today, so both
// pre-overdue statuses must be revisited.
var sweepableStatuses = []recurrence.Status{recurrence.StatusUpcoming, recurrence.StatusDueToday}

// SweepOverdue routes pending bills and scheduled payments through the
// single status source of truth. Terminal statuses are untouched.
func (s *Service) SweepOverdue(ctx context.Context, today time.Time) (int, error) {
	swept := 0

	for _, current := range sweepableStatuses {
		bills, err := s.billRepo.Find(ctx, &trackingdomain.Bill{Status: current})
		if err != nil {
			return swept, err
		}
		for _, bill := range bills {
			status := recurrence.CalculateStatus(bill.DueDate, today, bill.Status)
			if status == bill.Status {
				continue
			}
			if err := s.billRepo.Update(ctx, bill.ID.String(), map[string]any{"status": status}); err != nil {
				return swept, err
			}
			swept++
		}

		payments, err := s.scheduledRepo.Find(ctx, &trackingdomain.ScheduledPayment{Status: current})
		if err != nil {
			return swept, err
		}
		for _, payment := range payments {
			status := recurrence.CalculateStatus(payment.ScheduledAt, today, payment.Status)
			if status == payment.Status {
				continue
			}
			if err := s.scheduledRepo.Update(ctx, payment.ID.String(), map[string]any{"status": status}); err != nil {
				return swept, err
			}
			swept++
		}
	}
	return swept, nil
}
