package domain

import (
	"context"
	"errors"
	"time"

	obligationdomain "github.com/monetahq/moneta/internal/obligation/domain"
)

// BatchError records one container's failure without aborting the batch.
type BatchError struct {
	ContainerID string `json:"container_id"`
	Error       string `json:"error"`
}

// BatchResult summarizes one daily materialization run.
type BatchResult struct {
	Processed int          `json:"processed"`
	Created   int          `json:"created"`
	Errors    []BatchError `json:"errors"`
}

// Reminder is a computed "this deserves a nudge today" record. Delivery is
// owned by the host application.
type Reminder struct {
	ContainerID string    `json:"container_id"`
	Name        string    `json:"name"`
	DueDate     time.Time `json:"due_date"`
	DaysUntil   int       `json:"days_until"`
}

type Service interface {
	// EnsureTracking guarantees exactly one artifact for the cycle,
	// regardless of how many times it is invoked and regardless of tracking
	// method changes since the artifact was first created.
	EnsureTracking(ctx context.Context, container *obligationdomain.Container, cycle obligationdomain.Cycle) (Artifact, error)
	// ProcessDueToday materializes artifacts for every active auto-creating
	// container whose cycles fall within lead time. Per-container failures
	// are collected; the batch never aborts on one container.
	ProcessDueToday(ctx context.Context, today time.Time) (BatchResult, error)
	// RemindersDueToday computes which containers deserve a reminder today.
	RemindersDueToday(ctx context.Context, today time.Time) ([]Reminder, error)
	// SweepOverdue re-statuses pending bills and scheduled payments whose
	// due date has passed.
	SweepOverdue(ctx context.Context, today time.Time) (int, error)
}

var (
	ErrInvalidFundType       = errors.New("invalid_fund_type")
	ErrInvalidCategoryID     = errors.New("invalid_category_id")
	ErrMissingLinkedAccount  = errors.New("missing_linked_account")
	ErrUnknownTrackingMethod = errors.New("unknown_tracking_method")
)
