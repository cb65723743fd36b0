package domain

import (
	"context"
	"errors"
	"time"

	"github.com/monetahq/moneta/internal/recurrence"
)

// RenewalAction is the path chosen for a period that reached its end.
type RenewalAction string

const (
	// RenewalContinue keeps the same budget row and extends its end date.
	RenewalContinue RenewalAction = "continue"
	// RenewalRepeat closes the period and clones it for the next range.
	RenewalRepeat RenewalAction = "repeat"
	// RenewalExtendRecurring repeats and persists a recurrence pattern on
	// both records so future periods self-renew.
	RenewalExtendRecurring RenewalAction = "extend_to_recurring"
)

// RenewalDecision carries the chosen action plus its knobs.
type RenewalDecision struct {
	Action RenewalAction
	// ResetSpent zeroes the running totals when continuing.
	ResetSpent bool
	// Frequency/Interval apply to extend_to_recurring; a monthly pattern is
	// assumed when left empty.
	Frequency recurrence.Frequency
	Interval  int
}

type Service interface {
	GetByID(ctx context.Context, id string) (*Budget, error)
	// Recompute rebuilds spent and remaining from the linked transactions
	// and persists the result.
	Recompute(ctx context.Context, budgetID string) (*Budget, error)
	// PrepareForReflection computes the period summary and flags the budget
	// reflection-ready. The budget stays active; deactivation is the renewal
	// decision's job.
	PrepareForReflection(ctx context.Context, budgetID string) (Summary, error)
	// ExecuteRenewalDecision applies exactly one renewal path and returns
	// the budget the user continues with.
	ExecuteRenewalDecision(ctx context.Context, budgetID string, decision RenewalDecision) (*Budget, error)
	// FlagEndedBudgets marks active budgets whose period ended as
	// reflection-ready. Closed-period figures are never altered.
	FlagEndedBudgets(ctx context.Context, today time.Time) (int, error)
}

var (
	ErrBudgetNotFound   = errors.New("budget_not_found")
	ErrBudgetInactive   = errors.New("budget_inactive")
	ErrInvalidRenewal   = errors.New("invalid_renewal_action")
	ErrInvalidRecurrent = errors.New("invalid_recurrence_pattern")
)
