package domain

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// AdjustmentPolicy decides which side of the payment/term equation stays
// fixed when a liability changes mid-stream.
type AdjustmentPolicy string

const (
	PolicyHoldPayment AdjustmentPolicy = "hold_payment"
	PolicyHoldEndDate AdjustmentPolicy = "hold_end_date"
	PolicyCustom      AdjustmentPolicy = "custom"
)

// Changes carries the fields the caller wants to adjust; nil means
// unchanged.
type Changes struct {
	TotalOwed  *decimal.Decimal
	Balance    *decimal.Decimal
	AnnualRate *decimal.Decimal
	Payment    *decimal.Decimal
	EndDate    *time.Time
}

// Installment is one computed row of an amortization schedule.
type Installment struct {
	Number    int
	DueDate   time.Time
	Payment   decimal.Decimal
	Principal decimal.Decimal
	Interest  decimal.Decimal
	Remaining decimal.Decimal
}

// Impact is the before/after comparison surfaced to the user before any
// schedule is regenerated. Computing it mutates nothing.
type Impact struct {
	OldPayment decimal.Decimal `json:"old_payment"`
	NewPayment decimal.Decimal `json:"new_payment"`

	OldTermMonths int `json:"old_term_months"`
	NewTermMonths int `json:"new_term_months"`

	OldTotalInterest decimal.Decimal `json:"old_total_interest"`
	NewTotalInterest decimal.Decimal `json:"new_total_interest"`

	OldEndDate time.Time `json:"old_end_date"`
	NewEndDate time.Time `json:"new_end_date"`

	PaymentChange  decimal.Decimal `json:"payment_change"`
	TermChange     int             `json:"term_change"`
	InterestChange decimal.Decimal `json:"interest_change"`
}

type Service interface {
	GetByID(ctx context.Context, id string) (*Liability, error)
	// PreviewAdjustment computes the impact of changing principal, rate,
	// payment, or end date under the given policy without touching any
	// stored schedule.
	PreviewAdjustment(ctx context.Context, liabilityID string, changes Changes, policy AdjustmentPolicy) (Impact, error)
	// ApplyAdjustment persists the changes and regenerates the pending
	// schedule tail.
	ApplyAdjustment(ctx context.Context, liabilityID string, changes Changes, policy AdjustmentPolicy) (Impact, error)
	// RegenerateSchedules deletes only pending schedule rows and rebuilds
	// the forward schedule from the liability's current terms.
	RegenerateSchedules(ctx context.Context, liabilityID string) error
	// SweepOverdue re-statuses pending installments whose due date passed.
	SweepOverdue(ctx context.Context, today time.Time) (int, error)
}

var (
	ErrLiabilityNotFound = errors.New("liability_not_found")
	ErrOwedBelowBalance  = errors.New("total_owed_below_current_balance")
	ErrPaymentTooSmall   = errors.New("payment_does_not_amortize")
	ErrInvalidPolicy     = errors.New("invalid_adjustment_policy")
	ErrInvalidTerm       = errors.New("invalid_term")
)
