package service

import (
	"math"
	"time"

	liabilitydomain "github.com/monetahq/moneta/internal/liability/domain"
	"github.com/monetahq/moneta/internal/recurrence"
	"github.com/shopspring/decimal"
)

// maxInstallments caps schedule generation (100 years of monthly payments).
const maxInstallments = 1200

// monthlyRate converts an annual percentage rate to the per-month decimal
// rate: r/1200.
func monthlyRate(annualPercent decimal.Decimal) decimal.Decimal {
	return annualPercent.Div(decimal.NewFromInt(1200))
}

// LevelPayment computes the fixed monthly payment that retires balance over
// termMonths: B·i·(1+i)^n / ((1+i)^n − 1), or an even split at zero
// interest.
func LevelPayment(balance, annualRate decimal.Decimal, termMonths int) (decimal.Decimal, error) {
	if termMonths < 1 {
		return decimal.Zero, liabilitydomain.ErrInvalidTerm
	}

	i := annualRate.InexactFloat64() / 1200
	if i == 0 {
		return balance.Div(decimal.NewFromInt(int64(termMonths))).Round(2), nil
	}

	factor := math.Pow(1+i, float64(termMonths))
	payment := balance.InexactFloat64() * i * factor / (factor - 1)
	return decimal.NewFromFloat(payment).Round(2), nil
}

// TermMonths inverts the level-payment formula: the number of monthly
// payments of size payment needed to retire balance.
func TermMonths(balance, annualRate, payment decimal.Decimal) (int, error) {
	if !payment.IsPositive() {
		return 0, liabilitydomain.ErrPaymentTooSmall
	}

	i := annualRate.InexactFloat64() / 1200
	b := balance.InexactFloat64()
	p := payment.InexactFloat64()

	if i == 0 {
		return int(math.Ceil(b / p)), nil
	}

	// 1 − B·i/P ≤ 0 means the payment does not even cover interest.
	x := 1 - b*i/p
	if x <= 0 {
		return 0, liabilitydomain.ErrPaymentTooSmall
	}
	n := -math.Log(x) / math.Log(1+i)
	return int(math.Ceil(n - 1e-9)), nil
}

// GenerateSchedule simulates the schedule forward month by month. Each
// period's interest is remaining × i and principal is payment − interest;
// the final installment is truncated to retire the balance exactly, so the
// principal components always sum to the starting balance. Generation stops
// at zero balance or when the due date would pass endDate, whichever comes
// first.
func GenerateSchedule(balance, payment, annualRate decimal.Decimal, firstDue time.Time, endDate *time.Time) ([]liabilitydomain.Installment, error) {
	i := monthlyRate(annualRate)
	def := recurrence.Definition{
		Frequency: recurrence.FrequencyMonth,
		Interval:  1,
		StartDate: firstDue,
	}

	installments := make([]liabilitydomain.Installment, 0, 12)
	remaining := balance
	due := recurrence.DateOnly(firstDue)

	for number := 1; remaining.IsPositive() && number <= maxInstallments; number++ {
		if endDate != nil && due.After(recurrence.DateOnly(*endDate)) {
			break
		}

		interest := remaining.Mul(i).Round(2)
		principal := payment.Sub(interest)
		amount := payment
		if !principal.IsPositive() {
			return nil, liabilitydomain.ErrPaymentTooSmall
		}
		if principal.GreaterThanOrEqual(remaining) {
			principal = remaining
			amount = remaining.Add(interest)
		}
		remaining = remaining.Sub(principal)

		installments = append(installments, liabilitydomain.Installment{
			Number:    number,
			DueDate:   due,
			Payment:   amount,
			Principal: principal,
			Interest:  interest,
			Remaining: remaining,
		})
		due = recurrence.Next(def, due)
	}
	return installments, nil
}

// TotalInterest accumulates interest by simulating the schedule forward.
func TotalInterest(balance, payment, annualRate decimal.Decimal) (decimal.Decimal, error) {
	schedule, err := GenerateSchedule(balance, payment, annualRate, time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC), nil)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, installment := range schedule {
		total = total.Add(installment.Interest)
	}
	return total, nil
}

// terms is the engine's view of a liability's current amortization inputs.
type terms struct {
	Balance    decimal.Decimal
	AnnualRate decimal.Decimal
	Payment    decimal.Decimal
	FirstDue   time.Time
}

func monthsBetween(a, b time.Time) int {
	return (b.Year()-a.Year())*12 + int(b.Month()) - int(a.Month())
}

func endDateForTerm(firstDue time.Time, termMonths int) time.Time {
	def := recurrence.Definition{
		Frequency: recurrence.FrequencyMonth,
		Interval:  termMonths - 1,
		StartDate: firstDue,
	}
	if termMonths <= 1 {
		return recurrence.DateOnly(firstDue)
	}
	return recurrence.Next(def, firstDue)
}

// recalcImpact computes the before/after comparison for a set of changes
// under an adjustment policy. It mutates nothing; callers surface the
// impact to the user before any schedule is regenerated.
func recalcImpact(old terms, changes liabilitydomain.Changes, policy liabilitydomain.AdjustmentPolicy) (liabilitydomain.Impact, error) {
	oldTerm, err := TermMonths(old.Balance, old.AnnualRate, old.Payment)
	if err != nil {
		return liabilitydomain.Impact{}, err
	}
	oldInterest, err := TotalInterest(old.Balance, old.Payment, old.AnnualRate)
	if err != nil {
		return liabilitydomain.Impact{}, err
	}
	oldEnd := endDateForTerm(old.FirstDue, oldTerm)

	newBalance := old.Balance
	if changes.Balance != nil {
		newBalance = *changes.Balance
	}
	newRate := old.AnnualRate
	if changes.AnnualRate != nil {
		newRate = *changes.AnnualRate
	}

	var newPayment decimal.Decimal
	var newTerm int
	var newEnd time.Time

	switch policy {
	case liabilitydomain.PolicyHoldPayment:
		newPayment = old.Payment
		newTerm, err = TermMonths(newBalance, newRate, newPayment)
		if err != nil {
			return liabilitydomain.Impact{}, err
		}

	case liabilitydomain.PolicyHoldEndDate:
		// The end date is the fixed side of the equation: it is echoed
		// back verbatim, never recomputed.
		target := oldEnd
		if changes.EndDate != nil {
			target = recurrence.DateOnly(*changes.EndDate)
		}
		newEnd = target
		newTerm = monthsBetween(old.FirstDue, target) + 1
		if newTerm < 1 {
			return liabilitydomain.Impact{}, liabilitydomain.ErrInvalidTerm
		}
		newPayment, err = LevelPayment(newBalance, newRate, newTerm)
		if err != nil {
			return liabilitydomain.Impact{}, err
		}

	case liabilitydomain.PolicyCustom:
		switch {
		case changes.Payment != nil && changes.EndDate != nil:
			newPayment = *changes.Payment
			newEnd = recurrence.DateOnly(*changes.EndDate)
			newTerm = monthsBetween(old.FirstDue, newEnd) + 1
		case changes.Payment != nil:
			newPayment = *changes.Payment
			newTerm, err = TermMonths(newBalance, newRate, newPayment)
			if err != nil {
				return liabilitydomain.Impact{}, err
			}
		case changes.EndDate != nil:
			newEnd = recurrence.DateOnly(*changes.EndDate)
			newTerm = monthsBetween(old.FirstDue, newEnd) + 1
			if newTerm < 1 {
				return liabilitydomain.Impact{}, liabilitydomain.ErrInvalidTerm
			}
			newPayment, err = LevelPayment(newBalance, newRate, newTerm)
			if err != nil {
				return liabilitydomain.Impact{}, err
			}
		default:
			return liabilitydomain.Impact{}, liabilitydomain.ErrInvalidPolicy
		}

	default:
		return liabilitydomain.Impact{}, liabilitydomain.ErrInvalidPolicy
	}

	newInterest, err := TotalInterest(newBalance, newPayment, newRate)
	if err != nil {
		return liabilitydomain.Impact{}, err
	}
	if newEnd.IsZero() {
		newEnd = endDateForTerm(old.FirstDue, newTerm)
	}

	return liabilitydomain.Impact{
		OldPayment:       old.Payment,
		NewPayment:       newPayment,
		OldTermMonths:    oldTerm,
		NewTermMonths:    newTerm,
		OldTotalInterest: oldInterest,
		NewTotalInterest: newInterest,
		OldEndDate:       oldEnd,
		NewEndDate:       newEnd,
		PaymentChange:    newPayment.Sub(old.Payment),
		TermChange:       newTerm - oldTerm,
		InterestChange:   newInterest.Sub(oldInterest),
	}, nil
}
