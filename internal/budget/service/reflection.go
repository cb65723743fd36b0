package service

import (
	"context"
	"time"

	budgetdomain "github.com/monetahq/moneta/internal/budget/domain"
	"github.com/monetahq/moneta/internal/recurrence"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PrepareForReflection recomputes the period, derives the summary, and raises
// the reflection flag. The budget stays active so the caller can present the
// summary before any renewal decision lands.
func (s *Service) PrepareForReflection(ctx context.Context, budgetID string) (budgetdomain.Summary, error) {
	budget, err := s.Recompute(ctx, budgetID)
	if err != nil {
		return budgetdomain.Summary{}, err
	}

	transactions, err := s.countedTransactions(ctx, budget)
	if err != nil {
		return budgetdomain.Summary{}, err
	}

	today := recurrence.DateOnly(s.clock.Now())
	summary := budgetdomain.Summary{
		BudgetID:          budget.ID,
		Amount:            budget.Amount,
		Spent:             budget.SpentAmount,
		Remaining:         budget.RemainingAmount,
		PercentUsed:       percentUsed(budget),
		CategoryBreakdown: categoryBreakdown(transactions),
		Pace:              computePace(budget, today, s.planner.Get().PaceTolerance),
		Consistency:       consistency(budget, transactions, today),
	}

	prior, err := s.priorPeriod(ctx, budget)
	if err != nil {
		return budgetdomain.Summary{}, err
	}
	if prior != nil {
		summary.Prior = &budgetdomain.PriorComparison{
			PriorSpent: prior.SpentAmount,
			Delta:      budget.SpentAmount.Sub(prior.SpentAmount),
		}
	}

	summary.Streak, err = s.streak(ctx, budget)
	if err != nil {
		return budgetdomain.Summary{}, err
	}

	if !budget.ReflectionReady {
		if err := s.budgetRepo.Update(ctx, budget.ID.String(), map[string]any{
			"reflection_ready": true,
		}); err != nil {
			return budgetdomain.Summary{}, err
		}
	}

	s.log.Debug("reflection prepared",
		zap.String("budget_id", budget.ID.String()),
		zap.Float64("percent_used", summary.PercentUsed),
		zap.Int("streak", summary.Streak))
	return summary, nil
}

func percentUsed(budget *budgetdomain.Budget) float64 {
	if !budget.Amount.IsPositive() {
		return 0
	}
	ratio, _ := budget.SpentAmount.Div(budget.Amount).Float64()
	return ratio * 100
}

func categoryBreakdown(transactions []*budgetdomain.Transaction) map[string]decimal.Decimal {
	breakdown := make(map[string]decimal.Decimal, 8)
	for _, transaction := range transactions {
		category := "uncategorized"
		if transaction.CategoryID != nil && *transaction.CategoryID != "" {
			category = *transaction.CategoryID
		}
		breakdown[category] = breakdown[category].Add(transaction.Amount)
	}
	return breakdown
}

// computePace compares the actual average daily spend against the pace that
// would land exactly on the amount at period end. Within the tolerance band
// above the ideal still counts as on track.
func computePace(budget *budgetdomain.Budget, today time.Time, tolerance float64) budgetdomain.Pace {
	daysElapsed := recurrence.DaysUntil(today, budget.StartDate)
	daysRemaining := recurrence.DaysUntil(budget.EndDate, today)
	if daysElapsed < 1 {
		daysElapsed = 1
	}
	if daysRemaining < 1 {
		daysRemaining = 1
	}

	spent, _ := budget.SpentAmount.Float64()
	remaining, _ := budget.RemainingAmount.Float64()

	pace := budgetdomain.Pace{
		IdealDailySpend:  remaining / float64(daysRemaining),
		ActualDailySpend: spent / float64(daysElapsed),
	}
	pace.OnTrack = pace.ActualDailySpend <= pace.IdealDailySpend*(1+tolerance)
	return pace
}

// consistency is the fraction of elapsed period days carrying at least one
// transaction.
func consistency(budget *budgetdomain.Budget, transactions []*budgetdomain.Transaction, today time.Time) float64 {
	last := recurrence.DateOnly(budget.EndDate)
	if today.Before(last) {
		last = today
	}
	daysElapsed := recurrence.DaysUntil(last, budget.StartDate) + 1
	if daysElapsed < 1 {
		return 0
	}

	seen := make(map[time.Time]bool, daysElapsed)
	for _, transaction := range transactions {
		day := recurrence.DateOnly(transaction.Date)
		if !day.After(last) {
			seen[day] = true
		}
	}
	return float64(len(seen)) / float64(daysElapsed)
}

// streak walks backward through contiguous prior periods of the same budget
// line, counting how many in a row met their goal. The walk stops at the
// first gap or miss.
func (s *Service) streak(ctx context.Context, budget *budgetdomain.Budget) (int, error) {
	count := 0
	current := budget
	for {
		prior, err := s.priorPeriod(ctx, current)
		if err != nil {
			return 0, err
		}
		if prior == nil || !goalMet(prior) {
			return count, nil
		}
		count++
		current = prior
	}
}

// goalMet is mode-aware: a cap is met by staying at or under the amount, a
// save target by reaching it.
func goalMet(budget *budgetdomain.Budget) bool {
	if budget.Mode == budgetdomain.ModeSaveTarget {
		return budget.SpentAmount.GreaterThanOrEqual(budget.Amount)
	}
	return budget.SpentAmount.LessThanOrEqual(budget.Amount)
}
