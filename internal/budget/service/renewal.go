package service

import (
	"context"
	"time"

	auditdomain "github.com/monetahq/moneta/internal/audit/domain"
	budgetdomain "github.com/monetahq/moneta/internal/budget/domain"
	"github.com/monetahq/moneta/internal/recurrence"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ExecuteRenewalDecision applies exactly one renewal path. Closed-period
// figures are never retroactively altered; repeat and extend always leave
// the old row behind with its final numbers.
func (s *Service) ExecuteRenewalDecision(ctx context.Context, budgetID string, decision budgetdomain.RenewalDecision) (*budgetdomain.Budget, error) {
	budget, err := s.GetByID(ctx, budgetID)
	if err != nil {
		return nil, err
	}
	if !budget.Active {
		return nil, budgetdomain.ErrBudgetInactive
	}

	switch decision.Action {
	case budgetdomain.RenewalContinue:
		return s.renewContinue(ctx, budget, decision)
	case budgetdomain.RenewalRepeat:
		return s.closeAndClone(ctx, budget, nil, "budget.renewal.repeat")
	case budgetdomain.RenewalExtendRecurring:
		def := &recurrence.Definition{
			Frequency: decision.Frequency,
			Interval:  decision.Interval,
			StartDate: budget.StartDate,
		}
		if def.Frequency == "" {
			def.Frequency = recurrence.FrequencyMonth
			def.Interval = 1
		}
		if err := def.Validate(); err != nil {
			return nil, budgetdomain.ErrInvalidRecurrent
		}
		return s.closeAndClone(ctx, budget, def, "budget.renewal.extend_to_recurring")
	default:
		return nil, budgetdomain.ErrInvalidRenewal
	}
}

// renewContinue keeps the same budget row and pushes its end date out by one
// period length.
func (s *Service) renewContinue(ctx context.Context, budget *budgetdomain.Budget, decision budgetdomain.RenewalDecision) (*budgetdomain.Budget, error) {
	duration := recurrence.DaysUntil(budget.EndDate, budget.StartDate)
	newEnd := recurrence.DateOnly(budget.EndDate).AddDate(0, 0, duration)

	updates := map[string]any{
		"end_date":         newEnd,
		"reflection_ready": false,
	}
	if decision.ResetSpent {
		updates["spent_amount"] = decimal.Zero
		updates["remaining_amount"] = budget.Amount
	}
	if err := s.budgetRepo.Update(ctx, budget.ID.String(), updates); err != nil {
		return nil, err
	}

	_ = s.auditSvc.Record(ctx, auditdomain.ActorTypeUser, "budget.renewal.continue", "budget", budget.ID.String(), map[string]any{
		"new_end_date": newEnd.Format(time.DateOnly),
		"reset_spent":  decision.ResetSpent,
	})
	return s.GetByID(ctx, budget.ID.String())
}

// nextPeriodRange computes the clone's date range. A recurrence definition
// drives the next start when present; otherwise the next period starts the
// day after the old one ends and keeps the same length.
func nextPeriodRange(budget *budgetdomain.Budget, def *recurrence.Definition) (time.Time, time.Time) {
	if def != nil {
		start := recurrence.NextAfter(*def, budget.StartDate)
		end := recurrence.NextAfter(*def, start).AddDate(0, 0, -1)
		return start, end
	}
	duration := recurrence.DaysUntil(budget.EndDate, budget.StartDate)
	start := recurrence.DateOnly(budget.EndDate).AddDate(0, 0, 1)
	return start, start.AddDate(0, 0, duration)
}

// closeAndClone deactivates the old period and creates the next one,
// carrying the rollover remainder into the new cap when enabled and copying
// the linked accounts.
func (s *Service) closeAndClone(ctx context.Context, budget *budgetdomain.Budget, def *recurrence.Definition, auditAction string) (*budgetdomain.Budget, error) {
	start, end := nextPeriodRange(budget, def)

	amount := budget.Amount
	if budget.RolloverEnabled && budget.RemainingAmount.IsPositive() {
		amount = amount.Add(budget.RemainingAmount)
	}

	next := &budgetdomain.Budget{
		ID:              s.genID.Generate(),
		UserID:          budget.UserID,
		Name:            budget.Name,
		Mode:            budget.Mode,
		Amount:          amount,
		StartDate:       start,
		EndDate:         end,
		RolloverEnabled: budget.RolloverEnabled,
		RemainingAmount: amount,
		Active:          true,
	}
	if def != nil {
		next.RecurrenceFrequency = def.Frequency
		next.RecurrenceInterval = def.Interval
	}

	links, err := s.accountRepo.Find(ctx, &budgetdomain.BudgetAccount{BudgetID: budget.ID})
	if err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		oldUpdates := map[string]any{
			"active":           false,
			"reflection_ready": false,
		}
		if def != nil {
			oldUpdates["recurrence_frequency"] = def.Frequency
			oldUpdates["recurrence_interval"] = def.Interval
		}
		if err := s.budgetRepo.WithTrx(tx).Update(ctx, budget.ID.String(), oldUpdates); err != nil {
			return err
		}

		if err := s.budgetRepo.WithTrx(tx).Create(ctx, next); err != nil {
			return err
		}

		clones := make([]*budgetdomain.BudgetAccount, 0, len(links))
		for _, link := range links {
			clones = append(clones, &budgetdomain.BudgetAccount{
				ID:        s.genID.Generate(),
				BudgetID:  next.ID,
				AccountID: link.AccountID,
			})
		}
		if len(clones) > 0 {
			if err := s.accountRepo.WithTrx(tx).BatchCreate(ctx, clones); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	_ = s.auditSvc.Record(ctx, auditdomain.ActorTypeUser, auditAction, "budget", budget.ID.String(), map[string]any{
		"next_budget_id": next.ID.String(),
		"next_start":     start.Format(time.DateOnly),
		"next_end":       end.Format(time.DateOnly),
		"rollover":       budget.RolloverEnabled,
	})
	return next, nil
}
