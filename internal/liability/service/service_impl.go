package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/monetahq/moneta/internal/audit/domain"
	"github.com/monetahq/moneta/internal/clock"
	liabilitydomain "github.com/monetahq/moneta/internal/liability/domain"
	"github.com/monetahq/moneta/internal/recurrence"
	"github.com/monetahq/moneta/pkg/repository"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	AuditSvc auditdomain.Service
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	auditSvc auditdomain.Service

	liabilityRepo repository.Repository[liabilitydomain.Liability]
	scheduleRepo  repository.Repository[liabilitydomain.Schedule]
}

func NewService(p ServiceParam) liabilitydomain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("liability.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		auditSvc: p.AuditSvc,

		liabilityRepo: repository.ProvideStore[liabilitydomain.Liability](p.DB),
		scheduleRepo:  repository.ProvideStore[liabilitydomain.Schedule](p.DB),
	}
}

func (s *Service) GetByID(ctx context.Context, id string) (*liabilitydomain.Liability, error) {
	parsed, err := snowflake.ParseString(id)
	if err != nil {
		return nil, liabilitydomain.ErrLiabilityNotFound
	}
	liability, err := s.liabilityRepo.FindOne(ctx, &liabilitydomain.Liability{ID: parsed})
	if err != nil {
		return nil, err
	}
	if liability == nil {
		return nil, liabilitydomain.ErrLiabilityNotFound
	}
	return liability, nil
}

// currentTerms resolves the amortization inputs of a stored liability. The
// first due date is the recorded next due date, falling back to one month
// past the start date.
func (s *Service) currentTerms(liability *liabilitydomain.Liability) terms {
	firstDue := liability.StartDate.AddDate(0, 1, 0)
	if liability.NextDueDate != nil {
		firstDue = *liability.NextDueDate
	}
	return terms{
		Balance:    liability.CurrentBalance,
		AnnualRate: liability.AnnualInterestRate,
		Payment:    liability.PeriodicalPayment,
		FirstDue:   recurrence.DateOnly(firstDue),
	}
}

func validateChanges(liability *liabilitydomain.Liability, changes liabilitydomain.Changes) error {
	// A total owed below the already-outstanding balance would imply
	// negative debt paid off.
	if changes.TotalOwed != nil && changes.TotalOwed.LessThan(liability.CurrentBalance) {
		return liabilitydomain.ErrOwedBelowBalance
	}
	return nil
}

func (s *Service) PreviewAdjustment(ctx context.Context, liabilityID string, changes liabilitydomain.Changes, policy liabilitydomain.AdjustmentPolicy) (liabilitydomain.Impact, error) {
	liability, err := s.GetByID(ctx, liabilityID)
	if err != nil {
		return liabilitydomain.Impact{}, err
	}
	if err := validateChanges(liability, changes); err != nil {
		return liabilitydomain.Impact{}, err
	}
	return recalcImpact(s.currentTerms(liability), changes, policy)
}

func (s *Service) ApplyAdjustment(ctx context.Context, liabilityID string, changes liabilitydomain.Changes, policy liabilitydomain.AdjustmentPolicy) (liabilitydomain.Impact, error) {
	impact, err := s.PreviewAdjustment(ctx, liabilityID, changes, policy)
	if err != nil {
		return liabilitydomain.Impact{}, err
	}

	liability, err := s.GetByID(ctx, liabilityID)
	if err != nil {
		return liabilitydomain.Impact{}, err
	}

	updates := map[string]any{
		"periodical_payment": impact.NewPayment,
		"target_payoff_date": impact.NewEndDate,
	}
	if changes.TotalOwed != nil {
		updates["total_owed"] = *changes.TotalOwed
	}
	if changes.Balance != nil {
		updates["current_balance"] = *changes.Balance
	}
	if changes.AnnualRate != nil {
		updates["annual_interest_rate"] = *changes.AnnualRate
	}
	if err := s.liabilityRepo.Update(ctx, liability.ID.String(), updates); err != nil {
		return liabilitydomain.Impact{}, err
	}

	if err := s.RegenerateSchedules(ctx, liabilityID); err != nil {
		return liabilitydomain.Impact{}, err
	}

	_ = s.auditSvc.Record(ctx, auditdomain.ActorTypeUser, "liability.adjusted", "liability", liability.ID.String(), map[string]any{
		"policy":          string(policy),
		"payment_change":  impact.PaymentChange.String(),
		"term_change":     impact.TermChange,
		"interest_change": impact.InterestChange.String(),
	})
	return impact, nil
}

// RegenerateSchedules rebuilds the pending tail of a liability's schedule.
// Completed and cancelled rows are never touched; that is what lets
// adjustments land mid-stream without corrupting the audit trail.
func (s *Service) RegenerateSchedules(ctx context.Context, liabilityID string) error {
	liability, err := s.GetByID(ctx, liabilityID)
	if err != nil {
		return err
	}

	current := s.currentTerms(liability)
	installments, err := GenerateSchedule(current.Balance, current.Payment, current.AnnualRate, current.FirstDue, liability.TargetPayoffDate)
	if err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("liability_id = ? AND status IN (?, ?)",
			liability.ID,
			liabilitydomain.ScheduleStatusPending,
			liabilitydomain.ScheduleStatusOverdue,
		).Delete(&liabilitydomain.Schedule{}).Error
		if err != nil {
			return err
		}

		rows := make([]*liabilitydomain.Schedule, 0, len(installments))
		for _, installment := range installments {
			rows = append(rows, &liabilitydomain.Schedule{
				ID:                 s.genID.Generate(),
				LiabilityID:        liability.ID,
				DueDate:            installment.DueDate,
				Amount:             installment.Payment,
				PrincipalComponent: installment.Principal,
				InterestComponent:  installment.Interest,
				RemainingBalance:   installment.Remaining,
				Status:             liabilitydomain.ScheduleStatusPending,
			})
		}
		if err := s.scheduleRepo.WithTrx(tx).BatchCreate(ctx, rows); err != nil {
			return err
		}

		if len(rows) > 0 {
			if err := s.liabilityRepo.WithTrx(tx).Update(ctx, liability.ID.String(), map[string]any{
				"next_due_date": rows[0].DueDate,
			}); err != nil {
				return err
			}
		}
		return nil
	})
}

// SweepOverdue marks pending installments whose due date passed. Statuses
// come from the shared recurrence classification, not local date math.
func (s *Service) SweepOverdue(ctx context.Context, today time.Time) (int, error) {
	pending, err := s.scheduleRepo.Find(ctx, &liabilitydomain.Schedule{Status: liabilitydomain.ScheduleStatusPending})
	if err != nil {
		return 0, err
	}

	swept := 0
	for _, row := range pending {
		if recurrence.CalculateStatus(row.DueDate, today, "") != recurrence.StatusOverdue {
			continue
		}
		if err := s.scheduleRepo.Update(ctx, row.ID.String(), map[string]any{
			"status": liabilitydomain.ScheduleStatusOverdue,
		}); err != nil {
			return swept, err
		}
		swept++
	}
	return swept, nil
}

// PendingPrincipal sums the principal components of a liability's pending
// rows; at generation time it equals the current balance.
func (s *Service) PendingPrincipal(ctx context.Context, liabilityID snowflake.ID) (decimal.Decimal, error) {
	rows, err := s.scheduleRepo.Find(ctx, &liabilitydomain.Schedule{
		LiabilityID: liabilityID,
		Status:      liabilitydomain.ScheduleStatusPending,
	})
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, row := range rows {
		total = total.Add(row.PrincipalComponent)
	}
	return total, nil
}
