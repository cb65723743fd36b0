package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/monetahq/moneta/internal/audit/domain"
	budgetdomain "github.com/monetahq/moneta/internal/budget/domain"
	"github.com/monetahq/moneta/internal/clock"
	"github.com/monetahq/moneta/internal/config"
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
	Planner  *config.PlannerConfigHolder
	AuditSvc auditdomain.Service
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	planner  *config.PlannerConfigHolder
	auditSvc auditdomain.Service

	budgetRepo  repository.Repository[budgetdomain.Budget]
	accountRepo repository.Repository[budgetdomain.BudgetAccount]
}

func NewService(p ServiceParam) budgetdomain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("budget.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		planner:  p.Planner,
		auditSvc: p.AuditSvc,

		budgetRepo:  repository.ProvideStore[budgetdomain.Budget](p.DB),
		accountRepo: repository.ProvideStore[budgetdomain.BudgetAccount](p.DB),
	}
}

func (s *Service) GetByID(ctx context.Context, id string) (*budgetdomain.Budget, error) {
	parsed, err := snowflake.ParseString(id)
	if err != nil {
		return nil, budgetdomain.ErrBudgetNotFound
	}
	budget, err := s.budgetRepo.FindOne(ctx, &budgetdomain.Budget{ID: parsed})
	if err != nil {
		return nil, err
	}
	if budget == nil {
		return nil, budgetdomain.ErrBudgetNotFound
	}
	return budget, nil
}

// countedTransactions loads the non-excluded transactions on the budget's
// linked accounts within the period.
func (s *Service) countedTransactions(ctx context.Context, budget *budgetdomain.Budget) ([]*budgetdomain.Transaction, error) {
	links, err := s.accountRepo.Find(ctx, &budgetdomain.BudgetAccount{BudgetID: budget.ID})
	if err != nil {
		return nil, err
	}
	if len(links) == 0 {
		return nil, nil
	}

	accountIDs := make([]snowflake.ID, 0, len(links))
	for _, link := range links {
		accountIDs = append(accountIDs, link.AccountID)
	}

	var transactions []*budgetdomain.Transaction
	err = s.db.WithContext(ctx).
		Where("account_id IN ?", accountIDs).
		Where("excluded = ?", false).
		Where("date >= ? AND date <= ?", recurrence.DateOnly(budget.StartDate), recurrence.DateOnly(budget.EndDate)).
		Order("date").
		Find(&transactions).Error
	if err != nil {
		return nil, err
	}
	return transactions, nil
}

// Recompute derives spent and remaining from scratch. The aggregates are
// stored for cheap reads but the transactions stay the source of truth.
func (s *Service) Recompute(ctx context.Context, budgetID string) (*budgetdomain.Budget, error) {
	budget, err := s.GetByID(ctx, budgetID)
	if err != nil {
		return nil, err
	}

	transactions, err := s.countedTransactions(ctx, budget)
	if err != nil {
		return nil, err
	}

	spent := decimal.Zero
	for _, transaction := range transactions {
		spent = spent.Add(transaction.Amount)
	}
	remaining := budget.Amount.Sub(spent)
	if remaining.IsNegative() {
		remaining = decimal.Zero
	}

	if err := s.budgetRepo.Update(ctx, budget.ID.String(), map[string]any{
		"spent_amount":     spent,
		"remaining_amount": remaining,
	}); err != nil {
		return nil, err
	}
	budget.SpentAmount = spent
	budget.RemainingAmount = remaining
	return budget, nil
}

// priorPeriod finds the immediately preceding contiguous period of the same
// budget line, identified by user and name ending the day before this one
// starts.
func (s *Service) priorPeriod(ctx context.Context, budget *budgetdomain.Budget) (*budgetdomain.Budget, error) {
	var prior budgetdomain.Budget
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND name = ? AND end_date = ?",
			budget.UserID, budget.Name,
			recurrence.DateOnly(budget.StartDate).AddDate(0, 0, -1)).
		First(&prior).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &prior, nil
}

// FlagEndedBudgets marks active budgets whose period closed before today as
// ready for reflection. It only raises the flag; spent figures and activity
// are untouched.
func (s *Service) FlagEndedBudgets(ctx context.Context, today time.Time) (int, error) {
	result := s.db.WithContext(ctx).
		Model(&budgetdomain.Budget{}).
		Where("active = ? AND reflection_ready = ? AND end_date < ?",
			true, false, recurrence.DateOnly(today)).
		Update("reflection_ready", true)
	if result.Error != nil {
		return 0, result.Error
	}
	return int(result.RowsAffected), nil
}
