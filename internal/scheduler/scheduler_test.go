package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	auditdomain "github.com/monetahq/moneta/internal/audit/domain"
	auditservice "github.com/monetahq/moneta/internal/audit/service"
	budgetdomain "github.com/monetahq/moneta/internal/budget/domain"
	budgetservice "github.com/monetahq/moneta/internal/budget/service"
	"github.com/monetahq/moneta/internal/clock"
	"github.com/monetahq/moneta/internal/config"
	liabilitydomain "github.com/monetahq/moneta/internal/liability/domain"
	liabilityservice "github.com/monetahq/moneta/internal/liability/service"
	obligationdomain "github.com/monetahq/moneta/internal/obligation/domain"
	obligationservice "github.com/monetahq/moneta/internal/obligation/service"
	"github.com/monetahq/moneta/internal/recurrence"
	trackingdomain "github.com/monetahq/moneta/internal/tracking/domain"
	trackingservice "github.com/monetahq/moneta/internal/tracking/service"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

type fixture struct {
	db    *gorm.DB
	sched *Scheduler
	fc    *clock.FakeClock
	node  *snowflake.Node
}

func setupSchedulerTest(t *testing.T, cfg Config) *fixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&obligationdomain.Container{},
		&obligationdomain.CycleOverride{},
		&trackingdomain.Bill{},
		&trackingdomain.ScheduledPayment{},
		&trackingdomain.DirectTransaction{},
		&liabilitydomain.Liability{},
		&liabilitydomain.Schedule{},
		&budgetdomain.Budget{},
		&budgetdomain.BudgetAccount{},
		&budgetdomain.Transaction{},
		&auditdomain.AuditLog{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	fc := clock.NewFakeClock(date(2024, time.March, 1))
	log := zap.NewNop()

	planner := config.NewStaticPlannerConfigHolder(config.DefaultPlannerConfig())
	auditSvc := auditservice.NewService(auditservice.Params{DB: db, Log: log, GenID: node})
	obligationSvc := obligationservice.NewService(obligationservice.ServiceParam{DB: db, Log: log, Clock: fc, Planner: planner})
	trackingSvc := trackingservice.NewService(trackingservice.ServiceParam{
		DB:            db,
		Log:           log,
		GenID:         node,
		Clock:         fc,
		Planner:       planner,
		ObligationSvc: obligationSvc,
	})
	liabilitySvc := liabilityservice.NewService(liabilityservice.ServiceParam{
		DB:       db,
		Log:      log,
		GenID:    node,
		Clock:    fc,
		AuditSvc: auditSvc,
	})
	budgetSvc := budgetservice.NewService(budgetservice.ServiceParam{
		DB:       db,
		Log:      log,
		GenID:    node,
		Clock:    fc,
		Planner:  planner,
		AuditSvc: auditSvc,
	})

	sched, err := New(Params{
		Log:          log,
		Clock:        fc,
		TrackingSvc:  trackingSvc,
		LiabilitySvc: liabilitySvc,
		BudgetSvc:    budgetSvc,
		AuditSvc:     auditSvc,
		Config:       cfg,
	})
	require.NoError(t, err)
	return &fixture{db: db, sched: sched, fc: fc, node: node}
}

func (f *fixture) seedContainer(t *testing.T) *obligationdomain.Container {
	t.Helper()

	accountID := f.node.Generate()
	container := &obligationdomain.Container{
		ID:              f.node.Generate(),
		UserID:          f.node.Generate(),
		Name:            "rent",
		Direction:       obligationdomain.DirectionExpense,
		Status:          obligationdomain.ContainerStatusActive,
		AmountMode:      obligationdomain.AmountModeFixed,
		Amount:          1200,
		Frequency:       recurrence.FrequencyMonth,
		Interval:        1,
		StartDate:       date(2024, time.January, 15),
		FundType:        obligationdomain.FundTypePersonal,
		TrackingMethod:  obligationdomain.TrackingMethodBill,
		LinkedAccountID: &accountID,
		AutoCreate:      true,
		LeadDays:        3,
	}
	require.NoError(t, f.db.Create(container).Error)
	return container
}

func TestRunOnceExecutesAllJobs(t *testing.T) {
	f := setupSchedulerTest(t, Config{})
	f.seedContainer(t)

	// Pending installment already past due.
	liability := &liabilitydomain.Liability{
		ID:                 f.node.Generate(),
		UserID:             f.node.Generate(),
		Name:               "car loan",
		TotalOwed:          decimal.RequireFromString("120000"),
		CurrentBalance:     decimal.RequireFromString("120000"),
		AnnualInterestRate: decimal.RequireFromString("12"),
		PeriodicalPayment:  decimal.RequireFromString("5000"),
		StartDate:          date(2024, time.January, 15),
	}
	require.NoError(t, f.db.Create(liability).Error)
	require.NoError(t, f.db.Create(&liabilitydomain.Schedule{
		ID:                 f.node.Generate(),
		LiabilityID:        liability.ID,
		DueDate:            date(2024, time.February, 15),
		Amount:             decimal.RequireFromString("5000"),
		PrincipalComponent: decimal.RequireFromString("3800"),
		InterestComponent:  decimal.RequireFromString("1200"),
		RemainingBalance:   decimal.RequireFromString("116200"),
		Status:             liabilitydomain.ScheduleStatusPending,
	}).Error)

	// Ended budget period still marked active.
	budget := &budgetdomain.Budget{
		ID:        f.node.Generate(),
		UserID:    f.node.Generate(),
		Name:      "groceries",
		Mode:      budgetdomain.ModeCap,
		Amount:    decimal.RequireFromString("10000"),
		StartDate: date(2024, time.February, 1),
		EndDate:   date(2024, time.February, 29),
		Active:    true,
	}
	require.NoError(t, f.db.Create(budget).Error)

	require.NoError(t, f.sched.RunOnce(context.Background()))

	// January and February cycles fall within the lead window of March 1.
	var billCount int64
	require.NoError(t, f.db.Model(&trackingdomain.Bill{}).Count(&billCount).Error)
	assert.EqualValues(t, 2, billCount)

	var installment liabilitydomain.Schedule
	require.NoError(t, f.db.First(&installment, "liability_id = ?", liability.ID).Error)
	assert.Equal(t, liabilitydomain.ScheduleStatusOverdue, installment.Status)

	var reloaded budgetdomain.Budget
	require.NoError(t, f.db.First(&reloaded, "id = ?", budget.ID).Error)
	assert.True(t, reloaded.ReflectionReady)
	assert.True(t, reloaded.Active)

	// Re-running creates nothing new.
	require.NoError(t, f.sched.RunOnce(context.Background()))
	require.NoError(t, f.db.Model(&trackingdomain.Bill{}).Count(&billCount).Error)
	assert.EqualValues(t, 2, billCount)

	var auditCount int64
	require.NoError(t, f.db.Model(&auditdomain.AuditLog{}).
		Where("action = ?", "scheduler.materialize_tracking").Count(&auditCount).Error)
	assert.EqualValues(t, 2, auditCount)
}

func TestRunOnceAdvancesWithClock(t *testing.T) {
	f := setupSchedulerTest(t, Config{})
	f.seedContainer(t)

	require.NoError(t, f.sched.RunOnce(context.Background()))

	var billCount int64
	require.NoError(t, f.db.Model(&trackingdomain.Bill{}).Count(&billCount).Error)
	assert.EqualValues(t, 2, billCount)

	// March 12 puts the March 15 cycle inside the 3-day lead window.
	f.fc.Set(date(2024, time.March, 12))
	require.NoError(t, f.sched.RunOnce(context.Background()))
	require.NoError(t, f.db.Model(&trackingdomain.Bill{}).Count(&billCount).Error)
	assert.EqualValues(t, 3, billCount)
}

func TestEnabledJobsAllowlist(t *testing.T) {
	f := setupSchedulerTest(t, Config{EnabledJobs: []string{"budget_reflection"}})
	f.seedContainer(t)

	require.NoError(t, f.sched.RunOnce(context.Background()))

	// Materialization was skipped.
	var billCount int64
	require.NoError(t, f.db.Model(&trackingdomain.Bill{}).Count(&billCount).Error)
	assert.Zero(t, billCount)
}

func TestNewRejectsMissingDependencies(t *testing.T) {
	_, err := New(Params{})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
