package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/monetahq/moneta/internal/clock"
	"github.com/monetahq/moneta/internal/config"
	obligationdomain "github.com/monetahq/moneta/internal/obligation/domain"
	obligationservice "github.com/monetahq/moneta/internal/obligation/service"
	"github.com/monetahq/moneta/internal/recurrence"
	trackingdomain "github.com/monetahq/moneta/internal/tracking/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func setupDispatcherTest(t *testing.T) (*gorm.DB, trackingdomain.Service, *clock.FakeClock, *snowflake.Node) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&obligationdomain.Container{},
		&obligationdomain.CycleOverride{},
		&trackingdomain.Bill{},
		&trackingdomain.ScheduledPayment{},
		&trackingdomain.DirectTransaction{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	fc := clock.NewFakeClock(date(2024, time.March, 1))
	log := zap.NewNop()

	planner := config.NewStaticPlannerConfigHolder(config.DefaultPlannerConfig())
	obligationSvc := obligationservice.NewService(obligationservice.ServiceParam{
		DB:      db,
		Log:     log,
		Clock:   fc,
		Planner: planner,
	})
	trackingSvc := NewService(ServiceParam{
		DB:            db,
		Log:           log,
		GenID:         node,
		Clock:         fc,
		Planner:       planner,
		ObligationSvc: obligationSvc,
	})
	return db, trackingSvc, fc, node
}

func seedContainer(t *testing.T, db *gorm.DB, node *snowflake.Node, mutate func(*obligationdomain.Container)) *obligationdomain.Container {
	t.Helper()

	accountID := node.Generate()
	container := &obligationdomain.Container{
		ID:              node.Generate(),
		UserID:          node.Generate(),
		Name:            "internet",
		Direction:       obligationdomain.DirectionExpense,
		Status:          obligationdomain.ContainerStatusActive,
		AmountMode:      obligationdomain.AmountModeFixed,
		Amount:          49.90,
		Frequency:       recurrence.FrequencyMonth,
		Interval:        1,
		StartDate:       date(2024, time.January, 15),
		FundType:        obligationdomain.FundTypePersonal,
		TrackingMethod:  obligationdomain.TrackingMethodBill,
		LinkedAccountID: &accountID,
		AutoCreate:      true,
		LeadDays:        3,
	}
	if mutate != nil {
		mutate(container)
	}
	require.NoError(t, db.Create(container).Error)
	return container
}

func cycleFor(container *obligationdomain.Container, number int, expected time.Time) obligationdomain.Cycle {
	return obligationdomain.Cycle{
		ContainerID:    container.ID,
		Number:         number,
		ExpectedDate:   expected,
		ExpectedAmount: container.Amount,
	}
}

func TestEnsureTracking_IdempotentAcrossInvocations(t *testing.T) {
	db, svc, _, node := setupDispatcherTest(t)
	container := seedContainer(t, db, node, nil)
	cycle := cycleFor(container, 1, date(2024, time.January, 15))

	first, err := svc.EnsureTracking(context.Background(), container, cycle)
	require.NoError(t, err)
	require.True(t, first.Created)
	assert.Equal(t, trackingdomain.ArtifactKindBill, first.Kind)

	second, err := svc.EnsureTracking(context.Background(), container, cycle)
	require.NoError(t, err)
	assert.False(t, second.Created)
	assert.Equal(t, first.ID, second.ID)

	var count int64
	db.Model(&trackingdomain.Bill{}).Count(&count)
	assert.EqualValues(t, 1, count)
}

func TestEnsureTracking_MethodChangeDoesNotDuplicatePastCycles(t *testing.T) {
	db, svc, _, node := setupDispatcherTest(t)
	container := seedContainer(t, db, node, nil)
	cycle := cycleFor(container, 1, date(2024, time.January, 15))

	first, err := svc.EnsureTracking(context.Background(), container, cycle)
	require.NoError(t, err)

	// Switching the strategy only applies to future cycles.
	container.TrackingMethod = obligationdomain.TrackingMethodDirect
	second, err := svc.EnsureTracking(context.Background(), container, cycle)
	require.NoError(t, err)
	assert.Equal(t, trackingdomain.ArtifactKindBill, second.Kind)
	assert.Equal(t, first.ID, second.ID)

	var directCount int64
	db.Model(&trackingdomain.DirectTransaction{}).Count(&directCount)
	assert.EqualValues(t, 0, directCount)
}

func TestEnsureTracking_ManualNeverPersists(t *testing.T) {
	db, svc, _, node := setupDispatcherTest(t)
	container := seedContainer(t, db, node, func(c *obligationdomain.Container) {
		c.TrackingMethod = obligationdomain.TrackingMethodManual
		c.LinkedAccountID = nil
	})

	for i := 0; i < 3; i++ {
		artifact, err := svc.EnsureTracking(context.Background(), container, cycleFor(container, 4, date(2024, time.April, 15)))
		require.NoError(t, err)
		assert.Equal(t, trackingdomain.ArtifactKindManual, artifact.Kind)
		assert.Equal(t, "cycle-4", artifact.ID)
	}

	var bills, payments, txns int64
	db.Model(&trackingdomain.Bill{}).Count(&bills)
	db.Model(&trackingdomain.ScheduledPayment{}).Count(&payments)
	db.Model(&trackingdomain.DirectTransaction{}).Count(&txns)
	assert.Zero(t, bills+payments+txns)
}

func TestEnsureTracking_ValidationFailures(t *testing.T) {
	db, svc, _, node := setupDispatcherTest(t)

	noAccount := seedContainer(t, db, node, func(c *obligationdomain.Container) {
		c.LinkedAccountID = nil
	})
	_, err := svc.EnsureTracking(context.Background(), noAccount, cycleFor(noAccount, 1, date(2024, time.January, 15)))
	assert.ErrorIs(t, err, trackingdomain.ErrMissingLinkedAccount)

	badFund := seedContainer(t, db, node, func(c *obligationdomain.Container) {
		c.FundType = "employer"
	})
	_, err = svc.EnsureTracking(context.Background(), badFund, cycleFor(badFund, 1, date(2024, time.January, 15)))
	assert.ErrorIs(t, err, trackingdomain.ErrInvalidFundType)

	badCategory := "not-a-uuid"
	badCat := seedContainer(t, db, node, func(c *obligationdomain.Container) {
		c.CategoryID = &badCategory
	})
	_, err = svc.EnsureTracking(context.Background(), badCat, cycleFor(badCat, 1, date(2024, time.January, 15)))
	assert.ErrorIs(t, err, trackingdomain.ErrInvalidCategoryID)

	goodCategory := uuid.NewString()
	goodCat := seedContainer(t, db, node, func(c *obligationdomain.Container) {
		c.CategoryID = &goodCategory
	})
	_, err = svc.EnsureTracking(context.Background(), goodCat, cycleFor(goodCat, 1, date(2024, time.January, 15)))
	assert.NoError(t, err)
}

func TestProcessDueToday_SafeToRerunAndCollectsErrors(t *testing.T) {
	db, svc, fc, node := setupDispatcherTest(t)

	healthy := seedContainer(t, db, node, nil)
	_ = seedContainer(t, db, node, func(c *obligationdomain.Container) {
		c.Name = "misconfigured"
		c.LinkedAccountID = nil // bill strategy without an account
	})
	// Paused containers never reach the batch: the active filter is the
	// dispatch gate, history stays untouched.
	_ = seedContainer(t, db, node, func(c *obligationdomain.Container) {
		c.Name = "paused"
		c.Status = obligationdomain.ContainerStatusPaused
	})

	today := fc.Now()
	result, err := svc.ProcessDueToday(context.Background(), today)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Processed)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "misconfigured", mustFindContainerName(t, db, result.Errors[0].ContainerID))
	// Jan 15 and Feb 15 are within lead time of Mar 1; Mar 15 is not.
	assert.Equal(t, 2, result.Created)

	var bills []trackingdomain.Bill
	db.Find(&bills)
	require.Len(t, bills, 2)
	for _, bill := range bills {
		assert.Equal(t, healthy.ID, bill.ContainerID)
	}

	// Re-running the batch the same day creates nothing new.
	again, err := svc.ProcessDueToday(context.Background(), today)
	require.NoError(t, err)
	assert.Equal(t, 0, again.Created)

	var count int64
	db.Model(&trackingdomain.Bill{}).Count(&count)
	assert.EqualValues(t, 2, count)
}

func mustFindContainerName(t *testing.T, db *gorm.DB, id string) string {
	t.Helper()
	parsed, err := snowflake.ParseString(id)
	require.NoError(t, err)
	var container obligationdomain.Container
	require.NoError(t, db.First(&container, "id = ?", parsed).Error)
	return container.Name
}

func TestSweepOverdue_DueTodayArtifactGoesOverdue(t *testing.T) {
	db, svc, fc, node := setupDispatcherTest(t)
	container := seedContainer(t, db, node, nil)

	// Materialized on its due date, the bill starts as due_today rather
	// than upcoming. The sweep must still move it along once the date
	// passes.
	fc.Set(date(2024, time.March, 15))
	_, err := svc.EnsureTracking(context.Background(), container, cycleFor(container, 3, date(2024, time.March, 15)))
	require.NoError(t, err)

	var bill trackingdomain.Bill
	require.NoError(t, db.First(&bill).Error)
	require.Equal(t, recurrence.StatusDueToday, bill.Status)

	fc.Set(date(2024, time.March, 20))
	swept, err := svc.SweepOverdue(context.Background(), fc.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, swept)

	bill = trackingdomain.Bill{}
	require.NoError(t, db.First(&bill).Error)
	assert.Equal(t, recurrence.StatusOverdue, bill.Status)
}

func TestSweepOverdue_DueTodayScheduledPaymentGoesOverdue(t *testing.T) {
	db, svc, fc, node := setupDispatcherTest(t)
	container := seedContainer(t, db, node, func(c *obligationdomain.Container) {
		c.TrackingMethod = obligationdomain.TrackingMethodScheduled
	})

	fc.Set(date(2024, time.March, 15))
	_, err := svc.EnsureTracking(context.Background(), container, cycleFor(container, 3, date(2024, time.March, 15)))
	require.NoError(t, err)

	fc.Set(date(2024, time.March, 16))
	swept, err := svc.SweepOverdue(context.Background(), fc.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, swept)

	var payment trackingdomain.ScheduledPayment
	require.NoError(t, db.First(&payment).Error)
	assert.Equal(t, recurrence.StatusOverdue, payment.Status)
}

func TestRemindersDueToday_MatchesContainerOffset(t *testing.T) {
	db, svc, fc, node := setupDispatcherTest(t)
	container := seedContainer(t, db, node, func(c *obligationdomain.Container) {
		c.ReminderDays = 3
	})

	// Mar 12 is three days before the container's own Mar 15 occurrence.
	fc.Set(date(2024, time.March, 12))
	reminders, err := svc.RemindersDueToday(context.Background(), fc.Now())
	require.NoError(t, err)
	require.Len(t, reminders, 1)
	assert.Equal(t, container.ID.String(), reminders[0].ContainerID)
	assert.Equal(t, date(2024, time.March, 15), reminders[0].DueDate)
	assert.Equal(t, 3, reminders[0].DaysUntil)

	// On the due date itself the reminder fires with zero days.
	fc.Set(date(2024, time.March, 15))
	reminders, err = svc.RemindersDueToday(context.Background(), fc.Now())
	require.NoError(t, err)
	require.Len(t, reminders, 1)
	assert.Equal(t, 0, reminders[0].DaysUntil)

	// One day off the offset, nothing fires.
	fc.Set(date(2024, time.March, 13))
	reminders, err = svc.RemindersDueToday(context.Background(), fc.Now())
	require.NoError(t, err)
	assert.Empty(t, reminders)
}

func TestRemindersDueToday_PlannerOffsetsWhenContainerSetsNone(t *testing.T) {
	db, svc, fc, node := setupDispatcherTest(t)
	_ = seedContainer(t, db, node, func(c *obligationdomain.Container) {
		c.ReminderDays = 0
	})

	// The default planner offsets are 7, 3, and 1 days out.
	fc.Set(date(2024, time.March, 8))
	reminders, err := svc.RemindersDueToday(context.Background(), fc.Now())
	require.NoError(t, err)
	require.Len(t, reminders, 1)
	assert.Equal(t, 7, reminders[0].DaysUntil)

	fc.Set(date(2024, time.March, 10))
	reminders, err = svc.RemindersDueToday(context.Background(), fc.Now())
	require.NoError(t, err)
	assert.Empty(t, reminders)
}

func TestProcessDueToday_DefaultLeadDaysWhenContainerSetsNone(t *testing.T) {
	db, svc, fc, node := setupDispatcherTest(t)
	_ = seedContainer(t, db, node, func(c *obligationdomain.Container) {
		c.LeadDays = 0
	})

	// Feb 13 with the planner's 3 default lead days reaches the Feb 15
	// cycle; without the fallback only Jan 15 would materialize.
	fc.Set(date(2024, time.February, 13))
	result, err := svc.ProcessDueToday(context.Background(), fc.Now())
	require.NoError(t, err)
	assert.Equal(t, 2, result.Created)
}

func TestSweepOverdue_RestatusesPastDueArtifacts(t *testing.T) {
	db, svc, fc, node := setupDispatcherTest(t)
	container := seedContainer(t, db, node, nil)

	_, err := svc.EnsureTracking(context.Background(), container, cycleFor(container, 3, date(2024, time.March, 15)))
	require.NoError(t, err)

	fc.Set(date(2024, time.March, 20))
	swept, err := svc.SweepOverdue(context.Background(), fc.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, swept)

	var bill trackingdomain.Bill
	require.NoError(t, db.First(&bill).Error)
	assert.Equal(t, recurrence.StatusOverdue, bill.Status)
}
