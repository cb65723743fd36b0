package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
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
	"github.com/monetahq/moneta/internal/scheduler"
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

type serverFixture struct {
	db     *gorm.DB
	server *Server
	node   *snowflake.Node
}

func setupServerTest(t *testing.T) *serverFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

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
		DB: db, Log: log, GenID: node, Clock: fc, Planner: planner, ObligationSvc: obligationSvc,
	})
	liabilitySvc := liabilityservice.NewService(liabilityservice.ServiceParam{
		DB: db, Log: log, GenID: node, Clock: fc, AuditSvc: auditSvc,
	})
	budgetSvc := budgetservice.NewService(budgetservice.ServiceParam{
		DB: db, Log: log, GenID: node, Clock: fc,
		Planner:  planner,
		AuditSvc: auditSvc,
	})
	sched, err := scheduler.New(scheduler.Params{
		Log: log, Clock: fc,
		TrackingSvc: trackingSvc, LiabilitySvc: liabilitySvc,
		BudgetSvc: budgetSvc, AuditSvc: auditSvc,
	})
	require.NoError(t, err)

	srv := NewServer(ServerParams{
		Gin:           NewEngine(),
		Cfg:           config.Config{HTTPAddr: ":0"},
		Clock:         fc,
		ObligationSvc: obligationSvc,
		TrackingSvc:   trackingSvc,
		LiabilitySvc:  liabilitySvc,
		BudgetSvc:     budgetSvc,
		Scheduler:     sched,
	})
	return &serverFixture{db: db, server: srv, node: node}
}

func (f *serverFixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.server.engine.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	f := setupServerTest(t)
	rec := f.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGetContainerNotFound(t *testing.T) {
	f := setupServerTest(t)
	rec := f.do(t, http.MethodGet, "/api/v1/containers/"+f.node.Generate().String(), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListCyclesAndDispatch(t *testing.T) {
	f := setupServerTest(t)

	accountID := f.node.Generate()
	container := &obligationdomain.Container{
		ID:              f.node.Generate(),
		UserID:          f.node.Generate(),
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
	require.NoError(t, f.db.Create(container).Error)

	rec := f.do(t, http.MethodGet, "/api/v1/containers/"+container.ID.String()+"/cycles?window_end=2024-04-30", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var cyclesResp struct {
		Cycles []obligationdomain.Cycle `json:"cycles"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cyclesResp))
	assert.Len(t, cyclesResp.Cycles, 4)

	rec = f.do(t, http.MethodPost, "/api/v1/containers/"+container.ID.String()+"/dispatch", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var billCount int64
	require.NoError(t, f.db.Model(&trackingdomain.Bill{}).Count(&billCount).Error)
	assert.EqualValues(t, 2, billCount)

	// Dispatch is idempotent.
	rec = f.do(t, http.MethodPost, "/api/v1/containers/"+container.ID.String()+"/dispatch", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, f.db.Model(&trackingdomain.Bill{}).Count(&billCount).Error)
	assert.EqualValues(t, 2, billCount)
}

func TestPreviewAdjustmentEndpoint(t *testing.T) {
	f := setupServerTest(t)

	nextDue := date(2024, time.April, 1)
	liability := &liabilitydomain.Liability{
		ID:                 f.node.Generate(),
		UserID:             f.node.Generate(),
		Name:               "loan",
		TotalOwed:          decimal.RequireFromString("100000"),
		CurrentBalance:     decimal.RequireFromString("100000"),
		AnnualInterestRate: decimal.RequireFromString("10"),
		PeriodicalPayment:  decimal.RequireFromString("4500"),
		StartDate:          date(2024, time.March, 1),
		NextDueDate:        &nextDue,
	}
	require.NoError(t, f.db.Create(liability).Error)

	body := `{"policy":"hold_end_date","end_date":"2025-03-01"}`
	rec := f.do(t, http.MethodPost, "/api/v1/liabilities/"+liability.ID.String()+"/adjustments/preview", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var impact liabilitydomain.Impact
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &impact))
	assert.Equal(t, 12, impact.NewTermMonths)
	assert.True(t, impact.NewPayment.Equal(decimal.RequireFromString("8791.59")), impact.NewPayment.String())

	// A preview mutates nothing.
	var scheduleCount int64
	require.NoError(t, f.db.Model(&liabilitydomain.Schedule{}).Count(&scheduleCount).Error)
	assert.Zero(t, scheduleCount)
}

func TestBudgetRenewalEndpointRejectsUnknownAction(t *testing.T) {
	f := setupServerTest(t)

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

	rec := f.do(t, http.MethodPost, "/api/v1/budgets/"+budget.ID.String()+"/renewal", `{"action":"pause"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSchedulerRunEndpoint(t *testing.T) {
	f := setupServerTest(t)
	rec := f.do(t, http.MethodPost, "/admin/scheduler/run", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}
