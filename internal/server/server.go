// Package server exposes the domain services over HTTP. Handlers stay thin:
// parse, delegate, translate errors.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/monetahq/moneta/internal/audit"
	"github.com/monetahq/moneta/internal/budget"
	budgetdomain "github.com/monetahq/moneta/internal/budget/domain"
	"github.com/monetahq/moneta/internal/clock"
	"github.com/monetahq/moneta/internal/config"
	"github.com/monetahq/moneta/internal/liability"
	liabilitydomain "github.com/monetahq/moneta/internal/liability/domain"
	"github.com/monetahq/moneta/internal/obligation"
	obligationdomain "github.com/monetahq/moneta/internal/obligation/domain"
	"github.com/monetahq/moneta/internal/scheduler"
	"github.com/monetahq/moneta/internal/tracking"
	trackingdomain "github.com/monetahq/moneta/internal/tracking/domain"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	audit.Module,
	obligation.Module,
	tracking.Module,
	liability.Module,
	budget.Module,
	scheduler.Module,
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin() *gin.Engine {
	return NewEngine()
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config, log *zap.Logger) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server failed", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine        *gin.Engine
	cfg           config.Config
	clock         clock.Clock
	obligationSvc obligationdomain.Service
	trackingSvc   trackingdomain.Service
	liabilitySvc  liabilitydomain.Service
	budgetSvc     budgetdomain.Service
	scheduler     *scheduler.Scheduler
}

type ServerParams struct {
	fx.In

	Gin           *gin.Engine
	Cfg           config.Config
	Clock         clock.Clock
	ObligationSvc obligationdomain.Service
	TrackingSvc   trackingdomain.Service
	LiabilitySvc  liabilitydomain.Service
	BudgetSvc     budgetdomain.Service
	Scheduler     *scheduler.Scheduler
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:        p.Gin,
		cfg:           p.Cfg,
		clock:         p.Clock,
		obligationSvc: p.ObligationSvc,
		trackingSvc:   p.TrackingSvc,
		liabilitySvc:  p.LiabilitySvc,
		budgetSvc:     p.BudgetSvc,
		scheduler:     p.Scheduler,
	}

	svc.registerAPIRoutes()
	svc.registerAdminRoutes()

	return svc
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api/v1")

	api.GET("/containers", s.listContainers)
	api.GET("/containers/:id", s.getContainer)
	api.GET("/containers/:id/cycles", s.listCycles)
	api.POST("/containers/:id/dispatch", s.dispatchContainer)
	api.GET("/reminders", s.listReminders)

	api.GET("/liabilities/:id", s.getLiability)
	api.POST("/liabilities/:id/adjustments/preview", s.previewAdjustment)
	api.POST("/liabilities/:id/adjustments", s.applyAdjustment)
	api.POST("/liabilities/:id/schedules/regenerate", s.regenerateSchedules)

	api.GET("/budgets/:id", s.getBudget)
	api.GET("/budgets/:id/reflection", s.budgetReflection)
	api.POST("/budgets/:id/renewal", s.budgetRenewal)
}

func (s *Server) registerAdminRoutes() {
	admin := s.engine.Group("/admin")
	admin.POST("/scheduler/run", s.runSchedulerOnce)
}
