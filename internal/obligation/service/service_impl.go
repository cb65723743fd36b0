package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/monetahq/moneta/internal/clock"
	"github.com/monetahq/moneta/internal/config"
	obligationdomain "github.com/monetahq/moneta/internal/obligation/domain"
	"github.com/monetahq/moneta/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	Clock   clock.Clock
	Planner *config.PlannerConfigHolder
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	clock   clock.Clock
	planner *config.PlannerConfigHolder

	containerRepo repository.Repository[obligationdomain.Container]
	overrideRepo  repository.Repository[obligationdomain.CycleOverride]
}

func NewService(p ServiceParam) obligationdomain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("obligation.service"),
		clock:   p.Clock,
		planner: p.Planner,

		containerRepo: repository.ProvideStore[obligationdomain.Container](p.DB),
		overrideRepo:  repository.ProvideStore[obligationdomain.CycleOverride](p.DB),
	}
}

func (s *Service) GetByID(ctx context.Context, id string) (*obligationdomain.Container, error) {
	parsed, err := snowflake.ParseString(id)
	if err != nil {
		return nil, obligationdomain.ErrContainerNotFound
	}
	container, err := s.containerRepo.FindOne(ctx, &obligationdomain.Container{ID: parsed})
	if err != nil {
		return nil, err
	}
	if container == nil {
		return nil, obligationdomain.ErrContainerNotFound
	}
	return container, nil
}

func (s *Service) GenerateCycles(ctx context.Context, req obligationdomain.GenerateCyclesRequest) ([]obligationdomain.Cycle, error) {
	container, err := s.GetByID(ctx, req.ContainerID)
	if err != nil {
		return nil, err
	}

	overrides, err := s.overrideRepo.Find(ctx, &obligationdomain.CycleOverride{ContainerID: container.ID})
	if err != nil {
		return nil, err
	}

	windowEnd := req.WindowEnd
	if windowEnd.IsZero() {
		windowEnd = s.clock.Now().AddDate(1, 0, 0)
	}
	return BuildCycles(container, overrides, windowEnd, s.clock.Now())
}

func (s *Service) CyclesNeedingTracking(container *obligationdomain.Container, cycles []obligationdomain.Cycle, today time.Time) []obligationdomain.Cycle {
	return cyclesNeedingTracking(container, cycles, today, s.EffectiveLeadDays(container))
}

func (s *Service) EffectiveLeadDays(container *obligationdomain.Container) int {
	if container.LeadDays > 0 {
		return container.LeadDays
	}
	return s.planner.Get().DefaultLeadDays
}

func (s *Service) ListActiveAutoCreate(ctx context.Context) ([]*obligationdomain.Container, error) {
	return s.containerRepo.Find(ctx, &obligationdomain.Container{
		Status:     obligationdomain.ContainerStatusActive,
		AutoCreate: true,
	})
}
