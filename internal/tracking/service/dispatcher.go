package service

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/monetahq/moneta/internal/clock"
	"github.com/monetahq/moneta/internal/config"
	obsmetrics "github.com/monetahq/moneta/internal/observability/metrics"
	obligationdomain "github.com/monetahq/moneta/internal/obligation/domain"
	trackingdomain "github.com/monetahq/moneta/internal/tracking/domain"
	"github.com/monetahq/moneta/pkg/db"
	"github.com/monetahq/moneta/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB            *gorm.DB
	Log           *zap.Logger
	GenID         *snowflake.Node
	Clock         clock.Clock
	Planner       *config.PlannerConfigHolder
	ObligationSvc obligationdomain.Service
}

// Service is the payment tracking dispatcher. Per (container, cycle) the
// transition is one-way: none -> exactly one artifact kind.
type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	planner *config.PlannerConfigHolder

	obligationSvc obligationdomain.Service

	billRepo      repository.Repository[trackingdomain.Bill]
	scheduledRepo repository.Repository[trackingdomain.ScheduledPayment]
	directRepo    repository.Repository[trackingdomain.DirectTransaction]

	strategies map[obligationdomain.TrackingMethod]strategy
}

func NewService(p ServiceParam) trackingdomain.Service {
	s := &Service{
		db:      p.DB,
		log:     p.Log.Named("tracking.dispatcher"),
		genID:   p.GenID,
		clock:   p.Clock,
		planner: p.Planner,

		obligationSvc: p.ObligationSvc,

		billRepo:      repository.ProvideStore[trackingdomain.Bill](p.DB),
		scheduledRepo: repository.ProvideStore[trackingdomain.ScheduledPayment](p.DB),
		directRepo:    repository.ProvideStore[trackingdomain.DirectTransaction](p.DB),
	}
	// The strategy is selected once per dispatch; nothing downstream
	// branches on the method string again.
	s.strategies = map[obligationdomain.TrackingMethod]strategy{
		obligationdomain.TrackingMethodBill:      billStrategy{s},
		obligationdomain.TrackingMethodScheduled: scheduledStrategy{s},
		obligationdomain.TrackingMethodDirect:    directStrategy{s},
		obligationdomain.TrackingMethodManual:    manualStrategy{},
	}
	return s
}

func (s *Service) EnsureTracking(ctx context.Context, container *obligationdomain.Container, cycle obligationdomain.Cycle) (trackingdomain.Artifact, error) {
	if err := validateContainer(container); err != nil {
		return trackingdomain.Artifact{}, err
	}

	// Look across all three kinds before creating anything. An artifact
	// created under a previous tracking method still wins: method changes
	// apply to future cycles only.
	existing, err := s.findExisting(ctx, container.ID, cycle.Number)
	if err != nil {
		return trackingdomain.Artifact{}, err
	}
	if existing != nil {
		return *existing, nil
	}

	strat, ok := s.strategies[container.TrackingMethod]
	if !ok {
		return trackingdomain.Artifact{}, trackingdomain.ErrUnknownTrackingMethod
	}

	artifact, err := strat.create(ctx, container, cycle)
	if err != nil {
		// Each artifact table carries its own (container_id, cycle_number)
		// unique index, so this backstop only catches same-kind races. A
		// concurrent dispatch racing a tracking-method edit is excluded by
		// the serial batch plus the three-kind lookup above, not by the
		// database.
		if db.IsDuplicateKeyErr(err) {
			obsmetrics.Dispatcher().IncDuplicateResolved()
			existing, findErr := s.findExisting(ctx, container.ID, cycle.Number)
			if findErr != nil {
				return trackingdomain.Artifact{}, findErr
			}
			if existing != nil {
				return *existing, nil
			}
		}
		return trackingdomain.Artifact{}, err
	}

	if artifact.Created && artifact.Kind != trackingdomain.ArtifactKindManual {
		obsmetrics.Dispatcher().IncArtifactCreated(string(artifact.Kind))
		s.log.Info("tracking artifact created",
			zap.String("container_id", container.ID.String()),
			zap.Int("cycle_number", cycle.Number),
			zap.String("kind", string(artifact.Kind)),
		)
	}
	return artifact, nil
}

// validateContainer fails fast on configuration the strategies cannot work
// with: these are surfaced to the caller and never retried.
func validateContainer(container *obligationdomain.Container) error {
	switch container.FundType {
	case obligationdomain.FundTypePersonal, obligationdomain.FundTypeLiability, obligationdomain.FundTypeGoal:
	default:
		return trackingdomain.ErrInvalidFundType
	}

	if container.CategoryID != nil {
		if _, err := uuid.Parse(*container.CategoryID); err != nil {
			return fmt.Errorf("%w: %q", trackingdomain.ErrInvalidCategoryID, *container.CategoryID)
		}
	}

	// Every payable strategy needs a funding account; manual does not.
	if container.TrackingMethod != obligationdomain.TrackingMethodManual && container.LinkedAccountID == nil {
		return trackingdomain.ErrMissingLinkedAccount
	}
	return nil
}

// findExisting is the idempotency lookup: (containerID, cycleNumber) across
// bills, scheduled payments, and direct transactions.
func (s *Service) findExisting(ctx context.Context, containerID snowflake.ID, cycleNumber int) (*trackingdomain.Artifact, error) {
	bill, err := s.billRepo.FindOne(ctx, &trackingdomain.Bill{ContainerID: containerID, CycleNumber: cycleNumber})
	if err != nil {
		return nil, err
	}
	if bill != nil {
		return &trackingdomain.Artifact{Kind: trackingdomain.ArtifactKindBill, ID: bill.ID.String()}, nil
	}

	scheduled, err := s.scheduledRepo.FindOne(ctx, &trackingdomain.ScheduledPayment{ContainerID: containerID, CycleNumber: cycleNumber})
	if err != nil {
		return nil, err
	}
	if scheduled != nil {
		return &trackingdomain.Artifact{Kind: trackingdomain.ArtifactKindScheduled, ID: scheduled.ID.String()}, nil
	}

	direct, err := s.directRepo.FindOne(ctx, &trackingdomain.DirectTransaction{ContainerID: containerID, CycleNumber: cycleNumber})
	if err != nil {
		return nil, err
	}
	if direct != nil {
		return &trackingdomain.Artifact{Kind: trackingdomain.ArtifactKindDirect, ID: direct.ID.String()}, nil
	}
	return nil, nil
}
