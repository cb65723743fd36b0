package service

import (
	"context"
	"fmt"

	obligationdomain "github.com/monetahq/moneta/internal/obligation/domain"
	"github.com/monetahq/moneta/internal/recurrence"
	trackingdomain "github.com/monetahq/moneta/internal/tracking/domain"
	"gorm.io/datatypes"
)

// strategy creates the artifact for one tracking method. Implementations
// persist a metadata payload binding the artifact back to its
// (container, cycle number) so future idempotency checks can find it.
type strategy interface {
	create(ctx context.Context, container *obligationdomain.Container, cycle obligationdomain.Cycle) (trackingdomain.Artifact, error)
}

func cycleMetadata(container *obligationdomain.Container, cycle obligationdomain.Cycle) datatypes.JSONMap {
	return datatypes.JSONMap{
		"container_id": container.ID.String(),
		"cycle_number": cycle.Number,
		"source":       "recurring_obligation",
	}
}

type billStrategy struct{ s *Service }

func (b billStrategy) create(ctx context.Context, container *obligationdomain.Container, cycle obligationdomain.Cycle) (trackingdomain.Artifact, error) {
	bill := &trackingdomain.Bill{
		ID:          b.s.genID.Generate(),
		UserID:      container.UserID,
		ContainerID: container.ID,
		CycleNumber: cycle.Number,
		Name:        container.Name,
		Amount:      cycle.ExpectedAmount,
		DueDate:     cycle.ExpectedDate,
		Status:      recurrence.CalculateStatus(cycle.ExpectedDate, b.s.clock.Now(), ""),
		AccountID:   *container.LinkedAccountID,
		CategoryID:  container.CategoryID,
		Metadata:    cycleMetadata(container, cycle),
	}
	if err := b.s.billRepo.Create(ctx, bill); err != nil {
		return trackingdomain.Artifact{}, err
	}
	return trackingdomain.Artifact{Kind: trackingdomain.ArtifactKindBill, ID: bill.ID.String(), Created: true}, nil
}

type scheduledStrategy struct{ s *Service }

func (b scheduledStrategy) create(ctx context.Context, container *obligationdomain.Container, cycle obligationdomain.Cycle) (trackingdomain.Artifact, error) {
	payment := &trackingdomain.ScheduledPayment{
		ID:          b.s.genID.Generate(),
		UserID:      container.UserID,
		ContainerID: container.ID,
		CycleNumber: cycle.Number,
		Amount:      cycle.ExpectedAmount,
		ScheduledAt: cycle.ExpectedDate,
		Status:      recurrence.CalculateStatus(cycle.ExpectedDate, b.s.clock.Now(), ""),
		AccountID:   *container.LinkedAccountID,
		CategoryID:  container.CategoryID,
		Metadata:    cycleMetadata(container, cycle),
	}
	if err := b.s.scheduledRepo.Create(ctx, payment); err != nil {
		return trackingdomain.Artifact{}, err
	}
	return trackingdomain.Artifact{Kind: trackingdomain.ArtifactKindScheduled, ID: payment.ID.String(), Created: true}, nil
}

type directStrategy struct{ s *Service }

func (b directStrategy) create(ctx context.Context, container *obligationdomain.Container, cycle obligationdomain.Cycle) (trackingdomain.Artifact, error) {
	txn := &trackingdomain.DirectTransaction{
		ID:          b.s.genID.Generate(),
		UserID:      container.UserID,
		ContainerID: container.ID,
		CycleNumber: cycle.Number,
		Amount:      cycle.ExpectedAmount,
		PostedAt:    cycle.ExpectedDate,
		AccountID:   *container.LinkedAccountID,
		CategoryID:  container.CategoryID,
		Metadata:    cycleMetadata(container, cycle),
	}
	if err := b.s.directRepo.Create(ctx, txn); err != nil {
		return trackingdomain.Artifact{}, err
	}
	return trackingdomain.Artifact{Kind: trackingdomain.ArtifactKindDirect, ID: txn.ID.String(), Created: true}, nil
}

// manualStrategy persists nothing: the user tracks the cycle themselves.
// The synthetic marker keeps the dispatch result shape uniform.
type manualStrategy struct{}

func (manualStrategy) create(_ context.Context, _ *obligationdomain.Container, cycle obligationdomain.Cycle) (trackingdomain.Artifact, error) {
	return trackingdomain.Artifact{
		Kind:    trackingdomain.ArtifactKindManual,
		ID:      fmt.Sprintf("cycle-%d", cycle.Number),
		Created: true,
	}, nil
}
