package domain

import (
	"context"
	"errors"
	"time"
)

type GenerateCyclesRequest struct {
	ContainerID string
	// WindowEnd bounds how far forward cycles are computed. Zero means one
	// year past the window start.
	WindowEnd time.Time
}

type Service interface {
	GetByID(ctx context.Context, id string) (*Container, error)
	// GenerateCycles expands a container into its numbered cycles, applying
	// any per-cycle overrides.
	GenerateCycles(ctx context.Context, req GenerateCyclesRequest) ([]Cycle, error)
	// CyclesNeedingTracking filters cycles to those within the container's
	// auto-create lead time as of today. Containers that are not active
	// never yield cycles needing tracking.
	CyclesNeedingTracking(container *Container, cycles []Cycle, today time.Time) []Cycle
	// EffectiveLeadDays resolves the container's auto-create lead time,
	// falling back to the planner default when the container sets none.
	EffectiveLeadDays(container *Container) int
	ListActiveAutoCreate(ctx context.Context) ([]*Container, error)
}

var (
	ErrContainerNotFound = errors.New("container_not_found")
	ErrInvalidRecurrence = errors.New("invalid_recurrence")
)
