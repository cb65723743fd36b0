package service

import (
	"time"

	obligationdomain "github.com/monetahq/moneta/internal/obligation/domain"
	"github.com/monetahq/moneta/internal/recurrence"
)

// BuildCycles expands a container's recurrence into numbered cycles up to
// windowEnd. Numbering always starts at the container's start date so cycle
// numbers stay stable as the window slides; overrides are applied by cycle
// number and replace amount and/or date without renumbering.
func BuildCycles(
	container *obligationdomain.Container,
	overrides []*obligationdomain.CycleOverride,
	windowEnd time.Time,
	today time.Time,
) ([]obligationdomain.Cycle, error) {
	def := container.Recurrence()
	if err := def.Validate(); err != nil {
		return nil, obligationdomain.ErrInvalidRecurrence
	}

	occurrences := recurrence.Schedule(def, recurrence.Window{
		Start: def.StartDate,
		End:   windowEnd,
		Today: today,
	})

	byNumber := make(map[int]*obligationdomain.CycleOverride, len(overrides))
	for _, o := range overrides {
		byNumber[o.CycleNumber] = o
	}

	cycles := make([]obligationdomain.Cycle, 0, len(occurrences))
	for i, occ := range occurrences {
		number := i + 1
		cycle := obligationdomain.Cycle{
			ContainerID:    container.ID,
			Number:         number,
			ExpectedDate:   occ.Date,
			ExpectedAmount: container.Amount,
			PeriodStart:    occ.Date,
			PeriodEnd:      recurrence.NextAfter(def, occ.Date).AddDate(0, 0, -1),
		}
		if override, ok := byNumber[number]; ok {
			if override.Amount != nil {
				cycle.ExpectedAmount = *override.Amount
			}
			if override.Date != nil {
				cycle.ExpectedDate = recurrence.DateOnly(*override.Date)
			}
			cycle.Overridden = true
		}
		cycles = append(cycles, cycle)
	}
	return cycles, nil
}

// cyclesNeedingTracking keeps cycles whose expected date minus the resolved
// lead time has arrived. Whether an artifact already exists is the
// dispatcher's concern, not repeated here. A paused or ended container is a
// hard stop: cycles may be computable but none need tracking.
func cyclesNeedingTracking(
	container *obligationdomain.Container,
	cycles []obligationdomain.Cycle,
	today time.Time,
	leadDays int,
) []obligationdomain.Cycle {
	if container.Status != obligationdomain.ContainerStatusActive {
		return nil
	}

	due := make([]obligationdomain.Cycle, 0, len(cycles))
	for _, cycle := range cycles {
		materializeOn := cycle.ExpectedDate.AddDate(0, 0, -leadDays)
		if !recurrence.DateOnly(materializeOn).After(recurrence.DateOnly(today)) {
			due = append(due, cycle)
		}
	}
	return due
}
