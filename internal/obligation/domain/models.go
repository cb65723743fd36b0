// Package domain contains persistence models for recurring obligation
// containers and their computed cycles.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/monetahq/moneta/internal/recurrence"
	"gorm.io/datatypes"
)

// Direction distinguishes money coming in from money going out.
type Direction string

const (
	DirectionIncome  Direction = "income"
	DirectionExpense Direction = "expense"
)

// AmountMode says whether a container's amount is exact or an estimate.
type AmountMode string

const (
	AmountModeFixed     AmountMode = "fixed"
	AmountModeEstimated AmountMode = "estimated"
)

// FundType names the funding source category of a container.
type FundType string

const (
	FundTypePersonal  FundType = "personal"
	FundTypeLiability FundType = "liability"
	FundTypeGoal      FundType = "goal"
)

// TrackingMethod selects which artifact kind a cycle materializes into.
type TrackingMethod string

const (
	TrackingMethodBill      TrackingMethod = "bill"
	TrackingMethodScheduled TrackingMethod = "scheduled_transaction"
	TrackingMethodDirect    TrackingMethod = "direct"
	TrackingMethodManual    TrackingMethod = "manual"
)

// ContainerStatus is the container lifecycle. Only active containers ever
// materialize tracking artifacts; pausing or ending a container gates
// dispatch without deleting history.
type ContainerStatus string

const (
	ContainerStatusActive ContainerStatus = "active"
	ContainerStatusPaused ContainerStatus = "paused"
	ContainerStatusEnded  ContainerStatus = "ended"
)

// Container is a user-level recurring obligation template: a subscription,
// a salary, a rent payment.
type Container struct {
	ID        snowflake.ID    `gorm:"primaryKey"`
	UserID    snowflake.ID    `gorm:"not null;index"`
	Name      string          `gorm:"type:text;not null"`
	Direction Direction       `gorm:"type:text;not null"`
	Status    ContainerStatus `gorm:"type:text;not null;default:'active'"`

	AmountMode AmountMode `gorm:"type:text;not null;default:'fixed'"`
	Amount     float64    `gorm:"not null"`

	Frequency  recurrence.Frequency      `gorm:"type:text;not null"`
	Interval   int                       `gorm:"not null;default:1"`
	CustomUnit recurrence.Unit           `gorm:"type:text"`
	Weekdays   datatypes.JSONSlice[int]  `gorm:"type:jsonb"`
	DayOfMonth int                       `gorm:""`
	StartDate  time.Time                 `gorm:"not null"`
	EndDate    *time.Time                `gorm:""`

	FundType        FundType       `gorm:"type:text;not null;default:'personal'"`
	TrackingMethod  TrackingMethod `gorm:"type:text;not null;default:'manual'"`
	LinkedAccountID *snowflake.ID  `gorm:"index"`
	CategoryID      *string        `gorm:"type:text"`

	AutoCreate   bool `gorm:"not null;default:true"`
	LeadDays     int  `gorm:"not null;default:0"`
	ReminderDays int  `gorm:"not null;default:0"`

	Metadata  datatypes.JSONMap `gorm:"type:jsonb"`
	CreatedAt time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Container) TableName() string { return "obligation_containers" }

// Recurrence maps the container's stored schedule fields onto a definition.
func (c Container) Recurrence() recurrence.Definition {
	weekdays := make([]time.Weekday, 0, len(c.Weekdays))
	for _, d := range c.Weekdays {
		weekdays = append(weekdays, time.Weekday(d))
	}
	return recurrence.Definition{
		Frequency:  c.Frequency,
		Interval:   c.Interval,
		CustomUnit: c.CustomUnit,
		Weekdays:   weekdays,
		DayOfMonth: c.DayOfMonth,
		StartDate:  c.StartDate,
		EndDate:    c.EndDate,
	}
}

// CycleOverride replaces the expected amount and/or date of one cycle. It is
// keyed by cycle number and never renumbers cycles.
type CycleOverride struct {
	ID          snowflake.ID `gorm:"primaryKey"`
	ContainerID snowflake.ID `gorm:"not null;uniqueIndex:ux_cycle_override,priority:1"`
	CycleNumber int          `gorm:"not null;uniqueIndex:ux_cycle_override,priority:2"`
	Amount      *float64     `gorm:""`
	Date        *time.Time   `gorm:""`
	Note        string       `gorm:"type:text"`
	CreatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (CycleOverride) TableName() string { return "cycle_overrides" }

// Cycle is one numbered occurrence of a container. Cycles are computed from
// the recurrence definition, never stored: numbers are dense, 1-based, and
// strictly increasing with date.
type Cycle struct {
	ContainerID    snowflake.ID
	Number         int
	ExpectedDate   time.Time
	ExpectedAmount float64
	PeriodStart    time.Time
	PeriodEnd      time.Time
	Overridden     bool
}
