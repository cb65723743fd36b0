// Package domain contains persistence models for liabilities and their
// generated installment schedules.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// ScheduleStatus is the lifecycle of one installment. Completed and
// cancelled rows are immutable history; only pending rows are ever
// regenerated.
type ScheduleStatus string

const (
	ScheduleStatusPending   ScheduleStatus = "pending"
	ScheduleStatusCompleted ScheduleStatus = "completed"
	ScheduleStatusCancelled ScheduleStatus = "cancelled"
	ScheduleStatusOverdue   ScheduleStatus = "overdue"
)

// Liability is an owed balance being retired by periodic payments.
type Liability struct {
	ID     snowflake.ID `gorm:"primaryKey"`
	UserID snowflake.ID `gorm:"not null;index"`
	Name   string       `gorm:"type:text;not null"`

	TotalOwed          decimal.Decimal `gorm:"type:numeric(14,2);not null"`
	CurrentBalance     decimal.Decimal `gorm:"type:numeric(14,2);not null"`
	AnnualInterestRate decimal.Decimal `gorm:"type:numeric(7,4);not null"` // percent
	PeriodicalPayment  decimal.Decimal `gorm:"type:numeric(14,2);not null"`

	StartDate        time.Time     `gorm:"not null"`
	NextDueDate      *time.Time    `gorm:""`
	TargetPayoffDate *time.Time    `gorm:""`
	LinkedAccountID  *snowflake.ID `gorm:"index"`

	Metadata  datatypes.JSONMap `gorm:"type:jsonb"`
	CreatedAt time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Liability) TableName() string { return "liabilities" }

// Schedule is one generated installment. The principal/interest breakdown is
// stored alongside the row so the audit trail survives later recalculations.
type Schedule struct {
	ID          snowflake.ID `gorm:"primaryKey"`
	LiabilityID snowflake.ID `gorm:"not null;index:ix_liability_schedule"`

	DueDate            time.Time       `gorm:"not null;index"`
	Amount             decimal.Decimal `gorm:"type:numeric(14,2);not null"`
	PrincipalComponent decimal.Decimal `gorm:"type:numeric(14,2);not null"`
	InterestComponent  decimal.Decimal `gorm:"type:numeric(14,2);not null"`
	RemainingBalance   decimal.Decimal `gorm:"type:numeric(14,2);not null"`

	Status    ScheduleStatus    `gorm:"type:text;not null;default:'pending';index:ix_liability_schedule"`
	Metadata  datatypes.JSONMap `gorm:"type:jsonb"`
	CreatedAt time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Schedule) TableName() string { return "liability_schedules" }
