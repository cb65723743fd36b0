// Package domain contains the tracking artifact models: the concrete
// entities a cycle materializes into. At most one artifact exists per
// (container, cycle number) pair across all three kinds.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/monetahq/moneta/internal/recurrence"
	"gorm.io/datatypes"
)

// ArtifactKind names the tracking strategies.
type ArtifactKind string

const (
	ArtifactKindBill      ArtifactKind = "bill"
	ArtifactKindScheduled ArtifactKind = "scheduled_payment"
	ArtifactKindDirect    ArtifactKind = "transaction"
	ArtifactKindManual    ArtifactKind = "manual"
)

// Bill is a payable obligation awaiting settlement.
type Bill struct {
	ID          snowflake.ID      `gorm:"primaryKey"`
	UserID      snowflake.ID      `gorm:"not null;index"`
	ContainerID snowflake.ID      `gorm:"not null;uniqueIndex:ux_bill_cycle,priority:1"`
	CycleNumber int               `gorm:"not null;uniqueIndex:ux_bill_cycle,priority:2"`
	Name        string            `gorm:"type:text;not null"`
	Amount      float64           `gorm:"not null"`
	DueDate     time.Time         `gorm:"not null;index"`
	Status      recurrence.Status `gorm:"type:text;not null;default:'upcoming'"`
	AccountID   snowflake.ID      `gorm:"not null"`
	CategoryID  *string           `gorm:"type:text"`
	Metadata    datatypes.JSONMap `gorm:"type:jsonb"`
	CreatedAt   time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt   time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Bill) TableName() string { return "bills" }

// ScheduledPayment is a payment queued against an account for a future date.
type ScheduledPayment struct {
	ID          snowflake.ID      `gorm:"primaryKey"`
	UserID      snowflake.ID      `gorm:"not null;index"`
	ContainerID snowflake.ID      `gorm:"not null;uniqueIndex:ux_scheduled_cycle,priority:1"`
	CycleNumber int               `gorm:"not null;uniqueIndex:ux_scheduled_cycle,priority:2"`
	Amount      float64           `gorm:"not null"`
	ScheduledAt time.Time         `gorm:"not null;index"`
	Status      recurrence.Status `gorm:"type:text;not null;default:'upcoming'"`
	AccountID   snowflake.ID      `gorm:"not null"`
	CategoryID  *string           `gorm:"type:text"`
	Metadata    datatypes.JSONMap `gorm:"type:jsonb"`
	CreatedAt   time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt   time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (ScheduledPayment) TableName() string { return "scheduled_payments" }

// DirectTransaction posts the cycle straight onto the account ledger.
type DirectTransaction struct {
	ID          snowflake.ID      `gorm:"primaryKey"`
	UserID      snowflake.ID      `gorm:"not null;index"`
	ContainerID snowflake.ID      `gorm:"not null;uniqueIndex:ux_direct_cycle,priority:1"`
	CycleNumber int               `gorm:"not null;uniqueIndex:ux_direct_cycle,priority:2"`
	Amount      float64           `gorm:"not null"`
	PostedAt    time.Time         `gorm:"not null;index"`
	AccountID   snowflake.ID      `gorm:"not null"`
	CategoryID  *string           `gorm:"type:text"`
	Excluded    bool              `gorm:"not null;default:false"`
	Metadata    datatypes.JSONMap `gorm:"type:jsonb"`
	CreatedAt   time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt   time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (DirectTransaction) TableName() string { return "direct_transactions" }

// Artifact is the dispatch outcome handed back to callers. Manual tracking
// yields a synthetic, non-persisted marker: callers must treat that as "no
// entity created", not an error.
type Artifact struct {
	Kind    ArtifactKind
	ID      string
	Created bool
}
