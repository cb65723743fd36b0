// Package domain contains the budget period models. A budget's spent and
// remaining amounts are derived aggregates: they are recomputed in full from
// the linked transactions on every touch, never maintained incrementally.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/monetahq/moneta/internal/recurrence"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Mode decides how the amount is interpreted: a spending cap or a saving
// target.
type Mode string

const (
	ModeCap        Mode = "cap"
	ModeSaveTarget Mode = "save_target"
)

// Budget is one bounded spending period. When RecurrenceFrequency is set the
// budget self-renews; otherwise each period ends in an explicit renewal
// decision.
type Budget struct {
	ID     snowflake.ID `gorm:"primaryKey"`
	UserID snowflake.ID `gorm:"not null;index"`
	Name   string       `gorm:"type:text;not null"`

	Mode   Mode            `gorm:"type:text;not null;default:'cap'"`
	Amount decimal.Decimal `gorm:"type:numeric(14,2);not null"`

	StartDate time.Time `gorm:"not null;index"`
	EndDate   time.Time `gorm:"not null;index"`

	RecurrenceFrequency recurrence.Frequency `gorm:"type:text"`
	RecurrenceInterval  int                  `gorm:""`

	RolloverEnabled bool `gorm:"not null;default:false"`

	SpentAmount     decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0"`
	RemainingAmount decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0"`

	ReflectionReady bool `gorm:"not null;default:false"`
	Active          bool `gorm:"not null;default:true;index"`

	Metadata  datatypes.JSONMap `gorm:"type:jsonb"`
	CreatedAt time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Budget) TableName() string { return "budgets" }

// Recurrence maps the stored pattern to a definition. Nil when the budget
// does not self-renew.
func (b *Budget) Recurrence() *recurrence.Definition {
	if b.RecurrenceFrequency == "" {
		return nil
	}
	return &recurrence.Definition{
		Frequency: b.RecurrenceFrequency,
		Interval:  b.RecurrenceInterval,
		StartDate: b.StartDate,
	}
}

// BudgetAccount links a budget to one of the user's accounts. Transactions
// on linked accounts count toward the budget unless individually excluded.
type BudgetAccount struct {
	ID        snowflake.ID `gorm:"primaryKey"`
	BudgetID  snowflake.ID `gorm:"not null;uniqueIndex:ux_budget_account"`
	AccountID snowflake.ID `gorm:"not null;uniqueIndex:ux_budget_account"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (BudgetAccount) TableName() string { return "budget_accounts" }

// Transaction is the budget package's read model over the shared ledger.
type Transaction struct {
	ID         snowflake.ID    `gorm:"primaryKey"`
	AccountID  snowflake.ID    `gorm:"not null;index"`
	CategoryID *string         `gorm:"type:text;index"`
	Amount     decimal.Decimal `gorm:"type:numeric(14,2);not null"`
	Date       time.Time       `gorm:"not null;index"`
	Excluded   bool            `gorm:"not null;default:false"`
	CreatedAt  time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Transaction) TableName() string { return "transactions" }

// Pace compares the actual average daily spend against the ideal pace that
// would land exactly on the budget amount at period end.
type Pace struct {
	IdealDailySpend  float64 `json:"ideal_daily_spend"`
	ActualDailySpend float64 `json:"actual_daily_spend"`
	OnTrack          bool    `json:"on_track"`
}

// PriorComparison relates the current period to the immediately preceding
// contiguous one.
type PriorComparison struct {
	PriorSpent decimal.Decimal `json:"prior_spent"`
	Delta      decimal.Decimal `json:"delta"`
}

// Summary is the computed reflection report for a closing period. It is
// derived on demand and never persisted.
type Summary struct {
	BudgetID snowflake.ID `json:"budget_id"`

	Amount      decimal.Decimal `json:"amount"`
	Spent       decimal.Decimal `json:"spent"`
	Remaining   decimal.Decimal `json:"remaining"`
	PercentUsed float64         `json:"percent_used"`

	CategoryBreakdown map[string]decimal.Decimal `json:"category_breakdown"`

	Pace  Pace             `json:"pace"`
	Prior *PriorComparison `json:"prior,omitempty"`

	// Streak counts contiguous prior periods that met their goal.
	Streak int `json:"streak"`
	// Consistency is the fraction of elapsed days with at least one
	// transaction.
	Consistency float64 `json:"consistency"`
}
