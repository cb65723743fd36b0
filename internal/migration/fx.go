package migration

import (
	auditdomain "github.com/monetahq/moneta/internal/audit/domain"
	budgetdomain "github.com/monetahq/moneta/internal/budget/domain"
	"github.com/monetahq/moneta/internal/config"
	liabilitydomain "github.com/monetahq/moneta/internal/liability/domain"
	obligationdomain "github.com/monetahq/moneta/internal/obligation/domain"
	trackingdomain "github.com/monetahq/moneta/internal/tracking/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if cfg.DBType != "postgres" {
			return conn.AutoMigrate(
				&obligationdomain.Container{},
				&obligationdomain.CycleOverride{},
				&trackingdomain.Bill{},
				&trackingdomain.ScheduledPayment{},
				&trackingdomain.DirectTransaction{},
				&liabilitydomain.Liability{},
				&liabilitydomain.Schedule{},
				&budgetdomain.Budget{},
				&budgetdomain.BudgetAccount{},
				&budgetdomain.Transaction{},
				&auditdomain.AuditLog{},
			)
		}

		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		return RunMigrations(sqlDB)
	}),
)
