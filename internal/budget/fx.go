package budget

import (
	"github.com/monetahq/moneta/internal/budget/service"
	"go.uber.org/fx"
)

var Module = fx.Module("budget.service",
	fx.Provide(service.NewService),
)
