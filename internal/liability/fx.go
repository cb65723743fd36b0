package liability

import (
	"github.com/monetahq/moneta/internal/liability/service"
	"go.uber.org/fx"
)

var Module = fx.Module("liability.service",
	fx.Provide(service.NewService),
)
