package tracking

import (
	"github.com/monetahq/moneta/internal/tracking/service"
	"go.uber.org/fx"
)

var Module = fx.Module("tracking.service",
	fx.Provide(service.NewService),
)
