package obligation

import (
	"github.com/smallbiznis/meiwatch/internal/obligation/repository"
	"github.com/smallbiznis/meiwatch/internal/obligation/service"
	"github.com/smallbiznis/meiwatch/internal/revenue"
	"go.uber.org/fx"
)

var Module = fx.Module("obligation.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
	fx.Provide(func(a *revenue.Aggregator) service.RevenueReader { return a }),
)
