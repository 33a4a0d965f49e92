package ceiling

import (
	"github.com/smallbiznis/meiwatch/internal/ceiling/repository"
	"github.com/smallbiznis/meiwatch/internal/ceiling/service"
	"github.com/smallbiznis/meiwatch/internal/revenue"
	"go.uber.org/fx"
)

var Module = fx.Module("ceiling.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
	fx.Provide(service.NewMonitor),
	fx.Provide(func(a *revenue.Aggregator) service.Snapshotter { return a }),
)
