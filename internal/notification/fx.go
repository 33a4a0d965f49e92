package notification

import (
	"github.com/smallbiznis/meiwatch/internal/notification/domain"
	"github.com/smallbiznis/meiwatch/internal/notification/repository"
	"github.com/smallbiznis/meiwatch/internal/notification/service"
	"go.uber.org/fx"
)

var Module = fx.Module("notification.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
	fx.Provide(service.NewDedup),
	fx.Provide(func(s domain.Service) domain.Sink { return s }),
)
