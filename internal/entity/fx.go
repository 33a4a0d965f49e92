package entity

import (
	"github.com/smallbiznis/meiwatch/internal/entity/domain"
	"github.com/smallbiznis/meiwatch/internal/entity/repository"
	"github.com/smallbiznis/meiwatch/internal/entity/service"
	"go.uber.org/fx"
)

var Module = fx.Module("entity.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
	fx.Provide(func(s domain.Service) domain.Registry { return s }),
)
