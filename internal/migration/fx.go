package migration

import (
	"github.com/smallbiznis/meiwatch/internal/config"
	"github.com/smallbiznis/meiwatch/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config, log *zap.Logger) error {
		if !db.IsPostgres(cfg) {
			log.Info("migration.automigrate", zap.String("dialect", cfg.DBType))
			return AutoMigrate(conn)
		}

		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		log.Info("migration.up", zap.String("dialect", cfg.DBType))
		return RunMigrations(sqlDB)
	}),
)
