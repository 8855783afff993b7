package migration

import (
	"strings"

	"github.com/emadn88/elmcorner/internal/config"
	"github.com/emadn88/elmcorner/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config, log *zap.Logger) error {
		if !cfg.DBRunMigrations {
			log.Info("database migrations disabled")
			return nil
		}

		if strings.EqualFold(strings.TrimSpace(cfg.DBType), db.TypePostgres) {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			return RunMigrations(sqlDB)
		}
		return AutoMigrate(conn)
	}),
)
