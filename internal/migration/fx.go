package migration

import (
	"github.com/smallbiznis/invoicedesk/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(Apply),
)

// Apply brings the schema up to date for the configured dialect.
func Apply(conn *gorm.DB, cfg db.Config, log *zap.Logger) error {
	dbType, err := db.ResolveType(cfg)
	if err != nil {
		return err
	}

	log = log.Named("migration").With(zap.String("dialect", dbType))
	if dbType != db.TypePostgres {
		if err := AutoMigrate(conn); err != nil {
			return err
		}
		log.Info("schema synchronized")
		return nil
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return err
	}
	if err := RunMigrations(sqlDB); err != nil {
		return err
	}
	log.Info("migrations applied")
	return nil
}
