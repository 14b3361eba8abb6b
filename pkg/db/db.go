package db

import (
	"context"
	"time"

	obslogger "github.com/smallbiznis/invoicedesk/internal/observability/logger"
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	gormprometheus "gorm.io/plugin/prometheus"
)

var Module = fx.Module("db",
	fx.Provide(FromAppConfig),
	fx.Provide(New),
)

type Params struct {
	fx.In

	Lc  fx.Lifecycle
	Cfg Config
	Log *zap.Logger
}

// New opens the configured database, applies pool settings and installs
// tracing and metrics plugins.
func New(p Params) (*gorm.DB, error) {
	dialector, err := Dialect(p.Cfg)
	if err != nil {
		return nil, err
	}

	loggerCfg := obslogger.DefaultGormLoggerConfig()
	loggerCfg.IgnoreRecordNotFound = true
	if p.Cfg.Debug {
		loggerCfg.Level = gormlogger.Info
	}

	conn, err := gorm.Open(dialector, &gorm.Config{
		Logger:         obslogger.NewGormLogger(loggerCfg),
		TranslateError: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, err
	}
	if p.Cfg.MaxIdleConn > 0 {
		sqlDB.SetMaxIdleConns(p.Cfg.MaxIdleConn)
	}
	if p.Cfg.MaxOpenConn > 0 {
		sqlDB.SetMaxOpenConns(p.Cfg.MaxOpenConn)
	}
	if p.Cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(time.Duration(p.Cfg.ConnMaxLifetime) * time.Second)
	}
	if p.Cfg.ConnMaxIdleTime > 0 {
		sqlDB.SetConnMaxIdleTime(time.Duration(p.Cfg.ConnMaxIdleTime) * time.Second)
	}

	if err := conn.Use(otelgorm.NewPlugin(otelgorm.WithDBName(p.Cfg.Name))); err != nil {
		return nil, err
	}
	if err := conn.Use(gormprometheus.New(gormprometheus.Config{
		DBName:          p.Cfg.Name,
		RefreshInterval: 15,
		StartServer:     false,
	})); err != nil {
		return nil, err
	}

	dbType, _ := ResolveType(p.Cfg)
	log := p.Log.Named("db")
	log.Info("database connected", zap.String("type", dbType))

	p.Lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			_ = ctx
			log.Info("closing database")
			return sqlDB.Close()
		},
	})

	return conn, nil
}
