package db

import (
	"context"
	"fmt"
	"time"

	"github.com/tkwa12358/newenglish/internal/config"
	obslogger "github.com/tkwa12358/newenglish/internal/observability/logger"
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormprometheus "gorm.io/plugin/prometheus"
)

var Module = fx.Module("db",
	fx.Provide(FromConfig),
	fx.Provide(New),
)

type Params struct {
	fx.In

	Lifecycle  fx.Lifecycle
	Cfg        Config
	App        config.Config
	GormLogger *obslogger.GormLogger
	Log        *zap.Logger
}

// New opens the pool, attaches tracing and pool metrics, and closes it on stop.
func New(p Params) (*gorm.DB, error) {
	dialector, err := Dialect(p.Cfg)
	if err != nil {
		return nil, err
	}

	conn, err := gorm.Open(dialector, &gorm.Config{
		Logger:         p.GormLogger,
		TranslateError: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := conn.Use(otelgorm.NewPlugin(
		otelgorm.WithDBName(p.Cfg.Name),
		otelgorm.WithoutQueryVariables(),
	)); err != nil {
		return nil, fmt.Errorf("register otelgorm: %w", err)
	}

	if err := conn.Use(gormprometheus.New(gormprometheus.Config{
		DBName:          p.Cfg.Name,
		RefreshInterval: 15,
		StartServer:     false,
		Labels: map[string]string{
			"service": p.App.AppName,
			"env":     p.App.Environment,
		},
	})); err != nil {
		return nil, fmt.Errorf("register gorm prometheus: %w", err)
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

	p.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := sqlDB.PingContext(ctx); err != nil {
				return fmt.Errorf("ping database: %w", err)
			}
			p.Log.Info("database connected", zap.String("type", p.Cfg.Type), zap.String("name", p.Cfg.Name))
			return nil
		},
		OnStop: func(context.Context) error {
			return sqlDB.Close()
		},
	})

	return conn, nil
}
