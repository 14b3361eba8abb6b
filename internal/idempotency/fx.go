package idempotency

import (
	"context"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/invoicedesk/internal/clock"
	"github.com/smallbiznis/invoicedesk/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("idempotency",
	fx.Provide(NewStore),
)

type Params struct {
	fx.In

	Lc    fx.Lifecycle
	Cfg   config.Config
	Clock clock.Clock
	Log   *zap.Logger
}

// NewStore opens the backend selected by IDEMPOTENCY_BACKEND.
func NewStore(p Params) (Store, error) {
	log := p.Log.Named("idempotency")

	var store Store
	switch p.Cfg.Idempotency.Backend {
	case config.IdempotencyBackendNone:
		store = NewNoopStore()
	case config.IdempotencyBackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     p.Cfg.Redis.Addr,
			Password: p.Cfg.Redis.Password,
			DB:       p.Cfg.Redis.DB,
		})
		p.Lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				return client.Ping(ctx).Err()
			},
		})
		store = NewRedisStore(client)
	default:
		bolt, err := NewBoltStore(p.Cfg.Idempotency.BoltPath, p.Clock)
		if err != nil {
			return nil, err
		}
		p.Lc.Append(fx.Hook{
			OnStart: func(context.Context) error {
				removed, err := bolt.Purge()
				if err != nil {
					log.Warn("purge expired keys failed", zap.Error(err))
					return nil
				}
				log.Debug("purged expired keys", zap.Int("removed", removed))
				return nil
			},
		})
		store = bolt
	}

	p.Lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return store.Close()
		},
	})
	log.Info("store ready", zap.String("backend", p.Cfg.Idempotency.Backend))
	return store, nil
}
