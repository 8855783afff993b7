package locker

import (
	"context"

	"github.com/emadn88/elmcorner/internal/config"
	"github.com/emadn88/elmcorner/internal/observability/metrics"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("locker",
	fx.Provide(NewRedisClient),
	fx.Provide(New),
)

// NewRedisClient returns nil when REDIS_ADDR is unset.
func NewRedisClient(lc fx.Lifecycle, cfg config.Config) *redis.Client {
	if !cfg.Redis.Enabled() {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		},
		OnStop: func(ctx context.Context) error {
			return client.Close()
		},
	})
	return client
}

type Params struct {
	fx.In

	Cfg     config.Config
	Log     *zap.Logger
	Client  *redis.Client        `optional:"true"`
	Metrics *metrics.LockMetrics `optional:"true"`
}

// New returns a redis-backed Locker when a client is configured, otherwise an in-process one.
func New(p Params) Locker {
	if p.Client == nil {
		p.Log.Info("using in-process locker")
		return Instrument(NewKeyedMutex(), p.Metrics, DefaultWait)
	}
	p.Log.Info("using redis locker", zap.String("addr", p.Cfg.Redis.Addr))
	return Instrument(NewRedisLocker(p.Client, p.Cfg.Redis.LockTTL, p.Log), p.Metrics, DefaultWait)
}
