package ratelimit

import (
	"context"
	"time"

	"github.com/emadn88/elmcorner/internal/config"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const keyPublicPrefix = "elmcorner:ratelimit:public:"

type bucket interface {
	Allow(ctx context.Context, key string, rate float64, burst int) (Result, error)
}

// PublicLimiter throttles unauthenticated routes per client key.
type PublicLimiter struct {
	bucket bucket
	rate   float64
	burst  int
	log    *zap.Logger
}

type Params struct {
	fx.In

	Cfg    config.Config
	Log    *zap.Logger
	Client *redis.Client `optional:"true"`
}

func NewPublicLimiter(p Params) *PublicLimiter {
	l := &PublicLimiter{
		rate:  p.Cfg.PublicRateLimit.Rate,
		burst: p.Cfg.PublicRateLimit.Burst,
		log:   p.Log.Named("ratelimit"),
	}
	if l.rate <= 0 || l.burst <= 0 {
		return nil
	}
	if p.Client != nil {
		l.bucket = NewTokenBucket(p.Client)
	} else {
		l.bucket = NewMemoryBucket(time.Now)
	}
	return l
}

func newWithBucket(b bucket, rate float64, burst int) *PublicLimiter {
	return &PublicLimiter{bucket: b, rate: rate, burst: burst, log: zap.NewNop()}
}

// Allow fails open when the backing store errors. A nil limiter allows everything.
func (l *PublicLimiter) Allow(ctx context.Context, key string) (Result, bool) {
	if l == nil || l.bucket == nil {
		return Result{Allowed: true}, true
	}
	res, err := l.bucket.Allow(ctx, keyPublicPrefix+key, l.rate, l.burst)
	if err != nil {
		l.log.Warn("rate limit check failed", zap.Error(err))
		return Result{Allowed: true}, true
	}
	return res, res.Allowed
}
