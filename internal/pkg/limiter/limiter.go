package limiter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis_rate/v10"
	lru "github.com/hashicorp/golang-lru"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

var ErrRateLimited = errors.New("rate limited")

type RedisLimiter struct {
	limiter *redis_rate.Limiter
}

func NewLimiter(client redis.UniversalClient) (*RedisLimiter, error) {
	if client == nil {
		return nil, errors.New("limiter: nil redis client")
	}
	return &RedisLimiter{redis_rate.NewLimiter(client)}, nil
}

func (l *RedisLimiter) Allow(ctx context.Context, key string, limit redis_rate.Limit) error {
	res, err := l.limiter.Allow(ctx, key, limit)
	if err != nil {
		return err
	}
	if res.Allowed == 0 {
		return ErrRateLimited
	}
	return nil
}

// LocalLimiter keeps token buckets in process for deployments without redis.
// The least recently used buckets are evicted past size.
type LocalLimiter struct {
	buckets *lru.Cache
	now     func() time.Time
}

func NewLocalLimiter(size int) (*LocalLimiter, error) {
	buckets, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &LocalLimiter{buckets: buckets, now: time.Now}, nil
}

func (l *LocalLimiter) Allow(_ context.Context, key string, limit redis_rate.Limit) error {
	if limit.IsZero() || limit.Rate <= 0 {
		return nil
	}
	id := fmt.Sprintf("%s|%d/%s|%d", key, limit.Rate, limit.Period, limit.Burst)

	var bucket *rate.Limiter
	if v, ok := l.buckets.Get(id); ok {
		bucket = v.(*rate.Limiter)
	} else {
		burst := limit.Burst
		if burst <= 0 {
			burst = limit.Rate
		}
		bucket = rate.NewLimiter(rate.Every(limit.Period/time.Duration(limit.Rate)), burst)
		if prev, ok, _ := l.buckets.PeekOrAdd(id, bucket); ok {
			bucket = prev.(*rate.Limiter)
		}
	}

	if !bucket.AllowN(l.now(), 1) {
		return ErrRateLimited
	}
	return nil
}
