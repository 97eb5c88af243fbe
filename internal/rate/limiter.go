package rate

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// ErrLimited signals that the identity has exhausted its attempts within the
// current window.
var ErrLimited = errors.New("too many attempts")

const (
	DefaultMaxAttempts = 5
	DefaultWindow      = 15 * time.Minute
)

// Limiter is a redis-backed fixed-window attempt counter keyed by (kind,
// identity, ip). It implements auth.AttemptLimiter.
type Limiter struct {
	redis       *redis.Client
	maxAttempts int
	window      time.Duration
}

type LimiterOption func(*Limiter)

func WithMaxAttempts(n int) LimiterOption {
	return func(l *Limiter) {
		l.maxAttempts = n
	}
}

func WithWindow(window time.Duration) LimiterOption {
	return func(l *Limiter) {
		l.window = window
	}
}

// NewLimiter initializes the limiter around an existing redis client.
func NewLimiter(redisClient *redis.Client, options ...LimiterOption) (*Limiter, error) {
	if redisClient == nil {
		return nil, errors.New("[rate.NewLimiter] redis client is required")
	}
	l := &Limiter{
		redis:       redisClient,
		maxAttempts: DefaultMaxAttempts,
		window:      DefaultWindow,
	}
	for _, opt := range options {
		opt(l)
	}
	return l, nil
}

func (l *Limiter) key(kind, identity, ip string) string {
	return "att:" + kind + ":" + identity + ":" + ip
}

// Check returns ErrLimited once the identity has maxAttempts recorded
// failures in the window. Redis errors are returned as-is; callers treat any
// non-nil result as a rejection, so an unreachable redis fails closed.
func (l *Limiter) Check(ctx context.Context, kind, identity, ip string) error {
	count, err := l.redis.Get(ctx, l.key(kind, identity, ip)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return errors.Wrap(err, "[Limiter.Check] redis get")
	}
	if count >= int64(l.maxAttempts) {
		return ErrLimited
	}
	return nil
}

// RecordFailure increments the counter, starting the window on the first
// failure.
func (l *Limiter) RecordFailure(ctx context.Context, kind, identity, ip string) error {
	key := l.key(kind, identity, ip)
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return errors.Wrap(err, "[Limiter.RecordFailure] redis incr")
	}
	if count == 1 {
		if err := l.redis.Expire(ctx, key, l.window).Err(); err != nil {
			return errors.Wrap(err, "[Limiter.RecordFailure] redis expire")
		}
	}
	return nil
}

// Reset clears the counter after a successful authentication.
func (l *Limiter) Reset(ctx context.Context, kind, identity, ip string) error {
	if err := l.redis.Del(ctx, l.key(kind, identity, ip)).Err(); err != nil {
		return errors.Wrap(err, "[Limiter.Reset] redis del")
	}
	return nil
}
