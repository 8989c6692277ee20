package storage

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	callbackKeyPrefix  = "callback:"
	callbackOutcomeTTL = 72 * time.Hour
)

// RedisAdapter records processed-callback outcomes so duplicate callbacks
// replay the identical redirect even after the order row is gone.
type RedisAdapter struct {
	client *redis.Client
}

func NewRedisAdapter(client *redis.Client) *RedisAdapter {
	return &RedisAdapter{client: client}
}

// RecordCallbackOutcome stores the redirect under the callback key.
// SetNX keeps the first recorded outcome authoritative.
func (r *RedisAdapter) RecordCallbackOutcome(ctx context.Context, key, redirectURL string) error {
	return r.client.SetNX(ctx, callbackKeyPrefix+key, redirectURL, callbackOutcomeTTL).Err()
}

func (r *RedisAdapter) CallbackOutcome(ctx context.Context, key string) (string, error) {
	val, err := r.client.Get(ctx, callbackKeyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return val, nil
}
