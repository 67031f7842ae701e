package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// GetJSON loads key into v. found is false on a miss or when Redis is not available.
func GetJSON(ctx context.Context, key string, v any) (found bool, err error) {
	if Client == nil {
		return false, nil
	}
	raw, err := Client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		// stale shape after a deploy, drop it
		Client.Del(ctx, key)
		return false, err
	}
	return true, nil
}

func SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	if Client == nil {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return Client.Set(ctx, key, raw, ttl).Err()
}

func Delete(ctx context.Context, keys ...string) error {
	if Client == nil || len(keys) == 0 {
		return nil
	}
	return Client.Del(ctx, keys...).Err()
}
