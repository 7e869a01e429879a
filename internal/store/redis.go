package store

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis wraps the redis client used for upload-token bookkeeping.
type Redis struct {
	Client *redis.Client
}

// NewRedis connects to redis with short timeouts.
func NewRedis(addr string) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  1 * time.Second,
		WriteTimeout: 1 * time.Second,
	})
	return &Redis{Client: client}
}

// Healthy verifies redis connectivity.
func (r *Redis) Healthy(ctx context.Context) bool {
	if r == nil || r.Client == nil {
		return false
	}
	return r.Client.Ping(ctx).Err() == nil
}

// SaveUploadGrant binds a verification-issued upload token to the asset
// name it may write, expiring with the token.
func (r *Redis) SaveUploadGrant(ctx context.Context, token, assetName string, ttl time.Duration) error {
	return r.Client.Set(ctx, "upload:"+token, assetName, ttl).Err()
}

// UploadGrant returns the asset name bound to a token, or "" when the
// token is unknown or expired.
func (r *Redis) UploadGrant(ctx context.Context, token string) (string, error) {
	name, err := r.Client.Get(ctx, "upload:"+token).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return name, nil
}
