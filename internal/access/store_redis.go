// Copyright (c) 2026 Lectern. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package access

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/taibuivan/lectern/internal/platform/constants"
)

// RedisNonceRegistry implements [NonceRegistry] using Redis key expiry.
type RedisNonceRegistry struct {
	client redis.Cmdable
}

// NewRedisNonceRegistry creates a new Redis-backed NonceRegistry.
func NewRedisNonceRegistry(client redis.Cmdable) *RedisNonceRegistry {
	return &RedisNonceRegistry{client: client}
}

/*
Register stores the nonce with its resource id and TTL.

Parameters:
  - ctx: context.Context
  - nonce: string
  - resourceID: int64
  - ttl: time.Duration

Returns:
  - error: Storage failures
*/
func (registry *RedisNonceRegistry) Register(ctx context.Context, nonce string, resourceID int64, ttl time.Duration) error {
	key := constants.RedisPrefixNonce + nonce

	if err := registry.client.Set(ctx, key, resourceID, ttl).Err(); err != nil {
		return fmt.Errorf("redis_nonce_set_failed: %w", err)
	}

	return nil
}

/*
Lookup retrieves the resource id recorded for nonce.

Description: Returns ErrUnknownNonce if the key is absent or expired.
*/
func (registry *RedisNonceRegistry) Lookup(ctx context.Context, nonce string) (int64, error) {
	key := constants.RedisPrefixNonce + nonce

	raw, err := registry.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, ErrUnknownNonce
		}
		return 0, fmt.Errorf("redis_nonce_get_failed: %w", err)
	}

	resourceID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("redis_nonce_corrupt %q: %w", raw, err)
	}

	return resourceID, nil
}
