package storage

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	holdKeyPrefix     = "hold:"
	idempotencyKeyTTL = 24 * time.Hour
)

// acquireHoldScript claims the product for the holder if the hold is free,
// and treats re-acquisition by the same holder as success.
var acquireHoldScript = redis.NewScript(`
local key = KEYS[1]
local holder = ARGV[1]
local ttl = tonumber(ARGV[2])

local current = redis.call('GET', key)
if not current then
	redis.call('SET', key, holder, 'PX', ttl)
	return 1
end

if current == holder then
	return 1
end

return 0
`)

// releaseHoldScript deletes the hold only when the caller still owns it.
var releaseHoldScript = redis.NewScript(`
local key = KEYS[1]
local holder = ARGV[1]

if redis.call('GET', key) == holder then
	redis.call('DEL', key)
end

return 1
`)

type RedisAdapter struct {
	client *redis.Client
}

func NewRedisAdapter(client *redis.Client) *RedisAdapter {
	return &RedisAdapter{client: client}
}

func (r *RedisAdapter) AcquireHold(ctx context.Context, productID, holderID string, ttl time.Duration) (bool, error) {
	key := holdKeyPrefix + productID

	result, err := acquireHoldScript.Run(ctx, r.client, []string{key}, holderID, ttl.Milliseconds()).Int()
	if err != nil {
		return false, err
	}

	return result == 1, nil
}

func (r *RedisAdapter) ReleaseHold(ctx context.Context, productID, holderID string) error {
	key := holdKeyPrefix + productID
	return releaseHoldScript.Run(ctx, r.client, []string{key}, holderID).Err()
}

func (r *RedisAdapter) SetIdempotency(ctx context.Context, key string) (bool, error) {
	ok, err := r.client.SetNX(ctx, "idempotency:"+key, 1, idempotencyKeyTTL).Result()
	if err != nil {
		return false, err
	}

	return ok, nil
}

// HoldOwner reports who currently holds the product, or "" when free.
func (r *RedisAdapter) HoldOwner(ctx context.Context, productID string) (string, error) {
	v, err := r.client.Get(ctx, holdKeyPrefix+productID).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return v, nil
}
