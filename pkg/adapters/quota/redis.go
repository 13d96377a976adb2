package quota

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "shortlink:quota:"

// allowScript counts one use and arms the window expiry in the same step. A
// key found without a TTL is re-armed too.
//
// KEYS[1]: counter key
// ARGV[1]: window in milliseconds
var allowScript = redis.NewScript(`
local n = redis.call('INCR', KEYS[1])
if n == 1 or redis.call('PTTL', KEYS[1]) < 0 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return n
`)

// RedisQuota counts usage in Redis so every instance shares one counter per key.
type RedisQuota struct {
	client *redis.Client
	limit  int64
	window time.Duration
}

func NewRedisQuota(client *redis.Client, limit int, window time.Duration) *RedisQuota {
	return &RedisQuota{
		client: client,
		limit:  int64(limit),
		window: window,
	}
}

func (q *RedisQuota) Allow(ctx context.Context, key string) (bool, error) {
	k := keyPrefix + key
	n, err := allowScript.Run(ctx, q.client, []string{k}, q.window.Milliseconds()).Int64()
	if err != nil {
		return false, fmt.Errorf("allow %s: %w", k, err)
	}
	return n <= q.limit, nil
}
