package quota

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wadjakorntonsri/shortlink/pkg/ports"
)

func exerciseLimit(t *testing.T, q ports.Quota, limit int) {
	t.Helper()
	ctx := context.Background()
	key := uuid.NewString()

	for i := 0; i < limit; i++ {
		ok, err := q.Allow(ctx, key)
		require.NoError(t, err)
		assert.True(t, ok, "call %d", i+1)
	}
	ok, err := q.Allow(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = q.Allow(ctx, uuid.NewString())
	require.NoError(t, err)
	assert.True(t, ok, "keys are independent")
}

func TestMemoryQuota(t *testing.T) {
	exerciseLimit(t, NewMemoryQuota(3, time.Hour), 3)
}

func TestMemoryQuota_WindowExpires(t *testing.T) {
	q := NewMemoryQuota(1, 50*time.Millisecond)
	ctx := context.Background()

	ok, _ := q.Allow(ctx, "ip")
	assert.True(t, ok)
	ok, _ = q.Allow(ctx, "ip")
	assert.False(t, ok)

	time.Sleep(100 * time.Millisecond)
	ok, _ = q.Allow(ctx, "ip")
	assert.True(t, ok)
}

func TestMemoryQuota_Concurrent(t *testing.T) {
	q := NewMemoryQuota(10, time.Hour)
	var allowed atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := q.Allow(context.Background(), "ip"); ok {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(10), allowed.Load())
}

func newRedisClient(t *testing.T) *redis.Client {
	t.Helper()
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}
	opts, err := redis.ParseURL(url)
	require.NoError(t, err)
	client := redis.NewClient(opts)
	t.Cleanup(func() { client.Close() })
	return client
}

func TestRedisQuota(t *testing.T) {
	q := NewRedisQuota(newRedisClient(t), 3, time.Minute)
	exerciseLimit(t, q, 3)
}

func TestRedisQuota_CounterAlwaysExpires(t *testing.T) {
	client := newRedisClient(t)
	ctx := context.Background()
	q := NewRedisQuota(client, 3, time.Minute)

	key := uuid.NewString()
	_, err := q.Allow(ctx, key)
	require.NoError(t, err)
	ttl, err := client.PTTL(ctx, keyPrefix+key).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	// A counter stranded without a TTL is re-armed on the next use.
	stranded := uuid.NewString()
	require.NoError(t, client.Set(ctx, keyPrefix+stranded, 5, 0).Err())
	t.Cleanup(func() { client.Del(context.Background(), keyPrefix+stranded) })
	ok, err := q.Allow(ctx, stranded)
	require.NoError(t, err)
	assert.False(t, ok)
	ttl, err = client.PTTL(ctx, keyPrefix+stranded).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
}
