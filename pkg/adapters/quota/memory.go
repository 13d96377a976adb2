// Package quota caps how many links an anonymous client may create per window.
package quota

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"
)

// MemoryQuota counts usage in process memory. Counters are lost on restart and
// are not shared between instances.
type MemoryQuota struct {
	limit  int
	window time.Duration
	counts *cache.Cache
}

func NewMemoryQuota(limit int, window time.Duration) *MemoryQuota {
	return &MemoryQuota{
		limit:  limit,
		window: window,
		counts: cache.New(window, window),
	}
}

// Allow starts a fresh window on the first use of key.
func (q *MemoryQuota) Allow(_ context.Context, key string) (bool, error) {
	for {
		if err := q.counts.Add(key, 1, q.window); err == nil {
			return q.limit >= 1, nil
		}
		n, err := q.counts.IncrementInt(key, 1)
		if err == nil {
			return n <= q.limit, nil
		}
		// The entry expired between Add and IncrementInt.
	}
}
