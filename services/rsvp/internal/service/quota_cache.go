package service

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/diagnosis/luxsuv-invites/pkg/logger"
	"github.com/diagnosis/luxsuv-invites/pkg/metrics"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// CachedQuota is a Redis read-through cache in front of another QuotaSource.
// Concurrent misses for one owner share a single upstream call. Redis
// failures fall through to the upstream source.
type CachedQuota struct {
	next  QuotaSource
	rdb   *redis.Client
	ttl   time.Duration
	group singleflight.Group
}

func NewCachedQuota(next QuotaSource, rdb *redis.Client, ttl time.Duration) *CachedQuota {
	return &CachedQuota{next: next, rdb: rdb, ttl: ttl}
}

// quotaFetchTimeout bounds a shared upstream lookup, which outlives the
// request that started it.
const quotaFetchTimeout = 10 * time.Second

func quotaKey(ownerID uuid.UUID) string {
	return "quota:max_guests:" + ownerID.String()
}

func (c *CachedQuota) MaxGuests(ctx context.Context, ownerID uuid.UUID) (int, error) {
	key := quotaKey(ownerID)

	val, err := c.rdb.Get(ctx, key).Result()
	switch {
	case err == nil:
		if n, convErr := strconv.Atoi(val); convErr == nil {
			metrics.QuotaLookup("cache")
			return n, nil
		}
	case !errors.Is(err, redis.Nil):
		logger.WarnContext(ctx, "quota cache read failed", "error", err)
	}

	// The lookup is shared by every waiter, so one caller going away must
	// not cancel it for the rest.
	ch := c.group.DoChan(key, func() (interface{}, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), quotaFetchTimeout)
		defer cancel()

		n, err := c.next.MaxGuests(fetchCtx, ownerID)
		if err != nil {
			return 0, err
		}
		if err := c.rdb.Set(fetchCtx, key, strconv.Itoa(n), c.ttl).Err(); err != nil {
			logger.WarnContext(ctx, "quota cache write failed", "error", err)
		}
		return n, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return 0, res.Err
		}
		return res.Val.(int), nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}
