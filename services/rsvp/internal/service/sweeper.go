package service

import (
	"context"
	"fmt"
	"time"

	"github.com/diagnosis/luxsuv-invites/pkg/events"
	"github.com/diagnosis/luxsuv-invites/pkg/logger"
	"github.com/diagnosis/luxsuv-invites/pkg/metrics"
	"github.com/diagnosis/luxsuv-invites/services/rsvp/internal/repository"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
)

const sweepLockKey = "lock:link-sweeper"

// Locker hands out a short-lived lock. ok is false when someone else holds it.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (unlock func(), ok bool, err error)
}

// RedisLocker implements Locker with SET NX PX and a compare-and-delete release.
type RedisLocker struct {
	rdb *redis.Client
}

func NewRedisLocker(rdb *redis.Client) *RedisLocker {
	return &RedisLocker{rdb: rdb}
}

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

func (l *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	owner := uuid.NewString()
	ok, err := l.rdb.SetNX(ctx, key, owner, ttl).Result()
	if err != nil || !ok {
		return nil, false, err
	}
	unlock := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := releaseScript.Run(ctx, l.rdb, []string{key}, owner).Err(); err != nil {
			logger.Warn("failed to release lock", "key", key, "error", err)
		}
	}
	return unlock, true, nil
}

// Sweeper deletes shareable links that were never consumed within maxAge.
type Sweeper struct {
	store   repository.Store
	clock   Clock
	maxAge  time.Duration
	bus     events.Publisher
	locker  Locker
	lockTTL time.Duration
}

func NewSweeper(store repository.Store, clock Clock, maxAge time.Duration, bus events.Publisher) *Sweeper {
	return &Sweeper{store: store, clock: clock, maxAge: maxAge, bus: bus}
}

// WithLocker makes each scheduled run take a lock first, so only one replica sweeps per tick.
func (s *Sweeper) WithLocker(l Locker, ttl time.Duration) *Sweeper {
	s.locker = l
	s.lockTTL = ttl
	return s
}

// Sweep removes every SHARED link created before now minus maxAge.
func (s *Sweeper) Sweep(ctx context.Context) (int64, error) {
	start := time.Now()
	cutoff := s.clock.Now().Add(-s.maxAge)

	n, err := s.store.Repos().Links.DeleteStaleShared(ctx, cutoff)
	if err != nil {
		metrics.SweepFailed()
		return 0, fmt.Errorf("delete stale links: %w", err)
	}
	metrics.Sweep(n, time.Since(start))

	if n > 0 {
		logger.InfoContext(ctx, "swept stale shareable links", "deleted", n, "cutoff", cutoff)
		publish(ctx, s.bus, events.LinksSwept, events.LinksSweptEvent{
			Deleted: n,
			Cutoff:  cutoff,
			SweptAt: s.clock.Now(),
		})
	}
	return n, nil
}

// RunOnce is one scheduled tick. Failures are logged and left for the next tick.
func (s *Sweeper) RunOnce(ctx context.Context) {
	if s.locker != nil {
		unlock, ok, err := s.locker.TryLock(ctx, sweepLockKey, s.lockTTL)
		if err != nil {
			logger.ErrorContext(ctx, "sweeper lock failed", "error", err)
			return
		}
		if !ok {
			logger.DebugContext(ctx, "sweeper lock held elsewhere, skipping tick")
			return
		}
		defer unlock()
	}

	if _, err := s.Sweep(ctx); err != nil {
		logger.ErrorContext(ctx, "sweeper run failed", "error", err)
	}
}

// Schedule registers the sweeper on c. Each run is bounded by the lock TTL
// (or a minute without a locker) and derives from ctx.
func (s *Sweeper) Schedule(ctx context.Context, c *cron.Cron, spec string) (cron.EntryID, error) {
	timeout := s.lockTTL
	if timeout <= 0 {
		timeout = time.Minute
	}
	return c.AddFunc(spec, func() {
		runCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		s.RunOnce(context.WithValue(runCtx, logger.ServiceKey, "link-sweeper"))
	})
}
