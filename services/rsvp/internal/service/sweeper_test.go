package service

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/diagnosis/luxsuv-invites/pkg/events"
	"github.com/diagnosis/luxsuv-invites/pkg/metrics"
	"github.com/diagnosis/luxsuv-invites/services/rsvp/internal/domain"
	"github.com/diagnosis/luxsuv-invites/services/rsvp/internal/repository"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweep_DeletesStaleSharedLinks(t *testing.T) {
	env := newTestEnv(t, 5)
	ctx := context.Background()
	inv := env.invitation(t, true)
	link := env.link(t, inv.ID, false)

	env.clock.Advance(9 * time.Minute)
	n, err := env.sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	env.clock.Advance(2 * time.Minute)
	n, err = env.sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	assert.Equal(t, 1, env.events.count(events.LinksSwept))

	_, err = env.links.Resolve(ctx, link.Token)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	// The swept link no longer reserves quota.
	next := env.link(t, inv.ID, false)
	assert.Equal(t, 5, next.MaxUses)
}

type failingSweepStore struct {
	repository.Store
}

func (s failingSweepStore) Repos() repository.Repos {
	r := s.Store.Repos()
	r.Links = failingSweepLinks{r.Links}
	return r
}

type failingSweepLinks struct {
	repository.LinkRepository
}

func (failingSweepLinks) DeleteStaleShared(context.Context, time.Time) (int64, error) {
	return 0, assert.AnError
}

func sweepFailures(t *testing.T) float64 {
	t.Helper()
	families, err := metrics.Registry.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() == "invites_links_sweep_failures_total" {
			return mf.GetMetric()[0].GetCounter().GetValue()
		}
	}
	return 0
}

func TestSweep_FailureIsCounted(t *testing.T) {
	env := newTestEnv(t, 5)
	sweeper := NewSweeper(failingSweepStore{env.store}, env.clock, 10*time.Minute, env.bus)

	before := sweepFailures(t)
	_, err := sweeper.Sweep(context.Background())
	require.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, before+1, sweepFailures(t))

	sweeper.RunOnce(context.Background())
	assert.Equal(t, before+2, sweepFailures(t))
}

func TestSweep_NeverDeletesConsumedLinks(t *testing.T) {
	env := newTestEnv(t, 5)
	ctx := context.Background()
	inv := env.invitation(t, true)
	link := env.link(t, inv.ID, false)

	env.clock.Advance(time.Minute)
	sub, err := env.rsvps.SubmitViaShareableLink(ctx, link.Token, respondent(0), confirmed(1))
	require.NoError(t, err)

	env.clock.Advance(24 * time.Hour)
	n, err := env.sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	lc, err := env.links.Resolve(ctx, link.Token)
	require.NoError(t, err)
	assert.Equal(t, domain.LinkUsed, lc.Link.Status)

	access, err := env.gateway.ResolvePersonal(ctx, sub.Guest.PersonalToken)
	require.NoError(t, err)
	require.NotNil(t, access.Guest.LinkID)
	assert.Equal(t, link.ID, *access.Guest.LinkID)
}

func TestRedisLocker(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	ctx := context.Background()

	locker := NewRedisLocker(rdb)
	unlock, ok, err := locker.TryLock(ctx, "lock:test", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = locker.TryLock(ctx, "lock:test", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	unlock()
	assert.False(t, mr.Exists("lock:test"))

	_, ok, err = locker.TryLock(ctx, "lock:test", time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
	mr.FastForward(2 * time.Second)
	_, ok, err = locker.TryLock(ctx, "lock:test", time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisLocker_StaleUnlockKeepsNewOwner(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	ctx := context.Background()

	locker := NewRedisLocker(rdb)
	unlock, ok, err := locker.TryLock(ctx, "lock:test", time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Second)
	_, ok, err = locker.TryLock(ctx, "lock:test", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	unlock()
	assert.True(t, mr.Exists("lock:test"))
}

func TestSweeperRunOnce_SkipsWhenLockHeld(t *testing.T) {
	env := newTestEnv(t, 5)
	ctx := context.Background()
	inv := env.invitation(t, true)
	env.link(t, inv.ID, false)
	env.clock.Advance(time.Hour)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	env.sweeper.WithLocker(NewRedisLocker(rdb), time.Minute)

	require.NoError(t, mr.Set(sweepLockKey, "other-replica"))
	env.sweeper.RunOnce(ctx)
	assert.Zero(t, env.events.count(events.LinksSwept))

	mr.Del(sweepLockKey)
	env.sweeper.RunOnce(ctx)
	assert.Equal(t, 1, env.events.count(events.LinksSwept))
	assert.False(t, mr.Exists(sweepLockKey))
}

func TestSweeperSchedule(t *testing.T) {
	env := newTestEnv(t, 5)
	c := cron.New()

	id, err := env.sweeper.Schedule(context.Background(), c, "@every 10m")
	require.NoError(t, err)
	assert.NotZero(t, id)

	_, err = env.sweeper.Schedule(context.Background(), c, "every so often")
	assert.Error(t, err)
}
