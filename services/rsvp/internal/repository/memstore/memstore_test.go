package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/diagnosis/luxsuv-invites/services/rsvp/internal/domain"
	"github.com/diagnosis/luxsuv-invites/services/rsvp/internal/repository"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)

func seed(t *testing.T, s *Store) (domain.Invitation, domain.ShareableLink) {
	t.Helper()
	ctx := context.Background()
	inv := domain.Invitation{ID: uuid.New(), OwnerID: uuid.New(), Title: "Wedding", Status: domain.InvitationPublished, CreatedAt: t0, UpdatedAt: t0}
	require.NoError(t, s.Repos().Invitations.Create(ctx, &inv))

	link := domain.ShareableLink{ID: uuid.New(), InvitationID: inv.ID, Token: "link-1", Status: domain.LinkShared, IsActive: true, MaxUses: 2, CreatedAt: t0}
	require.NoError(t, s.Repos().Links.Create(ctx, &link))
	return inv, link
}

func TestWithTxRollsBack(t *testing.T) {
	s := New()
	inv, _ := seed(t, s)
	ctx := context.Background()

	boom := errors.New("boom")
	err := s.WithTx(ctx, func(r repository.Repos) error {
		g := domain.Guest{ID: uuid.New(), InvitationID: inv.ID, PersonalToken: "p-1", CreatedAt: t0}
		require.NoError(t, r.Guests.Create(ctx, &g))
		l, err := r.Links.Consume(ctx, "link-1", g.ID, t0)
		require.NoError(t, err)
		require.NotNil(t, l)
		return boom
	})
	require.ErrorIs(t, err, boom)

	g, err := s.Repos().Guests.GetByToken(ctx, "p-1")
	require.NoError(t, err)
	assert.Nil(t, g)

	l, err := s.Repos().Links.GetByToken(ctx, "link-1")
	require.NoError(t, err)
	assert.Equal(t, 0, l.UsedCount)
	assert.Equal(t, domain.LinkShared, l.Status)
}

func TestConsumeHonoursCapAndExpiry(t *testing.T) {
	s := New()
	_, link := seed(t, s)
	ctx := context.Background()
	links := s.Repos().Links

	for i := 0; i < 2; i++ {
		l, err := links.Consume(ctx, link.Token, uuid.New(), t0)
		require.NoError(t, err)
		require.NotNil(t, l)
	}
	l, err := links.Consume(ctx, link.Token, uuid.New(), t0)
	require.NoError(t, err)
	assert.Nil(t, l, "exhausted link must not be consumed")

	exp := t0.Add(time.Minute)
	expiring := domain.ShareableLink{ID: uuid.New(), InvitationID: link.InvitationID, Token: "link-2", Status: domain.LinkShared, IsActive: true, MaxUses: 1, ExpiresAt: &exp, CreatedAt: t0}
	require.NoError(t, links.Create(ctx, &expiring))
	l, err = links.Consume(ctx, "link-2", uuid.New(), exp)
	require.NoError(t, err)
	assert.Nil(t, l)
}

func TestAllocatedUsesAndSweep(t *testing.T) {
	s := New()
	inv, link := seed(t, s)
	ctx := context.Background()
	links := s.Repos().Links

	n, err := links.AllocatedUses(ctx, inv.ID, t0)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	g := domain.Guest{ID: uuid.New(), InvitationID: inv.ID, PersonalToken: "p-1", LinkID: &link.ID, CreatedAt: t0}
	require.NoError(t, s.Repos().Guests.Create(ctx, &g))
	_, err = links.Consume(ctx, link.Token, g.ID, t0)
	require.NoError(t, err)
	n, err = links.AllocatedUses(ctx, inv.ID, t0)
	require.NoError(t, err)
	assert.Equal(t, 2, n, "a consumed use moves from reserved to guests")

	require.NoError(t, links.Disable(ctx, link.ID))
	n, err = links.AllocatedUses(ctx, inv.ID, t0)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	stale := domain.ShareableLink{ID: uuid.New(), InvitationID: inv.ID, Token: "link-2", Status: domain.LinkShared, IsActive: true, MaxUses: 1, CreatedAt: t0}
	require.NoError(t, links.Create(ctx, &stale))

	deleted, err := links.DeleteStaleShared(ctx, t0)
	require.NoError(t, err)
	assert.Zero(t, deleted, "created_at == cutoff is not stale")

	deleted, err = links.DeleteStaleShared(ctx, t0.Add(time.Second))
	require.NoError(t, err)
	assert.EqualValues(t, 1, deleted, "only the unused link is swept")
}

func TestMarkUsedOnce(t *testing.T) {
	s := New()
	inv, _ := seed(t, s)
	ctx := context.Background()

	g := domain.Guest{ID: uuid.New(), InvitationID: inv.ID, PersonalToken: "p-1", CreatedAt: t0}
	require.NoError(t, s.Repos().Guests.Create(ctx, &g))

	ok, err := s.Repos().Guests.MarkUsed(ctx, g.ID, t0)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Repos().Guests.MarkUsed(ctx, g.ID, t0)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDeleteGuestCascadesRSVP(t *testing.T) {
	s := New()
	inv, _ := seed(t, s)
	ctx := context.Background()
	r := s.Repos()

	g := domain.Guest{ID: uuid.New(), InvitationID: inv.ID, PersonalToken: "p-1", CreatedAt: t0}
	require.NoError(t, r.Guests.Create(ctx, &g))
	require.NoError(t, r.RSVPs.Create(ctx, &domain.RSVP{ID: uuid.New(), GuestID: g.ID, Status: domain.RSVPConfirmed, NumberOfGuests: 1}))

	ok, err := r.Guests.Delete(ctx, g.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	v, err := r.RSVPs.GetByGuestID(ctx, g.ID)
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestDuplicateTokensRejected(t *testing.T) {
	s := New()
	inv, _ := seed(t, s)
	ctx := context.Background()

	dup := domain.ShareableLink{ID: uuid.New(), InvitationID: inv.ID, Token: "link-1", Status: domain.LinkShared, IsActive: true, MaxUses: 1, CreatedAt: t0}
	assert.ErrorIs(t, s.Repos().Links.Create(ctx, &dup), ErrDuplicate)
}
