package service

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/diagnosis/luxsuv-invites/pkg/auth"
	"github.com/diagnosis/luxsuv-invites/pkg/events"
	"github.com/diagnosis/luxsuv-invites/services/rsvp/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

var tokenPattern = regexp.MustCompile(`^[0-9a-z]+_[0-9a-f]{32}$`)

func TestNewToken(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		tok := NewToken(now)
		assert.Regexp(t, tokenPattern, tok)
		assert.False(t, seen[tok], "duplicate token %s", tok)
		seen[tok] = true
	}
}

func TestIssueShareableLink_UsesRemainingQuota(t *testing.T) {
	env := newTestEnv(t, 5)
	inv := env.invitation(t, true)

	link := env.link(t, inv.ID, false)
	assert.Equal(t, 5, link.MaxUses)
	assert.Equal(t, 0, link.UsedCount)
	assert.Equal(t, domain.LinkShared, link.Status)
	assert.True(t, link.IsActive)
	assert.Regexp(t, tokenPattern, link.Token)
	assert.Equal(t, 1, env.events.count(events.LinkIssued))

	// The first link reserves the whole allowance.
	_, err := env.issuer.IssueShareableLink(context.Background(), env.owner, domain.LinkRequest{InvitationID: inv.ID})
	assert.ErrorIs(t, err, domain.ErrQuotaExhausted)
}

func TestIssueShareableLink_ConsumedUsesCountAgainstQuota(t *testing.T) {
	env := newTestEnv(t, 3)
	ctx := context.Background()
	inv := env.invitation(t, true)
	link := env.link(t, inv.ID, false)

	for i := 0; i < 2; i++ {
		_, err := env.rsvps.SubmitViaShareableLink(ctx, link.Token, respondent(i), confirmed(1))
		require.NoError(t, err)
	}
	_, err := env.issuer.DisableLink(ctx, env.owner, link.Token)
	require.NoError(t, err)

	// Two link guests exist and the disabled link reserves nothing.
	next := env.link(t, inv.ID, false)
	assert.Equal(t, 1, next.MaxUses)
}

func TestIssueShareableLink_ExpiredLinkReleasesReservation(t *testing.T) {
	env := newTestEnv(t, 4)
	inv := env.invitation(t, true)

	expiry := env.clock.Now().Add(time.Hour)
	_, err := env.issuer.IssueShareableLink(context.Background(), env.owner, domain.LinkRequest{InvitationID: inv.ID, ExpiresAt: &expiry})
	require.NoError(t, err)

	env.clock.Advance(2 * time.Hour)
	next := env.link(t, inv.ID, false)
	assert.Equal(t, 4, next.MaxUses)
}

func TestIssueShareableLink_Rejections(t *testing.T) {
	env := newTestEnv(t, 5)
	ctx := context.Background()
	inv := env.invitation(t, true)

	stranger := auth.Caller{OwnerID: uuid.New(), Role: auth.RoleOwner}
	_, err := env.issuer.IssueShareableLink(ctx, stranger, domain.LinkRequest{InvitationID: inv.ID})
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	_, err = env.issuer.IssueShareableLink(ctx, env.owner, domain.LinkRequest{InvitationID: uuid.New()})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	past := env.clock.Now().Add(-time.Second)
	_, err = env.issuer.IssueShareableLink(ctx, env.owner, domain.LinkRequest{InvitationID: inv.ID, ExpiresAt: &past})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	empty := newTestEnv(t, 0)
	inv = empty.invitation(t, true)
	_, err = empty.issuer.IssueShareableLink(ctx, empty.owner, domain.LinkRequest{InvitationID: inv.ID})
	assert.ErrorIs(t, err, domain.ErrQuotaExhausted)
}

func TestIssueShareableLink_QuotaSourceFailure(t *testing.T) {
	env := newTestEnv(t, 5)
	inv := env.invitation(t, true)

	failing := QuotaFunc(func(context.Context, uuid.UUID) (int, error) {
		return 0, assert.AnError
	})
	issuer := NewTokenIssuer(env.store, failing, env.links, env.clock, nil)
	_, err := issuer.IssueShareableLink(context.Background(), env.owner, domain.LinkRequest{InvitationID: inv.ID})
	assert.ErrorIs(t, err, assert.AnError)
}

func TestIssueShareableLink_ConcurrentIssuersNeverOverAllocate(t *testing.T) {
	env := newTestEnv(t, 10)
	inv := env.invitation(t, true)

	var g errgroup.Group
	for i := 0; i < 8; i++ {
		g.Go(func() error {
			_, err := env.issuer.IssueShareableLink(context.Background(), env.owner, domain.LinkRequest{InvitationID: inv.ID})
			if err != nil && !assert.ErrorIs(t, err, domain.ErrQuotaExhausted) {
				return err
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	links, err := env.issuer.ListLinks(context.Background(), env.owner, inv.ID)
	require.NoError(t, err)
	total := 0
	for _, l := range links {
		total += l.MaxUses
	}
	assert.Equal(t, 10, total)
}

func TestDisableLink(t *testing.T) {
	env := newTestEnv(t, 2)
	ctx := context.Background()
	inv := env.invitation(t, true)
	link := env.link(t, inv.ID, false)

	disabled, err := env.issuer.DisableLink(ctx, env.owner, link.Token)
	require.NoError(t, err)
	assert.False(t, disabled.IsActive)

	// Disabling again is a no-op and publishes nothing new.
	_, err = env.issuer.DisableLink(ctx, env.owner, link.Token)
	require.NoError(t, err)
	assert.Equal(t, 1, env.events.count(events.LinkDisabled))

	_, err = env.links.Resolve(ctx, link.Token)
	assert.ErrorIs(t, err, domain.ErrDisabled)

	stranger := auth.Caller{OwnerID: uuid.New()}
	_, err = env.issuer.DisableLink(ctx, stranger, link.Token)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	_, err = env.issuer.DisableLink(ctx, env.owner, "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestListLinks(t *testing.T) {
	env := newTestEnv(t, 2)
	inv := env.invitation(t, false)

	first := env.link(t, inv.ID, false)
	_, err := env.issuer.DisableLink(context.Background(), env.owner, first.Token)
	require.NoError(t, err)
	env.clock.Advance(time.Second)
	second := env.link(t, inv.ID, true)

	links, err := env.issuer.ListLinks(context.Background(), env.owner, inv.ID)
	require.NoError(t, err)
	require.Len(t, links, 2)
	assert.Equal(t, second.Token, links[0].Token)
	assert.Equal(t, first.Token, links[1].Token)
}
