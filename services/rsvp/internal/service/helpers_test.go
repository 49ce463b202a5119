package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/diagnosis/luxsuv-invites/pkg/auth"
	"github.com/diagnosis/luxsuv-invites/pkg/events"
	"github.com/diagnosis/luxsuv-invites/services/rsvp/internal/domain"
	"github.com/diagnosis/luxsuv-invites/services/rsvp/internal/repository/memstore"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// recorder collects every event published on the bus.
type recorder struct {
	mu       sync.Mutex
	subjects []string
}

func (r *recorder) count(subject string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, s := range r.subjects {
		if s == subject {
			n++
		}
	}
	return n
}

type testEnv struct {
	store       *memstore.Store
	clock       *fakeClock
	bus         *events.LocalBus
	events      *recorder
	links       *LinkStateMachine
	issuer      *TokenIssuer
	rsvps       *RSVPRecorder
	gateway     *AccessGateway
	invitations *InvitationService
	sweeper     *Sweeper
	owner       auth.Caller
}

func newTestEnv(t *testing.T, maxGuests int) *testEnv {
	t.Helper()
	store := memstore.New()
	clock := newFakeClock()
	bus := events.NewLocalBus()

	rec := &recorder{}
	for _, subject := range []string{
		events.InvitationPublished, events.InvitationArchived, events.InvitationDeleted,
		events.LinkIssued, events.LinkConsumed, events.LinkDisabled, events.LinksSwept,
		events.GuestAdded, events.RSVPSubmitted, events.RSVPUpdated,
	} {
		require.NoError(t, bus.Subscribe(subject, func(msg *events.Message) {
			rec.mu.Lock()
			rec.subjects = append(rec.subjects, msg.Subject)
			rec.mu.Unlock()
		}))
	}

	links := NewLinkStateMachine(store, clock)
	issuer := NewTokenIssuer(store, StaticQuota{Max: maxGuests}, links, clock, bus)
	return &testEnv{
		store:       store,
		clock:       clock,
		bus:         bus,
		events:      rec,
		links:       links,
		issuer:      issuer,
		rsvps:       NewRSVPRecorder(store, links, clock, bus, "https://rsvp.example"),
		gateway:     NewAccessGateway(store, links),
		invitations: NewInvitationService(store, issuer, clock, bus, nil, "https://rsvp.example"),
		sweeper:     NewSweeper(store, clock, 10*time.Minute, bus),
		owner:       auth.Caller{OwnerID: uuid.New(), Email: "host@example.com", Role: auth.RoleOwner},
	}
}

func (e *testEnv) invitation(t *testing.T, publish bool) *domain.Invitation {
	t.Helper()
	ctx := context.Background()
	inv, err := e.invitations.Create(ctx, e.owner, "Ana & Bo")
	require.NoError(t, err)
	if publish {
		inv, err = e.invitations.Publish(ctx, e.owner, inv.ID)
		require.NoError(t, err)
	}
	return inv
}

func (e *testEnv) guest(t *testing.T, invitationID uuid.UUID, plusOne bool) *domain.Guest {
	t.Helper()
	g, err := e.invitations.AddGuest(context.Background(), e.owner, invitationID, domain.GuestRequest{FirstName: "Cleo", LastName: "Diaz", PlusOne: plusOne})
	require.NoError(t, err)
	return g
}

func (e *testEnv) link(t *testing.T, invitationID uuid.UUID, allowPlusOne bool) *domain.ShareableLink {
	t.Helper()
	l, err := e.issuer.IssueShareableLink(context.Background(), e.owner, domain.LinkRequest{InvitationID: invitationID, AllowPlusOne: allowPlusOne})
	require.NoError(t, err)
	return l
}

func respondent(n int) domain.PersonalInfo {
	return domain.PersonalInfo{FirstName: "Guest", LastName: string(rune('A' + n%26)), Phone: "+1 555 010 0000"}
}

func confirmed(n int) domain.Response {
	return domain.Response{Status: domain.RSVPConfirmed, NumberOfGuests: n, AttendingCeremony: true, AttendingReception: true}
}
