// Package memstore is an in-memory repository.Store used by tests and by the
// memory database driver. Transactions run one at a time under a single lock
// and are rolled back by restoring a snapshot.
package memstore

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/diagnosis/luxsuv-invites/services/rsvp/internal/domain"
	"github.com/diagnosis/luxsuv-invites/services/rsvp/internal/repository"
	"github.com/google/uuid"
)

var ErrDuplicate = errors.New("memstore: duplicate key")

type state struct {
	invitations map[uuid.UUID]domain.Invitation
	guests      map[uuid.UUID]domain.Guest
	links       map[uuid.UUID]domain.ShareableLink
	rsvps       map[uuid.UUID]domain.RSVP // keyed by guest id
}

func newState() *state {
	return &state{
		invitations: make(map[uuid.UUID]domain.Invitation),
		guests:      make(map[uuid.UUID]domain.Guest),
		links:       make(map[uuid.UUID]domain.ShareableLink),
		rsvps:       make(map[uuid.UUID]domain.RSVP),
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.invitations {
		c.invitations[k] = v
	}
	for k, v := range s.guests {
		c.guests[k] = v
	}
	for k, v := range s.links {
		c.links[k] = v
	}
	for k, v := range s.rsvps {
		c.rsvps[k] = v
	}
	return c
}

type Store struct {
	mu   sync.Mutex
	data *state
}

func New() *Store {
	return &Store{data: newState()}
}

func (s *Store) Repos() repository.Repos {
	return s.repos(false)
}

func (s *Store) WithTx(ctx context.Context, fn func(repository.Repos) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	snapshot := s.data.clone()
	if err := fn(s.repos(true)); err != nil {
		s.data = snapshot
		return err
	}
	return nil
}

func (s *Store) repos(inTx bool) repository.Repos {
	b := &base{store: s, inTx: inTx}
	return repository.Repos{
		Invitations: &invitations{b},
		Guests:      &guests{b},
		Links:       &links{b},
		RSVPs:       &rsvps{b},
	}
}

// base runs each operation under the store lock unless a transaction already holds it.
type base struct {
	store *Store
	inTx  bool
}

func (b *base) do(ctx context.Context, fn func(d *state) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !b.inTx {
		b.store.mu.Lock()
		defer b.store.mu.Unlock()
	}
	return fn(b.store.data)
}

type invitations struct{ *base }

func (r *invitations) Create(ctx context.Context, inv *domain.Invitation) error {
	return r.do(ctx, func(d *state) error {
		if _, ok := d.invitations[inv.ID]; ok {
			return ErrDuplicate
		}
		d.invitations[inv.ID] = *inv
		return nil
	})
}

func (r *invitations) GetByID(ctx context.Context, id uuid.UUID) (*domain.Invitation, error) {
	var out *domain.Invitation
	err := r.do(ctx, func(d *state) error {
		if inv, ok := d.invitations[id]; ok {
			out = &inv
		}
		return nil
	})
	return out, err
}

func (r *invitations) LockByID(ctx context.Context, id uuid.UUID) (*domain.Invitation, error) {
	return r.GetByID(ctx, id)
}

func (r *invitations) UpdateStatus(ctx context.Context, id uuid.UUID, from, to domain.InvitationStatus, now time.Time) (*domain.Invitation, error) {
	var out *domain.Invitation
	err := r.do(ctx, func(d *state) error {
		inv, ok := d.invitations[id]
		if !ok || inv.Status != from {
			return nil
		}
		inv.Status = to
		inv.UpdatedAt = now
		d.invitations[id] = inv
		out = &inv
		return nil
	})
	return out, err
}

func (r *invitations) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	var deleted bool
	err := r.do(ctx, func(d *state) error {
		if _, ok := d.invitations[id]; !ok {
			return nil
		}
		// mirror ON DELETE CASCADE
		for gid, g := range d.guests {
			if g.InvitationID == id {
				delete(d.rsvps, gid)
				delete(d.guests, gid)
			}
		}
		for lid, l := range d.links {
			if l.InvitationID == id {
				delete(d.links, lid)
			}
		}
		delete(d.invitations, id)
		deleted = true
		return nil
	})
	return deleted, err
}

type guests struct{ *base }

func (r *guests) Create(ctx context.Context, g *domain.Guest) error {
	return r.do(ctx, func(d *state) error {
		if _, ok := d.guests[g.ID]; ok {
			return ErrDuplicate
		}
		for _, other := range d.guests {
			if other.PersonalToken == g.PersonalToken {
				return ErrDuplicate
			}
		}
		d.guests[g.ID] = *g
		return nil
	})
}

func (r *guests) GetByID(ctx context.Context, id uuid.UUID) (*domain.Guest, error) {
	var out *domain.Guest
	err := r.do(ctx, func(d *state) error {
		if g, ok := d.guests[id]; ok {
			out = &g
		}
		return nil
	})
	return out, err
}

func (r *guests) GetByToken(ctx context.Context, token string) (*domain.Guest, error) {
	var out *domain.Guest
	err := r.do(ctx, func(d *state) error {
		for _, g := range d.guests {
			if g.PersonalToken == token {
				g := g
				out = &g
				return nil
			}
		}
		return nil
	})
	return out, err
}

func (r *guests) MarkUsed(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	var ok bool
	err := r.do(ctx, func(d *state) error {
		g, found := d.guests[id]
		if !found || g.UsedAt != nil {
			return nil
		}
		t := now
		g.UsedAt = &t
		d.guests[id] = g
		ok = true
		return nil
	})
	return ok, err
}

func (r *guests) CountByInvitation(ctx context.Context, invitationID uuid.UUID) (int, error) {
	n := 0
	err := r.do(ctx, func(d *state) error {
		for _, g := range d.guests {
			if g.InvitationID == invitationID {
				n++
			}
		}
		return nil
	})
	return n, err
}

func (r *guests) CountLinkGuests(ctx context.Context, invitationID uuid.UUID) (int, error) {
	n := 0
	err := r.do(ctx, func(d *state) error {
		for _, g := range d.guests {
			if g.InvitationID == invitationID && g.LinkID != nil {
				n++
			}
		}
		return nil
	})
	return n, err
}

func (r *guests) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	var deleted bool
	err := r.do(ctx, func(d *state) error {
		if _, ok := d.guests[id]; !ok {
			return nil
		}
		deleteGuest(d, id)
		deleted = true
		return nil
	})
	return deleted, err
}

func (r *guests) DeleteByInvitation(ctx context.Context, invitationID uuid.UUID) (int64, error) {
	var n int64
	err := r.do(ctx, func(d *state) error {
		for id, g := range d.guests {
			if g.InvitationID == invitationID {
				deleteGuest(d, id)
				n++
			}
		}
		return nil
	})
	return n, err
}

// deleteGuest mirrors the RSVP cascade and the link back-reference SET NULL.
func deleteGuest(d *state, id uuid.UUID) {
	delete(d.rsvps, id)
	delete(d.guests, id)
	for lid, l := range d.links {
		if l.GuestID != nil && *l.GuestID == id {
			l.GuestID = nil
			d.links[lid] = l
		}
	}
}

type links struct{ *base }

func (r *links) Create(ctx context.Context, l *domain.ShareableLink) error {
	return r.do(ctx, func(d *state) error {
		if _, ok := d.links[l.ID]; ok {
			return ErrDuplicate
		}
		for _, other := range d.links {
			if other.Token == l.Token {
				return ErrDuplicate
			}
		}
		d.links[l.ID] = *l
		return nil
	})
}

func (r *links) GetByToken(ctx context.Context, token string) (*domain.ShareableLink, error) {
	var out *domain.ShareableLink
	err := r.do(ctx, func(d *state) error {
		if l, ok := findLink(d, token); ok {
			out = &l
		}
		return nil
	})
	return out, err
}

func findLink(d *state, token string) (domain.ShareableLink, bool) {
	for _, l := range d.links {
		if l.Token == token {
			return l, true
		}
	}
	return domain.ShareableLink{}, false
}

func (r *links) ListByInvitation(ctx context.Context, invitationID uuid.UUID) ([]domain.ShareableLink, error) {
	var out []domain.ShareableLink
	err := r.do(ctx, func(d *state) error {
		for _, l := range d.links {
			if l.InvitationID == invitationID {
				out = append(out, l)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, err
}

func (r *links) AllocatedUses(ctx context.Context, invitationID uuid.UUID, now time.Time) (int, error) {
	n := 0
	err := r.do(ctx, func(d *state) error {
		for _, g := range d.guests {
			if g.InvitationID == invitationID && g.LinkID != nil {
				n++
			}
		}
		for _, l := range d.links {
			if l.InvitationID == invitationID && l.Reserves(now) {
				n += l.Remaining()
			}
		}
		return nil
	})
	return n, err
}

func (r *links) Consume(ctx context.Context, token string, guestID uuid.UUID, now time.Time) (*domain.ShareableLink, error) {
	var out *domain.ShareableLink
	err := r.do(ctx, func(d *state) error {
		l, ok := findLink(d, token)
		if !ok || !l.Reserves(now) {
			return nil
		}
		gid := guestID
		l.UsedCount++
		l.Status = domain.LinkUsed
		l.GuestID = &gid
		d.links[l.ID] = l
		out = &l
		return nil
	})
	return out, err
}

func (r *links) Disable(ctx context.Context, id uuid.UUID) error {
	return r.do(ctx, func(d *state) error {
		if l, ok := d.links[id]; ok {
			l.IsActive = false
			d.links[id] = l
		}
		return nil
	})
}

func (r *links) DeleteStaleShared(ctx context.Context, cutoff time.Time) (int64, error) {
	var n int64
	err := r.do(ctx, func(d *state) error {
		for id, l := range d.links {
			if l.Status == domain.LinkShared && l.CreatedAt.Before(cutoff) {
				deleteLink(d, id)
				n++
			}
		}
		return nil
	})
	return n, err
}

func (r *links) DeleteByInvitation(ctx context.Context, invitationID uuid.UUID) (int64, error) {
	var n int64
	err := r.do(ctx, func(d *state) error {
		for id, l := range d.links {
			if l.InvitationID == invitationID {
				deleteLink(d, id)
				n++
			}
		}
		return nil
	})
	return n, err
}

// deleteLink mirrors the guests.link_id SET NULL.
func deleteLink(d *state, id uuid.UUID) {
	delete(d.links, id)
	for gid, g := range d.guests {
		if g.LinkID != nil && *g.LinkID == id {
			g.LinkID = nil
			d.guests[gid] = g
		}
	}
}

type rsvps struct{ *base }

func (r *rsvps) Create(ctx context.Context, v *domain.RSVP) error {
	return r.do(ctx, func(d *state) error {
		if _, ok := d.rsvps[v.GuestID]; ok {
			return ErrDuplicate
		}
		d.rsvps[v.GuestID] = *v
		return nil
	})
}

func (r *rsvps) GetByGuestID(ctx context.Context, guestID uuid.UUID) (*domain.RSVP, error) {
	var out *domain.RSVP
	err := r.do(ctx, func(d *state) error {
		if v, ok := d.rsvps[guestID]; ok {
			out = &v
		}
		return nil
	})
	return out, err
}

func (r *rsvps) Update(ctx context.Context, v *domain.RSVP) error {
	return r.do(ctx, func(d *state) error {
		if _, ok := d.rsvps[v.GuestID]; ok {
			d.rsvps[v.GuestID] = *v
		}
		return nil
	})
}

func (r *rsvps) DeleteByInvitation(ctx context.Context, invitationID uuid.UUID) (int64, error) {
	var n int64
	err := r.do(ctx, func(d *state) error {
		for gid := range d.rsvps {
			if g, ok := d.guests[gid]; ok && g.InvitationID == invitationID {
				delete(d.rsvps, gid)
				n++
			}
		}
		return nil
	})
	return n, err
}

var _ repository.Store = (*Store)(nil)
