package repository

import (
	"context"
	"time"

	"github.com/diagnosis/luxsuv-invites/services/rsvp/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Lookups return (nil, nil) when the row does not exist. Conditional writes
// report whether a row matched.

type InvitationRepository interface {
	Create(ctx context.Context, inv *domain.Invitation) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Invitation, error)
	// LockByID reads the invitation and holds a row lock until the transaction ends.
	LockByID(ctx context.Context, id uuid.UUID) (*domain.Invitation, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to domain.InvitationStatus, now time.Time) (*domain.Invitation, error)
	Delete(ctx context.Context, id uuid.UUID) (bool, error)
}

type GuestRepository interface {
	Create(ctx context.Context, g *domain.Guest) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Guest, error)
	GetByToken(ctx context.Context, token string) (*domain.Guest, error)
	MarkUsed(ctx context.Context, id uuid.UUID, now time.Time) (bool, error)
	CountByInvitation(ctx context.Context, invitationID uuid.UUID) (int, error)
	// CountLinkGuests counts guests that were minted through a shareable link.
	CountLinkGuests(ctx context.Context, invitationID uuid.UUID) (int, error)
	Delete(ctx context.Context, id uuid.UUID) (bool, error)
	DeleteByInvitation(ctx context.Context, invitationID uuid.UUID) (int64, error)
}

type LinkRepository interface {
	Create(ctx context.Context, l *domain.ShareableLink) error
	GetByToken(ctx context.Context, token string) (*domain.ShareableLink, error)
	ListByInvitation(ctx context.Context, invitationID uuid.UUID) ([]domain.ShareableLink, error)
	// AllocatedUses is the part of the invitation's allowance already spoken
	// for: guests minted through links plus the unclaimed uses of active,
	// unexpired links. Both terms are read from one snapshot.
	AllocatedUses(ctx context.Context, invitationID uuid.UUID, now time.Time) (int, error)
	// Consume claims one use of the link and binds it to guestID. It returns
	// nil when the link is missing, disabled, expired or exhausted.
	Consume(ctx context.Context, token string, guestID uuid.UUID, now time.Time) (*domain.ShareableLink, error)
	Disable(ctx context.Context, id uuid.UUID) error
	DeleteStaleShared(ctx context.Context, cutoff time.Time) (int64, error)
	DeleteByInvitation(ctx context.Context, invitationID uuid.UUID) (int64, error)
}

type RSVPRepository interface {
	Create(ctx context.Context, r *domain.RSVP) error
	GetByGuestID(ctx context.Context, guestID uuid.UUID) (*domain.RSVP, error)
	Update(ctx context.Context, r *domain.RSVP) error
	DeleteByInvitation(ctx context.Context, invitationID uuid.UUID) (int64, error)
}

// Repos groups the repositories bound to one connection or transaction.
type Repos struct {
	Invitations InvitationRepository
	Guests      GuestRepository
	Links       LinkRepository
	RSVPs       RSVPRepository
}

// Store hands out repositories. Everything fn does through the Repos passed
// to WithTx commits together or not at all.
type Store interface {
	Repos() Repos
	WithTx(ctx context.Context, fn func(Repos) error) error
}

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PGStore struct {
	pool *pgxpool.Pool
}

func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

func (s *PGStore) Repos() Repos {
	return newRepos(s.pool)
}

func (s *PGStore) WithTx(ctx context.Context, fn func(Repos) error) error {
	return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		return fn(newRepos(tx))
	})
}

func newRepos(db DBTX) Repos {
	return Repos{
		Invitations: NewInvitationRepository(db),
		Guests:      NewGuestRepository(db),
		Links:       NewLinkRepository(db),
		RSVPs:       NewRSVPRepository(db),
	}
}

type scanner interface {
	Scan(dest ...any) error
}

const queryTimeout = 3 * time.Second
