package repository

import (
	"context"
	"errors"
	"time"

	"github.com/diagnosis/luxsuv-invites/services/rsvp/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type guestRepository struct {
	db DBTX
}

func NewGuestRepository(db DBTX) GuestRepository {
	return &guestRepository{db: db}
}

const guestCols = `id, invitation_id, personal_token, used_at, plus_one,
first_name, last_name, email, phone, link_id, created_at`

func scanGuest(row scanner) (*domain.Guest, error) {
	var g domain.Guest
	err := row.Scan(
		&g.ID, &g.InvitationID, &g.PersonalToken, &g.UsedAt, &g.PlusOne,
		&g.FirstName, &g.LastName, &g.Email, &g.Phone, &g.LinkID, &g.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &g, nil
}

func (r *guestRepository) Create(ctx context.Context, g *domain.Guest) error {
	const q = `INSERT INTO guests (` + guestCols + `) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := r.db.Exec(ctx, q,
		g.ID, g.InvitationID, g.PersonalToken, g.UsedAt, g.PlusOne,
		g.FirstName, g.LastName, g.Email, g.Phone, g.LinkID, g.CreatedAt,
	)
	return err
}

func (r *guestRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Guest, error) {
	const q = `SELECT ` + guestCols + ` FROM guests WHERE id=$1`
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	return scanGuest(r.db.QueryRow(ctx, q, id))
}

func (r *guestRepository) GetByToken(ctx context.Context, token string) (*domain.Guest, error) {
	const q = `SELECT ` + guestCols + ` FROM guests WHERE personal_token=$1`
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	return scanGuest(r.db.QueryRow(ctx, q, token))
}

// MarkUsed is the one-shot consumption of a personal token.
func (r *guestRepository) MarkUsed(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	const q = `UPDATE guests SET used_at=$2 WHERE id=$1 AND used_at IS NULL`
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tag, err := r.db.Exec(ctx, q, id, now)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *guestRepository) CountByInvitation(ctx context.Context, invitationID uuid.UUID) (int, error) {
	const q = `SELECT count(*) FROM guests WHERE invitation_id=$1`
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var n int
	err := r.db.QueryRow(ctx, q, invitationID).Scan(&n)
	return n, err
}

func (r *guestRepository) CountLinkGuests(ctx context.Context, invitationID uuid.UUID) (int, error) {
	const q = `SELECT count(*) FROM guests WHERE invitation_id=$1 AND link_id IS NOT NULL`
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var n int
	err := r.db.QueryRow(ctx, q, invitationID).Scan(&n)
	return n, err
}

func (r *guestRepository) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	const q = `DELETE FROM guests WHERE id=$1`
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tag, err := r.db.Exec(ctx, q, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *guestRepository) DeleteByInvitation(ctx context.Context, invitationID uuid.UUID) (int64, error) {
	const q = `DELETE FROM guests WHERE invitation_id=$1`
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tag, err := r.db.Exec(ctx, q, invitationID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
