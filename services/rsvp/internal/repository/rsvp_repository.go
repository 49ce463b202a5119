package repository

import (
	"context"
	"errors"

	"github.com/diagnosis/luxsuv-invites/services/rsvp/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type rsvpRepository struct {
	db DBTX
}

func NewRSVPRepository(db DBTX) RSVPRepository {
	return &rsvpRepository{db: db}
}

const rsvpCols = `id, guest_id, status, number_of_guests, attending_ceremony, attending_reception,
message, responded_at, created_at, updated_at`

func (r *rsvpRepository) Create(ctx context.Context, rsvp *domain.RSVP) error {
	const q = `INSERT INTO rsvps (` + rsvpCols + `) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := r.db.Exec(ctx, q,
		rsvp.ID, rsvp.GuestID, rsvp.Status, rsvp.NumberOfGuests,
		rsvp.AttendingCeremony, rsvp.AttendingReception, rsvp.Message,
		rsvp.RespondedAt, rsvp.CreatedAt, rsvp.UpdatedAt,
	)
	return err
}

func (r *rsvpRepository) GetByGuestID(ctx context.Context, guestID uuid.UUID) (*domain.RSVP, error) {
	const q = `SELECT ` + rsvpCols + ` FROM rsvps WHERE guest_id=$1`
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var v domain.RSVP
	err := r.db.QueryRow(ctx, q, guestID).Scan(
		&v.ID, &v.GuestID, &v.Status, &v.NumberOfGuests,
		&v.AttendingCeremony, &v.AttendingReception, &v.Message,
		&v.RespondedAt, &v.CreatedAt, &v.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *rsvpRepository) Update(ctx context.Context, rsvp *domain.RSVP) error {
	const q = `UPDATE rsvps SET status=$2, number_of_guests=$3, attending_ceremony=$4,
		attending_reception=$5, message=$6, responded_at=$7, updated_at=$8
		WHERE id=$1`
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := r.db.Exec(ctx, q,
		rsvp.ID, rsvp.Status, rsvp.NumberOfGuests, rsvp.AttendingCeremony,
		rsvp.AttendingReception, rsvp.Message, rsvp.RespondedAt, rsvp.UpdatedAt,
	)
	return err
}

func (r *rsvpRepository) DeleteByInvitation(ctx context.Context, invitationID uuid.UUID) (int64, error) {
	const q = `DELETE FROM rsvps WHERE guest_id IN (SELECT id FROM guests WHERE invitation_id=$1)`
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tag, err := r.db.Exec(ctx, q, invitationID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
