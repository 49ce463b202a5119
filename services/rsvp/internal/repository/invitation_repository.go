package repository

import (
	"context"
	"errors"
	"time"

	"github.com/diagnosis/luxsuv-invites/services/rsvp/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type invitationRepository struct {
	db DBTX
}

func NewInvitationRepository(db DBTX) InvitationRepository {
	return &invitationRepository{db: db}
}

const invitationCols = `id, owner_id, title, status, created_at, updated_at`

func scanInvitation(row scanner) (*domain.Invitation, error) {
	var inv domain.Invitation
	err := row.Scan(&inv.ID, &inv.OwnerID, &inv.Title, &inv.Status, &inv.CreatedAt, &inv.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

func (r *invitationRepository) Create(ctx context.Context, inv *domain.Invitation) error {
	const q = `INSERT INTO invitations (` + invitationCols + `) VALUES ($1,$2,$3,$4,$5,$6)`
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := r.db.Exec(ctx, q, inv.ID, inv.OwnerID, inv.Title, inv.Status, inv.CreatedAt, inv.UpdatedAt)
	return err
}

func (r *invitationRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Invitation, error) {
	const q = `SELECT ` + invitationCols + ` FROM invitations WHERE id=$1`
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	return scanInvitation(r.db.QueryRow(ctx, q, id))
}

func (r *invitationRepository) LockByID(ctx context.Context, id uuid.UUID) (*domain.Invitation, error) {
	const q = `SELECT ` + invitationCols + ` FROM invitations WHERE id=$1 FOR UPDATE`
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	return scanInvitation(r.db.QueryRow(ctx, q, id))
}

func (r *invitationRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to domain.InvitationStatus, now time.Time) (*domain.Invitation, error) {
	const q = `UPDATE invitations SET status=$3, updated_at=$4
		WHERE id=$1 AND status=$2
		RETURNING ` + invitationCols
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	return scanInvitation(r.db.QueryRow(ctx, q, id, from, to, now))
}

func (r *invitationRepository) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	const q = `DELETE FROM invitations WHERE id=$1`
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tag, err := r.db.Exec(ctx, q, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}
