package repository

import (
	"context"
	"errors"
	"time"

	"github.com/diagnosis/luxsuv-invites/services/rsvp/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type linkRepository struct {
	db DBTX
}

func NewLinkRepository(db DBTX) LinkRepository {
	return &linkRepository{db: db}
}

const linkCols = `id, invitation_id, token, status, is_active, max_uses, used_count,
allow_plus_one, expires_at, guest_id, created_at`

func scanLink(row scanner) (*domain.ShareableLink, error) {
	var l domain.ShareableLink
	err := row.Scan(
		&l.ID, &l.InvitationID, &l.Token, &l.Status, &l.IsActive, &l.MaxUses, &l.UsedCount,
		&l.AllowPlusOne, &l.ExpiresAt, &l.GuestID, &l.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *linkRepository) Create(ctx context.Context, l *domain.ShareableLink) error {
	const q = `INSERT INTO shareable_links (` + linkCols + `) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := r.db.Exec(ctx, q,
		l.ID, l.InvitationID, l.Token, l.Status, l.IsActive, l.MaxUses, l.UsedCount,
		l.AllowPlusOne, l.ExpiresAt, l.GuestID, l.CreatedAt,
	)
	return err
}

func (r *linkRepository) GetByToken(ctx context.Context, token string) (*domain.ShareableLink, error) {
	const q = `SELECT ` + linkCols + ` FROM shareable_links WHERE token=$1`
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	return scanLink(r.db.QueryRow(ctx, q, token))
}

func (r *linkRepository) ListByInvitation(ctx context.Context, invitationID uuid.UUID) ([]domain.ShareableLink, error) {
	const q = `SELECT ` + linkCols + ` FROM shareable_links WHERE invitation_id=$1 ORDER BY created_at DESC`
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := r.db.Query(ctx, q, invitationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var links []domain.ShareableLink
	for rows.Next() {
		l, err := scanLink(rows)
		if err != nil {
			return nil, err
		}
		links = append(links, *l)
	}
	return links, rows.Err()
}

// AllocatedUses reads both terms in one statement so they come from the same
// snapshot; a concurrent consumption is seen entirely or not at all.
func (r *linkRepository) AllocatedUses(ctx context.Context, invitationID uuid.UUID, now time.Time) (int, error) {
	const q = `SELECT
		(SELECT count(*) FROM guests WHERE invitation_id=$1 AND link_id IS NOT NULL)
		+ (SELECT COALESCE(SUM(max_uses - used_count), 0) FROM shareable_links
			WHERE invitation_id=$1 AND is_active AND used_count < max_uses
			AND (expires_at IS NULL OR expires_at > $2))`
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var n int
	err := r.db.QueryRow(ctx, q, invitationID, now).Scan(&n)
	return n, err
}

func (r *linkRepository) Consume(ctx context.Context, token string, guestID uuid.UUID, now time.Time) (*domain.ShareableLink, error) {
	const q = `UPDATE shareable_links
		SET used_count = used_count + 1, status = 'USED', guest_id = $2
		WHERE token=$1 AND is_active AND used_count < max_uses
		AND (expires_at IS NULL OR expires_at > $3)
		RETURNING ` + linkCols
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	return scanLink(r.db.QueryRow(ctx, q, token, guestID, now))
}

func (r *linkRepository) Disable(ctx context.Context, id uuid.UUID) error {
	const q = `UPDATE shareable_links SET is_active = FALSE WHERE id=$1`
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := r.db.Exec(ctx, q, id)
	return err
}

// DeleteStaleShared removes links nobody consumed before cutoff. The status
// predicate is re-evaluated against rows a concurrent consumer just updated.
func (r *linkRepository) DeleteStaleShared(ctx context.Context, cutoff time.Time) (int64, error) {
	const q = `DELETE FROM shareable_links WHERE status = 'SHARED' AND created_at < $1`
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tag, err := r.db.Exec(ctx, q, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *linkRepository) DeleteByInvitation(ctx context.Context, invitationID uuid.UUID) (int64, error) {
	const q = `DELETE FROM shareable_links WHERE invitation_id=$1`
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tag, err := r.db.Exec(ctx, q, invitationID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
