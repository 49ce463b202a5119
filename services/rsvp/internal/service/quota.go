package service

import (
	"context"

	"github.com/diagnosis/luxsuv-invites/pkg/metrics"
	"github.com/google/uuid"
)

// QuotaSource reports how many guests an owner's plan allows per invitation.
type QuotaSource interface {
	MaxGuests(ctx context.Context, ownerID uuid.UUID) (int, error)
}

// StaticQuota grants every owner the same allowance.
type StaticQuota struct {
	Max int
}

func (q StaticQuota) MaxGuests(context.Context, uuid.UUID) (int, error) {
	metrics.QuotaLookup("static")
	return q.Max, nil
}

// QuotaFunc adapts a function to QuotaSource.
type QuotaFunc func(ctx context.Context, ownerID uuid.UUID) (int, error)

func (f QuotaFunc) MaxGuests(ctx context.Context, ownerID uuid.UUID) (int, error) {
	return f(ctx, ownerID)
}
