package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"recoveryhub/circles/internal/model"
)

type InviteRepository interface {
	Create(ctx context.Context, invite *model.Invite) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Invite, error)
	GetByToken(ctx context.Context, token string) (*model.Invite, error)
	ListByCircle(ctx context.Context, circleID uuid.UUID) ([]model.Invite, error)
	Revoke(ctx context.Context, id uuid.UUID) error
	// ConsumeUse increments used_count only while the invite is redeemable
	// at now. ErrNotApplied means another redeemer got there first.
	ConsumeUse(ctx context.Context, id uuid.UUID, now time.Time) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
