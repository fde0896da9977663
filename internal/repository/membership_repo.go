package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"recoveryhub/circles/internal/model"
)

type MembershipRepository interface {
	Create(ctx context.Context, membership *model.Membership) error
	Get(ctx context.Context, circleID, userID uuid.UUID, status model.MemberStatus) (*model.Membership, error)
	// Transition moves the row from its current status to next. Older history
	// rows already in next are dropped first. ErrNotApplied means the row
	// left its status concurrently.
	Transition(ctx context.Context, membership *model.Membership, next model.MemberStatus, at time.Time) error
	// UpdateRole changes the role of an active membership.
	UpdateRole(ctx context.Context, id uuid.UUID, role model.MemberRole) error
	CountActive(ctx context.Context, circleID uuid.UUID) (int64, error)
	ListByStatus(ctx context.Context, circleID uuid.UUID, status model.MemberStatus, page Page) ([]model.Membership, int64, error)
}
