package repository

import (
	"context"

	"github.com/google/uuid"

	"recoveryhub/circles/internal/model"
)

// CircleRepository reads only live circles unless a method says otherwise.
type CircleRepository interface {
	Create(ctx context.Context, circle *model.Circle) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Circle, error)
	GetBySlug(ctx context.Context, slug string) (*model.Circle, error)
	// SlugExists also sees soft-deleted circles.
	SlugExists(ctx context.Context, slug string) (bool, error)
	CountByCreator(ctx context.Context, userID uuid.UUID) (int64, error)
	Update(ctx context.Context, id uuid.UUID, fields map[string]any) error
	SoftDelete(ctx context.Context, id uuid.UUID) error
	IncrementMemberCount(ctx context.Context, id uuid.UUID, delta int) error
	// ReserveSeat increments member_count only while it is below max_members.
	// It returns ErrNotApplied when the circle is full.
	ReserveSeat(ctx context.Context, id uuid.UUID) error
	SetMemberCount(ctx context.Context, id uuid.UUID, count int64) error
	ListPublic(ctx context.Context, page Page) ([]model.Circle, int64, error)
	ListForMember(ctx context.Context, userID uuid.UUID, page Page) ([]model.Circle, error)
}
