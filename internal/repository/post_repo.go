package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"recoveryhub/circles/internal/model"
)

type PostRepository interface {
	Create(ctx context.Context, post *model.Post) error
	GetByID(ctx context.Context, circleID, postID uuid.UUID) (*model.Post, error)
	// List returns the live feed, pinned posts first, newest first within
	// each tier. A nil stepTag matches every post.
	List(ctx context.Context, circleID uuid.UUID, stepTag *int, page Page) ([]model.Post, int64, error)
	Pin(ctx context.Context, id, by uuid.UUID, at time.Time) error
	Unpin(ctx context.Context, id uuid.UUID) error
	SoftDelete(ctx context.Context, id uuid.UUID) error
	IncrementCommentCount(ctx context.Context, id uuid.UUID, delta int) error
	SetCommentCount(ctx context.Context, id uuid.UUID, count int64) error
}
