package repository

import (
	"context"

	"github.com/google/uuid"

	"recoveryhub/circles/internal/model"
)

type CommentRepository interface {
	Create(ctx context.Context, comment *model.Comment) error
	GetByID(ctx context.Context, postID, commentID uuid.UUID) (*model.Comment, error)
	// ListByPost returns live comments oldest first.
	ListByPost(ctx context.Context, postID uuid.UUID, page Page) ([]model.Comment, int64, error)
	SoftDelete(ctx context.Context, id uuid.UUID) error
	CountLiveByPost(ctx context.Context, postID uuid.UUID) (int64, error)
}
