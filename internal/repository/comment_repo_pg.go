package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"recoveryhub/circles/internal/model"
)

type pgCommentRepository struct {
	db *gorm.DB
}

func NewPGCommentRepository(db *gorm.DB) CommentRepository {
	return &pgCommentRepository{db: db}
}

func (r *pgCommentRepository) Create(ctx context.Context, comment *model.Comment) error {
	return translate(r.db.WithContext(ctx).Create(comment).Error)
}

func (r *pgCommentRepository) GetByID(ctx context.Context, postID, commentID uuid.UUID) (*model.Comment, error) {
	var comment model.Comment
	err := r.db.WithContext(ctx).
		Where("id = ? AND post_id = ?", commentID, postID).
		First(&comment).Error
	if err != nil {
		return nil, err
	}
	return &comment, nil
}

func (r *pgCommentRepository) ListByPost(ctx context.Context, postID uuid.UUID, page Page) ([]model.Comment, int64, error) {
	thread := func() *gorm.DB {
		return r.db.WithContext(ctx).
			Model(&model.Comment{}).
			Where("post_id = ?", postID)
	}

	var total int64
	if err := thread().Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var comments []model.Comment
	if err := page.apply(thread()).Order("created_at ASC").Find(&comments).Error; err != nil {
		return nil, 0, err
	}
	return comments, total, nil
}

func (r *pgCommentRepository) SoftDelete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Comment{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *pgCommentRepository) CountLiveByPost(ctx context.Context, postID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Comment{}).
		Where("post_id = ?", postID).
		Count(&count).Error
	return count, err
}
