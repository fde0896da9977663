package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"recoveryhub/circles/internal/model"
)

type pgPostRepository struct {
	db *gorm.DB
}

func NewPGPostRepository(db *gorm.DB) PostRepository {
	return &pgPostRepository{db: db}
}

func (r *pgPostRepository) Create(ctx context.Context, post *model.Post) error {
	return translate(r.db.WithContext(ctx).Create(post).Error)
}

func (r *pgPostRepository) GetByID(ctx context.Context, circleID, postID uuid.UUID) (*model.Post, error) {
	var post model.Post
	err := r.db.WithContext(ctx).
		Where("id = ? AND circle_id = ?", postID, circleID).
		First(&post).Error
	if err != nil {
		return nil, err
	}
	return &post, nil
}

func (r *pgPostRepository) List(ctx context.Context, circleID uuid.UUID, stepTag *int, page Page) ([]model.Post, int64, error) {
	feed := func() *gorm.DB {
		q := r.db.WithContext(ctx).
			Model(&model.Post{}).
			Where("circle_id = ?", circleID)
		if stepTag != nil {
			q = q.Where("step_tag = ?", *stepTag)
		}
		return q
	}

	var total int64
	if err := feed().Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var posts []model.Post
	err := page.apply(feed()).
		Order("is_pinned DESC").
		Order("pinned_at DESC").
		Order("created_at DESC").
		Find(&posts).Error
	if err != nil {
		return nil, 0, err
	}
	return posts, total, nil
}

func (r *pgPostRepository) Pin(ctx context.Context, id, by uuid.UUID, at time.Time) error {
	return r.setPin(ctx, id, map[string]any{
		"is_pinned": true,
		"pinned_at": at,
		"pinned_by": by,
	})
}

func (r *pgPostRepository) Unpin(ctx context.Context, id uuid.UUID) error {
	return r.setPin(ctx, id, map[string]any{
		"is_pinned": false,
		"pinned_at": nil,
		"pinned_by": nil,
	})
}

func (r *pgPostRepository) setPin(ctx context.Context, id uuid.UUID, fields map[string]any) error {
	result := r.db.WithContext(ctx).
		Model(&model.Post{}).
		Where("id = ?", id).
		Updates(fields)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *pgPostRepository) SoftDelete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Post{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *pgPostRepository) IncrementCommentCount(ctx context.Context, id uuid.UUID, delta int) error {
	return r.db.WithContext(ctx).
		Model(&model.Post{}).
		Where("id = ?", id).
		UpdateColumn("comment_count", gorm.Expr("comment_count + ?", delta)).
		Error
}

func (r *pgPostRepository) SetCommentCount(ctx context.Context, id uuid.UUID, count int64) error {
	return r.db.WithContext(ctx).
		Model(&model.Post{}).
		Where("id = ?", id).
		UpdateColumn("comment_count", count).
		Error
}
