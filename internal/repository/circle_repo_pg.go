package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"recoveryhub/circles/internal/model"
)

type pgCircleRepository struct {
	db *gorm.DB
}

func NewPGCircleRepository(db *gorm.DB) CircleRepository {
	return &pgCircleRepository{db: db}
}

func (r *pgCircleRepository) Create(ctx context.Context, circle *model.Circle) error {
	return translate(r.db.WithContext(ctx).Create(circle).Error)
}

func (r *pgCircleRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Circle, error) {
	var circle model.Circle
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&circle).Error; err != nil {
		return nil, err
	}
	return &circle, nil
}

func (r *pgCircleRepository) GetBySlug(ctx context.Context, slug string) (*model.Circle, error) {
	var circle model.Circle
	if err := r.db.WithContext(ctx).Where("slug = ?", slug).First(&circle).Error; err != nil {
		return nil, err
	}
	return &circle, nil
}

func (r *pgCircleRepository) SlugExists(ctx context.Context, slug string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Unscoped().
		Model(&model.Circle{}).
		Where("slug = ?", slug).
		Count(&count).Error
	return count > 0, err
}

func (r *pgCircleRepository) CountByCreator(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Circle{}).
		Where("created_by = ?", userID).
		Count(&count).Error
	return count, err
}

func (r *pgCircleRepository) Update(ctx context.Context, id uuid.UUID, fields map[string]any) error {
	result := r.db.WithContext(ctx).
		Model(&model.Circle{}).
		Where("id = ?", id).
		Updates(fields)
	if result.Error != nil {
		return translate(result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *pgCircleRepository) SoftDelete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Circle{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *pgCircleRepository) IncrementMemberCount(ctx context.Context, id uuid.UUID, delta int) error {
	return r.db.WithContext(ctx).
		Model(&model.Circle{}).
		Where("id = ?", id).
		UpdateColumn("member_count", gorm.Expr("member_count + ?", delta)).
		Error
}

func (r *pgCircleRepository) ReserveSeat(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Model(&model.Circle{}).
		Where("id = ? AND member_count < max_members", id).
		UpdateColumn("member_count", gorm.Expr("member_count + 1"))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotApplied
	}
	return nil
}

func (r *pgCircleRepository) SetMemberCount(ctx context.Context, id uuid.UUID, count int64) error {
	return r.db.WithContext(ctx).
		Model(&model.Circle{}).
		Where("id = ?", id).
		UpdateColumn("member_count", count).
		Error
}

func (r *pgCircleRepository) ListPublic(ctx context.Context, page Page) ([]model.Circle, int64, error) {
	public := func() *gorm.DB {
		return r.db.WithContext(ctx).
			Model(&model.Circle{}).
			Where("visibility = ?", model.VisibilityPublic)
	}

	var total int64
	if err := public().Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var circles []model.Circle
	if err := page.apply(public()).Order("created_at DESC").Find(&circles).Error; err != nil {
		return nil, 0, err
	}
	return circles, total, nil
}

func (r *pgCircleRepository) ListForMember(ctx context.Context, userID uuid.UUID, page Page) ([]model.Circle, error) {
	var circles []model.Circle
	err := page.apply(r.db.WithContext(ctx).
		Joins("JOIN circle_members ON circle_members.circle_id = circles.id AND circle_members.user_id = ? AND circle_members.status = ?",
			userID, model.MemberStatusActive)).
		Order("circles.name ASC").
		Find(&circles).Error
	if err != nil {
		return nil, err
	}
	return circles, nil
}
