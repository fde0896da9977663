package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"recoveryhub/circles/internal/model"
)

type pgInviteRepository struct {
	db *gorm.DB
}

func NewPGInviteRepository(db *gorm.DB) InviteRepository {
	return &pgInviteRepository{db: db}
}

func (r *pgInviteRepository) Create(ctx context.Context, invite *model.Invite) error {
	return translate(r.db.WithContext(ctx).Create(invite).Error)
}

func (r *pgInviteRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Invite, error) {
	var invite model.Invite
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&invite).Error; err != nil {
		return nil, err
	}
	return &invite, nil
}

func (r *pgInviteRepository) GetByToken(ctx context.Context, token string) (*model.Invite, error) {
	var invite model.Invite
	if err := r.db.WithContext(ctx).Where("token = ?", token).First(&invite).Error; err != nil {
		return nil, err
	}
	return &invite, nil
}

func (r *pgInviteRepository) ListByCircle(ctx context.Context, circleID uuid.UUID) ([]model.Invite, error) {
	var invites []model.Invite
	if err := r.db.WithContext(ctx).
		Where("circle_id = ?", circleID).
		Order("created_at DESC").
		Find(&invites).Error; err != nil {
		return nil, err
	}
	return invites, nil
}

func (r *pgInviteRepository) Revoke(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Model(&model.Invite{}).
		Where("id = ?", id).
		Update("is_revoked", true)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *pgInviteRepository) ConsumeUse(ctx context.Context, id uuid.UUID, now time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&model.Invite{}).
		Where("id = ? AND used_count < max_uses AND is_revoked = ? AND (expires_at IS NULL OR expires_at > ?)",
			id, false, now).
		UpdateColumn("used_count", gorm.Expr("used_count + 1"))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotApplied
	}
	return nil
}

func (r *pgInviteRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("expires_at IS NOT NULL AND expires_at <= ?", now).
		Delete(&model.Invite{})
	return result.RowsAffected, result.Error
}
