package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"recoveryhub/circles/internal/model"
)

type pgMembershipRepository struct {
	db *gorm.DB
}

func NewPGMembershipRepository(db *gorm.DB) MembershipRepository {
	return &pgMembershipRepository{db: db}
}

func (r *pgMembershipRepository) Create(ctx context.Context, membership *model.Membership) error {
	return translate(r.db.WithContext(ctx).Create(membership).Error)
}

func (r *pgMembershipRepository) Get(ctx context.Context, circleID, userID uuid.UUID, status model.MemberStatus) (*model.Membership, error) {
	var membership model.Membership
	err := r.db.WithContext(ctx).
		Where("circle_id = ? AND user_id = ? AND status = ?", circleID, userID, status).
		First(&membership).Error
	if err != nil {
		return nil, err
	}
	return &membership, nil
}

func (r *pgMembershipRepository) Transition(ctx context.Context, membership *model.Membership, next model.MemberStatus, at time.Time) error {
	if !membership.Status.CanTransition(next) {
		return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, membership.Status, next)
	}
	db := r.db.WithContext(ctx)

	if next == model.MemberStatusLeft || next == model.MemberStatusRemoved {
		err := db.Where("circle_id = ? AND user_id = ? AND status = ? AND id <> ?",
			membership.CircleID, membership.UserID, next, membership.ID).
			Delete(&model.Membership{}).Error
		if err != nil {
			return err
		}
	}

	fields := map[string]any{"status": next}
	switch next {
	case model.MemberStatusActive:
		fields["joined_at"] = at
	case model.MemberStatusLeft, model.MemberStatusRemoved:
		fields["left_at"] = at
	}

	result := db.Model(&model.Membership{}).
		Where("id = ? AND status = ?", membership.ID, membership.Status).
		Updates(fields)
	if result.Error != nil {
		return translate(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotApplied
	}

	membership.Status = next
	switch next {
	case model.MemberStatusActive:
		membership.JoinedAt = &at
	case model.MemberStatusLeft, model.MemberStatusRemoved:
		membership.LeftAt = &at
	}
	return nil
}

func (r *pgMembershipRepository) UpdateRole(ctx context.Context, id uuid.UUID, role model.MemberRole) error {
	result := r.db.WithContext(ctx).
		Model(&model.Membership{}).
		Where("id = ? AND status = ?", id, model.MemberStatusActive).
		Update("role", role)
	if result.Error != nil {
		return translate(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotApplied
	}
	return nil
}

func (r *pgMembershipRepository) CountActive(ctx context.Context, circleID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Membership{}).
		Where("circle_id = ? AND status = ?", circleID, model.MemberStatusActive).
		Count(&count).Error
	return count, err
}

func (r *pgMembershipRepository) ListByStatus(ctx context.Context, circleID uuid.UUID, status model.MemberStatus, page Page) ([]model.Membership, int64, error) {
	byStatus := func() *gorm.DB {
		return r.db.WithContext(ctx).
			Model(&model.Membership{}).
			Where("circle_id = ? AND status = ?", circleID, status)
	}

	var total int64
	if err := byStatus().Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var members []model.Membership
	if err := page.apply(byStatus()).Order("created_at ASC").Find(&members).Error; err != nil {
		return nil, 0, err
	}
	return members, total, nil
}
