package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"recoveryhub/circles/internal/model"
)

// CircleFixture inserts a live circle owned by owner with an active owner
// membership and member_count = 1.
func CircleFixture(t testing.TB, db *gorm.DB, owner uuid.UUID, mutate func(*model.Circle)) *model.Circle {
	t.Helper()

	circle := &model.Circle{
		ID:                   uuid.New(),
		Name:                 "Fixture Circle",
		Type:                 model.CircleTypeGeneral,
		Visibility:           model.VisibilityPrivate,
		MaxMembers:           12,
		AllowMultipleInvites: true,
		CreatedBy:            owner,
		MemberCount:          1,
	}
	circle.Slug = fmt.Sprintf("fixture-%s", circle.ID.String()[:8])
	if mutate != nil {
		mutate(circle)
	}

	ctx := context.Background()
	require.NoError(t, db.WithContext(ctx).Create(circle).Error)
	MemberFixture(t, db, circle.ID, owner, model.MemberRoleOwner, model.MemberStatusActive)
	return circle
}

// MemberFixture inserts a membership row without touching member_count.
func MemberFixture(t testing.TB, db *gorm.DB, circleID, userID uuid.UUID, role model.MemberRole, status model.MemberStatus) *model.Membership {
	t.Helper()

	now := time.Now().UTC()
	m := &model.Membership{
		CircleID: circleID,
		UserID:   userID,
		Role:     role,
		Status:   status,
	}
	switch status {
	case model.MemberStatusActive:
		m.JoinedAt = &now
	case model.MemberStatusPending:
		m.RequestedAt = &now
	default:
		m.LeftAt = &now
	}
	require.NoError(t, db.Create(m).Error)
	return m
}

// AddActiveMember inserts an active member and bumps member_count.
func AddActiveMember(t testing.TB, db *gorm.DB, circleID, userID uuid.UUID, role model.MemberRole) *model.Membership {
	t.Helper()

	m := MemberFixture(t, db, circleID, userID, role, model.MemberStatusActive)
	require.NoError(t, db.Model(&model.Circle{}).
		Where("id = ?", circleID).
		UpdateColumn("member_count", gorm.Expr("member_count + 1")).Error)
	return m
}
