package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type MemberRole string

const (
	MemberRoleOwner  MemberRole = "owner"
	MemberRoleAdmin  MemberRole = "admin"
	MemberRoleMember MemberRole = "member"
)

func (r MemberRole) Valid() bool {
	switch r {
	case MemberRoleOwner, MemberRoleAdmin, MemberRoleMember:
		return true
	}
	return false
}

// IsAdmin reports whether the role may moderate the circle.
func (r MemberRole) IsAdmin() bool {
	return r == MemberRoleOwner || r == MemberRoleAdmin
}

type MemberStatus string

const (
	MemberStatusActive  MemberStatus = "active"
	MemberStatusPending MemberStatus = "pending"
	MemberStatusLeft    MemberStatus = "left"
	MemberStatusRemoved MemberStatus = "removed"
)

// CanTransition reports whether a membership may move from s to next.
// left and removed are terminal.
func (s MemberStatus) CanTransition(next MemberStatus) bool {
	switch s {
	case MemberStatusPending:
		return next == MemberStatusActive || next == MemberStatusRemoved
	case MemberStatusActive:
		return next == MemberStatusLeft || next == MemberStatusRemoved
	}
	return false
}

// Membership links one user to one circle. The unique index on
// (circle_id, user_id, status) admits historical rows next to the live one
// but never two rows in the same status.
type Membership struct {
	ID          uuid.UUID    `gorm:"type:uuid;primaryKey" json:"id"`
	CircleID    uuid.UUID    `gorm:"type:uuid;not null;uniqueIndex:idx_circle_members_circle_user_status,priority:1" json:"circle_id"`
	UserID      uuid.UUID    `gorm:"type:uuid;not null;uniqueIndex:idx_circle_members_circle_user_status,priority:2;index" json:"user_id"`
	Status      MemberStatus `gorm:"type:varchar(16);not null;uniqueIndex:idx_circle_members_circle_user_status,priority:3" json:"status"`
	Role        MemberRole   `gorm:"type:varchar(16);not null;default:'member'" json:"role"`
	JoinedAt    *time.Time   `json:"joined_at,omitempty"`
	LeftAt      *time.Time   `json:"left_at,omitempty"`
	RequestedAt *time.Time   `json:"requested_at,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

func (Membership) TableName() string { return "circle_members" }

func (m *Membership) BeforeCreate(*gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}
