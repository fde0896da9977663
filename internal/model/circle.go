package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type CircleType string

const (
	CircleTypeGeneral       CircleType = "general"
	CircleTypeSponsorCircle CircleType = "sponsor-circle"
	CircleTypeStepGroup     CircleType = "step-group"
)

// CircleTypes lists the accepted circle types in display order.
var CircleTypes = []CircleType{CircleTypeGeneral, CircleTypeSponsorCircle, CircleTypeStepGroup}

func (t CircleType) Valid() bool {
	switch t {
	case CircleTypeGeneral, CircleTypeSponsorCircle, CircleTypeStepGroup:
		return true
	}
	return false
}

type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)

func (v Visibility) Valid() bool {
	return v == VisibilityPublic || v == VisibilityPrivate
}

// Circle is a named membership group. MemberCount mirrors the number of
// active memberships and is only ever changed by atomic increments.
type Circle struct {
	ID                   uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Name                 string         `gorm:"type:varchar(80);not null" json:"name"`
	Description          string         `gorm:"type:varchar(600);not null;default:''" json:"description"`
	Type                 CircleType     `gorm:"type:varchar(32);not null;default:'general'" json:"type"`
	Visibility           Visibility     `gorm:"type:varchar(16);not null;default:'private'" json:"visibility"`
	MaxMembers           int            `gorm:"not null" json:"max_members"`
	AllowMultipleInvites bool           `gorm:"not null" json:"allow_multiple_invites"`
	Slug                 string         `gorm:"type:varchar(70);uniqueIndex:idx_circles_slug;not null" json:"slug"`
	CreatedBy            uuid.UUID      `gorm:"type:uuid;not null;index" json:"created_by"`
	MemberCount          int            `gorm:"not null;default:0" json:"member_count"`
	CreatedAt            time.Time      `json:"created_at"`
	UpdatedAt            time.Time      `json:"updated_at"`
	DeletedAt            gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Circle) TableName() string { return "circles" }

func (c *Circle) BeforeCreate(*gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
