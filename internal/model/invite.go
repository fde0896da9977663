package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type InviteMode string

const (
	InviteModeSingleUse InviteMode = "single-use"
	InviteModeMultiUse  InviteMode = "multi-use"
)

func (m InviteMode) Valid() bool {
	return m == InviteModeSingleUse || m == InviteModeMultiUse
}

type InviteState string

const (
	InviteStateActive    InviteState = "active"
	InviteStateExhausted InviteState = "exhausted"
	InviteStateExpired   InviteState = "expired"
	InviteStateRevoked   InviteState = "revoked"
)

type Invite struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	CircleID  uuid.UUID  `gorm:"type:uuid;not null;index" json:"circle_id"`
	Token     string     `gorm:"type:varchar(64);uniqueIndex:idx_circle_invites_token;not null" json:"token"`
	Mode      InviteMode `gorm:"type:varchar(16);not null" json:"mode"`
	MaxUses   int        `gorm:"not null;default:1" json:"max_uses"`
	UsedCount int        `gorm:"not null;default:0" json:"used_count"`
	ExpiresAt *time.Time `gorm:"index" json:"expires_at,omitempty"`
	IsRevoked bool       `gorm:"not null;default:false" json:"is_revoked"`
	CreatedBy uuid.UUID  `gorm:"type:uuid;not null" json:"created_by"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func (Invite) TableName() string { return "circle_invites" }

func (i *Invite) BeforeCreate(*gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

// State returns the redemption state at now. Revoked, expired and exhausted
// are all terminal; when several apply, revocation wins, then expiry.
func (i *Invite) State(now time.Time) InviteState {
	switch {
	case i.IsRevoked:
		return InviteStateRevoked
	case i.ExpiresAt != nil && !now.Before(*i.ExpiresAt):
		return InviteStateExpired
	case i.UsedCount >= i.MaxUses:
		return InviteStateExhausted
	}
	return InviteStateActive
}

// RemainingUses never goes below zero.
func (i *Invite) RemainingUses() int {
	if i.UsedCount >= i.MaxUses {
		return 0
	}
	return i.MaxUses - i.UsedCount
}
