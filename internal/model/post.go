package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PostType string

const (
	PostTypeShare          PostType = "share"
	PostTypeStepExperience PostType = "step-experience"
	PostTypeLinkedEntry    PostType = "linked-entry"
)

func (t PostType) Valid() bool {
	switch t {
	case PostTypeShare, PostTypeStepExperience, PostTypeLinkedEntry:
		return true
	}
	return false
}

// SourceType names the external tool a linked post points at.
type SourceType string

const (
	SourceTypeJournal SourceType = "journal"
	SourceTypeStep4   SourceType = "step4"
	SourceTypeStep8   SourceType = "step8"
	SourceTypeStep9   SourceType = "step9"
)

func (t SourceType) Valid() bool {
	switch t {
	case SourceTypeJournal, SourceTypeStep4, SourceTypeStep8, SourceTypeStep9:
		return true
	}
	return false
}

// LinkedSource references an entry owned by another tool. Snapshot is a
// sanitized copy taken at posting time and never refreshed.
type LinkedSource struct {
	SourceType SourceType `json:"source_type"`
	EntryID    string     `json:"entry_id"`
	Snapshot   string     `json:"snapshot,omitempty"`
}

type Post struct {
	ID           uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	CircleID     uuid.UUID      `gorm:"type:uuid;not null;index:idx_circle_posts_feed,priority:1" json:"circle_id"`
	AuthorID     uuid.UUID      `gorm:"type:uuid;not null;index" json:"author_id"`
	Type         PostType       `gorm:"type:varchar(32);not null;default:'share'" json:"type"`
	Content      string         `gorm:"type:text;not null" json:"content"`
	StepTag      *int           `gorm:"index" json:"step_tag,omitempty"`
	Tags         StringSlice    `gorm:"type:jsonb" json:"tags"`
	LinkedSource *LinkedSource  `gorm:"type:jsonb;serializer:json" json:"linked_source,omitempty"`
	CommentCount int            `gorm:"not null;default:0" json:"comment_count"`
	IsPinned     bool           `gorm:"not null;default:false;index:idx_circle_posts_feed,priority:2" json:"is_pinned"`
	PinnedAt     *time.Time     `gorm:"index:idx_circle_posts_feed,priority:3" json:"pinned_at,omitempty"`
	PinnedBy     *uuid.UUID     `gorm:"type:uuid" json:"pinned_by,omitempty"`
	CreatedAt    time.Time      `gorm:"index:idx_circle_posts_feed,priority:4" json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Post) TableName() string { return "circle_posts" }

func (p *Post) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
