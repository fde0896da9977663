package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Comment is a reply to a post. ParentID is stored as given and is not
// checked against existing comments.
type Comment struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	CircleID  uuid.UUID      `gorm:"type:uuid;not null;index" json:"circle_id"`
	PostID    uuid.UUID      `gorm:"type:uuid;not null;index:idx_circle_comments_post,priority:1" json:"post_id"`
	AuthorID  uuid.UUID      `gorm:"type:uuid;not null" json:"author_id"`
	Content   string         `gorm:"type:text;not null" json:"content"`
	ParentID  *string        `gorm:"type:varchar(64)" json:"parent_id,omitempty"`
	CreatedAt time.Time      `gorm:"index:idx_circle_comments_post,priority:2" json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Comment) TableName() string { return "circle_comments" }

func (c *Comment) BeforeCreate(*gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
