package repository

import (
	"context"

	"gorm.io/gorm"
)

// Store groups the five circle repositories over one database handle.
// Repositories obtained from the store passed to a Transaction callback share
// that transaction.
type Store interface {
	Circles() CircleRepository
	Members() MembershipRepository
	Invites() InviteRepository
	Posts() PostRepository
	Comments() CommentRepository
	Transaction(ctx context.Context, fn func(tx Store) error) error
}

// Page describes an offset window over a sorted result.
type Page struct {
	Page  int
	Limit int
}

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// NewPage clamps page to >= 1 and limit to (0, MaxPageLimit].
func NewPage(page, limit int) Page {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	return Page{Page: page, Limit: limit}
}

func (p Page) Offset() int {
	return (p.Page - 1) * p.Limit
}

func (p Page) apply(db *gorm.DB) *gorm.DB {
	return db.Offset(p.Offset()).Limit(p.Limit)
}

type pgStore struct {
	db *gorm.DB
}

func NewPGStore(db *gorm.DB) Store {
	return &pgStore{db: db}
}

func (s *pgStore) Circles() CircleRepository {
	return NewPGCircleRepository(s.db)
}

func (s *pgStore) Members() MembershipRepository {
	return NewPGMembershipRepository(s.db)
}

func (s *pgStore) Invites() InviteRepository {
	return NewPGInviteRepository(s.db)
}

func (s *pgStore) Posts() PostRepository {
	return NewPGPostRepository(s.db)
}

func (s *pgStore) Comments() CommentRepository {
	return NewPGCommentRepository(s.db)
}

func (s *pgStore) Transaction(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&pgStore{db: tx})
	})
}
