package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"recoveryhub/circles/internal/model"
	"recoveryhub/circles/internal/repository"
)

// Guard is the authorization checkpoint in front of every circle operation.
// Each method fails with the first blocking condition it finds.
type Guard struct {
	store repository.Store
}

func NewGuard(store repository.Store) *Guard {
	return &Guard{store: store}
}

// ParseID parses a path or payload identifier.
func ParseID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, ErrInvalidID
	}
	return id, nil
}

// RequireCircle fetches a live circle by id.
func (g *Guard) RequireCircle(ctx context.Context, rawID string) (*model.Circle, error) {
	id, err := ParseID(rawID)
	if err != nil {
		return nil, err
	}
	return g.circleByID(ctx, id)
}

func (g *Guard) circleByID(ctx context.Context, id uuid.UUID) (*model.Circle, error) {
	circle, err := g.store.Circles().GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCircleNotFound
		}
		return nil, fmt.Errorf("get circle: %w", err)
	}
	return circle, nil
}

// ResolveCircle accepts an id or a slug. The id lookup runs only when ref
// parses as an id; a miss falls through to the slug lookup.
func (g *Guard) ResolveCircle(ctx context.Context, ref string) (*model.Circle, error) {
	if id, err := uuid.Parse(ref); err == nil {
		circle, err := g.circleByID(ctx, id)
		if !errors.Is(err, ErrCircleNotFound) {
			return circle, err
		}
	}

	circle, err := g.store.Circles().GetBySlug(ctx, ref)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCircleNotFound
		}
		return nil, fmt.Errorf("get circle by slug: %w", err)
	}
	return circle, nil
}

func (g *Guard) RequireActiveMembership(ctx context.Context, circleID, userID uuid.UUID) (*model.Membership, error) {
	membership, err := g.store.Members().Get(ctx, circleID, userID, model.MemberStatusActive)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCircleAccessDenied
		}
		return nil, fmt.Errorf("get membership: %w", err)
	}
	return membership, nil
}

func (g *Guard) RequireAdminMembership(ctx context.Context, circleID, userID uuid.UUID) (*model.Membership, error) {
	membership, err := g.RequireActiveMembership(ctx, circleID, userID)
	if err != nil {
		return nil, err
	}
	if !membership.Role.IsAdmin() {
		return nil, ErrCircleAdminRequired
	}
	return membership, nil
}

// activeMembership is RequireActiveMembership without the access error:
// a missing row is reported as nil.
func (g *Guard) activeMembership(ctx context.Context, circleID, userID uuid.UUID) (*model.Membership, error) {
	membership, err := g.RequireActiveMembership(ctx, circleID, userID)
	if errors.Is(err, ErrCircleAccessDenied) {
		return nil, nil
	}
	return membership, err
}
