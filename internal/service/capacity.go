package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"recoveryhub/circles/internal/model"
	"recoveryhub/circles/internal/repository"
)

// CountActiveMembers runs the exact count. It is only used for
// reconciliation.
func CountActiveMembers(ctx context.Context, store repository.Store, circleID uuid.UUID) (int64, error) {
	n, err := store.Members().CountActive(ctx, circleID)
	if err != nil {
		return 0, fmt.Errorf("count active members: %w", err)
	}
	return n, nil
}

// EnsureCircleCapacity fails with ErrCircleFull when adding additional
// members would exceed MaxMembers. The denormalized MemberCount is used
// unless activeCount is given.
func EnsureCircleCapacity(circle *model.Circle, additional int, activeCount *int64) error {
	current := int64(circle.MemberCount)
	if activeCount != nil {
		current = *activeCount
	}
	if current+int64(additional) > int64(circle.MaxMembers) {
		return ErrCircleFull
	}
	return nil
}

// IncrementMemberCount applies amount to the denormalized counter.
func IncrementMemberCount(ctx context.Context, store repository.Store, circleID uuid.UUID, amount int) error {
	if err := store.Circles().IncrementMemberCount(ctx, circleID, amount); err != nil {
		return fmt.Errorf("increment member count: %w", err)
	}
	return nil
}

// reserveSeat must run inside the transaction that activates the
// membership. The pre-check is advisory; the conditional increment is what
// keeps the circle from overfilling.
func reserveSeat(ctx context.Context, tx repository.Store, circle *model.Circle) error {
	if err := EnsureCircleCapacity(circle, 1, nil); err != nil {
		return err
	}
	if err := tx.Circles().ReserveSeat(ctx, circle.ID); err != nil {
		if errors.Is(err, repository.ErrNotApplied) {
			return ErrCircleFull
		}
		return fmt.Errorf("reserve seat: %w", err)
	}
	return nil
}

// checkRoleChange decides whether actor may give target the role next.
// Ownership only moves through a transfer by the current owner, and nobody
// changes their own role.
func checkRoleChange(actor, target *model.Membership, next model.MemberRole) error {
	if !next.Valid() {
		return invalidField("role", "role must be owner, admin or member")
	}
	if actor.UserID == target.UserID {
		return ErrRoleChangeForbidden
	}
	if target.Role == next {
		return nil
	}

	switch {
	case next == model.MemberRoleOwner:
		if actor.Role != model.MemberRoleOwner {
			return ErrRoleChangeForbidden
		}
	case target.Role == model.MemberRoleOwner:
		return ErrRoleChangeForbidden
	case target.Role == model.MemberRoleAdmin:
		// demoting an admin
		if actor.Role != model.MemberRoleOwner {
			return ErrRoleChangeForbidden
		}
	default:
		if !actor.Role.IsAdmin() {
			return ErrCircleAdminRequired
		}
	}
	return nil
}
