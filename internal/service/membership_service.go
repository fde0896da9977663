package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"recoveryhub/circles/internal/metrics"
	"recoveryhub/circles/internal/model"
	"recoveryhub/circles/internal/repository"
)

// ReconcileResult reports a counter before and after repair.
type ReconcileResult struct {
	Stored int64 `json:"stored"`
	Actual int64 `json:"actual"`
}

// Drift is Actual minus Stored.
func (r ReconcileResult) Drift() int64 { return r.Actual - r.Stored }

type MembershipService interface {
	Join(ctx context.Context, userID uuid.UUID, ref string) (*model.Membership, error)
	Leave(ctx context.Context, userID uuid.UUID, ref string) error
	ListMembers(ctx context.Context, userID uuid.UUID, ref string, page repository.Page) ([]model.Membership, int64, error)
	ListRequests(ctx context.Context, userID uuid.UUID, ref string, page repository.Page) ([]model.Membership, int64, error)
	ApproveRequest(ctx context.Context, actorID uuid.UUID, ref, targetID string) (*model.Membership, error)
	RejectRequest(ctx context.Context, actorID uuid.UUID, ref, targetID string) error
	RemoveMember(ctx context.Context, actorID uuid.UUID, ref, targetID string) error
	UpdateRole(ctx context.Context, actorID uuid.UUID, ref, targetID string, role model.MemberRole) (*model.Membership, error)
	ReconcileMemberCount(ctx context.Context, actorID uuid.UUID, ref string) (*ReconcileResult, error)
}

type membershipService struct {
	store   repository.Store
	guard   *Guard
	metrics metrics.Recorder
	logger  *zap.Logger
	now     func() time.Time
}

func NewMembershipService(store repository.Store, recorder metrics.Recorder, logger *zap.Logger) MembershipService {
	return &membershipService{
		store:   store,
		guard:   NewGuard(store),
		metrics: recorder,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Join makes the caller an active member of a public circle, or files a
// pending request for a private one. A user an admin removed must be
// approved again, so their join on a public circle also becomes a request.
func (s *membershipService) Join(ctx context.Context, userID uuid.UUID, ref string) (*model.Membership, error) {
	circle, err := s.guard.ResolveCircle(ctx, ref)
	if err != nil {
		return nil, err
	}
	active, err := s.guard.activeMembership(ctx, circle.ID, userID)
	if err != nil {
		return nil, err
	}
	if active != nil {
		return nil, ErrAlreadyMember
	}

	pending, err := s.store.Members().Get(ctx, circle.ID, userID, model.MemberStatusPending)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("get join request: %w", err)
	}

	needsApproval := circle.Visibility != model.VisibilityPublic
	if !needsApproval {
		_, err := s.store.Members().Get(ctx, circle.ID, userID, model.MemberStatusRemoved)
		switch {
		case err == nil:
			needsApproval = true
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return nil, fmt.Errorf("get removed membership: %w", err)
		}
	}

	now := s.now()
	if needsApproval {
		if pending != nil {
			return nil, ErrAlreadyRequested
		}
		request := &model.Membership{
			CircleID:    circle.ID,
			UserID:      userID,
			Role:        model.MemberRoleMember,
			Status:      model.MemberStatusPending,
			RequestedAt: &now,
		}
		if err := s.store.Members().Create(ctx, request); err != nil {
			if errors.Is(err, repository.ErrDuplicateKey) {
				return nil, ErrAlreadyRequested
			}
			return nil, fmt.Errorf("create join request: %w", err)
		}
		s.metrics.MembershipTransition("none", string(model.MemberStatusPending))
		return request, nil
	}

	if err := EnsureCircleCapacity(circle, 1, nil); err != nil {
		return nil, err
	}

	var joined *model.Membership
	err = s.store.Transaction(ctx, func(tx repository.Store) error {
		var err error
		joined, err = activate(ctx, tx, circle, userID, pending, now)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("join circle: %w", err)
	}
	s.recordJoin(circle.ID, userID, pending != nil)
	return joined, nil
}

// activate reserves a seat and turns pending into an active membership, or
// inserts a fresh active row when there is no request. It must run inside tx.
func activate(ctx context.Context, tx repository.Store, circle *model.Circle, userID uuid.UUID, pending *model.Membership, now time.Time) (*model.Membership, error) {
	if err := reserveSeat(ctx, tx, circle); err != nil {
		return nil, err
	}

	if pending != nil {
		err := tx.Members().Transition(ctx, pending, model.MemberStatusActive, now)
		switch {
		case err == nil:
			return pending, nil
		case errors.Is(err, repository.ErrDuplicateKey):
			return nil, ErrAlreadyMember
		case !errors.Is(err, repository.ErrNotApplied):
			return nil, fmt.Errorf("activate membership: %w", err)
		}
		// the request was resolved concurrently; fall through to a fresh row
	}

	member := &model.Membership{
		CircleID: circle.ID,
		UserID:   userID,
		Role:     model.MemberRoleMember,
		Status:   model.MemberStatusActive,
		JoinedAt: &now,
	}
	if err := tx.Members().Create(ctx, member); err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) {
			return nil, ErrAlreadyMember
		}
		return nil, fmt.Errorf("create membership: %w", err)
	}
	return member, nil
}

func (s *membershipService) recordJoin(circleID, userID uuid.UUID, fromRequest bool) {
	from := "none"
	if fromRequest {
		from = string(model.MemberStatusPending)
	}
	s.metrics.MembershipTransition(from, string(model.MemberStatusActive))
	s.logger.Info("member joined",
		zap.String("circle_id", circleID.String()),
		zap.String("user_id", userID.String()),
	)
}

func (s *membershipService) Leave(ctx context.Context, userID uuid.UUID, ref string) error {
	circle, err := s.guard.ResolveCircle(ctx, ref)
	if err != nil {
		return err
	}
	membership, err := s.guard.RequireActiveMembership(ctx, circle.ID, userID)
	if err != nil {
		return err
	}
	if membership.Role == model.MemberRoleOwner {
		return ErrOwnerCannotLeave
	}
	return s.deactivate(ctx, circle, membership, model.MemberStatusLeft)
}

// deactivate moves an active membership to left or removed and releases its
// seat in the same transaction.
func (s *membershipService) deactivate(ctx context.Context, circle *model.Circle, membership *model.Membership, next model.MemberStatus) error {
	err := s.store.Transaction(ctx, func(tx repository.Store) error {
		if err := tx.Members().Transition(ctx, membership, next, s.now()); err != nil {
			return err
		}
		return IncrementMemberCount(ctx, tx, circle.ID, -1)
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotApplied) {
			return ErrMembershipNotFound
		}
		return fmt.Errorf("deactivate membership: %w", err)
	}

	s.metrics.MembershipTransition(string(model.MemberStatusActive), string(next))
	s.logger.Info("membership ended",
		zap.String("circle_id", circle.ID.String()),
		zap.String("user_id", membership.UserID.String()),
		zap.String("status", string(next)),
	)
	return nil
}

func (s *membershipService) ListMembers(ctx context.Context, userID uuid.UUID, ref string, page repository.Page) ([]model.Membership, int64, error) {
	circle, err := s.guard.ResolveCircle(ctx, ref)
	if err != nil {
		return nil, 0, err
	}
	if _, err := s.guard.RequireActiveMembership(ctx, circle.ID, userID); err != nil {
		return nil, 0, err
	}
	return s.list(ctx, circle.ID, model.MemberStatusActive, page)
}

func (s *membershipService) ListRequests(ctx context.Context, userID uuid.UUID, ref string, page repository.Page) ([]model.Membership, int64, error) {
	circle, err := s.guard.ResolveCircle(ctx, ref)
	if err != nil {
		return nil, 0, err
	}
	if _, err := s.guard.RequireAdminMembership(ctx, circle.ID, userID); err != nil {
		return nil, 0, err
	}
	return s.list(ctx, circle.ID, model.MemberStatusPending, page)
}

func (s *membershipService) list(ctx context.Context, circleID uuid.UUID, status model.MemberStatus, page repository.Page) ([]model.Membership, int64, error) {
	members, total, err := s.store.Members().ListByStatus(ctx, circleID, status, page)
	if err != nil {
		return nil, 0, fmt.Errorf("list %s members: %w", status, err)
	}
	return members, total, nil
}

// adminTarget runs the admin check and loads the target's row in status.
func (s *membershipService) adminTarget(ctx context.Context, actorID uuid.UUID, ref, targetID string, status model.MemberStatus) (*model.Circle, *model.Membership, *model.Membership, error) {
	circle, err := s.guard.ResolveCircle(ctx, ref)
	if err != nil {
		return nil, nil, nil, err
	}
	actor, err := s.guard.RequireAdminMembership(ctx, circle.ID, actorID)
	if err != nil {
		return nil, nil, nil, err
	}
	targetUserID, err := ParseID(targetID)
	if err != nil {
		return nil, nil, nil, err
	}
	target, err := s.store.Members().Get(ctx, circle.ID, targetUserID, status)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, nil, ErrMembershipNotFound
		}
		return nil, nil, nil, fmt.Errorf("get membership: %w", err)
	}
	return circle, actor, target, nil
}

func (s *membershipService) ApproveRequest(ctx context.Context, actorID uuid.UUID, ref, targetID string) (*model.Membership, error) {
	circle, _, request, err := s.adminTarget(ctx, actorID, ref, targetID, model.MemberStatusPending)
	if err != nil {
		return nil, err
	}
	if err := EnsureCircleCapacity(circle, 1, nil); err != nil {
		return nil, err
	}

	err = s.store.Transaction(ctx, func(tx repository.Store) error {
		if err := reserveSeat(ctx, tx, circle); err != nil {
			return err
		}
		return tx.Members().Transition(ctx, request, model.MemberStatusActive, s.now())
	})
	switch {
	case err == nil:
	case errors.Is(err, repository.ErrDuplicateKey):
		return nil, ErrAlreadyMember
	case errors.Is(err, repository.ErrNotApplied):
		return nil, ErrMembershipNotFound
	default:
		return nil, fmt.Errorf("approve request: %w", err)
	}

	s.recordJoin(circle.ID, request.UserID, true)
	return request, nil
}

func (s *membershipService) RejectRequest(ctx context.Context, actorID uuid.UUID, ref, targetID string) error {
	circle, _, request, err := s.adminTarget(ctx, actorID, ref, targetID, model.MemberStatusPending)
	if err != nil {
		return err
	}
	if err := s.store.Members().Transition(ctx, request, model.MemberStatusRemoved, s.now()); err != nil {
		if errors.Is(err, repository.ErrNotApplied) {
			return ErrMembershipNotFound
		}
		return fmt.Errorf("reject request: %w", err)
	}

	s.metrics.MembershipTransition(string(model.MemberStatusPending), string(model.MemberStatusRemoved))
	s.logger.Info("join request rejected",
		zap.String("circle_id", circle.ID.String()),
		zap.String("user_id", request.UserID.String()),
	)
	return nil
}

// RemoveMember ends someone else's membership. The owner cannot be removed
// and only the owner may remove an admin.
func (s *membershipService) RemoveMember(ctx context.Context, actorID uuid.UUID, ref, targetID string) error {
	circle, actor, target, err := s.adminTarget(ctx, actorID, ref, targetID, model.MemberStatusActive)
	if err != nil {
		return err
	}
	switch {
	case target.UserID == actor.UserID:
		return ErrRemovalForbidden
	case target.Role == model.MemberRoleOwner:
		return ErrRemovalForbidden
	case target.Role == model.MemberRoleAdmin && actor.Role != model.MemberRoleOwner:
		return ErrRemovalForbidden
	}
	return s.deactivate(ctx, circle, target, model.MemberStatusRemoved)
}

func (s *membershipService) UpdateRole(ctx context.Context, actorID uuid.UUID, ref, targetID string, role model.MemberRole) (*model.Membership, error) {
	circle, actor, target, err := s.adminTarget(ctx, actorID, ref, targetID, model.MemberStatusActive)
	if err != nil {
		return nil, err
	}
	if err := checkRoleChange(actor, target, role); err != nil {
		return nil, err
	}
	if target.Role == role {
		return target, nil
	}

	err = s.store.Transaction(ctx, func(tx repository.Store) error {
		if role == model.MemberRoleOwner {
			// the single-owner index requires the old owner to step down first
			if err := tx.Members().UpdateRole(ctx, actor.ID, model.MemberRoleAdmin); err != nil {
				return err
			}
		}
		return tx.Members().UpdateRole(ctx, target.ID, role)
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotApplied) {
			return nil, ErrMembershipNotFound
		}
		return nil, fmt.Errorf("update role: %w", err)
	}

	s.logger.Info("member role changed",
		zap.String("circle_id", circle.ID.String()),
		zap.String("user_id", target.UserID.String()),
		zap.String("from", string(target.Role)),
		zap.String("to", string(role)),
		zap.String("by", actorID.String()),
	)
	target.Role = role
	return target, nil
}

// ReconcileMemberCount recounts active memberships and overwrites the
// denormalized counter when it has drifted.
func (s *membershipService) ReconcileMemberCount(ctx context.Context, actorID uuid.UUID, ref string) (*ReconcileResult, error) {
	circle, err := s.guard.ResolveCircle(ctx, ref)
	if err != nil {
		return nil, err
	}
	if _, err := s.guard.RequireAdminMembership(ctx, circle.ID, actorID); err != nil {
		return nil, err
	}

	var result ReconcileResult
	err = s.store.Transaction(ctx, func(tx repository.Store) error {
		current, err := tx.Circles().GetByID(ctx, circle.ID)
		if err != nil {
			return err
		}
		actual, err := CountActiveMembers(ctx, tx, circle.ID)
		if err != nil {
			return err
		}
		result = ReconcileResult{Stored: int64(current.MemberCount), Actual: actual}
		if result.Drift() == 0 {
			return nil
		}
		return tx.Circles().SetMemberCount(ctx, circle.ID, actual)
	})
	if err != nil {
		return nil, fmt.Errorf("reconcile member count: %w", err)
	}

	if drift := result.Drift(); drift != 0 {
		s.metrics.CounterDrift("member_count", drift)
		s.logger.Warn("member count drift repaired",
			zap.String("circle_id", circle.ID.String()),
			zap.Int64("stored", result.Stored),
			zap.Int64("actual", result.Actual),
		)
	}
	return &result, nil
}
