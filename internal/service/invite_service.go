package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"recoveryhub/circles/internal/config"
	"recoveryhub/circles/internal/metrics"
	"recoveryhub/circles/internal/model"
	"recoveryhub/circles/internal/repository"
	"recoveryhub/circles/internal/validation"
	"recoveryhub/circles/pkg/crypto"
)

const tokenAttempts = 3

// InviteView is an invite with its state resolved at read time.
type InviteView struct {
	model.Invite
	State         model.InviteState `json:"state"`
	RemainingUses int               `json:"remaining_uses"`
}

func newInviteView(invite model.Invite, now time.Time) InviteView {
	return InviteView{Invite: invite, State: invite.State(now), RemainingUses: invite.RemainingUses()}
}

// InvitePreview is what a prospective member sees before redeeming.
type InvitePreview struct {
	CircleID    uuid.UUID         `json:"circle_id"`
	CircleName  string            `json:"circle_name"`
	CircleSlug  string            `json:"circle_slug"`
	Description string            `json:"description"`
	MemberCount int               `json:"member_count"`
	MaxMembers  int               `json:"max_members"`
	State       model.InviteState `json:"state"`
	ExpiresAt   *time.Time        `json:"expires_at,omitempty"`
}

type InviteService interface {
	Create(ctx context.Context, userID uuid.UUID, ref string, payload validation.InvitePayload) (*InviteView, error)
	List(ctx context.Context, userID uuid.UUID, ref string) ([]InviteView, error)
	Revoke(ctx context.Context, userID uuid.UUID, ref, inviteID string) error
	Preview(ctx context.Context, token string) (*InvitePreview, error)
	Redeem(ctx context.Context, userID uuid.UUID, token string) (*model.Membership, error)
}

type inviteService struct {
	store   repository.Store
	state   repository.StateStore
	guard   *Guard
	cfg     config.CirclesConfig
	metrics metrics.Recorder
	logger  *zap.Logger
	now     func() time.Time
}

func NewInviteService(store repository.Store, state repository.StateStore, cfg config.CirclesConfig, recorder metrics.Recorder, logger *zap.Logger) InviteService {
	return &inviteService{
		store:   store,
		state:   state,
		guard:   NewGuard(store),
		cfg:     cfg,
		metrics: recorder,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Create issues an invite. Any active member may create one; when the
// circle disallows multiple invites only admins may create multi-use ones.
func (s *inviteService) Create(ctx context.Context, userID uuid.UUID, ref string, payload validation.InvitePayload) (*InviteView, error) {
	circle, err := s.guard.ResolveCircle(ctx, ref)
	if err != nil {
		return nil, err
	}
	membership, err := s.guard.RequireActiveMembership(ctx, circle.ID, userID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	invite, err := BuildInvite(circle.ID, userID, payload, now)
	if err != nil {
		return nil, err
	}
	if invite.Mode == model.InviteModeMultiUse && !circle.AllowMultipleInvites && !membership.Role.IsAdmin() {
		return nil, ErrInviteModeNotAllowed
	}

	for attempt := 1; ; attempt++ {
		token, err := crypto.GenerateInviteToken()
		if err != nil {
			return nil, fmt.Errorf("generate invite token: %w", err)
		}
		invite.ID = uuid.Nil
		invite.Token = token

		err = s.store.Invites().Create(ctx, invite)
		if err == nil {
			break
		}
		if !errors.Is(err, repository.ErrDuplicateKey) || attempt == tokenAttempts {
			return nil, fmt.Errorf("create invite: %w", err)
		}
	}

	s.logger.Info("invite created",
		zap.String("circle_id", circle.ID.String()),
		zap.String("invite_id", invite.ID.String()),
		zap.String("mode", string(invite.Mode)),
		zap.Int("max_uses", invite.MaxUses),
	)
	view := newInviteView(*invite, now)
	return &view, nil
}

// BuildInvite turns a payload into an unsaved invite using the same term
// resolution as validation.NormalizeInvite.
func BuildInvite(circleID, createdBy uuid.UUID, payload validation.InvitePayload, now time.Time) (*model.Invite, error) {
	terms, errs := validation.ResolveInviteTerms(payload, now)
	if len(errs) > 0 {
		return nil, &ValidationError{Errors: errs}
	}
	return &model.Invite{
		CircleID:  circleID,
		Mode:      terms.Mode,
		MaxUses:   terms.MaxUses,
		ExpiresAt: terms.ExpiresAt,
		CreatedBy: createdBy,
	}, nil
}

func (s *inviteService) List(ctx context.Context, userID uuid.UUID, ref string) ([]InviteView, error) {
	circle, err := s.guard.ResolveCircle(ctx, ref)
	if err != nil {
		return nil, err
	}
	if _, err := s.guard.RequireAdminMembership(ctx, circle.ID, userID); err != nil {
		return nil, err
	}

	invites, err := s.store.Invites().ListByCircle(ctx, circle.ID)
	if err != nil {
		return nil, fmt.Errorf("list invites: %w", err)
	}
	now := s.now()
	views := make([]InviteView, 0, len(invites))
	for _, invite := range invites {
		views = append(views, newInviteView(invite, now))
	}
	return views, nil
}

// Revoke is allowed for the invite's creator and for circle admins.
func (s *inviteService) Revoke(ctx context.Context, userID uuid.UUID, ref, inviteID string) error {
	circle, err := s.guard.ResolveCircle(ctx, ref)
	if err != nil {
		return err
	}
	membership, err := s.guard.RequireActiveMembership(ctx, circle.ID, userID)
	if err != nil {
		return err
	}
	id, err := ParseID(inviteID)
	if err != nil {
		return err
	}

	invite, err := s.store.Invites().GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrInviteNotFound
		}
		return fmt.Errorf("get invite: %w", err)
	}
	if invite.CircleID != circle.ID {
		return ErrInviteNotFound
	}
	if invite.CreatedBy != userID && !membership.Role.IsAdmin() {
		return ErrCircleAdminRequired
	}

	if err := s.store.Invites().Revoke(ctx, invite.ID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrInviteNotFound
		}
		return fmt.Errorf("revoke invite: %w", err)
	}
	s.logger.Info("invite revoked",
		zap.String("circle_id", circle.ID.String()),
		zap.String("invite_id", invite.ID.String()),
		zap.String("by", userID.String()),
	)
	return nil
}

func (s *inviteService) Preview(ctx context.Context, token string) (*InvitePreview, error) {
	invite, err := s.lookup(ctx, token)
	if err != nil {
		return nil, err
	}
	circle, err := s.guard.circleByID(ctx, invite.CircleID)
	if err != nil {
		return nil, err
	}
	return &InvitePreview{
		CircleID:    circle.ID,
		CircleName:  circle.Name,
		CircleSlug:  circle.Slug,
		Description: circle.Description,
		MemberCount: circle.MemberCount,
		MaxMembers:  circle.MaxMembers,
		State:       invite.State(s.now()),
		ExpiresAt:   invite.ExpiresAt,
	}, nil
}

// lookup treats a missing token like an expired one: the sweeper may have
// deleted the row already.
func (s *inviteService) lookup(ctx context.Context, token string) (*model.Invite, error) {
	if token == "" {
		return nil, ErrInviteNotFound
	}
	invite, err := s.store.Invites().GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInviteNotFound
		}
		return nil, fmt.Errorf("get invite: %w", err)
	}
	return invite, nil
}

func stateError(state model.InviteState) error {
	switch state {
	case model.InviteStateRevoked:
		return ErrInviteRevoked
	case model.InviteStateExpired:
		return ErrInviteExpired
	case model.InviteStateExhausted:
		return ErrInviteExhausted
	}
	return nil
}

func (s *inviteService) throttleKey(userID uuid.UUID) string {
	return "circles:redeem:" + userID.String()
}

// Redeem converts an invite into an active membership. The use is consumed
// by a conditional update in the same transaction that reserves the seat,
// so concurrent redeemers can never exceed MaxUses.
func (s *inviteService) Redeem(ctx context.Context, userID uuid.UUID, token string) (*model.Membership, error) {
	key := s.throttleKey(userID)
	if s.cfg.RedeemAttemptLimit > 0 {
		failures, err := s.state.Count(ctx, key)
		if err != nil {
			s.logger.Warn("redeem throttle unavailable", zap.Error(err))
		} else if failures >= int64(s.cfg.RedeemAttemptLimit) {
			s.metrics.InviteRedemption("rate_limited")
			return nil, ErrInviteRateLimited
		}
	}

	membership, err := s.redeem(ctx, userID, token)
	s.metrics.InviteRedemption(redemptionOutcome(err))
	switch {
	case err == nil:
		if derr := s.state.Delete(ctx, key); derr != nil {
			s.logger.Warn("reset redeem throttle", zap.Error(derr))
		}
	case countsAsFailedAttempt(err):
		if _, ierr := s.state.Incr(ctx, key, s.cfg.RedeemAttemptWindow); ierr != nil {
			s.logger.Warn("record failed redemption", zap.Error(ierr))
		}
	}
	return membership, err
}

func (s *inviteService) redeem(ctx context.Context, userID uuid.UUID, token string) (*model.Membership, error) {
	invite, err := s.lookup(ctx, token)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if err := stateError(invite.State(now)); err != nil {
		return nil, err
	}

	circle, err := s.guard.circleByID(ctx, invite.CircleID)
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
	if err := EnsureCircleCapacity(circle, 1, nil); err != nil {
		return nil, err
	}

	pending, err := s.store.Members().Get(ctx, circle.ID, userID, model.MemberStatusPending)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("get join request: %w", err)
	}

	var membership *model.Membership
	err = s.store.Transaction(ctx, func(tx repository.Store) error {
		if err := tx.Invites().ConsumeUse(ctx, invite.ID, now); err != nil {
			if errors.Is(err, repository.ErrNotApplied) {
				return ErrInviteNoLongerValid
			}
			return err
		}
		var err error
		membership, err = activate(ctx, tx, circle, userID, pending, now)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("redeem invite: %w", err)
	}

	s.logger.Info("invite redeemed",
		zap.String("circle_id", circle.ID.String()),
		zap.String("invite_id", invite.ID.String()),
		zap.String("user_id", userID.String()),
	)
	return membership, nil
}

// countsAsFailedAttempt is true for outcomes that look like token guessing.
func countsAsFailedAttempt(err error) bool {
	return errors.Is(err, ErrInviteNotFound) ||
		errors.Is(err, ErrInviteExpired) ||
		errors.Is(err, ErrInviteRevoked) ||
		errors.Is(err, ErrInviteExhausted) ||
		errors.Is(err, ErrInviteNoLongerValid)
}

func redemptionOutcome(err error) string {
	if err == nil {
		return "redeemed"
	}
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return "error"
}
