package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"recoveryhub/circles/internal/config"
	"recoveryhub/circles/internal/metrics"
	"recoveryhub/circles/internal/model"
	"recoveryhub/circles/internal/repository"
	"recoveryhub/circles/internal/validation"
)

// CircleView is a circle as seen by one caller.
type CircleView struct {
	*model.Circle
	MyRole   model.MemberRole   `json:"my_role,omitempty"`
	MyStatus model.MemberStatus `json:"my_status,omitempty"`
}

type CircleService interface {
	Create(ctx context.Context, userID uuid.UUID, payload validation.CirclePayload) (*model.Circle, error)
	Get(ctx context.Context, userID uuid.UUID, ref string) (*CircleView, error)
	Update(ctx context.Context, userID uuid.UUID, ref string, payload validation.CircleUpdatePayload) (*model.Circle, error)
	Delete(ctx context.Context, userID uuid.UUID, ref string) error
	ListPublic(ctx context.Context, page repository.Page) ([]model.Circle, int64, error)
	ListMine(ctx context.Context, userID uuid.UUID, page repository.Page) ([]model.Circle, error)
}

type circleService struct {
	store   repository.Store
	guard   *Guard
	slugs   *SlugResolver
	cfg     config.CirclesConfig
	metrics metrics.Recorder
	logger  *zap.Logger
	now     func() time.Time
}

func NewCircleService(store repository.Store, cfg config.CirclesConfig, recorder metrics.Recorder, logger *zap.Logger) CircleService {
	return &circleService{
		store:   store,
		guard:   NewGuard(store),
		slugs:   NewSlugResolver(store.Circles()),
		cfg:     cfg,
		metrics: recorder,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (s *circleService) Create(ctx context.Context, userID uuid.UUID, payload validation.CirclePayload) (*model.Circle, error) {
	// 1. Personal quota
	owned, err := s.store.Circles().CountByCreator(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("count circles: %w", err)
	}
	if s.cfg.MaxCirclesPerUser > 0 && owned >= int64(s.cfg.MaxCirclesPerUser) {
		return nil, ErrCircleLimitReached
	}

	// 2. Normalize
	res := validation.NormalizeCircle(payload)
	if err := invalid(res); err != nil {
		return nil, err
	}
	value := res.Value

	// 3. Slug + insert, retried when a concurrent creation takes the slug
	attempts := max(s.cfg.SlugRetryAttempts, 1)
	for attempt := 1; attempt <= attempts; attempt++ {
		circleID := uuid.New()
		slug, err := s.slugs.GenerateUniqueCircleSlug(ctx, value.Name, circleID.String())
		if err != nil {
			return nil, err
		}

		now := s.now()
		circle := &model.Circle{
			ID:                   circleID,
			Name:                 value.Name,
			Description:          value.Description,
			Type:                 value.Type,
			Visibility:           value.Visibility,
			MaxMembers:           value.MaxMembers,
			AllowMultipleInvites: value.AllowMultipleInvites,
			Slug:                 slug,
			CreatedBy:            userID,
			MemberCount:          1,
		}
		owner := &model.Membership{
			CircleID: circleID,
			UserID:   userID,
			Role:     model.MemberRoleOwner,
			Status:   model.MemberStatusActive,
			JoinedAt: &now,
		}

		err = s.store.Transaction(ctx, func(tx repository.Store) error {
			if err := tx.Circles().Create(ctx, circle); err != nil {
				return err
			}
			return tx.Members().Create(ctx, owner)
		})
		if err == nil {
			s.metrics.CircleCreated()
			s.logger.Info("circle created",
				zap.String("circle_id", circle.ID.String()),
				zap.String("slug", circle.Slug),
				zap.String("created_by", userID.String()),
			)
			return circle, nil
		}
		if !errors.Is(err, repository.ErrDuplicateKey) {
			return nil, fmt.Errorf("create circle: %w", err)
		}

		s.metrics.SlugCollision()
		s.logger.Warn("slug collision on insert, retrying",
			zap.String("slug", slug),
			zap.Int("attempt", attempt),
		)
	}
	return nil, ErrSlugUnavailable
}

// Get shows public circles to everyone and private circles to members only.
func (s *circleService) Get(ctx context.Context, userID uuid.UUID, ref string) (*CircleView, error) {
	circle, err := s.guard.ResolveCircle(ctx, ref)
	if err != nil {
		return nil, err
	}

	view := &CircleView{Circle: circle}
	membership, err := s.guard.activeMembership(ctx, circle.ID, userID)
	if err != nil {
		return nil, err
	}
	if membership != nil {
		view.MyRole = membership.Role
		view.MyStatus = membership.Status
		return view, nil
	}

	if circle.Visibility != model.VisibilityPublic {
		return nil, ErrCircleAccessDenied
	}
	if _, err := s.store.Members().Get(ctx, circle.ID, userID, model.MemberStatusPending); err == nil {
		view.MyStatus = model.MemberStatusPending
	}
	return view, nil
}

func (s *circleService) Update(ctx context.Context, userID uuid.UUID, ref string, payload validation.CircleUpdatePayload) (*model.Circle, error) {
	circle, err := s.guard.ResolveCircle(ctx, ref)
	if err != nil {
		return nil, err
	}
	if _, err := s.guard.RequireAdminMembership(ctx, circle.ID, userID); err != nil {
		return nil, err
	}

	res := validation.NormalizeCircleUpdate(payload)
	if err := invalid(res); err != nil {
		return nil, err
	}
	update := res.Value
	if update.Empty() {
		return circle, nil
	}

	fields := map[string]any{}
	if update.Name != nil {
		fields["name"] = *update.Name
	}
	if update.Description != nil {
		fields["description"] = *update.Description
	}
	if update.Type != nil {
		fields["type"] = *update.Type
	}
	if update.Visibility != nil {
		fields["visibility"] = *update.Visibility
	}
	if update.AllowMultipleInvites != nil {
		fields["allow_multiple_invites"] = *update.AllowMultipleInvites
	}
	if update.MaxMembers != nil {
		if *update.MaxMembers < circle.MemberCount {
			return nil, invalidField("max_members",
				fmt.Sprintf("max_members cannot be below the current member count (%d)", circle.MemberCount))
		}
		fields["max_members"] = *update.MaxMembers
	}

	if !update.RegenerateSlug {
		if err := s.store.Circles().Update(ctx, circle.ID, fields); err != nil {
			return nil, fmt.Errorf("update circle: %w", err)
		}
		return s.guard.circleByID(ctx, circle.ID)
	}

	// Rename flow: the slug follows the (possibly new) name.
	name := circle.Name
	if update.Name != nil {
		name = *update.Name
	}
	for attempt := 1; attempt <= max(s.cfg.SlugRetryAttempts, 1); attempt++ {
		slug, err := s.slugs.RenameSlug(ctx, name, circle.ID.String(), circle.Slug)
		if err != nil {
			return nil, err
		}
		if slug == circle.Slug {
			delete(fields, "slug")
			if len(fields) == 0 {
				return circle, nil
			}
			if err := s.store.Circles().Update(ctx, circle.ID, fields); err != nil {
				return nil, fmt.Errorf("update circle: %w", err)
			}
			return s.guard.circleByID(ctx, circle.ID)
		}
		fields["slug"] = slug

		err = s.store.Circles().Update(ctx, circle.ID, fields)
		if err == nil {
			s.logger.Info("circle slug changed",
				zap.String("circle_id", circle.ID.String()),
				zap.String("from", circle.Slug),
				zap.String("to", slug),
			)
			return s.guard.circleByID(ctx, circle.ID)
		}
		if !errors.Is(err, repository.ErrDuplicateKey) {
			return nil, fmt.Errorf("update circle: %w", err)
		}
		s.metrics.SlugCollision()
	}
	return nil, ErrSlugUnavailable
}

func (s *circleService) Delete(ctx context.Context, userID uuid.UUID, ref string) error {
	circle, err := s.guard.ResolveCircle(ctx, ref)
	if err != nil {
		return err
	}
	membership, err := s.guard.RequireAdminMembership(ctx, circle.ID, userID)
	if err != nil {
		return err
	}
	if membership.Role != model.MemberRoleOwner {
		return ErrRoleChangeForbidden
	}

	if err := s.store.Circles().SoftDelete(ctx, circle.ID); err != nil {
		return fmt.Errorf("delete circle: %w", err)
	}
	s.logger.Info("circle deleted",
		zap.String("circle_id", circle.ID.String()),
		zap.String("deleted_by", userID.String()),
	)
	return nil
}

func (s *circleService) ListPublic(ctx context.Context, page repository.Page) ([]model.Circle, int64, error) {
	circles, total, err := s.store.Circles().ListPublic(ctx, page)
	if err != nil {
		return nil, 0, fmt.Errorf("list public circles: %w", err)
	}
	return circles, total, nil
}

func (s *circleService) ListMine(ctx context.Context, userID uuid.UUID, page repository.Page) ([]model.Circle, error) {
	circles, err := s.store.Circles().ListForMember(ctx, userID, page)
	if err != nil {
		return nil, fmt.Errorf("list circles: %w", err)
	}
	return circles, nil
}
