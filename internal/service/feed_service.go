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
	"recoveryhub/circles/internal/validation"
)

type FeedService interface {
	CreatePost(ctx context.Context, userID uuid.UUID, ref string, payload validation.PostPayload) (*model.Post, error)
	ListPosts(ctx context.Context, userID uuid.UUID, ref string, stepTag *int, page repository.Page) ([]model.Post, int64, error)
	GetPost(ctx context.Context, userID uuid.UUID, ref, postID string) (*model.Post, error)
	DeletePost(ctx context.Context, userID uuid.UUID, ref, postID string) error
	PinPost(ctx context.Context, userID uuid.UUID, ref, postID string) (*model.Post, error)
	UnpinPost(ctx context.Context, userID uuid.UUID, ref, postID string) (*model.Post, error)

	CreateComment(ctx context.Context, userID uuid.UUID, ref, postID string, payload validation.CommentPayload) (*model.Comment, error)
	ListComments(ctx context.Context, userID uuid.UUID, ref, postID string, page repository.Page) ([]model.Comment, int64, error)
	DeleteComment(ctx context.Context, userID uuid.UUID, ref, postID, commentID string) error
	ReconcileCommentCount(ctx context.Context, userID uuid.UUID, ref, postID string) (*ReconcileResult, error)
}

type feedService struct {
	store     repository.Store
	guard     *Guard
	validator *validation.Validator
	metrics   metrics.Recorder
	logger    *zap.Logger
	now       func() time.Time
}

func NewFeedService(store repository.Store, validator *validation.Validator, recorder metrics.Recorder, logger *zap.Logger) FeedService {
	return &feedService{
		store:     store,
		guard:     NewGuard(store),
		validator: validator,
		metrics:   recorder,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// member resolves the circle and requires the caller to be active in it.
func (s *feedService) member(ctx context.Context, userID uuid.UUID, ref string) (*model.Circle, *model.Membership, error) {
	circle, err := s.guard.ResolveCircle(ctx, ref)
	if err != nil {
		return nil, nil, err
	}
	membership, err := s.guard.RequireActiveMembership(ctx, circle.ID, userID)
	if err != nil {
		return nil, nil, err
	}
	return circle, membership, nil
}

func (s *feedService) post(ctx context.Context, circleID uuid.UUID, rawID string) (*model.Post, error) {
	id, err := ParseID(rawID)
	if err != nil {
		return nil, err
	}
	post, err := s.store.Posts().GetByID(ctx, circleID, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPostNotFound
		}
		return nil, fmt.Errorf("get post: %w", err)
	}
	return post, nil
}

// canModerate reports whether membership may delete content written by authorID.
func canModerate(membership *model.Membership, authorID uuid.UUID) bool {
	return membership.UserID == authorID || membership.Role.IsAdmin()
}

func (s *feedService) CreatePost(ctx context.Context, userID uuid.UUID, ref string, payload validation.PostPayload) (*model.Post, error) {
	circle, _, err := s.member(ctx, userID, ref)
	if err != nil {
		return nil, err
	}

	res := s.validator.NormalizePost(payload)
	if err := invalid(res); err != nil {
		return nil, err
	}
	value := res.Value

	post := &model.Post{
		CircleID:     circle.ID,
		AuthorID:     userID,
		Type:         value.Type,
		Content:      value.Content,
		StepTag:      value.StepTag,
		Tags:         model.StringSlice(value.Tags),
		LinkedSource: value.LinkedSource,
	}
	if err := s.store.Posts().Create(ctx, post); err != nil {
		return nil, fmt.Errorf("create post: %w", err)
	}

	s.metrics.ContentCreated("post")
	s.logger.Debug("post created",
		zap.String("circle_id", circle.ID.String()),
		zap.String("post_id", post.ID.String()),
	)
	return post, nil
}

func (s *feedService) ListPosts(ctx context.Context, userID uuid.UUID, ref string, stepTag *int, page repository.Page) ([]model.Post, int64, error) {
	circle, _, err := s.member(ctx, userID, ref)
	if err != nil {
		return nil, 0, err
	}
	if stepTag != nil && (*stepTag < validation.StepTagMin || *stepTag > validation.StepTagMax) {
		return nil, 0, invalidField("stepTag",
			fmt.Sprintf("stepTag must be between %d and %d", validation.StepTagMin, validation.StepTagMax))
	}

	posts, total, err := s.store.Posts().List(ctx, circle.ID, stepTag, page)
	if err != nil {
		return nil, 0, fmt.Errorf("list posts: %w", err)
	}
	return posts, total, nil
}

func (s *feedService) GetPost(ctx context.Context, userID uuid.UUID, ref, postID string) (*model.Post, error) {
	circle, _, err := s.member(ctx, userID, ref)
	if err != nil {
		return nil, err
	}
	return s.post(ctx, circle.ID, postID)
}

func (s *feedService) DeletePost(ctx context.Context, userID uuid.UUID, ref, postID string) error {
	circle, membership, err := s.member(ctx, userID, ref)
	if err != nil {
		return err
	}
	post, err := s.post(ctx, circle.ID, postID)
	if err != nil {
		return err
	}
	if !canModerate(membership, post.AuthorID) {
		return ErrContentForbidden
	}

	if err := s.store.Posts().SoftDelete(ctx, post.ID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrPostNotFound
		}
		return fmt.Errorf("delete post: %w", err)
	}
	s.logger.Info("post deleted",
		zap.String("circle_id", circle.ID.String()),
		zap.String("post_id", post.ID.String()),
		zap.String("by", userID.String()),
	)
	return nil
}

func (s *feedService) PinPost(ctx context.Context, userID uuid.UUID, ref, postID string) (*model.Post, error) {
	return s.setPinned(ctx, userID, ref, postID, true)
}

func (s *feedService) UnpinPost(ctx context.Context, userID uuid.UUID, ref, postID string) (*model.Post, error) {
	return s.setPinned(ctx, userID, ref, postID, false)
}

func (s *feedService) setPinned(ctx context.Context, userID uuid.UUID, ref, postID string, pinned bool) (*model.Post, error) {
	circle, err := s.guard.ResolveCircle(ctx, ref)
	if err != nil {
		return nil, err
	}
	if _, err := s.guard.RequireAdminMembership(ctx, circle.ID, userID); err != nil {
		return nil, err
	}
	post, err := s.post(ctx, circle.ID, postID)
	if err != nil {
		return nil, err
	}

	if pinned {
		now := s.now()
		err = s.store.Posts().Pin(ctx, post.ID, userID, now)
		post.IsPinned, post.PinnedAt, post.PinnedBy = true, &now, &userID
	} else {
		err = s.store.Posts().Unpin(ctx, post.ID)
		post.IsPinned, post.PinnedAt, post.PinnedBy = false, nil, nil
	}
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPostNotFound
		}
		return nil, fmt.Errorf("set pinned: %w", err)
	}
	return post, nil
}

// CreateComment inserts the comment and bumps the post's comment_count in
// one transaction.
func (s *feedService) CreateComment(ctx context.Context, userID uuid.UUID, ref, postID string, payload validation.CommentPayload) (*model.Comment, error) {
	circle, _, err := s.member(ctx, userID, ref)
	if err != nil {
		return nil, err
	}
	post, err := s.post(ctx, circle.ID, postID)
	if err != nil {
		return nil, err
	}

	res := s.validator.NormalizeComment(payload)
	if err := invalid(res); err != nil {
		return nil, err
	}

	comment := &model.Comment{
		CircleID: circle.ID,
		PostID:   post.ID,
		AuthorID: userID,
		Content:  res.Value.Content,
		ParentID: res.Value.ParentID,
	}
	err = s.store.Transaction(ctx, func(tx repository.Store) error {
		if err := tx.Comments().Create(ctx, comment); err != nil {
			return err
		}
		return tx.Posts().IncrementCommentCount(ctx, post.ID, 1)
	})
	if err != nil {
		return nil, fmt.Errorf("create comment: %w", err)
	}

	s.metrics.ContentCreated("comment")
	return comment, nil
}

func (s *feedService) ListComments(ctx context.Context, userID uuid.UUID, ref, postID string, page repository.Page) ([]model.Comment, int64, error) {
	circle, _, err := s.member(ctx, userID, ref)
	if err != nil {
		return nil, 0, err
	}
	post, err := s.post(ctx, circle.ID, postID)
	if err != nil {
		return nil, 0, err
	}

	comments, total, err := s.store.Comments().ListByPost(ctx, post.ID, page)
	if err != nil {
		return nil, 0, fmt.Errorf("list comments: %w", err)
	}
	return comments, total, nil
}

func (s *feedService) DeleteComment(ctx context.Context, userID uuid.UUID, ref, postID, commentID string) error {
	circle, membership, err := s.member(ctx, userID, ref)
	if err != nil {
		return err
	}
	post, err := s.post(ctx, circle.ID, postID)
	if err != nil {
		return err
	}
	id, err := ParseID(commentID)
	if err != nil {
		return err
	}
	comment, err := s.store.Comments().GetByID(ctx, post.ID, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrCommentNotFound
		}
		return fmt.Errorf("get comment: %w", err)
	}
	if !canModerate(membership, comment.AuthorID) {
		return ErrContentForbidden
	}

	err = s.store.Transaction(ctx, func(tx repository.Store) error {
		if err := tx.Comments().SoftDelete(ctx, comment.ID); err != nil {
			return err
		}
		return tx.Posts().IncrementCommentCount(ctx, post.ID, -1)
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrCommentNotFound
		}
		return fmt.Errorf("delete comment: %w", err)
	}
	return nil
}

// ReconcileCommentCount recounts live comments and overwrites the post's
// comment_count when it has drifted.
func (s *feedService) ReconcileCommentCount(ctx context.Context, userID uuid.UUID, ref, postID string) (*ReconcileResult, error) {
	circle, err := s.guard.ResolveCircle(ctx, ref)
	if err != nil {
		return nil, err
	}
	if _, err := s.guard.RequireAdminMembership(ctx, circle.ID, userID); err != nil {
		return nil, err
	}
	post, err := s.post(ctx, circle.ID, postID)
	if err != nil {
		return nil, err
	}

	var result ReconcileResult
	err = s.store.Transaction(ctx, func(tx repository.Store) error {
		current, err := tx.Posts().GetByID(ctx, circle.ID, post.ID)
		if err != nil {
			return err
		}
		actual, err := tx.Comments().CountLiveByPost(ctx, post.ID)
		if err != nil {
			return err
		}
		result = ReconcileResult{Stored: int64(current.CommentCount), Actual: actual}
		if result.Drift() == 0 {
			return nil
		}
		return tx.Posts().SetCommentCount(ctx, post.ID, actual)
	})
	if err != nil {
		return nil, fmt.Errorf("reconcile comment count: %w", err)
	}

	if drift := result.Drift(); drift != 0 {
		s.metrics.CounterDrift("comment_count", drift)
		s.logger.Warn("comment count drift repaired",
			zap.String("post_id", post.ID.String()),
			zap.Int64("stored", result.Stored),
			zap.Int64("actual", result.Actual),
		)
	}
	return &result, nil
}
