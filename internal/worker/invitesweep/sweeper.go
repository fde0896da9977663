// Package invitesweep deletes invites whose expiry has passed. The store has
// no TTL index, so this job stands in for one.
package invitesweep

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"recoveryhub/circles/internal/metrics"
	"recoveryhub/circles/internal/repository"
)

type Sweeper struct {
	invites  repository.InviteRepository
	interval time.Duration
	timeout  time.Duration
	metrics  metrics.Recorder
	logger   *zap.Logger
	now      func() time.Time
}

// New builds a sweeper that runs every interval. Each sweep's store call is
// bounded by timeout; a non-positive timeout leaves it unbounded.
func New(invites repository.InviteRepository, interval, timeout time.Duration, recorder metrics.Recorder, logger *zap.Logger) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{
		invites:  invites,
		interval: interval,
		timeout:  timeout,
		metrics:  recorder,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// SweepOnce deletes every invite expired at the current time. It is
// idempotent.
func (s *Sweeper) SweepOnce(ctx context.Context) (int64, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	deleted, err := s.invites.DeleteExpired(ctx, s.now())
	if err != nil {
		s.logger.Error("invite sweep failed", zap.Error(err))
		return 0, fmt.Errorf("delete expired invites: %w", err)
	}

	s.metrics.InvitesSwept(deleted)
	if deleted > 0 {
		s.logger.Info("expired invites swept",
			zap.Int64("deleted_count", deleted),
			zap.Duration("duration", time.Since(start)),
		)
	}
	return deleted, nil
}

// Run sweeps on every tick until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("invite sweeper started", zap.Duration("interval", s.interval))
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("invite sweeper stopped")
			return
		case <-ticker.C:
			_, _ = s.SweepOnce(ctx)
		}
	}
}
