package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"recoveryhub/circles/internal/config"
	"recoveryhub/circles/internal/metrics"
	"recoveryhub/circles/internal/model"
	"recoveryhub/circles/internal/repository"
	"recoveryhub/circles/internal/testutil"
	"recoveryhub/circles/internal/validation"
	"recoveryhub/circles/pkg/richtext"
)

type testEnv struct {
	db      *gorm.DB
	store   repository.Store
	state   repository.StateStore
	cfg     config.CirclesConfig
	circles *circleService
	members *membershipService
	invites *inviteService
	feed    *feedService
}

func newTestEnv(t *testing.T, mutate ...func(*config.CirclesConfig)) *testEnv {
	t.Helper()

	cfg := config.DefaultCirclesConfig()
	for _, m := range mutate {
		m(&cfg)
	}

	db := testutil.NewDB(t)
	store := repository.NewPGStore(db)
	state := repository.NewMemoryStateStore()
	logger := zap.NewNop()
	rec := metrics.Nop{}

	return &testEnv{
		db:      db,
		store:   store,
		state:   state,
		cfg:     cfg,
		circles: NewCircleService(store, cfg, rec, logger).(*circleService),
		members: NewMembershipService(store, rec, logger).(*membershipService),
		invites: NewInviteService(store, state, cfg, rec, logger).(*inviteService),
		feed:    NewFeedService(store, validation.NewValidator(richtext.New()), rec, logger).(*feedService),
	}
}

func strPtr(s string) *string { return &s }

func intPtr(n int) *int { return &n }

func boolPtr(b bool) *bool { return &b }

// createCircle creates a circle through the service with a fresh owner.
func (e *testEnv) createCircle(t *testing.T, name string, mutate func(*validation.CirclePayload)) (*model.Circle, uuid.UUID) {
	t.Helper()

	owner := uuid.New()
	payload := validation.CirclePayload{Name: name}
	if mutate != nil {
		mutate(&payload)
	}
	circle, err := e.circles.Create(context.Background(), owner, payload)
	require.NoError(t, err)
	return circle, owner
}

func (e *testEnv) reload(t *testing.T, id uuid.UUID) *model.Circle {
	t.Helper()
	circle, err := e.store.Circles().GetByID(context.Background(), id)
	require.NoError(t, err)
	return circle
}

func (e *testEnv) activeCount(t *testing.T, id uuid.UUID) int64 {
	t.Helper()
	n, err := e.store.Members().CountActive(context.Background(), id)
	require.NoError(t, err)
	return n
}

// assertCountersConsistent checks member_count against the live count.
func (e *testEnv) assertCountersConsistent(t *testing.T, id uuid.UUID) {
	t.Helper()
	require.Equal(t, e.activeCount(t, id), int64(e.reload(t, id).MemberCount), "member_count drifted")
}

func publicCircle(p *validation.CirclePayload) {
	p.Visibility = strPtr("public")
}
