package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recoveryhub/circles/internal/model"
	"recoveryhub/circles/internal/repository"
	"recoveryhub/circles/internal/testutil"
	"recoveryhub/circles/internal/validation"
)

func TestJoin_PrivateCircleFilesRequest(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	circle, owner := env.createCircle(t, "Private Circle", nil)
	user := uuid.New()

	request, err := env.members.Join(ctx, user, circle.Slug)
	require.NoError(t, err)
	assert.Equal(t, model.MemberStatusPending, request.Status)
	assert.NotNil(t, request.RequestedAt)

	_, err = env.members.Join(ctx, user, circle.Slug)
	assert.ErrorIs(t, err, ErrAlreadyRequested)

	requests, total, err := env.members.ListRequests(ctx, owner, circle.Slug, repository.NewPage(1, 10))
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, user, requests[0].UserID)

	approved, err := env.members.ApproveRequest(ctx, owner, circle.Slug, user.String())
	require.NoError(t, err)
	assert.Equal(t, model.MemberStatusActive, approved.Status)
	assert.Equal(t, 2, env.reload(t, circle.ID).MemberCount)

	_, err = env.members.Join(ctx, user, circle.Slug)
	assert.ErrorIs(t, err, ErrAlreadyMember)
	env.assertCountersConsistent(t, circle.ID)
}

func TestRejectRequest(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	circle, owner := env.createCircle(t, "Private Circle", nil)
	user := uuid.New()
	_, err := env.members.Join(ctx, user, circle.Slug)
	require.NoError(t, err)

	require.NoError(t, env.members.RejectRequest(ctx, owner, circle.Slug, user.String()))
	assert.ErrorIs(t, env.members.RejectRequest(ctx, owner, circle.Slug, user.String()), ErrMembershipNotFound)
	assert.Equal(t, 1, env.reload(t, circle.ID).MemberCount)

	// a rejected user may ask again
	_, err = env.members.Join(ctx, user, circle.Slug)
	require.NoError(t, err)
}

func TestApproveRequest_RequiresAdmin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	circle, _ := env.createCircle(t, "Private Circle", nil)
	member := uuid.New()
	testutil.AddActiveMember(t, env.db, circle.ID, member, model.MemberRoleMember)
	requester := uuid.New()
	_, err := env.members.Join(ctx, requester, circle.Slug)
	require.NoError(t, err)

	_, err = env.members.ApproveRequest(ctx, member, circle.Slug, requester.String())
	assert.ErrorIs(t, err, ErrCircleAdminRequired)

	_, err = env.members.ApproveRequest(ctx, uuid.New(), circle.Slug, requester.String())
	assert.ErrorIs(t, err, ErrCircleAccessDenied)
}

func TestJoin_CapacityScenario(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	circle, _ := env.createCircle(t, "Thirty", func(p *validation.CirclePayload) {
		p.MaxMembers = intPtr(30)
		publicCircle(p)
	})
	for i := 0; i < 29; i++ {
		_, err := env.members.Join(ctx, uuid.New(), circle.ID.String())
		require.NoError(t, err)
	}
	require.Equal(t, 30, env.reload(t, circle.ID).MemberCount)

	_, err := env.members.Join(ctx, uuid.New(), circle.ID.String())
	assert.ErrorIs(t, err, ErrCircleFull)
	assert.Equal(t, 30, env.reload(t, circle.ID).MemberCount)
	env.assertCountersConsistent(t, circle.ID)
}

func TestJoin_ConcurrentCapacity(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	circle, _ := env.createCircle(t, "Five Seats", func(p *validation.CirclePayload) {
		p.MaxMembers = intPtr(5)
		publicCircle(p)
	})

	const attempts = 20
	var (
		wg         sync.WaitGroup
		mu         sync.Mutex
		joined     int
		rejected   int
		unexpected []error
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.members.Join(ctx, uuid.New(), circle.Slug)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				joined++
			case errors.Is(err, ErrCircleFull):
				rejected++
			default:
				unexpected = append(unexpected, err)
			}
		}()
	}
	wg.Wait()

	require.Empty(t, unexpected)
	assert.Equal(t, 4, joined)
	assert.Equal(t, attempts-4, rejected)
	assert.Equal(t, int64(5), env.activeCount(t, circle.ID))
	env.assertCountersConsistent(t, circle.ID)
}

func TestJoin_ConcurrentSameUser(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	circle, _ := env.createCircle(t, "Exclusive", publicCircle)
	user := uuid.New()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		success int
		other   []error
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.members.Join(ctx, user, circle.Slug)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				success++
			} else if !errors.Is(err, ErrAlreadyMember) {
				other = append(other, err)
			}
		}()
	}
	wg.Wait()

	require.Empty(t, other)
	assert.Equal(t, 1, success)

	var active int64
	require.NoError(t, env.db.Model(&model.Membership{}).
		Where("circle_id = ? AND user_id = ? AND status = ?", circle.ID, user, model.MemberStatusActive).
		Count(&active).Error)
	assert.Equal(t, int64(1), active)
	env.assertCountersConsistent(t, circle.ID)
}

func TestLeave(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	circle, owner := env.createCircle(t, "Come and Go", publicCircle)
	user := uuid.New()

	assert.ErrorIs(t, env.members.Leave(ctx, owner, circle.Slug), ErrOwnerCannotLeave)
	assert.ErrorIs(t, env.members.Leave(ctx, user, circle.Slug), ErrCircleAccessDenied)

	for i := 0; i < 3; i++ {
		_, err := env.members.Join(ctx, user, circle.Slug)
		require.NoError(t, err)
		assert.Equal(t, 2, env.reload(t, circle.ID).MemberCount)

		require.NoError(t, env.members.Leave(ctx, user, circle.Slug))
		assert.Equal(t, 1, env.reload(t, circle.ID).MemberCount)
	}
	env.assertCountersConsistent(t, circle.ID)
}

func TestRemoveMember(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	circle, owner := env.createCircle(t, "Moderated", nil)
	admin := uuid.New()
	otherAdmin := uuid.New()
	member := uuid.New()
	testutil.AddActiveMember(t, env.db, circle.ID, admin, model.MemberRoleAdmin)
	testutil.AddActiveMember(t, env.db, circle.ID, otherAdmin, model.MemberRoleAdmin)
	testutil.AddActiveMember(t, env.db, circle.ID, member, model.MemberRoleMember)

	assert.ErrorIs(t, env.members.RemoveMember(ctx, member, circle.Slug, admin.String()), ErrCircleAdminRequired)
	assert.ErrorIs(t, env.members.RemoveMember(ctx, admin, circle.Slug, owner.String()), ErrRemovalForbidden)
	assert.ErrorIs(t, env.members.RemoveMember(ctx, admin, circle.Slug, otherAdmin.String()), ErrRemovalForbidden)
	assert.ErrorIs(t, env.members.RemoveMember(ctx, admin, circle.Slug, admin.String()), ErrRemovalForbidden)
	assert.ErrorIs(t, env.members.RemoveMember(ctx, admin, circle.Slug, "not-an-id"), ErrInvalidID)

	require.NoError(t, env.members.RemoveMember(ctx, admin, circle.Slug, member.String()))
	assert.ErrorIs(t, env.members.RemoveMember(ctx, admin, circle.Slug, member.String()), ErrMembershipNotFound)
	require.NoError(t, env.members.RemoveMember(ctx, owner, circle.Slug, otherAdmin.String()))

	assert.Equal(t, 2, env.reload(t, circle.ID).MemberCount)
	env.assertCountersConsistent(t, circle.ID)
}

func TestJoin_RemovedMemberNeedsApproval(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	circle, owner := env.createCircle(t, "Open Meeting", publicCircle)
	user := uuid.New()
	_, err := env.members.Join(ctx, user, circle.Slug)
	require.NoError(t, err)
	require.NoError(t, env.members.RemoveMember(ctx, owner, circle.Slug, user.String()))

	request, err := env.members.Join(ctx, user, circle.Slug)
	require.NoError(t, err)
	assert.Equal(t, model.MemberStatusPending, request.Status)
	assert.Equal(t, 1, env.reload(t, circle.ID).MemberCount)

	_, err = env.members.Join(ctx, user, circle.Slug)
	assert.ErrorIs(t, err, ErrAlreadyRequested)

	approved, err := env.members.ApproveRequest(ctx, owner, circle.Slug, user.String())
	require.NoError(t, err)
	assert.Equal(t, model.MemberStatusActive, approved.Status)
	env.assertCountersConsistent(t, circle.ID)

	// members who left on their own rejoin directly
	leaver := uuid.New()
	_, err = env.members.Join(ctx, leaver, circle.Slug)
	require.NoError(t, err)
	require.NoError(t, env.members.Leave(ctx, leaver, circle.Slug))
	rejoined, err := env.members.Join(ctx, leaver, circle.Slug)
	require.NoError(t, err)
	assert.Equal(t, model.MemberStatusActive, rejoined.Status)
}

func TestUpdateRole(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	circle, owner := env.createCircle(t, "Roles", nil)
	admin := uuid.New()
	member := uuid.New()
	testutil.AddActiveMember(t, env.db, circle.ID, admin, model.MemberRoleAdmin)
	testutil.AddActiveMember(t, env.db, circle.ID, member, model.MemberRoleMember)

	// admins may promote members but not demote admins or touch themselves
	promoted, err := env.members.UpdateRole(ctx, admin, circle.Slug, member.String(), model.MemberRoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, model.MemberRoleAdmin, promoted.Role)

	_, err = env.members.UpdateRole(ctx, admin, circle.Slug, member.String(), model.MemberRoleMember)
	assert.ErrorIs(t, err, ErrRoleChangeForbidden)
	_, err = env.members.UpdateRole(ctx, admin, circle.Slug, admin.String(), model.MemberRoleMember)
	assert.ErrorIs(t, err, ErrRoleChangeForbidden)
	_, err = env.members.UpdateRole(ctx, admin, circle.Slug, owner.String(), model.MemberRoleMember)
	assert.ErrorIs(t, err, ErrRoleChangeForbidden)
	_, err = env.members.UpdateRole(ctx, admin, circle.Slug, member.String(), model.MemberRoleOwner)
	assert.ErrorIs(t, err, ErrRoleChangeForbidden)

	_, err = env.members.UpdateRole(ctx, owner, circle.Slug, member.String(), model.MemberRole("superuser"))
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)

	demoted, err := env.members.UpdateRole(ctx, owner, circle.Slug, member.String(), model.MemberRoleMember)
	require.NoError(t, err)
	assert.Equal(t, model.MemberRoleMember, demoted.Role)
}

func TestUpdateRole_TransferOwnership(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	circle, owner := env.createCircle(t, "Handover", nil)
	successor := uuid.New()
	testutil.AddActiveMember(t, env.db, circle.ID, successor, model.MemberRoleMember)

	_, err := env.members.UpdateRole(ctx, owner, circle.Slug, successor.String(), model.MemberRoleOwner)
	require.NoError(t, err)

	oldOwner, err := env.store.Members().Get(ctx, circle.ID, owner, model.MemberStatusActive)
	require.NoError(t, err)
	assert.Equal(t, model.MemberRoleAdmin, oldOwner.Role)

	newOwner, err := env.store.Members().Get(ctx, circle.ID, successor, model.MemberStatusActive)
	require.NoError(t, err)
	assert.Equal(t, model.MemberRoleOwner, newOwner.Role)

	var owners int64
	require.NoError(t, env.db.Model(&model.Membership{}).
		Where("circle_id = ? AND role = ? AND status = ?", circle.ID, model.MemberRoleOwner, model.MemberStatusActive).
		Count(&owners).Error)
	assert.Equal(t, int64(1), owners)

	// the former owner can now leave
	require.NoError(t, env.members.Leave(ctx, owner, circle.Slug))
}

func TestListMembers(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	circle, owner := env.createCircle(t, "Roster", publicCircle)
	_, err := env.members.Join(ctx, uuid.New(), circle.Slug)
	require.NoError(t, err)

	members, total, err := env.members.ListMembers(ctx, owner, circle.Slug, repository.NewPage(1, 10))
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, members, 2)

	_, _, err = env.members.ListMembers(ctx, uuid.New(), circle.Slug, repository.NewPage(1, 10))
	assert.ErrorIs(t, err, ErrCircleAccessDenied)
}

func TestReconcileMemberCount(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	circle, owner := env.createCircle(t, "Drifted", nil)
	testutil.MemberFixture(t, env.db, circle.ID, uuid.New(), model.MemberRoleMember, model.MemberStatusActive)

	result, err := env.members.ReconcileMemberCount(ctx, owner, circle.Slug)
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.Stored)
	assert.Equal(t, int64(2), result.Actual)
	assert.Equal(t, int64(1), result.Drift())
	env.assertCountersConsistent(t, circle.ID)

	result, err = env.members.ReconcileMemberCount(ctx, owner, circle.Slug)
	require.NoError(t, err)
	assert.Zero(t, result.Drift())
}

func TestEnsureCircleCapacity(t *testing.T) {
	circle := &model.Circle{MaxMembers: 3, MemberCount: 2}
	live := int64(3)

	assert.NoError(t, EnsureCircleCapacity(circle, 1, nil))
	assert.ErrorIs(t, EnsureCircleCapacity(circle, 2, nil), ErrCircleFull)
	assert.ErrorIs(t, EnsureCircleCapacity(circle, 1, &live), ErrCircleFull)
}
