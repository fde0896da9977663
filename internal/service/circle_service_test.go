package service

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recoveryhub/circles/internal/config"
	"recoveryhub/circles/internal/model"
	"recoveryhub/circles/internal/repository"
	"recoveryhub/circles/internal/validation"
)

func TestCreateCircle_OwnerMembership(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	circle, owner := env.createCircle(t, "Daily Gratitude Circle", func(p *validation.CirclePayload) {
		p.MaxMembers = intPtr(30)
		p.Visibility = strPtr("public")
	})

	assert.True(t, strings.HasPrefix(circle.Slug, "daily-gratitude-circle"))
	assert.Equal(t, 1, circle.MemberCount)
	assert.Equal(t, 30, circle.MaxMembers)

	membership, err := env.store.Members().Get(ctx, circle.ID, owner, model.MemberStatusActive)
	require.NoError(t, err)
	assert.Equal(t, model.MemberRoleOwner, membership.Role)

	for i := 0; i < 3; i++ {
		_, err := env.members.Join(ctx, uuid.New(), circle.Slug)
		require.NoError(t, err)
	}
	assert.Equal(t, 4, env.reload(t, circle.ID).MemberCount)
	env.assertCountersConsistent(t, circle.ID)
}

func TestCreateCircle_CollidingNames(t *testing.T) {
	env := newTestEnv(t)

	first, _ := env.createCircle(t, "Test", nil)
	second, _ := env.createCircle(t, "Test", nil)

	assert.Equal(t, "test", first.Slug)
	assert.Equal(t, "test-2", second.Slug)
}

func TestCreateCircle_Quota(t *testing.T) {
	env := newTestEnv(t, func(c *config.CirclesConfig) { c.MaxCirclesPerUser = 2 })
	ctx := context.Background()
	user := uuid.New()

	for i := 0; i < 2; i++ {
		_, err := env.circles.Create(ctx, user, validation.CirclePayload{Name: "Mine"})
		require.NoError(t, err)
	}
	_, err := env.circles.Create(ctx, user, validation.CirclePayload{Name: "Mine"})
	assert.ErrorIs(t, err, ErrCircleLimitReached)
}

func TestCreateCircle_ValidationError(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.circles.Create(context.Background(), uuid.New(), validation.CirclePayload{
		Name:       "x",
		Visibility: strPtr("hidden"),
	})

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Errors, 2)
}

// racyCircles hides existing slugs from the first few lookups, as if another
// request inserted them between lookup and insert.
type racyCircles struct {
	repository.CircleRepository
	blind int
}

func (r *racyCircles) SlugExists(ctx context.Context, slug string) (bool, error) {
	if r.blind > 0 {
		r.blind--
		return false, nil
	}
	return r.CircleRepository.SlugExists(ctx, slug)
}

func TestCreateCircle_RetriesSlugRace(t *testing.T) {
	env := newTestEnv(t)
	env.createCircle(t, "Test", nil)

	env.circles.slugs = NewSlugResolver(&racyCircles{CircleRepository: env.store.Circles(), blind: 1})
	circle, _ := env.createCircle(t, "Test", nil)

	assert.Equal(t, "test-2", circle.Slug)
}

func TestCreateCircle_SlugUnavailable(t *testing.T) {
	env := newTestEnv(t, func(c *config.CirclesConfig) { c.SlugRetryAttempts = 2 })
	env.createCircle(t, "Test", nil)

	env.circles.slugs = NewSlugResolver(&racyCircles{CircleRepository: env.store.Circles(), blind: 100})
	_, err := env.circles.Create(context.Background(), uuid.New(), validation.CirclePayload{Name: "Test"})

	assert.ErrorIs(t, err, ErrSlugUnavailable)
}

func TestGetCircle_Visibility(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	private, owner := env.createCircle(t, "Quiet Room", nil)
	public, _ := env.createCircle(t, "Open Room", publicCircle)
	stranger := uuid.New()

	_, err := env.circles.Get(ctx, stranger, private.Slug)
	assert.ErrorIs(t, err, ErrCircleAccessDenied)

	view, err := env.circles.Get(ctx, owner, private.ID.String())
	require.NoError(t, err)
	assert.Equal(t, model.MemberRoleOwner, view.MyRole)

	view, err = env.circles.Get(ctx, stranger, public.Slug)
	require.NoError(t, err)
	assert.Empty(t, view.MyRole)

	_, err = env.circles.Get(ctx, stranger, "no-such-circle")
	assert.ErrorIs(t, err, ErrCircleNotFound)

	_, err = env.circles.Get(ctx, stranger, uuid.NewString())
	assert.ErrorIs(t, err, ErrCircleNotFound)
}

func TestUpdateCircle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	circle, owner := env.createCircle(t, "Morning Pages", publicCircle)
	member := uuid.New()
	_, err := env.members.Join(ctx, member, circle.Slug)
	require.NoError(t, err)

	_, err = env.circles.Update(ctx, member, circle.Slug, validation.CircleUpdatePayload{Name: strPtr("Mine now")})
	assert.ErrorIs(t, err, ErrCircleAdminRequired)

	_, err = env.circles.Update(ctx, owner, circle.Slug, validation.CircleUpdatePayload{MaxMembers: intPtr(2)})
	require.NoError(t, err)

	updated, err := env.circles.Update(ctx, owner, circle.Slug, validation.CircleUpdatePayload{
		Name:           strPtr("Evening Pages"),
		RegenerateSlug: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "Evening Pages", updated.Name)
	assert.Equal(t, "evening-pages", updated.Slug)
	assert.Equal(t, 2, updated.MaxMembers)

	// renaming releases the old slug
	exists, err := env.store.Circles().SlugExists(ctx, "morning-pages")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestUpdateCircle_RenameKeepsOwnSlug(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	circle, owner := env.createCircle(t, "Test", nil)
	require.Equal(t, "test", circle.Slug)

	updated, err := env.circles.Update(ctx, owner, circle.Slug, validation.CircleUpdatePayload{
		Name:           strPtr("TEST"),
		RegenerateSlug: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "TEST", updated.Name)
	assert.Equal(t, "test", updated.Slug)

	// a circle already on a suffixed slug keeps it when the base is taken
	_, otherOwner := env.createCircle(t, "Test", nil)
	second, err := env.store.Circles().GetBySlug(ctx, "test-2")
	require.NoError(t, err)
	renamed, err := env.circles.Update(ctx, otherOwner, second.Slug, validation.CircleUpdatePayload{
		Name:           strPtr("test"),
		RegenerateSlug: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "test-2", renamed.Slug)

	unchanged, err := env.circles.Update(ctx, owner, "test", validation.CircleUpdatePayload{RegenerateSlug: true})
	require.NoError(t, err)
	assert.Equal(t, "test", unchanged.Slug)
}

func TestUpdateCircle_MaxMembersBelowCount(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	circle, owner := env.createCircle(t, "Full House", publicCircle)
	for i := 0; i < 2; i++ {
		_, err := env.members.Join(ctx, uuid.New(), circle.Slug)
		require.NoError(t, err)
	}

	_, err := env.circles.Update(ctx, owner, circle.Slug, validation.CircleUpdatePayload{MaxMembers: intPtr(2)})

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "max_members", verr.Errors[0].Field)
}

func TestDeleteCircle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	circle, owner := env.createCircle(t, "Short Lived", publicCircle)
	admin := uuid.New()
	_, err := env.members.Join(ctx, admin, circle.Slug)
	require.NoError(t, err)
	_, err = env.members.UpdateRole(ctx, owner, circle.Slug, admin.String(), model.MemberRoleAdmin)
	require.NoError(t, err)

	assert.ErrorIs(t, env.circles.Delete(ctx, admin, circle.Slug), ErrRoleChangeForbidden)
	require.NoError(t, env.circles.Delete(ctx, owner, circle.Slug))

	_, err = env.circles.Get(ctx, owner, circle.Slug)
	assert.ErrorIs(t, err, ErrCircleNotFound)

	again, _ := env.createCircle(t, "Short Lived", nil)
	assert.Equal(t, "short-lived-2", again.Slug)

	// deleted circles no longer count toward the quota
	count, err := env.store.Circles().CountByCreator(ctx, owner)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestListCircles(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	public, owner := env.createCircle(t, "Open Door", publicCircle)
	env.createCircle(t, "Closed Door", nil)

	circles, total, err := env.circles.ListPublic(ctx, repository.NewPage(1, 10))
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, public.ID, circles[0].ID)

	mine, err := env.circles.ListMine(ctx, owner, repository.NewPage(1, 10))
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, public.ID, mine[0].ID)
}
