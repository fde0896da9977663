package service

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"recoveryhub/circles/internal/repository"
)

const (
	slugBaseMax = 60
	slugMax     = 70
)

var (
	slugDisallowed = regexp.MustCompile(`[^a-z0-9\s-]`)
	slugSpaces     = regexp.MustCompile(`\s+`)
	slugHyphens    = regexp.MustCompile(`-{2,}`)
)

// DeriveSlug builds the base slug for name. Names with nothing usable fall
// back to circle-<last 6 chars of fallbackID>, or of the timestamp when
// fallbackID is empty.
func DeriveSlug(name, fallbackID string, now time.Time) string {
	slug := strings.ToLower(name)
	slug = slugDisallowed.ReplaceAllString(slug, "")
	slug = slugSpaces.ReplaceAllString(slug, "-")
	slug = slugHyphens.ReplaceAllString(slug, "-")
	slug = strings.Trim(slug, "-")
	if len(slug) > slugBaseMax {
		slug = strings.TrimRight(slug[:slugBaseMax], "-")
	}
	if slug != "" {
		return slug
	}

	seed := fallbackID
	if seed == "" {
		seed = strconv.FormatInt(now.UnixMilli(), 36)
	}
	if len(seed) > 6 {
		seed = seed[len(seed)-6:]
	}
	return "circle-" + strings.ToLower(seed)
}

// withSuffix appends -n, cutting the base so the result stays within slugMax.
func withSuffix(base string, n int) string {
	suffix := "-" + strconv.Itoa(n)
	if len(base)+len(suffix) > slugMax {
		base = strings.TrimRight(base[:slugMax-len(suffix)], "-")
	}
	return base + suffix
}

// SlugResolver searches the store for a free slug. The search is optimistic:
// two concurrent creations can pick the same slug, and the loser's insert
// hits the unique index and must retry.
type SlugResolver struct {
	circles repository.CircleRepository
	now     func() time.Time
}

func NewSlugResolver(circles repository.CircleRepository) *SlugResolver {
	return &SlugResolver{circles: circles, now: time.Now}
}

// GenerateUniqueCircleSlug tries base, base-2, base-3, ... until one is
// unused by any circle, including soft-deleted ones.
func (r *SlugResolver) GenerateUniqueCircleSlug(ctx context.Context, name, fallbackID string) (string, error) {
	return r.firstFree(ctx, name, fallbackID, "")
}

// RenameSlug searches like GenerateUniqueCircleSlug but treats current, the
// renamed circle's own slug, as free. A rename that derives the slug the
// circle already holds keeps it.
func (r *SlugResolver) RenameSlug(ctx context.Context, name, fallbackID, current string) (string, error) {
	return r.firstFree(ctx, name, fallbackID, current)
}

func (r *SlugResolver) firstFree(ctx context.Context, name, fallbackID, current string) (string, error) {
	base := DeriveSlug(name, fallbackID, r.now())
	candidate := base
	for n := 2; ; n++ {
		if current != "" && candidate == current {
			return candidate, nil
		}
		taken, err := r.circles.SlugExists(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("check slug %q: %w", candidate, err)
		}
		if !taken {
			return candidate, nil
		}
		candidate = withSuffix(base, n)
	}
}
