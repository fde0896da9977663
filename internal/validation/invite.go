package validation

import (
	"time"

	"recoveryhub/circles/internal/model"
)

type InvitePayload struct {
	Mode          *string    `json:"mode"`
	MaxUses       *int       `json:"max_uses"`
	ExpiresInDays *int       `json:"expires_in_days"`
	ExpiresAt     *time.Time `json:"expires_at"`
}

// InviteTerms are the computed redemption limits of an invite.
type InviteTerms struct {
	Mode      model.InviteMode
	MaxUses   int
	ExpiresAt *time.Time
}

// NormalizeInvite validates an invite creation payload at now.
func NormalizeInvite(p InvitePayload, now time.Time) Result[InviteTerms] {
	terms, errs := ResolveInviteTerms(p, now)
	return result(terms, errs)
}

// ResolveInviteTerms is the single place where mode, maxUses and expiresAt
// are computed. The invite engine builds its documents from the same terms.
//
// Single-use forces maxUses to 1. Multi-use accepts a positive count capped
// at InviteMaxUses. expiresInDays wins over expiresAt when both are given;
// either is capped at InviteMaxLifetime. With neither, the invite never
// expires.
func ResolveInviteTerms(p InvitePayload, now time.Time) (InviteTerms, []FieldError) {
	var errs errorList
	terms := InviteTerms{Mode: model.InviteModeMultiUse, MaxUses: DefaultInviteMaxUses}

	if m, ok := optionalString(p.Mode); ok {
		if mode := model.InviteMode(m); mode.Valid() {
			terms.Mode = mode
		} else {
			errs.add("mode", "mode must be single-use or multi-use")
		}
	}

	switch terms.Mode {
	case model.InviteModeSingleUse:
		terms.MaxUses = 1
	case model.InviteModeMultiUse:
		if p.MaxUses != nil {
			switch n := *p.MaxUses; {
			case n < 1:
				errs.add("max_uses", "max_uses must be a positive integer")
			case n > InviteMaxUses:
				terms.MaxUses = InviteMaxUses
			default:
				terms.MaxUses = n
			}
		}
	}

	latest := now.Add(InviteMaxLifetime)
	switch {
	case p.ExpiresInDays != nil:
		days := *p.ExpiresInDays
		if days < 1 {
			errs.add("expires_in_days", "expires_in_days must be a positive integer")
			break
		}
		if days > InviteMaxLifetimeDays {
			days = InviteMaxLifetimeDays
		}
		at := now.Add(time.Duration(days) * 24 * time.Hour)
		terms.ExpiresAt = &at
	case p.ExpiresAt != nil:
		at := p.ExpiresAt.UTC()
		if !at.After(now) {
			errs.add("expires_at", "expires_at must be in the future")
			break
		}
		if at.After(latest) {
			at = latest
		}
		terms.ExpiresAt = &at
	}

	return terms, errs
}
