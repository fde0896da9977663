package service

import (
	"net/http"
	"strings"

	"recoveryhub/circles/internal/validation"
)

// Error is a domain failure that carries its own HTTP status and a stable
// code. Message is safe to show to the user.
type Error struct {
	Status  int
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Code + ": " + e.Message
}

func newError(status int, code, message string) *Error {
	return &Error{Status: status, Code: code, Message: message}
}

var (
	ErrInvalidID           = newError(http.StatusBadRequest, "INVALID_ID", "Invalid identifier")
	ErrCircleNotFound      = newError(http.StatusNotFound, "CIRCLE_NOT_FOUND", "Circle not found")
	ErrCircleAccessDenied  = newError(http.StatusForbidden, "CIRCLE_ACCESS_DENIED", "You are not an active member of this circle")
	ErrCircleAdminRequired = newError(http.StatusForbidden, "CIRCLE_ADMIN_REQUIRED", "Only circle owners and admins can do this")
	ErrCircleFull          = newError(http.StatusBadRequest, "CIRCLE_FULL", "This circle has reached its member limit")
	ErrCircleLimitReached  = newError(http.StatusBadRequest, "CIRCLE_LIMIT_REACHED", "You have reached the maximum number of circles you can create")
	ErrSlugUnavailable     = newError(http.StatusConflict, "SLUG_UNAVAILABLE", "Could not assign a unique address to this circle, please try again")

	ErrAlreadyMember       = newError(http.StatusConflict, "ALREADY_MEMBER", "You are already a member of this circle")
	ErrAlreadyRequested    = newError(http.StatusConflict, "ALREADY_REQUESTED", "A join request is already pending")
	ErrMembershipNotFound  = newError(http.StatusNotFound, "MEMBERSHIP_NOT_FOUND", "Membership not found")
	ErrOwnerCannotLeave    = newError(http.StatusBadRequest, "OWNER_CANNOT_LEAVE", "The owner must transfer ownership before leaving")
	ErrRoleChangeForbidden = newError(http.StatusForbidden, "ROLE_CHANGE_FORBIDDEN", "You cannot make this role change")
	ErrRemovalForbidden    = newError(http.StatusForbidden, "MEMBER_REMOVAL_FORBIDDEN", "You cannot remove this member")

	ErrInviteNotFound       = newError(http.StatusNotFound, "INVITE_NOT_FOUND", "This invite is invalid or has expired")
	ErrInviteExpired        = newError(http.StatusGone, "INVITE_EXPIRED", "This invite has expired")
	ErrInviteRevoked        = newError(http.StatusGone, "INVITE_REVOKED", "This invite has been revoked")
	ErrInviteExhausted      = newError(http.StatusGone, "INVITE_EXHAUSTED", "This invite has already been used")
	ErrInviteNoLongerValid  = newError(http.StatusConflict, "INVITE_NO_LONGER_VALID", "This invite is no longer valid")
	ErrInviteModeNotAllowed = newError(http.StatusForbidden, "INVITE_MODE_NOT_ALLOWED", "Only admins can create multi-use invites for this circle")
	ErrInviteRateLimited    = newError(http.StatusTooManyRequests, "INVITE_RATE_LIMITED", "Too many invite attempts, please try again later")

	ErrPostNotFound     = newError(http.StatusNotFound, "POST_NOT_FOUND", "Post not found")
	ErrCommentNotFound  = newError(http.StatusNotFound, "COMMENT_NOT_FOUND", "Comment not found")
	ErrContentForbidden = newError(http.StatusForbidden, "CONTENT_FORBIDDEN", "Only the author or a circle admin can do this")
)

// ValidationError aggregates every field problem found in a payload.
type ValidationError struct {
	Errors []validation.FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Errors))
	for _, fe := range e.Errors {
		msgs = append(msgs, fe.Error())
	}
	return "VALIDATION_FAILED: " + strings.Join(msgs, "; ")
}

func invalid[T any](res validation.Result[T]) error {
	if res.Valid {
		return nil
	}
	return &ValidationError{Errors: res.Errors}
}

func invalidField(field, message string) error {
	return &ValidationError{Errors: []validation.FieldError{{Field: field, Message: message}}}
}
