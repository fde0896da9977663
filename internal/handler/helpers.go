package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"recoveryhub/circles/internal/handler/middleware"
	"recoveryhub/circles/internal/repository"
	"recoveryhub/circles/internal/service"
	jwtpkg "recoveryhub/circles/pkg/jwt"
	"recoveryhub/circles/pkg/response"
)

var ErrNoClaims = errors.New("claims not found in context")

func getUserIDFromContext(c *gin.Context) (uuid.UUID, error) {
	claimsVal, exists := c.Get(middleware.ContextKeyUserClaims)
	if !exists {
		return uuid.Nil, ErrNoClaims
	}
	claims, ok := claimsVal.(*jwtpkg.Claims)
	if !ok {
		return uuid.Nil, ErrNoClaims
	}
	return claims.UserID()
}

// requireUser writes 401 and returns false when the caller is unknown.
func requireUser(c *gin.Context) (uuid.UUID, bool) {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		response.Unauthorized(c, "invalid user context")
		return uuid.Nil, false
	}
	return userID, true
}

// respondError maps service errors onto the response envelope. Anything that
// is not a domain error is recorded on the context for the request logger.
func respondError(c *gin.Context, err error) {
	var domainErr *service.Error
	var validationErr *service.ValidationError
	switch {
	case errors.As(err, &validationErr):
		response.Invalid(c, "VALIDATION_FAILED", "Validation failed", validationErr.Errors)
	case errors.As(err, &domainErr):
		response.Error(c, domainErr.Status, domainErr.Code, domainErr.Message)
	default:
		_ = c.Error(err)
		response.InternalError(c, "internal server error")
	}
}

func pageFromQuery(c *gin.Context) repository.Page {
	page, _ := strconv.Atoi(c.Query("page"))
	limit, _ := strconv.Atoi(c.Query("limit"))
	return repository.NewPage(page, limit)
}

type pagedResponse struct {
	Items interface{} `json:"items"`
	Total int64       `json:"total"`
	Page  int         `json:"page"`
	Limit int         `json:"limit"`
}

func paged(items interface{}, total int64, page repository.Page) pagedResponse {
	return pagedResponse{Items: items, Total: total, Page: page.Page, Limit: page.Limit}
}
