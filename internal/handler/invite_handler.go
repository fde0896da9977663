package handler

import (
	"github.com/gin-gonic/gin"

	"recoveryhub/circles/internal/service"
	"recoveryhub/circles/internal/validation"
	"recoveryhub/circles/pkg/response"
)

type InviteHandler struct {
	inviteService service.InviteService
}

func NewInviteHandler(inviteService service.InviteService) *InviteHandler {
	return &InviteHandler{inviteService: inviteService}
}

func (h *InviteHandler) Create(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	// an empty body means default terms
	var req validation.InvitePayload
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, "invalid request: "+err.Error())
			return
		}
	}

	invite, err := h.inviteService.Create(c.Request.Context(), userID, c.Param("ref"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Created(c, invite)
}

func (h *InviteHandler) List(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	invites, err := h.inviteService.List(c.Request.Context(), userID, c.Param("ref"))
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, invites)
}

func (h *InviteHandler) Revoke(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	if err := h.inviteService.Revoke(c.Request.Context(), userID, c.Param("ref"), c.Param("inviteId")); err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, nil)
}

func (h *InviteHandler) Preview(c *gin.Context) {
	if _, ok := requireUser(c); !ok {
		return
	}

	preview, err := h.inviteService.Preview(c.Request.Context(), c.Param("token"))
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, preview)
}

func (h *InviteHandler) Redeem(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	membership, err := h.inviteService.Redeem(c.Request.Context(), userID, c.Param("token"))
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, membership)
}
