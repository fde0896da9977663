package handler

import (
	"github.com/gin-gonic/gin"

	"recoveryhub/circles/internal/model"
	"recoveryhub/circles/internal/service"
	"recoveryhub/circles/pkg/response"
)

type MembershipHandler struct {
	membershipService service.MembershipService
}

func NewMembershipHandler(membershipService service.MembershipService) *MembershipHandler {
	return &MembershipHandler{membershipService: membershipService}
}

type UpdateRoleRequest struct {
	Role string `json:"role" binding:"required"`
}

func (h *MembershipHandler) Join(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	membership, err := h.membershipService.Join(c.Request.Context(), userID, c.Param("ref"))
	if err != nil {
		respondError(c, err)
		return
	}
	response.Created(c, membership)
}

func (h *MembershipHandler) Leave(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	if err := h.membershipService.Leave(c.Request.Context(), userID, c.Param("ref")); err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, nil)
}

func (h *MembershipHandler) ListMembers(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	page := pageFromQuery(c)
	members, total, err := h.membershipService.ListMembers(c.Request.Context(), userID, c.Param("ref"), page)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, paged(members, total, page))
}

func (h *MembershipHandler) ListRequests(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	page := pageFromQuery(c)
	requests, total, err := h.membershipService.ListRequests(c.Request.Context(), userID, c.Param("ref"), page)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, paged(requests, total, page))
}

func (h *MembershipHandler) ApproveRequest(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	membership, err := h.membershipService.ApproveRequest(c.Request.Context(), userID, c.Param("ref"), c.Param("userId"))
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, membership)
}

func (h *MembershipHandler) RejectRequest(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	if err := h.membershipService.RejectRequest(c.Request.Context(), userID, c.Param("ref"), c.Param("userId")); err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, nil)
}

func (h *MembershipHandler) UpdateRole(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	var req UpdateRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	membership, err := h.membershipService.UpdateRole(c.Request.Context(), userID, c.Param("ref"), c.Param("userId"), model.MemberRole(req.Role))
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, membership)
}

func (h *MembershipHandler) Remove(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	if err := h.membershipService.RemoveMember(c.Request.Context(), userID, c.Param("ref"), c.Param("userId")); err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, nil)
}

func (h *MembershipHandler) Reconcile(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	result, err := h.membershipService.ReconcileMemberCount(c.Request.Context(), userID, c.Param("ref"))
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, result)
}
