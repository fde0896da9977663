package handler

import (
	"github.com/gin-gonic/gin"

	"recoveryhub/circles/internal/service"
	"recoveryhub/circles/internal/validation"
	"recoveryhub/circles/pkg/response"
)

type CircleHandler struct {
	circleService service.CircleService
}

func NewCircleHandler(circleService service.CircleService) *CircleHandler {
	return &CircleHandler{circleService: circleService}
}

func (h *CircleHandler) Create(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	var req validation.CirclePayload
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	circle, err := h.circleService.Create(c.Request.Context(), userID, req)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Created(c, circle)
}

func (h *CircleHandler) ListPublic(c *gin.Context) {
	if _, ok := requireUser(c); !ok {
		return
	}

	page := pageFromQuery(c)
	circles, total, err := h.circleService.ListPublic(c.Request.Context(), page)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, paged(circles, total, page))
}

func (h *CircleHandler) ListMine(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	page := pageFromQuery(c)
	circles, err := h.circleService.ListMine(c.Request.Context(), userID, page)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, circles)
}

func (h *CircleHandler) Get(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	view, err := h.circleService.Get(c.Request.Context(), userID, c.Param("ref"))
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, view)
}

func (h *CircleHandler) Update(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	var req validation.CircleUpdatePayload
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	circle, err := h.circleService.Update(c.Request.Context(), userID, c.Param("ref"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, circle)
}

func (h *CircleHandler) Delete(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	if err := h.circleService.Delete(c.Request.Context(), userID, c.Param("ref")); err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, nil)
}
