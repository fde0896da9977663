package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"recoveryhub/circles/internal/service"
	"recoveryhub/circles/internal/validation"
	"recoveryhub/circles/pkg/response"
)

type FeedHandler struct {
	feedService service.FeedService
}

func NewFeedHandler(feedService service.FeedService) *FeedHandler {
	return &FeedHandler{feedService: feedService}
}

func (h *FeedHandler) CreatePost(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	var req validation.PostPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	post, err := h.feedService.CreatePost(c.Request.Context(), userID, c.Param("ref"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Created(c, post)
}

func (h *FeedHandler) ListPosts(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	var stepTag *int
	if raw := c.Query("stepTag"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			response.Invalid(c, "VALIDATION_FAILED", "Validation failed", []validation.FieldError{
				{Field: "stepTag", Message: "stepTag must be an integer"},
			})
			return
		}
		stepTag = &n
	}

	page := pageFromQuery(c)
	posts, total, err := h.feedService.ListPosts(c.Request.Context(), userID, c.Param("ref"), stepTag, page)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, paged(posts, total, page))
}

func (h *FeedHandler) GetPost(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	post, err := h.feedService.GetPost(c.Request.Context(), userID, c.Param("ref"), c.Param("postId"))
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, post)
}

func (h *FeedHandler) DeletePost(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	if err := h.feedService.DeletePost(c.Request.Context(), userID, c.Param("ref"), c.Param("postId")); err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, nil)
}

func (h *FeedHandler) PinPost(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	post, err := h.feedService.PinPost(c.Request.Context(), userID, c.Param("ref"), c.Param("postId"))
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, post)
}

func (h *FeedHandler) UnpinPost(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	post, err := h.feedService.UnpinPost(c.Request.Context(), userID, c.Param("ref"), c.Param("postId"))
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, post)
}

func (h *FeedHandler) ReconcilePost(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	result, err := h.feedService.ReconcileCommentCount(c.Request.Context(), userID, c.Param("ref"), c.Param("postId"))
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, result)
}

func (h *FeedHandler) CreateComment(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	var req validation.CommentPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	comment, err := h.feedService.CreateComment(c.Request.Context(), userID, c.Param("ref"), c.Param("postId"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Created(c, comment)
}

func (h *FeedHandler) ListComments(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	page := pageFromQuery(c)
	comments, total, err := h.feedService.ListComments(c.Request.Context(), userID, c.Param("ref"), c.Param("postId"), page)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, paged(comments, total, page))
}

func (h *FeedHandler) DeleteComment(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	err := h.feedService.DeleteComment(c.Request.Context(), userID, c.Param("ref"), c.Param("postId"), c.Param("commentId"))
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, nil)
}
