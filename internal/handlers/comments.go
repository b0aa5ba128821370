package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"betternews/internal/middleware"
	"betternews/internal/services"
)

type CommentHandler struct {
	comments *services.CommentService
}

func NewCommentHandler(comments *services.CommentService) *CommentHandler {
	return &CommentHandler{comments: comments}
}

// Reply POST /api/comments/:id
func (h *CommentHandler) Reply(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		fail(c, err)
		return
	}
	comment, err := h.comments.CreateReply(c.Request.Context(), middleware.CurrentViewer(c), id, c.PostForm("content"))
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, "Comment created", comment)
}

// Children GET /api/comments/:id/comments?page&limit&sortBy&orderBy
func (h *CommentHandler) Children(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		fail(c, err)
		return
	}
	req, err := pageRequest(c)
	if err != nil {
		fail(c, err)
		return
	}
	page, err := h.comments.ListChildren(c.Request.Context(), middleware.CurrentViewer(c), id, req)
	if err != nil {
		fail(c, err)
		return
	}
	respondPage(c, "Comments fetched", page.Comments, page.Pagination)
}

// Upvote PATCH /api/comments/:id/upvote
func (h *CommentHandler) Upvote(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		fail(c, err)
		return
	}
	res, err := h.comments.ToggleUpvote(c.Request.Context(), middleware.CurrentViewer(c), id)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, "Comment updated", res)
}
