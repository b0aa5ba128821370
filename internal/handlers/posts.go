package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"betternews/internal/middleware"
	"betternews/internal/services"
	"betternews/internal/utils"
)

type PostHandler struct {
	posts    *services.PostService
	comments *services.CommentService
}

func NewPostHandler(posts *services.PostService, comments *services.CommentService) *PostHandler {
	return &PostHandler{posts: posts, comments: comments}
}

// Create POST /api/posts
func (h *PostHandler) Create(c *gin.Context) {
	in := services.CreatePostInput{
		Title:   c.PostForm("title"),
		URL:     c.PostForm("url"),
		Content: c.PostForm("content"),
	}
	id, err := h.posts.Create(c.Request.Context(), middleware.CurrentViewer(c), in)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusCreated, "Post created", gin.H{"postId": id})
}

// List GET /api/posts?page&limit&sortBy&orderBy&author&site
func (h *PostHandler) List(c *gin.Context) {
	req, err := pageRequest(c)
	if err != nil {
		fail(c, err)
		return
	}
	q := services.ListPostsQuery{
		PageRequest: req,
		Author:      c.Query("author"),
		Site:        c.Query("site"),
	}
	page, err := h.posts.List(c.Request.Context(), middleware.CurrentViewer(c), q)
	if err != nil {
		fail(c, err)
		return
	}
	respondPage(c, "Posts fetched", page.Posts, page.Pagination)
}

// Get GET /api/posts/:id
func (h *PostHandler) Get(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		fail(c, err)
		return
	}
	post, err := h.posts.Get(c.Request.Context(), middleware.CurrentViewer(c), id)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, "Post fetched", post)
}

// Upvote PATCH /api/posts/:id/upvote
func (h *PostHandler) Upvote(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		fail(c, err)
		return
	}
	res, err := h.posts.ToggleUpvote(c.Request.Context(), middleware.CurrentViewer(c), id)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, "Post updated", res)
}

// CreateComment POST /api/posts/:id/comment
func (h *PostHandler) CreateComment(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		fail(c, err)
		return
	}
	comment, err := h.comments.CreateTopLevel(c.Request.Context(), middleware.CurrentViewer(c), id, c.PostForm("content"))
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, "Comment created", comment)
}

// Comments GET /api/posts/:id/comments?page&limit&sortBy&orderBy&includeChildren
func (h *PostHandler) Comments(c *gin.Context) {
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
	q := services.ListCommentsQuery{
		PageRequest:     req,
		IncludeChildren: utils.ParseBool(c.Query("includeChildren")),
	}
	page, err := h.comments.ListTopLevel(c.Request.Context(), middleware.CurrentViewer(c), id, q)
	if err != nil {
		fail(c, err)
		return
	}
	respondPage(c, "Comments fetched", page.Comments, page.Pagination)
}
