package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"betternews/internal/middleware"
	"betternews/internal/services"
)

type AuthHandler struct {
	auth     *services.AuthService
	sessions *middleware.SessionManager
}

func NewAuthHandler(auth *services.AuthService, sessions *middleware.SessionManager) *AuthHandler {
	return &AuthHandler{auth: auth, sessions: sessions}
}

func credentials(c *gin.Context) services.Credentials {
	return services.Credentials{
		Username: c.PostForm("username"),
		Password: c.PostForm("password"),
	}
}

// Signup POST /api/auth/signup
func (h *AuthHandler) Signup(c *gin.Context) {
	session, err := h.auth.Signup(c.Request.Context(), credentials(c))
	if err != nil {
		fail(c, err)
		return
	}
	if err := h.sessions.Start(c, session); err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusCreated, "User created", nil)
}

// Login POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	session, err := h.auth.Login(c.Request.Context(), credentials(c))
	if err != nil {
		fail(c, err)
		return
	}
	if err := h.sessions.Start(c, session); err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, "Logged in", nil)
}

// Logout GET /api/auth/logout，无论是否登录都跳回首页
func (h *AuthHandler) Logout(c *gin.Context) {
	if id := middleware.SessionID(c); id != "" && middleware.CurrentViewer(c) != nil {
		if err := h.auth.InvalidateSession(c.Request.Context(), id); err != nil {
			fail(c, err)
			return
		}
		h.sessions.Clear(c)
	}
	c.Redirect(http.StatusFound, "/")
}

// User GET /api/auth/user
func (h *AuthHandler) User(c *gin.Context) {
	viewer := middleware.CurrentViewer(c)
	respond(c, http.StatusOK, "User fetched", gin.H{"username": viewer.Username})
}
