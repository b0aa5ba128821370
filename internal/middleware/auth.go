package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"betternews/internal/apperr"
	"betternews/internal/models"
	"betternews/internal/services"
)

const (
	// ViewerKey 上下文中当前登录用户的键
	ViewerKey = "viewer"
	// SessionIDKey cookie 会话中保存的会话 ID
	SessionIDKey = "session_id"
)

// SessionValidator 由 services.AuthService 实现
type SessionValidator interface {
	ValidateSession(ctx context.Context, id string) (*services.SessionInfo, error)
}

// SessionManager 负责会话 cookie 的读写
type SessionManager struct {
	auth   SessionValidator
	secure bool
	log    *zap.Logger
}

func NewSessionManager(auth SessionValidator, secure bool, logger *zap.Logger) *SessionManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionManager{auth: auth, secure: secure, log: logger.With(zap.String("component", "session"))}
}

// Options returns the cookie options for a session expiring at expires.
// A zero expires deletes the cookie.
func (m *SessionManager) Options(expires time.Time) sessions.Options {
	maxAge := -1
	if !expires.IsZero() {
		maxAge = int(time.Until(expires).Seconds())
		if maxAge <= 0 {
			maxAge = -1
		}
	}
	return sessions.Options{
		Path:     "/",
		MaxAge:   maxAge,
		Secure:   m.secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

// Start 登录/注册成功后写入会话 cookie
func (m *SessionManager) Start(c *gin.Context, s *models.Session) error {
	session := sessions.Default(c)
	session.Set(SessionIDKey, s.ID)
	session.Options(m.Options(s.ExpiresAt))
	return session.Save()
}

// Clear 下发空白 cookie
func (m *SessionManager) Clear(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	session.Options(m.Options(time.Time{}))
	if err := session.Save(); err != nil {
		m.log.Warn("failed to clear session cookie", zap.Error(err))
	}
}

// SessionID 当前请求 cookie 中的会话 ID
func SessionID(c *gin.Context) string {
	id, _ := sessions.Default(c).Get(SessionIDKey).(string)
	return id
}

// LoadUser 读取 cookie 中的会话并把 Viewer 放进上下文。
// 会话失效时清除 cookie，续期时重新下发。
func (m *SessionManager) LoadUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := SessionID(c)
		if id == "" {
			c.Next()
			return
		}

		info, err := m.auth.ValidateSession(c.Request.Context(), id)
		if err != nil {
			m.log.Error("session lookup failed", zap.Error(err))
			c.Next()
			return
		}

		switch {
		case info == nil:
			m.Clear(c)
		case info.Fresh:
			if err := m.Start(c, &info.Session); err != nil {
				m.log.Warn("failed to refresh session cookie", zap.Error(err))
			}
		}
		if info != nil {
			c.Set(ViewerKey, info.Viewer())
		}
		c.Next()
	}
}

// CurrentViewer returns the logged-in viewer or nil.
func CurrentViewer(c *gin.Context) *services.Viewer {
	v, ok := c.Get(ViewerKey)
	if !ok {
		return nil
	}
	viewer, _ := v.(*services.Viewer)
	return viewer
}

// AuthRequired 未登录返回 401
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if CurrentViewer(c) == nil {
			_ = c.Error(apperr.Auth("Unauthorized"))
			c.Abort()
			return
		}
		c.Next()
	}
}
