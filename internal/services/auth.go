package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"betternews/internal/apperr"
	"betternews/internal/logging"
	"betternews/internal/models"
	"betternews/internal/utils"
)

// DefaultSessionTTL 会话有效期 (30 天)
const DefaultSessionTTL = 30 * 24 * time.Hour

// AuthService 注册、登录与会话管理
type AuthService struct {
	deps Deps
	ttl  time.Duration
	now  func() time.Time
	log  *zap.Logger
}

func NewAuthService(d Deps, ttl time.Duration) *AuthService {
	d = d.withDefaults()
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &AuthService{deps: d, ttl: ttl, now: time.Now, log: logging.WithComponent(d.Logger, "auth")}
}

// SessionInfo 是 ValidateSession 的结果。Fresh 表示过期时间刚被延长，
// 调用方需要重新下发 cookie。
type SessionInfo struct {
	Session models.Session
	User    models.User
	Fresh   bool
}

// Viewer converts the session owner into a request viewer.
func (i *SessionInfo) Viewer() *Viewer {
	if i == nil {
		return nil
	}
	return &Viewer{UserID: i.User.ID, Username: i.User.Username}
}

// Signup 创建账号并直接登录
func (s *AuthService) Signup(ctx context.Context, c Credentials) (*models.Session, error) {
	if err := c.validate(); err != nil {
		return nil, err
	}

	hash, err := utils.HashPassword(c.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := models.User{ID: uuid.NewString(), Username: c.Username, PasswordHash: hash}
	if err := s.deps.DB.WithContext(ctx).Create(&user).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, apperr.Conflict("Username already used").AsForm()
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.log.Info("user signed up", zap.String("user_id", user.ID), zap.String("username", user.Username))
	return s.createSession(ctx, user.ID)
}

// Login 校验用户名密码；用户不存在与密码错误返回同一个错误
func (s *AuthService) Login(ctx context.Context, c Credentials) (*models.Session, error) {
	if err := c.validate(); err != nil {
		return nil, err
	}

	var user models.User
	err := s.deps.DB.WithContext(ctx).Where("username = ?", c.Username).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.Auth("Incorrect username or password").AsForm()
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if !utils.CheckPasswordHash(c.Password, user.PasswordHash) {
		return nil, apperr.Auth("Incorrect username or password").AsForm()
	}

	return s.createSession(ctx, user.ID)
}

func (s *AuthService) createSession(ctx context.Context, userID string) (*models.Session, error) {
	session := models.Session{
		ID:        utils.GenerateSessionID(),
		UserID:    userID,
		ExpiresAt: s.now().Add(s.ttl),
	}
	if err := s.deps.DB.WithContext(ctx).Omit("User").Create(&session).Error; err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return &session, nil
}

// ValidateSession 查找会话。不存在或已过期返回 nil (过期行顺带删除)；
// 剩余时间不足一半时续期。
func (s *AuthService) ValidateSession(ctx context.Context, id string) (*SessionInfo, error) {
	if id == "" {
		return nil, nil
	}

	db := s.deps.DB.WithContext(ctx)
	var session models.Session
	err := db.Preload("User").Where("id = ?", id).Take(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	now := s.now()
	if session.Expired(now) {
		if err := db.Delete(&models.Session{}, "id = ?", id).Error; err != nil {
			s.log.Warn("failed to delete expired session", zap.Error(err))
		}
		return nil, nil
	}

	info := &SessionInfo{Session: session, User: session.User}
	if session.ExpiresAt.Sub(now) < s.ttl/2 {
		expires := now.Add(s.ttl)
		err := db.Model(&models.Session{}).Where("id = ?", id).UpdateColumn("expires_at", expires).Error
		if err != nil {
			return nil, fmt.Errorf("extend session: %w", err)
		}
		info.Session.ExpiresAt = expires
		info.Fresh = true
	}
	return info, nil
}

// InvalidateSession 登出
func (s *AuthService) InvalidateSession(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	if err := s.deps.DB.WithContext(ctx).Delete(&models.Session{}, "id = ?", id).Error; err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// DeleteExpiredSessions 批量清理过期会话，返回删除条数
func (s *AuthService) DeleteExpiredSessions(ctx context.Context) (int64, error) {
	res := s.deps.DB.WithContext(ctx).Where("expires_at <= ?", s.now()).Delete(&models.Session{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// TTL returns the configured session lifetime.
func (s *AuthService) TTL() time.Duration {
	return s.ttl
}
