package services

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// SessionSweeper 后台定时清理过期会话
type SessionSweeper struct {
	auth     *AuthService
	interval time.Duration
	log      *zap.Logger
}

func NewSessionSweeper(auth *AuthService, interval time.Duration) *SessionSweeper {
	if interval <= 0 {
		interval = time.Hour
	}
	return &SessionSweeper{auth: auth, interval: interval, log: auth.log.Named("sweeper")}
}

// Run 阻塞直到 ctx 取消；启动时先清理一次
func (s *SessionSweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *SessionSweeper) sweep(ctx context.Context) {
	n, err := s.auth.DeleteExpiredSessions(ctx)
	if err != nil {
		if ctx.Err() == nil {
			s.log.Warn("session sweep failed", zap.Error(err))
		}
		return
	}
	if n > 0 {
		s.log.Info("expired sessions removed", zap.Int64("count", n))
	}
}
