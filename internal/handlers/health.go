package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"betternews/internal/db"
)

// Pinger is an optional dependency checked by /health (e.g. the redis cache).
type Pinger interface {
	Health(ctx context.Context) error
}

type HealthHandler struct {
	db    *gorm.DB
	cache Pinger
}

func NewHealthHandler(database *gorm.DB, cache Pinger) *HealthHandler {
	return &HealthHandler{db: database, cache: cache}
}

// Health GET /health，数据库不可用时返回 503
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	body := gin.H{"status": "ok", "database": "ok"}
	if err := db.Health(ctx, h.db); err != nil {
		status = http.StatusServiceUnavailable
		body["status"] = "degraded"
		body["database"] = err.Error()
	}
	if h.cache != nil {
		body["cache"] = "ok"
		if err := h.cache.Health(ctx); err != nil {
			body["cache"] = err.Error()
		}
	}
	c.JSON(status, body)
}
