package middleware

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"betternews/internal/apperr"
)

// ErrorResponse is the body of every failed API call.
type ErrorResponse struct {
	Success     bool              `json:"success"`
	Error       string            `json:"error"`
	IsFormError bool              `json:"isFormError,omitempty"`
	Fields      map[string]string `json:"fields,omitempty"`
}

// ErrorHandler 统一把 c.Errors 中最后一个错误转换为 JSON 响应。
// 非预期错误记录日志，生产环境下只返回 "Internal Server Error"。
func ErrorHandler(production bool, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		err := c.Errors.Last().Err
		ae := apperr.From(err)

		body := ErrorResponse{
			Error:       ae.Message,
			IsFormError: ae.Form,
			Fields:      ae.Fields,
		}
		if ae.Kind == apperr.KindUnexpected {
			logger.Error("request failed",
				zap.String("method", c.Request.Method),
				zap.String("path", c.Request.URL.Path),
				zap.Error(err))
			if !production {
				body.Error = err.Error()
			}
		}

		if c.Writer.Written() {
			return
		}
		c.AbortWithStatusJSON(ae.Kind.Status(), body)
	}
}

// Recovery 把 panic 记为错误，由外层 ErrorHandler 输出 500。
// 必须注册在 ErrorHandler 之后。
func Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, rec any) {
		_ = c.Error(fmt.Errorf("panic: %v", rec))
		c.Abort()
	})
}
