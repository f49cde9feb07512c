// Package csrf 提供写操作前的CSRF校验中间件
package csrf

import (
	"crypto/subtle"
	"net/http"

	"warbler/config"
	"warbler/pkg/logger"
	"warbler/pkg/metrics"
	"warbler/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// TokenSource 返回当前请求会话绑定的CSRF令牌，无会话时返回空串
type TokenSource func(c *gin.Context) string

// Valid 常量时间比较，任一为空都不通过
func Valid(expected, submitted string) bool {
	if expected == "" || submitted == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(submitted)) == 1
}

// Gate CSRF校验中间件，仅作用于写请求
// 校验失败与鉴权拒绝返回完全相同的响应
func Gate(cfg config.CSRFConfig, expected TokenSource) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !cfg.Enabled || isSafeMethod(c.Request.Method) {
			c.Next()
			return
		}

		submitted := c.GetHeader(cfg.HeaderName)
		if submitted == "" && cfg.FormField != "" {
			submitted = c.PostForm(cfg.FormField)
		}

		if !Valid(expected(c), submitted) {
			metrics.CSRFRejections.Inc()
			logger.Warn("CSRF校验失败",
				zap.String("method", c.Request.Method),
				zap.String("path", c.FullPath()),
				zap.Uint("user_id", c.GetUint(logger.ContextUserIDKey)),
			)
			response.Unauthorized(c)
			return
		}

		c.Next()
	}
}

func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}
