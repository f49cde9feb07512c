package logger

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ContextUserIDKey 会话中间件写入的当前用户ID（匿名为0）
const ContextUserIDKey = "user_id"

// RequestLogger 请求日志记录器
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		l := With(
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.String("ip", c.ClientIP()),
			zap.Int("status", status),
			zap.Duration("latency", latency),
			zap.Uint("user_id", c.GetUint(ContextUserIDKey)),
			zap.String("user_agent", c.Request.UserAgent()),
		)
		if len(c.Errors) > 0 {
			l = l.With(zap.String("error", c.Errors.String()))
		}

		// 根据状态码选择日志级别
		switch {
		case status >= 500:
			l.Error("HTTP请求错误")
		case status >= 400:
			l.Warn("HTTP请求警告")
		default:
			l.Info("HTTP请求成功")
		}
	}
}

// ErrorLoggerMiddleware 错误日志中间件，记录panic并返回500
func ErrorLoggerMiddleware() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		Error("HTTP请求发生panic",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("ip", c.ClientIP()),
			zap.String("error", fmt.Sprint(recovered)),
		)
		c.AbortWithStatus(http.StatusInternalServerError)
	})
}
