package handler

import (
	"context"
	"time"

	"warbler/config"
	"warbler/internal/authz"
	"warbler/internal/service"
	"warbler/internal/session"
	"warbler/pkg/csrf"
	"warbler/pkg/logger"
	"warbler/pkg/metrics"
	"warbler/pkg/response"
	"warbler/pkg/websocket"

	"github.com/gin-gonic/gin"
)

// Dependencies 路由所需的全部组件
type Dependencies struct {
	Users     *service.UserService
	Messages  *service.MessageService
	Likes     *service.LikeService
	Guard     *authz.Guard
	Sessions  *session.Manager
	Notifier  *websocket.Manager
	CSRF      config.CSRFConfig
	WebSocket config.WebSocketConfig

	// HealthChecks 健康检查项，名称 -> 检查函数
	HealthChecks map[string]func(ctx context.Context) error
}

// NewRouter 创建Gin路由
// 写请求依次经过：CSRF校验 -> 会话解析 -> 鉴权 -> 存储操作
func NewRouter(d Dependencies) *gin.Engine {
	router := gin.New()
	router.Use(logger.RequestLogger())
	router.Use(logger.ErrorLoggerMiddleware())
	router.Use(d.Sessions.Middleware())

	userHandler := NewUserHandler(d.Users, d.Likes, d.Sessions, d.Guard)
	messageHandler := NewMessageHandler(d.Messages, d.Likes, d.Guard)
	likeHandler := NewLikeHandler(d.Messages, d.Likes, d.Guard)

	router.GET("/health", healthHandler(d.HealthChecks))
	router.GET("/metrics", gin.WrapH(metrics.Handler()))
	if d.Notifier != nil {
		router.GET("/ws", websocket.Handler(d.Notifier, d.WebSocket))
	}

	v1 := router.Group("/api/v1")
	{
		// 公开接口，尚无会话因此不做CSRF校验
		v1.POST("/signup", userHandler.Signup)
		v1.POST("/login", userHandler.Login)
		v1.GET("/messages/:id", messageHandler.GetMessage)
		v1.GET("/users/:id/likes", userHandler.GetUserLikes)

		protected := v1.Group("")
		protected.Use(csrf.Gate(d.CSRF, func(c *gin.Context) string {
			return session.ActorFrom(c).CSRFToken
		}))
		{
			protected.POST("/logout", userHandler.Logout)
			protected.POST("/users/profile", userHandler.UpdateProfile)
			protected.POST("/messages", messageHandler.CreateMessage)
			protected.POST("/messages/:id/delete", messageHandler.DeleteMessage)
			protected.POST("/messages/:id/like", likeHandler.Like)
			protected.POST("/messages/:id/unlike", likeHandler.Unlike)
		}
	}

	return router
}

func healthHandler(checks map[string]func(ctx context.Context) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		status := "ok"
		components := gin.H{}
		for name, check := range checks {
			if err := check(ctx); err != nil {
				status = "degraded"
				components[name] = "down"
				continue
			}
			components[name] = "up"
		}

		response.Success(c, gin.H{
			"status":     status,
			"components": components,
			"time":       time.Now().Format(time.RFC3339),
		})
	}
}
