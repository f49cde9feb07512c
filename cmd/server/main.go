package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"warbler/config"
	"warbler/internal/authz"
	"warbler/internal/handler"
	"warbler/internal/repository"
	"warbler/internal/service"
	"warbler/internal/session"
	dbPkg "warbler/pkg/db"
	"warbler/pkg/jwt"
	"warbler/pkg/logger"
	redisPkg "warbler/pkg/redis"
	"warbler/pkg/websocket"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	// 1. 加载配置
	cfg := config.LoadConfig()

	// 2. 初始化日志系统
	log := logger.InitLogger(cfg.Log)
	defer log.Sync()

	log.Info("=== Warbler 启动 ===")
	log.Info("服务器配置信息",
		zap.String("port", cfg.Server.Port),
		zap.String("database_driver", cfg.Database.Driver),
		zap.String("database_host", cfg.Database.Host),
		zap.String("database_name", cfg.Database.Database),
		zap.Duration("session_expire_time", cfg.Session.ExpireTime),
		zap.Bool("csrf_enabled", cfg.CSRF.Enabled),
		zap.String("log_level", cfg.Log.Level),
	)

	// 3. 初始化数据库连接
	db, err := dbPkg.InitDB(cfg.Database)
	if err != nil {
		log.Fatal("数据库连接失败", zap.Error(err))
	}
	defer func() {
		if err := dbPkg.CloseDB(); err != nil {
			log.Error("关闭数据库连接失败", zap.Error(err))
		}
	}()
	log.Info("数据库连接成功")

	// 3.1 自动迁移表结构
	if err := dbPkg.Migrate(db); err != nil {
		log.Fatal("自动迁移失败", zap.Error(err))
	}
	log.Info("自动迁移完成")

	// 4. 初始化Redis（会话存储与点赞数缓存）
	rdb, err := redisPkg.InitRedis(context.Background(), cfg.Redis)
	if err != nil {
		log.Fatal("Redis连接失败", zap.Error(err))
	}
	defer func() {
		if err := redisPkg.Close(); err != nil {
			log.Error("关闭Redis连接失败", zap.Error(err))
		}
	}()
	log.Info("Redis连接成功")

	// 5. 初始化业务组件
	userRepo := repository.NewUserRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	likeRepo := repository.NewLikeRepository(db)
	likeCounts := redisPkg.NewLikeCountCache(rdb, cfg.Redis.CacheTTL)
	notifier := websocket.NewManager()

	userSvc := service.NewUserService(userRepo)
	messageSvc := service.NewMessageService(messageRepo, likeCounts)
	likeSvc := service.NewLikeService(likeRepo, messageRepo, likeCounts, notifier)

	sessions := session.NewManager(
		jwt.NewTokenService(cfg.Session),
		redisPkg.NewSessionStore(rdb, cfg.Session.ExpireTime),
		userRepo,
		cfg.Session.CookieName,
	)

	// 6. 设置Gin模式
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	// 7. 创建Gin路由
	router := handler.NewRouter(handler.Dependencies{
		Users:     userSvc,
		Messages:  messageSvc,
		Likes:     likeSvc,
		Guard:     authz.NewGuard(userSvc),
		Sessions:  sessions,
		Notifier:  notifier,
		CSRF:      cfg.CSRF,
		WebSocket: cfg.WebSocket,
		HealthChecks: map[string]func(context.Context) error{
			"database": func(context.Context) error { return dbPkg.HealthCheck(db) },
			"redis":    func(ctx context.Context) error { return redisPkg.HealthCheck(ctx, rdb) },
		},
	})

	// 8. 创建HTTP服务器
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// 9. 启动HTTP服务器
	go func() {
		log.Info("HTTP服务器启动", zap.String("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP服务器启动失败", zap.Error(err))
		}
	}()

	// 10. 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("正在关闭服务器...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error("HTTP服务器关闭失败", zap.Error(err))
	}

	log.Info("服务器已安全关闭")
}
