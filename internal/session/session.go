// Package session 负责会话的建立、解析与清除
// 每个请求独立解析出 Actor 并作为参数向下传递，不保存任何跨请求的当前用户状态
package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"warbler/internal/model"
	"warbler/internal/repository"
	"warbler/pkg/jwt"
	"warbler/pkg/logger"
	"warbler/pkg/redis"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ContextActorKey Actor 在 gin.Context 中的键名
const ContextActorKey = "actor"

// Actor 当前请求的操作者，User 为nil表示匿名
type Actor struct {
	User      *model.User
	SessionID string
	CSRFToken string
}

// Anonymous 匿名操作者
func Anonymous() Actor { return Actor{} }

func (a Actor) IsAnonymous() bool { return a.User == nil }

// ID 用户ID，匿名为0
func (a Actor) ID() uint {
	if a.User == nil {
		return 0
	}
	return a.User.ID
}

// Session 登录后返回给客户端的会话凭据
type Session struct {
	Token     string
	CSRFToken string
	ExpiresIn time.Duration
}

// UserLoader 按ID加载用户
type UserLoader interface {
	GetByID(ctx context.Context, id uint) (*model.User, error)
}

// Manager 会话管理
type Manager struct {
	tokens     *jwt.TokenService
	store      *redis.SessionStore
	users      UserLoader
	cookieName string
}

func NewManager(tokens *jwt.TokenService, store *redis.SessionStore, users UserLoader, cookieName string) *Manager {
	return &Manager{tokens: tokens, store: store, users: users, cookieName: cookieName}
}

// Establish 为用户建立新会话（登录）
func (m *Manager) Establish(ctx context.Context, user *model.User) (*Session, error) {
	if user == nil || user.ID == 0 {
		return nil, errors.New("cannot establish session for anonymous user")
	}

	sessionID := uuid.NewString()
	csrfToken := strings.ReplaceAll(uuid.NewString(), "-", "")

	if err := m.store.Create(ctx, sessionID, redis.SessionRecord{UserID: user.ID, CSRFToken: csrfToken}); err != nil {
		return nil, err
	}

	token, err := m.tokens.GenerateToken(sessionID, user.ID)
	if err != nil {
		_ = m.store.Delete(ctx, sessionID)
		return nil, err
	}

	logger.Info("会话已建立", zap.Uint("user_id", user.ID))
	return &Session{Token: token, CSRFToken: csrfToken, ExpiresIn: m.tokens.ExpireAfter()}, nil
}

// Resolve 解析会话令牌得到操作者
// 任何失败都返回匿名；err 仅在存储故障时非nil，供调用方记录
func (m *Manager) Resolve(ctx context.Context, token string) (Actor, error) {
	if token == "" {
		return Anonymous(), nil
	}

	claims, err := m.tokens.ValidateToken(token)
	if err != nil {
		return Anonymous(), nil
	}
	userID, err := claims.UserID()
	if err != nil {
		return Anonymous(), nil
	}

	rec, err := m.store.Get(ctx, claims.SessionID())
	if errors.Is(err, redis.ErrSessionNotFound) {
		return Anonymous(), nil
	}
	if err != nil {
		return Anonymous(), err
	}
	if rec.UserID != userID {
		return Anonymous(), nil
	}

	user, err := m.users.GetByID(ctx, rec.UserID)
	if errors.Is(err, repository.ErrNotFound) {
		return Anonymous(), nil
	}
	if err != nil {
		return Anonymous(), fmt.Errorf("加载会话用户失败: %w", err)
	}

	return Actor{User: user, SessionID: claims.SessionID(), CSRFToken: rec.CSRFToken}, nil
}

// Clear 清除会话（登出），令牌无效时视为已清除
func (m *Manager) Clear(ctx context.Context, token string) error {
	claims, err := m.tokens.ValidateToken(token)
	if err != nil {
		return nil
	}
	return m.store.Delete(ctx, claims.SessionID())
}

// TokenFromRequest 依次从 Authorization: Bearer 与会话cookie读取令牌
func (m *Manager) TokenFromRequest(c *gin.Context) string {
	if auth := c.GetHeader("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	if token, err := c.Cookie(m.cookieName); err == nil {
		return token
	}
	return ""
}

// SetCookie 写入会话cookie
func (m *Manager) SetCookie(c *gin.Context, s *Session) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(m.cookieName, s.Token, int(s.ExpiresIn.Seconds()), "/", "", false, true)
}

// ClearCookie 删除会话cookie
func (m *Manager) ClearCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(m.cookieName, "", -1, "/", "", false, true)
}

// Middleware 解析会话并将 Actor 存入 gin.Context
// 不拒绝任何请求，是否允许由鉴权层决定
func (m *Manager) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, err := m.Resolve(c.Request.Context(), m.TokenFromRequest(c))
		if err != nil {
			logger.Error("会话解析失败", zap.String("path", c.Request.URL.Path), zap.Error(err))
		}

		c.Set(ContextActorKey, actor)
		c.Set(logger.ContextUserIDKey, actor.ID())
		c.Next()
	}
}

// ActorFrom 从 gin.Context 获取当前操作者，未经过中间件时为匿名
func ActorFrom(c *gin.Context) Actor {
	if v, ok := c.Get(ContextActorKey); ok {
		if actor, ok := v.(Actor); ok {
			return actor
		}
	}
	return Anonymous()
}
