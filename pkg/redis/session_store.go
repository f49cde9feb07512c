package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// SessionKeyPrefix 会话记录key前缀
const SessionKeyPrefix = KeyPrefix + "session:"

// ErrSessionNotFound 会话不存在或已过期
var ErrSessionNotFound = errors.New("session not found")

// SessionRecord 会话记录：会话ID -> 用户ID 与绑定的CSRF令牌
type SessionRecord struct {
	UserID    uint
	CSRFToken string
}

// SessionStore 基于Redis哈希的会话存储
type SessionStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewSessionStore 创建会话存储
func NewSessionStore(rdb *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{rdb: rdb, ttl: ttl}
}

func sessionKey(sessionID string) string {
	return SessionKeyPrefix + sessionID
}

// Create 写入会话记录并设置TTL
func (s *SessionStore) Create(ctx context.Context, sessionID string, rec SessionRecord) error {
	key := sessionKey(sessionID)

	pipe := s.rdb.TxPipeline()
	pipe.HSet(ctx, key, map[string]interface{}{
		"user_id": rec.UserID,
		"csrf":    rec.CSRFToken,
	})
	pipe.Expire(ctx, key, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("写入会话失败: %w", err)
	}
	return nil
}

// Get 读取会话记录
func (s *SessionStore) Get(ctx context.Context, sessionID string) (*SessionRecord, error) {
	values, err := s.rdb.HGetAll(ctx, sessionKey(sessionID)).Result()
	if err != nil {
		return nil, fmt.Errorf("读取会话失败: %w", err)
	}
	if len(values) == 0 {
		return nil, ErrSessionNotFound
	}

	userID, err := strconv.ParseUint(values["user_id"], 10, 64)
	if err != nil || userID == 0 {
		return nil, ErrSessionNotFound
	}

	return &SessionRecord{UserID: uint(userID), CSRFToken: values["csrf"]}, nil
}

// Delete 删除会话记录，不存在时不报错
func (s *SessionStore) Delete(ctx context.Context, sessionID string) error {
	if err := s.rdb.Del(ctx, sessionKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("删除会话失败: %w", err)
	}
	return nil
}
