package jwt

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"warbler/config"

	jwtv5 "github.com/golang-jwt/jwt/v5"
)

// TokenService 会话令牌的签发与校验
// 使用对称密钥 HS256；令牌只携带会话ID(jti)与用户ID(sub)
// 会话是否仍然有效以Redis中的会话记录为准，令牌本身不能代表登录状态

type TokenService struct {
	secretKey   []byte        // 对称密钥
	issuer      string        // 签发者
	expireAfter time.Duration // 过期时间
}

// SessionClaims 会话令牌声明
type SessionClaims struct {
	jwtv5.RegisteredClaims
}

// SessionID 会话ID
func (c *SessionClaims) SessionID() string {
	return c.ID
}

// UserID 解析 Subject 中的用户ID
func (c *SessionClaims) UserID() (uint, error) {
	id, err := strconv.ParseUint(c.Subject, 10, 64)
	if err != nil || id == 0 {
		return 0, errors.New("invalid subject")
	}
	return uint(id), nil
}

// NewTokenService 创建令牌服务
func NewTokenService(cfg config.SessionConfig) *TokenService {
	return &TokenService{
		secretKey:   []byte(cfg.Secret),
		issuer:      cfg.Issuer,
		expireAfter: cfg.ExpireTime,
	}
}

// ExpireAfter 令牌有效期
func (s *TokenService) ExpireAfter() time.Duration {
	return s.expireAfter
}

// GenerateToken 为会话签发令牌
func (s *TokenService) GenerateToken(sessionID string, userID uint) (string, error) {
	if sessionID == "" || userID == 0 {
		return "", errors.New("sessionID and userID are required")
	}

	now := time.Now()
	claims := &SessionClaims{
		RegisteredClaims: jwtv5.RegisteredClaims{
			ID:        sessionID,
			Issuer:    s.issuer,
			Subject:   strconv.FormatUint(uint64(userID), 10),
			IssuedAt:  jwtv5.NewNumericDate(now),
			NotBefore: jwtv5.NewNumericDate(now),
			ExpiresAt: jwtv5.NewNumericDate(now.Add(s.expireAfter)),
		},
	}

	token := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secretKey)
	if err != nil {
		return "", fmt.Errorf("sign token failed: %w", err)
	}
	return signed, nil
}

// ValidateToken 校验签名、签发者与有效期并返回声明
func (s *TokenService) ValidateToken(tokenString string) (*SessionClaims, error) {
	if tokenString == "" {
		return nil, errors.New("token is empty")
	}

	claims := &SessionClaims{}
	parsedToken, err := jwtv5.ParseWithClaims(
		tokenString,
		claims,
		func(token *jwtv5.Token) (interface{}, error) {
			if token.Method != jwtv5.SigningMethodHS256 {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return s.secretKey, nil
		},
		jwtv5.WithIssuer(s.issuer),
		jwtv5.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("parse token failed: %w", err)
	}
	if !parsedToken.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.ID == "" {
		return nil, errors.New("token has no session id")
	}
	return claims, nil
}
