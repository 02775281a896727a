package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SessionProvider 提供请求鉴权所需的会话字段。
type SessionProvider interface {
	GetAccessToken() string
	GetTokenType() string
}

// Session 记录当前的会话凭证。
type Session struct {
	AccessToken  string    `json:"accessToken,omitempty"`
	RefreshToken string    `json:"refreshToken,omitempty"`
	TokenType    string    `json:"tokenType,omitempty"`
	UserID       string    `json:"userId,omitempty"`
	ExpiresAt    time.Time `json:"expiresAt,omitempty"`
}

// GetAccessToken 实现 SessionProvider。
func (s *Session) GetAccessToken() string {
	if s == nil {
		return ""
	}
	return s.AccessToken
}

// GetTokenType 实现 SessionProvider，默认 Bearer。
func (s *Session) GetTokenType() string {
	if s == nil || s.TokenType == "" {
		return "Bearer"
	}
	return s.TokenType
}

// Expired 判断会话是否过期。ExpiresAt 为零值时视为未知，不算过期。
func (s *Session) Expired(now time.Time) bool {
	if s == nil {
		return true
	}
	if s.ExpiresAt.IsZero() {
		return false
	}
	return !now.Before(s.ExpiresAt)
}

// Clone 返回会话的浅拷贝，避免直接暴露内部指针。
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	cp := *s
	return &cp
}

// ExpiryFromJWT 读取 access token 的 exp 声明，不校验签名，仅用于提前判断是否需要刷新。
func ExpiryFromJWT(token string) (time.Time, error) {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, fmt.Errorf("auth: 解析 access token 失败: %w", err)
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, nil
	}
	return claims.ExpiresAt.Time, nil
}
