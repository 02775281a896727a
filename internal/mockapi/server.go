// Package mockapi 提供进程内的模拟业务接口，供测试与 feedctl serve 使用。
package mockapi

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/dnslin/sessionretry/core/logger"
	"github.com/dnslin/sessionretry/core/model"
)

// AlwaysExpiredUser 的请求永远返回会话过期，用于演示刷新后仍失败的场景。
const AlwaysExpiredUser = "123"

const codeSessionExpired = "SESSION_EXPIRED"

// Stats 是服务端计数快照。
type Stats struct {
	Logins    int64
	Refreshes int64
	Requests  int64
	Rejected  int64
}

type claims struct {
	Generation int64 `json:"gen"`
	jwt.RegisteredClaims
}

// Server 模拟带会话的业务接口。
type Server struct {
	mu            sync.Mutex
	secret        []byte
	ttl           time.Duration
	users         map[string]string
	refreshTokens map[string]string
	generation    int64
	now           func() time.Time
	logger        logger.Logger

	logins    atomic.Int64
	refreshes atomic.Int64
	requests  atomic.Int64
	rejected  atomic.Int64
}

// Option 自定义 Server。
type Option func(*Server)

// WithSecret 设置 HS256 签名密钥。
func WithSecret(secret []byte) Option {
	return func(s *Server) {
		s.secret = secret
	}
}

// WithTokenTTL 设置 access token 有效期。
func WithTokenTTL(ttl time.Duration) Option {
	return func(s *Server) {
		s.ttl = ttl
	}
}

// WithUser 注册一个可登录的用户。
func WithUser(username, password string) Option {
	return func(s *Server) {
		s.users[username] = password
	}
}

// WithNow 替换时间来源。
func WithNow(now func() time.Time) Option {
	return func(s *Server) {
		s.now = now
	}
}

// WithLogger 注入日志。
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// New 创建 Server，未设置密钥时随机生成。
func New(opts ...Option) *Server {
	s := &Server{
		ttl:           15 * time.Minute,
		users:         make(map[string]string),
		refreshTokens: make(map[string]string),
		now:           time.Now,
		logger:        logger.Nop{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if len(s.secret) == 0 {
		s.secret = []byte(randomToken())
	}
	s.logger = logger.OrNop(s.logger)
	return s
}

// Handler 返回注册了全部路由的 http.Handler。
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/login", s.handleLogin)
	mux.HandleFunc("POST /auth/refresh", s.handleRefresh)
	mux.HandleFunc("GET /users/{id}/posts", s.authorized(s.handlePosts))
	mux.HandleFunc("GET /comments/{id}", s.authorized(s.handleComments))
	return mux
}

// Stats 返回计数快照。
func (s *Server) Stats() Stats {
	return Stats{
		Logins:    s.logins.Load(),
		Refreshes: s.refreshes.Load(),
		Requests:  s.requests.Load(),
		Rejected:  s.rejected.Load(),
	}
}

// ExpireSessions 使已签发的 access token 全部失效，refresh token 不受影响。
func (s *Server) ExpireSessions() {
	s.mu.Lock()
	s.generation++
	s.mu.Unlock()
}

// IssueToken 直接为用户签发 access token。
func (s *Server) IssueToken(username string) (string, error) {
	s.mu.Lock()
	gen := s.generation
	s.mu.Unlock()
	now := s.now()
	c := claims{
		Generation: gen,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.secret)
}

type tokenResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	TokenType    string `json:"tokenType"`
	UserID       string `json:"userId"`
	ExpiresIn    int    `json:"expiresIn"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "请求体无法解析")
		return
	}
	s.mu.Lock()
	password, ok := s.users[req.Username]
	s.mu.Unlock()
	if !ok || password != req.Password {
		writeError(w, http.StatusForbidden, "INVALID_CREDENTIALS", "用户名或密码错误")
		return
	}
	s.logins.Add(1)
	s.logger.Infof("mockapi: 用户 %s 登录", req.Username)
	s.issue(w, req.Username)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "请求体无法解析")
		return
	}
	s.mu.Lock()
	username, ok := s.refreshTokens[req.RefreshToken]
	delete(s.refreshTokens, req.RefreshToken)
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusForbidden, "INVALID_REFRESH_TOKEN", "refresh token 无效")
		return
	}
	s.refreshes.Add(1)
	s.logger.Infof("mockapi: 用户 %s 刷新会话", username)
	s.issue(w, username)
}

func (s *Server) issue(w http.ResponseWriter, username string) {
	access, err := s.IssueToken(username)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL", err.Error())
		return
	}
	refresh := randomToken()
	s.mu.Lock()
	s.refreshTokens[refresh] = username
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		UserID:       username,
		ExpiresIn:    int(s.ttl / time.Second),
	})
}

func (s *Server) authorized(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.requests.Add(1)
		if err := s.verify(r); err != nil {
			s.rejected.Add(1)
			s.logger.Debugf("mockapi: %s %s 拒绝: %v", r.Method, r.URL.Path, err)
			writeError(w, http.StatusUnauthorized, codeSessionExpired, err.Error())
			return
		}
		next(w, r)
	}
}

func (s *Server) verify(r *http.Request) error {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return errors.New("缺少 access token")
	}
	c := &claims{}
	_, err := jwt.ParseWithClaims(token, c, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil {
		return fmt.Errorf("access token 无效: %w", err)
	}
	s.mu.Lock()
	gen := s.generation
	s.mu.Unlock()
	if c.Generation != gen {
		return errors.New("access token 已失效")
	}
	return nil
}

func (s *Server) handlePosts(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("id")
	if userID == AlwaysExpiredUser {
		s.rejected.Add(1)
		writeError(w, http.StatusUnauthorized, codeSessionExpired, "会话已过期")
		return
	}
	now := s.now().UTC().Truncate(time.Second)
	writeJSON(w, http.StatusOK, []model.Post{
		{ID: userID + "-1", UserID: userID, Title: "第一条动态", Body: "hello", CreatedAt: now},
		{ID: userID + "-2", UserID: userID, Title: "第二条动态", Body: "world", CreatedAt: now},
	})
}

func (s *Server) handleComments(w http.ResponseWriter, r *http.Request) {
	commentID := r.PathValue("id")
	writeJSON(w, http.StatusOK, []model.Comment{
		{ID: commentID, PostID: "1", Author: "mock", Body: "nice post"},
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{"code": code, "message": message})
}

func randomToken() string {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return uuid.NewString()
	}
	return hex.EncodeToString(buf)
}
