package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	coreerrors "github.com/dnslin/sessionretry/core/errors"
	"github.com/dnslin/sessionretry/core/httpclient"
	"github.com/dnslin/sessionretry/core/logger"
)

// Credentials 表示账号口令组合。
type Credentials struct {
	Username string
	Password string
}

// LoginEndpoints 允许替换登录相关接口地址，便于测试或自定义环境。
type LoginEndpoints struct {
	LoginURL   string
	RefreshURL string
}

// EndpointsFor 根据 API 基础地址生成默认接口地址。
func EndpointsFor(baseURL string) LoginEndpoints {
	base := strings.TrimSuffix(baseURL, "/")
	return LoginEndpoints{
		LoginURL:   base + "/auth/login",
		RefreshURL: base + "/auth/refresh",
	}
}

// LoginClient 负责用户名密码登录与 refresh token 换取会话。
// 它使用的 httpclient 不应配置 WithSessionRefresh，否则刷新失败会递归触发刷新。
type LoginClient struct {
	client    *httpclient.Client
	logger    logger.Logger
	endpoints LoginEndpoints
	now       func() time.Time
}

// LoginOption 自定义登录客户端。
type LoginOption func(*LoginClient)

// WithLoginLogger 注入日志。
func WithLoginLogger(l logger.Logger) LoginOption {
	return func(c *LoginClient) {
		c.logger = l
	}
}

// WithLoginEndpoints 替换默认接口地址。
func WithLoginEndpoints(ep LoginEndpoints) LoginOption {
	return func(c *LoginClient) {
		c.endpoints = ep
	}
}

// WithLoginNow 替换时间来源，便于测试。
func WithLoginNow(now func() time.Time) LoginOption {
	return func(c *LoginClient) {
		c.now = now
	}
}

// NewLoginClient 创建登录客户端。
func NewLoginClient(client *httpclient.Client, opts ...LoginOption) *LoginClient {
	if client == nil {
		client = httpclient.NewClient()
	}
	c := &LoginClient{
		client:    client,
		logger:    logger.Nop{},
		endpoints: EndpointsFor("http://127.0.0.1:8080"),
		now:       time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	c.logger = logger.OrNop(c.logger)
	return c
}

// ErrMissingCredentials 标记缺少用户名或密码。
var ErrMissingCredentials = coreerrors.New(coreerrors.ErrCodeUnauthenticated, "auth: 缺少登录凭证")

// ErrMissingRefreshToken 标记会话中没有 refresh token。
var ErrMissingRefreshToken = coreerrors.New(coreerrors.ErrCodeUnauthenticated, "auth: 缺少 refresh token")

type tokenResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	TokenType    string `json:"tokenType"`
	UserID       string `json:"userId"`
	ExpiresIn    int    `json:"expiresIn"`
}

// Login 使用用户名密码登录并换取会话。
func (c *LoginClient) Login(ctx context.Context, creds Credentials) (*Session, error) {
	if creds.Username == "" || creds.Password == "" {
		return nil, ErrMissingCredentials
	}
	c.logger.Debugf("auth: 用户 %s 密码登录", creds.Username)
	return c.exchange(ctx, c.endpoints.LoginURL, map[string]string{
		"username": creds.Username,
		"password": creds.Password,
	})
}

// Refresh 使用 refresh token 换取新会话。
func (c *LoginClient) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	if refreshToken == "" {
		return nil, ErrMissingRefreshToken
	}
	return c.exchange(ctx, c.endpoints.RefreshURL, map[string]string{
		"refreshToken": refreshToken,
	})
}

func (c *LoginClient) exchange(ctx context.Context, endpoint string, payload map[string]string) (*Session, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(body)), nil
	}
	var rsp tokenResponse
	if err := c.client.Do(req, &rsp); err != nil {
		return nil, err
	}
	if rsp.AccessToken == "" {
		return nil, coreerrors.New(coreerrors.ErrCodeInvalidState, "auth: 响应缺少 accessToken")
	}
	return c.toSession(rsp), nil
}

func (c *LoginClient) toSession(rsp tokenResponse) *Session {
	session := &Session{
		AccessToken:  rsp.AccessToken,
		RefreshToken: rsp.RefreshToken,
		TokenType:    rsp.TokenType,
		UserID:       rsp.UserID,
	}
	if rsp.ExpiresIn > 0 {
		session.ExpiresAt = c.now().Add(time.Duration(rsp.ExpiresIn) * time.Second)
	} else if exp, err := ExpiryFromJWT(rsp.AccessToken); err == nil {
		session.ExpiresAt = exp
	}
	return session
}
