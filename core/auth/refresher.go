package auth

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dnslin/sessionretry/core/logger"
	"github.com/dnslin/sessionretry/core/store"
)

// Refresher 定义刷新凭证的能力，刷新成功后新会话已写回存储。
type Refresher interface {
	Refresh(ctx context.Context) error
	NeedsRefresh() bool
}

// TokenRefresher 优先使用 refresh token 换取会话，失败时回落到密码登录。
type TokenRefresher struct {
	mu     sync.Mutex
	client *LoginClient
	store  store.SessionStore[*Session]
	creds  Credentials
	logger logger.Logger
	now    func() time.Time
	skew   time.Duration
}

var _ Refresher = (*TokenRefresher)(nil)

// RefresherOption 自定义刷新器。
type RefresherOption func(*TokenRefresher)

// WithRefresherLogger 注入日志。
func WithRefresherLogger(l logger.Logger) RefresherOption {
	return func(r *TokenRefresher) {
		r.logger = l
	}
}

// WithRefreshSkew 设置提前刷新的时间窗口。
func WithRefreshSkew(d time.Duration) RefresherOption {
	return func(r *TokenRefresher) {
		r.skew = d
	}
}

// WithRefresherNow 替换时间来源，便于测试。
func WithRefresherNow(now func() time.Time) RefresherOption {
	return func(r *TokenRefresher) {
		r.now = now
	}
}

// NewTokenRefresher 创建刷新器。creds 可为空，此时只能依赖 refresh token。
func NewTokenRefresher(client *LoginClient, st store.SessionStore[*Session], creds Credentials, opts ...RefresherOption) *TokenRefresher {
	if client == nil {
		client = NewLoginClient(nil)
	}
	r := &TokenRefresher{
		client: client,
		store:  st,
		creds:  creds,
		logger: logger.Nop{},
		now:    time.Now,
		skew:   30 * time.Second,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	r.logger = logger.OrNop(r.logger)
	return r
}

// Refresh 换取新会话并写回存储。
func (r *TokenRefresher) Refresh(ctx context.Context) error {
	if r.store == nil {
		return ErrSessionStoreNil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	current, err := r.store.LoadSession()
	if err != nil && !errors.Is(err, ErrSessionNotFound) {
		return err
	}
	session, err := r.refreshByToken(ctx, current)
	if err != nil {
		if !r.hasCredentials() {
			return err
		}
		r.logger.Warnf("auth: refresh token 换取失败，改用密码登录: %v", err)
		session, err = r.client.Login(ctx, r.creds)
		if err != nil {
			return err
		}
	}
	if session.RefreshToken == "" && current != nil {
		session.RefreshToken = current.RefreshToken
	}
	r.logger.Infof("auth: 会话已刷新 user=%s expires=%s", session.UserID, session.ExpiresAt.Format(time.RFC3339))
	return r.store.SaveSession(session)
}

// NeedsRefresh 在会话缺失或即将过期时返回 true。
func (r *TokenRefresher) NeedsRefresh() bool {
	if r.store == nil {
		return false
	}
	session, err := r.store.LoadSession()
	if err != nil || session == nil {
		return true
	}
	return session.Expired(r.now().Add(r.skew))
}

func (r *TokenRefresher) refreshByToken(ctx context.Context, current *Session) (*Session, error) {
	if current == nil || current.RefreshToken == "" {
		return nil, ErrMissingRefreshToken
	}
	return r.client.Refresh(ctx, current.RefreshToken)
}

func (r *TokenRefresher) hasCredentials() bool {
	return r.creds.Username != "" && r.creds.Password != ""
}
