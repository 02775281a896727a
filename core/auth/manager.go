package auth

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/dnslin/sessionretry/core/authretry"
	coreerrors "github.com/dnslin/sessionretry/core/errors"
	"github.com/dnslin/sessionretry/core/logger"
	"github.com/dnslin/sessionretry/core/store"
)

var (
	// ErrAccountNotFound 在账号不存在或未选择时返回。
	ErrAccountNotFound = coreerrors.New(coreerrors.ErrCodeNotFound, "auth: 未找到账号")
	// ErrAccountIDEmpty 在新增账号时未提供 ID 返回。
	ErrAccountIDEmpty = coreerrors.New(coreerrors.ErrCodeInvalidArgument, "auth: 账号 ID 不能为空")
	// ErrRefresherNil 需要刷新但未配置刷新器时返回。
	ErrRefresherNil = coreerrors.New(coreerrors.ErrCodeInvalidConfig, "auth: 未配置刷新器")
)

// AccountSession 记录账号关联的会话存储、刷新器与元信息。
type AccountSession struct {
	AccountID   string
	DisplayName string
	Store       store.SessionStore[*Session]
	Refresher   Refresher
}

// Manager 负责多账号的会话管理与刷新。默认同一账号的并发刷新会合并为一次。
type Manager struct {
	mu        sync.RWMutex
	accounts  map[string]*AccountSession
	current   string
	now       func() time.Time
	logger    logger.Logger
	coalescer *authretry.Coalescer
}

// ManagerOption 自定义 Manager。
type ManagerOption func(*Manager)

// WithManagerLogger 注入日志。
func WithManagerLogger(l logger.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = l
	}
}

// WithCoalescing 控制同一账号的并发刷新是否合并，默认开启。
func WithCoalescing(enabled bool) ManagerOption {
	return func(m *Manager) {
		if enabled {
			m.coalescer = authretry.NewCoalescer()
		} else {
			m.coalescer = nil
		}
	}
}

// WithManagerNow 替换时间来源，便于测试。
func WithManagerNow(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.now = now
	}
}

// NewManager 创建 Manager。
func NewManager(opts ...ManagerOption) *Manager {
	m := &Manager{
		accounts:  make(map[string]*AccountSession),
		now:       time.Now,
		logger:    logger.Nop{},
		coalescer: authretry.NewCoalescer(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	m.logger = logger.OrNop(m.logger)
	return m
}

// AddAccount 注册一个账号，首个账号会成为当前账号。
func (m *Manager) AddAccount(accountID string, session AccountSession) error {
	if accountID == "" {
		return ErrAccountIDEmpty
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := session
	cp.AccountID = accountID
	m.accounts[accountID] = &cp
	if m.current == "" {
		m.current = accountID
	}
	return nil
}

// RemoveAccount 删除账号，若为当前账号则一并清空 current。
func (m *Manager) RemoveAccount(accountID string) {
	m.mu.Lock()
	delete(m.accounts, accountID)
	if m.current == accountID {
		m.current = ""
	}
	m.mu.Unlock()
	if m.coalescer != nil {
		m.coalescer.Forget(accountID)
	}
}

// SetCurrentAccount 切换当前账号。
func (m *Manager) SetCurrentAccount(accountID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accounts[accountID]; !ok {
		return ErrAccountNotFound
	}
	m.current = accountID
	return nil
}

// ListAccounts 返回按 ID 排序的账号列表（浅拷贝）。
func (m *Manager) ListAccounts() []AccountSession {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]AccountSession, 0, len(m.accounts))
	for _, acc := range m.accounts {
		result = append(result, *acc)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].AccountID < result[j].AccountID })
	return result
}

// GetAccount 返回指定账号（或当前账号）的有效 Session，必要时先刷新。
func (m *Manager) GetAccount(ctx context.Context, accountID string) (*Session, error) {
	accID, acc, err := m.resolveAccount(accountID)
	if err != nil {
		return nil, err
	}
	if acc.Store == nil {
		return nil, ErrSessionStoreNil
	}
	session, err := acc.Store.LoadSession()
	if err != nil && !errors.Is(err, ErrSessionNotFound) {
		return nil, err
	}
	needRefresh := session == nil || session.Expired(m.now())
	if acc.Refresher != nil && acc.Refresher.NeedsRefresh() {
		needRefresh = true
	}
	if needRefresh {
		if err := m.RefreshAccount(ctx, accID); err != nil {
			return nil, err
		}
		if session, err = acc.Store.LoadSession(); err != nil {
			return nil, err
		}
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}
	return session.Clone(), nil
}

// RefreshAccount 触发账号刷新，同一账号的并发调用共享一次刷新。
func (m *Manager) RefreshAccount(ctx context.Context, accountID string) error {
	return authretry.Wait(ctx, m.RefreshFunc(accountID))
}

// RefreshFunc 返回绑定到账号的刷新函数，可直接交给 authretry.NewInvoker。
// accountID 为空时绑定调用时刻的当前账号。
func (m *Manager) RefreshFunc(accountID string) authretry.RefreshFunc {
	accID, acc, err := m.resolveAccount(accountID)
	if err != nil {
		return func(_ context.Context, done func(error)) { done(err) }
	}
	refresh := authretry.Sync(func(ctx context.Context) error {
		if acc.Refresher == nil {
			return ErrRefresherNil
		}
		m.logger.Debugf("auth: 刷新账号 %s", accID)
		return acc.Refresher.Refresh(ctx)
	})
	if m.coalescer == nil {
		return refresh
	}
	return m.coalescer.Wrap(accID, refresh)
}

// Provider 返回读取账号最新会话的 SessionProvider，每次访问都回源存储。
func (m *Manager) Provider(accountID string) (SessionProvider, error) {
	accID, acc, err := m.resolveAccount(accountID)
	if err != nil {
		return nil, err
	}
	if acc.Store == nil {
		return nil, ErrSessionStoreNil
	}
	return &storeProvider{manager: m, accountID: accID}, nil
}

func (m *Manager) resolveAccount(accountID string) (string, *AccountSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id := accountID
	if id == "" {
		id = m.current
	}
	if id == "" {
		return "", nil, ErrAccountNotFound
	}
	acc := m.accounts[id]
	if acc == nil {
		return "", nil, ErrAccountNotFound
	}
	return id, acc, nil
}

func (m *Manager) snapshot(accountID string) (*Session, error) {
	m.mu.RLock()
	acc := m.accounts[accountID]
	m.mu.RUnlock()
	if acc == nil {
		return nil, ErrAccountNotFound
	}
	if acc.Store == nil {
		return nil, ErrSessionStoreNil
	}
	return acc.Store.LoadSession()
}

type storeProvider struct {
	manager   *Manager
	accountID string
}

func (p *storeProvider) session() *Session {
	session, err := p.manager.snapshot(p.accountID)
	if err != nil {
		return nil
	}
	return session
}

func (p *storeProvider) GetAccessToken() string {
	return p.session().GetAccessToken()
}

func (p *storeProvider) GetTokenType() string {
	return p.session().GetTokenType()
}
