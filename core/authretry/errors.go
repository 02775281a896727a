package authretry

import (
	"errors"
	"fmt"

	coreerrors "github.com/dnslin/sessionretry/core/errors"
)

var (
	// ErrSessionExpired 表示会话已失效。错误码为 SESSION_EXPIRED 的 CoreError 都与之匹配。
	ErrSessionExpired = coreerrors.New(coreerrors.ErrCodeSessionExpired, "authretry: 会话已过期")
	// ErrRefreshFailed 用于 errors.Is 判断刷新失败。
	ErrRefreshFailed = coreerrors.New(coreerrors.ErrCodeRefreshFailed, "authretry: 会话刷新失败")
	// ErrNoRefresher 在需要刷新但未配置刷新函数时作为刷新错误返回。
	ErrNoRefresher = coreerrors.New(coreerrors.ErrCodeInvalidConfig, "authretry: 未配置刷新函数")
)

// Kind 是请求结果的错误分类，集合封闭。
type Kind int

const (
	// KindNone 表示成功。
	KindNone Kind = iota
	// KindSessionExpired 触发一次刷新并重试。
	KindSessionExpired
	// KindOther 直接返回给调用方，不重试。
	KindOther
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindSessionExpired:
		return "session_expired"
	case KindOther:
		return "other"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// KindOf 对错误分类：nil 为 KindNone，匹配 ErrSessionExpired 为 KindSessionExpired，其余为 KindOther。
// 链上带有 *RefreshError 时总是 KindOther，即使刷新本身因会话过期失败。
func KindOf(err error) Kind {
	var re *RefreshError
	switch {
	case err == nil:
		return KindNone
	case errors.As(err, &re):
		return KindOther
	case errors.Is(err, ErrSessionExpired):
		return KindSessionExpired
	default:
		return KindOther
	}
}

// SessionExpired 包装传输层错误，使其匹配 ErrSessionExpired。
func SessionExpired(raw error) error {
	return coreerrors.Wrap(coreerrors.ErrCodeSessionExpired, "", raw)
}

// RefreshError 在刷新失败且策略为 SurfaceRefreshError 时交给 completion。
// Expired 记录触发刷新的那次会话过期错误，不在 Unwrap 链上。
// KindOf 对 RefreshError 恒为 KindOther。
type RefreshError struct {
	Cause   error
	Expired error
}

func (e *RefreshError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("authretry: 会话刷新失败: %v", e.Cause)
}

func (e *RefreshError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Is 使 errors.Is(err, ErrRefreshFailed) 成立。
func (e *RefreshError) Is(target error) bool {
	t, ok := target.(*coreerrors.CoreError)
	return ok && t.Code == coreerrors.ErrCodeRefreshFailed
}
