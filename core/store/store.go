package store

import coreerrors "github.com/dnslin/sessionretry/core/errors"

// ErrNotFound 表示存储中没有会话。
var ErrNotFound = coreerrors.New(coreerrors.ErrCodeNotFound, "store: 未找到会话")

// SessionStore 抽象会话存储，由业务方约定具体 Session 结构体。
type SessionStore[T any] interface {
	SaveSession(session T) error
	LoadSession() (T, error)
	ClearSession() error
}

// Cloner 由会话类型实现，存储读写时返回副本，避免共享内部指针。
type Cloner[T any] interface {
	Clone() T
}

func cloneValue[T any](v T) T {
	if c, ok := any(v).(Cloner[T]); ok {
		return c.Clone()
	}
	return v
}
