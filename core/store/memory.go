package store

import (
	"reflect"
	"sync"
)

// MemoryStore 内存会话存储。
type MemoryStore[T any] struct {
	mu         sync.RWMutex
	session    T
	hasSession bool
}

var _ SessionStore[int] = (*MemoryStore[int])(nil)

// NewMemoryStore 创建 MemoryStore。
func NewMemoryStore[T any]() *MemoryStore[T] {
	return &MemoryStore[T]{}
}

func (m *MemoryStore[T]) SaveSession(session T) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if isNil(session) {
		m.reset()
		return nil
	}
	m.session = cloneValue(session)
	m.hasSession = true
	return nil
}

func (m *MemoryStore[T]) LoadSession() (T, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.hasSession {
		var zero T
		return zero, ErrNotFound
	}
	return cloneValue(m.session), nil
}

func (m *MemoryStore[T]) ClearSession() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reset()
	return nil
}

func (m *MemoryStore[T]) reset() {
	var zero T
	m.session = zero
	m.hasSession = false
}

// isNil 判断泛型值是否为 nil 指针、map 等。
func isNil[T any](v T) bool {
	rv := reflect.ValueOf(any(v))
	if !rv.IsValid() {
		return true
	}
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}
