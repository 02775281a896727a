package authretry

import (
	"fmt"
	"sync"
)

// State 是单次调用的状态，只前进不回退。
type State int

const (
	StateAwaitingFirstAttempt State = iota
	StateAwaitingRefresh
	StateAwaitingSecondAttempt
	StateDone
)

func (s State) String() string {
	switch s {
	case StateAwaitingFirstAttempt:
		return "awaiting_first_attempt"
	case StateAwaitingRefresh:
		return "awaiting_refresh"
	case StateAwaitingSecondAttempt:
		return "awaiting_second_attempt"
	case StateDone:
		return "done"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// machine 保证每个回调只在期望状态下生效一次。
type machine struct {
	mu    sync.Mutex
	state State
}

func (m *machine) advance(from, to State) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != from {
		return false
	}
	m.state = to
	return true
}

func (m *machine) current() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}
