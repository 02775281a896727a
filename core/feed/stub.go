package feed

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/dnslin/sessionretry/core/authretry"
	"github.com/dnslin/sessionretry/core/model"
)

// ExpiredUserID 的动态请求在 Stub 中总是返回会话过期，刷新也无法恢复。
const ExpiredUserID = "123"

// Stub 是内存中的 Fetcher，回调在独立 goroutine 中触发，模拟网络请求。
type Stub struct {
	// Delay 是每次回调前的等待时间。
	Delay time.Duration

	postCalls    atomic.Int64
	commentCalls atomic.Int64
}

var _ Fetcher = (*Stub)(nil)

// FetchPosts 对 ExpiredUserID 返回会话过期，其他用户返回两条动态。
func (s *Stub) FetchPosts(ctx context.Context, userID string, done authretry.Callback[[]model.Post]) {
	s.postCalls.Add(1)
	go func() {
		if err := s.wait(ctx); err != nil {
			done(nil, err)
			return
		}
		if userID == ExpiredUserID {
			done(nil, authretry.ErrSessionExpired)
			return
		}
		done([]model.Post{
			{ID: fmt.Sprintf("%s-1", userID), UserID: userID, Title: "Post 1", Body: "stub"},
			{ID: fmt.Sprintf("%s-2", userID), UserID: userID, Title: "Post 2", Body: "stub"},
		}, nil)
	}()
}

// FetchComments 总是返回一条评论。
func (s *Stub) FetchComments(ctx context.Context, commentID string, done authretry.Callback[[]model.Comment]) {
	s.commentCalls.Add(1)
	go func() {
		if err := s.wait(ctx); err != nil {
			done(nil, err)
			return
		}
		done([]model.Comment{{ID: commentID, PostID: "1", Author: "stub", Body: "Comment 1"}}, nil)
	}()
}

// Calls 返回动态与评论接口各自的调用次数。
func (s *Stub) Calls() (posts, comments int64) {
	return s.postCalls.Load(), s.commentCalls.Load()
}

func (s *Stub) wait(ctx context.Context) error {
	if s.Delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(s.Delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
