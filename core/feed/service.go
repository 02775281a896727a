package feed

import (
	"context"

	"github.com/dnslin/sessionretry/core/authretry"
	"github.com/dnslin/sessionretry/core/model"
)

// Service 为 Fetcher 提供阻塞式接口，每次调用都经过 Invoker 的刷新重试。
type Service struct {
	fetcher Fetcher
	inv     *authretry.Invoker
}

// NewService 创建 Service。inv 为 nil 时会话过期直接返回刷新错误。
func NewService(f Fetcher, inv *authretry.Invoker) *Service {
	return &Service{fetcher: f, inv: inv}
}

// Posts 获取用户动态。
func (s *Service) Posts(ctx context.Context, userID string) ([]model.Post, error) {
	ctx = authretry.WithOperation(ctx, "posts")
	return authretry.Do(ctx, s.inv, func(ctx context.Context) ([]model.Post, error) {
		return await(ctx, PostsRequest(s.fetcher, userID))
	})
}

// Comments 获取评论。
func (s *Service) Comments(ctx context.Context, commentID string) ([]model.Comment, error) {
	ctx = authretry.WithOperation(ctx, "comments")
	return authretry.Do(ctx, s.inv, func(ctx context.Context) ([]model.Comment, error) {
		return await(ctx, CommentsRequest(s.fetcher, commentID))
	})
}

type result[T any] struct {
	value T
	err   error
}

// await 发起回调式请求并等待结果或 ctx 结束。
func await[T any](ctx context.Context, req authretry.Request[T]) (T, error) {
	ch := make(chan result[T], 1)
	req(ctx, func(v T, err error) {
		select {
		case ch <- result[T]{value: v, err: err}:
		default:
		}
	})
	select {
	case r := <-ch:
		return r.value, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
