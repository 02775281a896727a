// Package feed 提供动态与评论接口，以及把它们接入会话自动刷新的请求封装。
package feed

import (
	"context"
	"sync"

	"github.com/dnslin/sessionretry/core/authretry"
	"github.com/dnslin/sessionretry/core/model"
)

// Fetcher 以回调方式获取动态与评论，done 恰好调用一次。
type Fetcher interface {
	FetchPosts(ctx context.Context, userID string, done authretry.Callback[[]model.Post])
	FetchComments(ctx context.Context, commentID string, done authretry.Callback[[]model.Comment])
}

// PostsRequest 绑定 userID，得到可交给 authretry.Invoke 的请求。
func PostsRequest(f Fetcher, userID string) authretry.Request[[]model.Post] {
	return func(ctx context.Context, done authretry.Callback[[]model.Post]) {
		f.FetchPosts(ctx, userID, done)
	}
}

// CommentsRequest 绑定 commentID，得到可交给 authretry.Invoke 的请求。
func CommentsRequest(f Fetcher, commentID string) authretry.Request[[]model.Comment] {
	return func(ctx context.Context, done authretry.Callback[[]model.Comment]) {
		f.FetchComments(ctx, commentID, done)
	}
}

// FetchPostsAndRefreshSessionIfNeeded 只针对动态接口的手写版本：
// 首次会话过期时先 refresh，完成后再请求一次，第二次结果原样交给 done。
// refresh 失败时不再重试，done 收到 *authretry.RefreshError。
func FetchPostsAndRefreshSessionIfNeeded(ctx context.Context, f Fetcher, userID string, refresh authretry.RefreshFunc, done authretry.Callback[[]model.Post]) {
	var once sync.Once
	finish := func(posts []model.Post, err error) {
		once.Do(func() { done(posts, err) })
	}
	f.FetchPosts(ctx, userID, func(posts []model.Post, err error) {
		if authretry.KindOf(err) != authretry.KindSessionExpired {
			finish(posts, err)
			return
		}
		if refresh == nil {
			finish(posts, &authretry.RefreshError{Cause: authretry.ErrNoRefresher, Expired: err})
			return
		}
		expired := err
		refresh(ctx, func(refreshErr error) {
			if refreshErr != nil {
				finish(posts, &authretry.RefreshError{Cause: refreshErr, Expired: expired})
				return
			}
			f.FetchPosts(ctx, userID, finish)
		})
	})
}
