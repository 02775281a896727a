package feed

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/dnslin/sessionretry/core/model"
)

// PostsResult 是批量获取中单个用户的结果。
type PostsResult struct {
	UserID string
	Posts  []model.Post
	Err    error
}

// PostsForUsers 以最多 limit 个并发获取多个用户的动态，结果顺序与 userIDs 一致。
// 单个用户失败不影响其他用户，会话过期引发的刷新在同一账号上会被合并。
func (s *Service) PostsForUsers(ctx context.Context, userIDs []string, limit int) []PostsResult {
	if limit <= 0 {
		limit = 3
	}
	results := make([]PostsResult, len(userIDs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, id := range userIDs {
		g.Go(func() error {
			posts, err := s.Posts(gctx, id)
			results[i] = PostsResult{UserID: id, Posts: posts, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return results
}
