package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/dnslin/sessionretry/core/authretry"
	"github.com/dnslin/sessionretry/core/feed"
	"github.com/dnslin/sessionretry/core/logger"
	"github.com/dnslin/sessionretry/core/model"
)

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "使用内存 Stub 演示刷新后重试",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDemo(cmd.Context(), cmd.OutOrStdout(), logger.NewSlog(log))
	},
}

func init() {
	rootCmd.AddCommand(demoCmd)
}

func runDemo(ctx context.Context, w io.Writer, l logger.Logger) error {
	stub := &feed.Stub{}
	refresh := authretry.Sync(func(context.Context) error {
		fmt.Fprintln(w, "Refreshing session...")
		return nil
	})

	// 手写的单接口版本
	for _, userID := range []string{feed.ExpiredUserID, "456"} {
		posts, err := wait(ctx, func(done authretry.Callback[[]model.Post]) {
			feed.FetchPostsAndRefreshSessionIfNeeded(ctx, stub, userID, refresh, done)
		})
		report(w, "posts("+userID+")", len(posts), err)
	}

	// 通用 Invoker，同一个实例复用于两个接口
	inv := authretry.NewInvoker(refresh, authretry.WithLogger(l))
	posts, err := wait(ctx, func(done authretry.Callback[[]model.Post]) {
		authretry.Invoke(authretry.WithOperation(ctx, "posts"), inv, feed.PostsRequest(stub, "456"), done)
	})
	report(w, "invoke posts(456)", len(posts), err)

	comments, err := wait(ctx, func(done authretry.Callback[[]model.Comment]) {
		authretry.Invoke(authretry.WithOperation(ctx, "comments"), inv, feed.CommentsRequest(stub, "1"), done)
	})
	report(w, "invoke comments(1)", len(comments), err)
	return nil
}

func wait[T any](ctx context.Context, start func(done authretry.Callback[T])) (T, error) {
	type res struct {
		v   T
		err error
	}
	ch := make(chan res, 1)
	start(func(v T, err error) { ch <- res{v, err} })
	select {
	case r := <-ch:
		return r.v, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

func report(w io.Writer, name string, n int, err error) {
	if err != nil {
		fmt.Fprintf(w, "%s: error: %v (kind=%s)\n", name, err, authretry.KindOf(err))
		return
	}
	fmt.Fprintf(w, "%s: %d items\n", name, n)
}
