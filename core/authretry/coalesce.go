package authretry

import (
	"context"

	"golang.org/x/sync/singleflight"
)

// Coalescer 合并同一 key 上并发的刷新，所有等待者共享一次刷新结果。
type Coalescer struct {
	group singleflight.Group
}

// NewCoalescer 创建 Coalescer。
func NewCoalescer() *Coalescer {
	return &Coalescer{}
}

// Wrap 返回合并后的 RefreshFunc。
// 实际刷新使用首个调用方的 ctx（去掉取消），单个调用方取消只影响它自己的 done。
func (c *Coalescer) Wrap(key string, refresh RefreshFunc) RefreshFunc {
	if refresh == nil {
		return nil
	}
	return func(ctx context.Context, done func(error)) {
		ch := c.group.DoChan(key, func() (any, error) {
			return nil, Wait(context.WithoutCancel(ctx), refresh)
		})
		go func() {
			select {
			case res := <-ch:
				done(res.Err)
			case <-ctx.Done():
				done(ctx.Err())
			}
		}()
	}
}

// Forget 丢弃 key 上进行中的刷新，下一次调用会重新发起。
func (c *Coalescer) Forget(key string) {
	c.group.Forget(key)
}
