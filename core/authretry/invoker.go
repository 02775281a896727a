// Package authretry 在请求返回会话过期时先刷新会话，再重试一次原请求。
//
// 请求与刷新均为回调风格的异步操作：
//
//	inv := authretry.NewInvoker(refresh)
//	authretry.Invoke(ctx, inv, feed.PostsRequest(f, "42"), func(posts []model.Post, err error) {
//	    // 恰好调用一次
//	})
//
// 每次 Invoke 至多刷新一次、重试一次；重试后再次过期会原样交给 completion。
package authretry

import (
	"context"

	"github.com/google/uuid"

	"github.com/dnslin/sessionretry/core/logger"
)

// Callback 接收请求的最终结果。
type Callback[T any] func(result T, err error)

// Request 是一次性的异步请求，必须恰好调用 done 一次。
type Request[T any] func(ctx context.Context, done Callback[T])

// RefreshFunc 是一次性的异步刷新，完成时调用 done，err 为 nil 表示刷新成功。
type RefreshFunc func(ctx context.Context, done func(err error))

// RefreshPolicy 决定刷新失败后的处理方式。
type RefreshPolicy int

const (
	// SurfaceRefreshError 刷新失败时不再重试，completion 收到 *RefreshError。
	SurfaceRefreshError RefreshPolicy = iota
	// RetryAfterRefreshError 忽略刷新失败，照常重试一次。
	RetryAfterRefreshError
)

func (p RefreshPolicy) String() string {
	if p == RetryAfterRefreshError {
		return "retry"
	}
	return "surface"
}

// Metrics 记录刷新与请求结果。
type Metrics interface {
	ObserveRefresh(operation string, err error)
	ObserveOutcome(operation string, kind Kind, retried bool)
}

type nopMetrics struct{}

func (nopMetrics) ObserveRefresh(string, error)      {}
func (nopMetrics) ObserveOutcome(string, Kind, bool) {}

// Invoker 保存刷新函数与策略，可被多个端点、多个并发调用共享；它本身不持有调用状态。
type Invoker struct {
	refresh  RefreshFunc
	policy   RefreshPolicy
	classify func(error) bool
	logger   logger.Logger
	metrics  Metrics
}

// Option 配置 Invoker。
type Option func(*Invoker)

// WithRefreshPolicy 设置刷新失败策略。
func WithRefreshPolicy(p RefreshPolicy) Option {
	return func(inv *Invoker) {
		inv.policy = p
	}
}

// WithClassifier 追加会话过期判定，用于识别未包装成 ErrSessionExpired 的传输层错误。
func WithClassifier(fn func(error) bool) Option {
	return func(inv *Invoker) {
		inv.classify = fn
	}
}

// WithLogger 注入日志。
func WithLogger(l logger.Logger) Option {
	return func(inv *Invoker) {
		inv.logger = l
	}
}

// WithMetrics 注入指标。
func WithMetrics(m Metrics) Option {
	return func(inv *Invoker) {
		inv.metrics = m
	}
}

// NewInvoker 创建 Invoker。refresh 为 nil 时，遇到会话过期按刷新失败处理（错误为 ErrNoRefresher）。
func NewInvoker(refresh RefreshFunc, opts ...Option) *Invoker {
	inv := &Invoker{
		refresh: refresh,
		policy:  SurfaceRefreshError,
		logger:  logger.Nop{},
		metrics: nopMetrics{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(inv)
		}
	}
	if inv.refresh == nil {
		inv.refresh = func(_ context.Context, done func(error)) { done(ErrNoRefresher) }
	}
	inv.logger = logger.OrNop(inv.logger)
	if inv.metrics == nil {
		inv.metrics = nopMetrics{}
	}
	return inv
}

// Kind 按 Invoker 的判定规则对错误分类。
func (inv *Invoker) Kind(err error) Kind {
	kind := KindOf(err)
	if kind == KindOther && inv.classify != nil && inv.classify(err) {
		return KindSessionExpired
	}
	return kind
}

type operationKey struct{}

// WithOperation 为调用打上操作名（如 posts、comments），用于日志与指标。
func WithOperation(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, operationKey{}, name)
}

// OperationFrom 读取操作名，未设置时为 "default"。
func OperationFrom(ctx context.Context) string {
	if ctx != nil {
		if name, ok := ctx.Value(operationKey{}).(string); ok && name != "" {
			return name
		}
	}
	return "default"
}

// Invoke 执行 request；首次返回会话过期时先刷新，刷新完成后再发起一次 request。
// completion 在所有分支下恰好调用一次。inv 为 nil 时使用无刷新函数的默认 Invoker。
func Invoke[T any](ctx context.Context, inv *Invoker, request Request[T], completion Callback[T]) {
	if ctx == nil {
		ctx = context.Background()
	}
	if inv == nil {
		inv = NewInvoker(nil)
	}
	c := &call[T]{
		ctx:        ctx,
		inv:        inv,
		id:         uuid.NewString(),
		op:         OperationFrom(ctx),
		request:    request,
		completion: completion,
	}
	c.start()
}

// RequestAndRefreshIfNeeded 是 Invoke 的函数式入口，使用默认策略的 Invoker。
func RequestAndRefreshIfNeeded[T any](ctx context.Context, request Request[T], refresh RefreshFunc, completion Callback[T]) {
	Invoke(ctx, NewInvoker(refresh), request, completion)
}

type call[T any] struct {
	ctx        context.Context
	inv        *Invoker
	id         string
	op         string
	request    Request[T]
	completion Callback[T]

	m           machine
	firstResult T
	firstErr    error
}

func (c *call[T]) start() {
	c.inv.logger.Debugf("authretry[%s] op=%s state=%s", c.id, c.op, StateAwaitingFirstAttempt)
	c.request(c.ctx, c.onFirstAttempt)
}

func (c *call[T]) onFirstAttempt(result T, err error) {
	kind := c.inv.Kind(err)
	if kind != KindSessionExpired {
		if !c.m.advance(StateAwaitingFirstAttempt, StateDone) {
			c.duplicate("first attempt")
			return
		}
		c.finish(result, err, kind, false)
		return
	}
	if !c.m.advance(StateAwaitingFirstAttempt, StateAwaitingRefresh) {
		c.duplicate("first attempt")
		return
	}
	c.firstResult, c.firstErr = result, err
	c.inv.logger.Infof("authretry[%s] op=%s 会话过期，刷新后重试", c.id, c.op)
	c.inv.refresh(c.ctx, c.onRefreshDone)
}

func (c *call[T]) onRefreshDone(err error) {
	if err != nil && c.inv.policy == SurfaceRefreshError {
		if !c.m.advance(StateAwaitingRefresh, StateDone) {
			c.duplicate("refresh")
			return
		}
		c.inv.metrics.ObserveRefresh(c.op, err)
		c.inv.logger.Errorf("authretry[%s] op=%s 刷新失败: %v", c.id, c.op, err)
		c.finish(c.firstResult, &RefreshError{Cause: err, Expired: c.firstErr}, KindOther, false)
		return
	}
	if !c.m.advance(StateAwaitingRefresh, StateAwaitingSecondAttempt) {
		c.duplicate("refresh")
		return
	}
	c.inv.metrics.ObserveRefresh(c.op, err)
	if err != nil {
		c.inv.logger.Warnf("authretry[%s] op=%s 刷新失败，按策略继续重试: %v", c.id, c.op, err)
	}
	c.inv.logger.Debugf("authretry[%s] op=%s state=%s", c.id, c.op, StateAwaitingSecondAttempt)
	c.request(c.ctx, c.onSecondAttempt)
}

func (c *call[T]) onSecondAttempt(result T, err error) {
	if !c.m.advance(StateAwaitingSecondAttempt, StateDone) {
		c.duplicate("second attempt")
		return
	}
	c.finish(result, err, c.inv.Kind(err), true)
}

func (c *call[T]) finish(result T, err error, kind Kind, retried bool) {
	c.inv.metrics.ObserveOutcome(c.op, kind, retried)
	c.inv.logger.Debugf("authretry[%s] op=%s state=%s kind=%s retried=%t", c.id, c.op, StateDone, kind, retried)
	if c.completion != nil {
		c.completion(result, err)
	}
}

func (c *call[T]) duplicate(stage string) {
	c.inv.logger.Warnf("authretry[%s] op=%s 忽略重复回调 stage=%s state=%s", c.id, c.op, stage, c.m.current())
}

// Sync 将同步刷新函数适配为 RefreshFunc。
func Sync(fn func(ctx context.Context) error) RefreshFunc {
	if fn == nil {
		return nil
	}
	return func(ctx context.Context, done func(error)) {
		done(fn(ctx))
	}
}

// Wait 阻塞直到 refresh 完成或 ctx 结束。
func Wait(ctx context.Context, refresh RefreshFunc) error {
	if refresh == nil {
		return ErrNoRefresher
	}
	ch := make(chan error, 1)
	refresh(ctx, func(err error) {
		select {
		case ch <- err:
		default:
		}
	})
	select {
	case err := <-ch:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

type outcome[T any] struct {
	result T
	err    error
}

// Do 是 Invoke 的阻塞形式：fn 同步执行，会话过期时刷新后再执行一次。
// ctx 结束时立即返回 ctx.Err()，已发出的调用仍会在后台完成。
func Do[T any](ctx context.Context, inv *Invoker, fn func(ctx context.Context) (T, error)) (T, error) {
	ch := make(chan outcome[T], 1)
	Invoke(ctx, inv, func(ctx context.Context, done Callback[T]) {
		done(fn(ctx))
	}, func(result T, err error) {
		ch <- outcome[T]{result: result, err: err}
	})
	select {
	case out := <-ch:
		return out.result, out.err
	case <-ctx.Done():
		select {
		case out := <-ch:
			return out.result, out.err
		default:
		}
		var zero T
		return zero, ctx.Err()
	}
}
