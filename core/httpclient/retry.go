package httpclient

import (
	"errors"
	"net/http"
	"time"

	"github.com/dnslin/sessionretry/core/logger"
)

// RetryPolicy 定义瞬时错误的重试策略。会话过期不经过这里，由 authretry 处理。
type RetryPolicy interface {
	ShouldRetry(req *http.Request, resp *http.Response, err error, attempt int) (bool, time.Duration)
}

// RetryConfig 配置指数退避重试。
type RetryConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Logger     logger.Logger
}

// ExponentialBackoffRetry 实现指数退避重试。
type ExponentialBackoffRetry struct {
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
	logger     logger.Logger
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: 3,
		BaseDelay:  200 * time.Millisecond,
		MaxDelay:   2 * time.Second,
	}
}

// NewExponentialBackoffRetry 创建重试策略。
func NewExponentialBackoffRetry(cfg RetryConfig) *ExponentialBackoffRetry {
	return &ExponentialBackoffRetry{
		maxRetries: cfg.MaxRetries,
		baseDelay:  cfg.BaseDelay,
		maxDelay:   cfg.MaxDelay,
		logger:     logger.OrNop(cfg.Logger),
	}
}

// ShouldRetry 网络错误与 5xx 重试，其余（含 4xx、解码失败）不重试。
func (r *ExponentialBackoffRetry) ShouldRetry(req *http.Request, resp *http.Response, err error, attempt int) (bool, time.Duration) {
	if r == nil {
		return false, 0
	}
	if attempt >= r.maxRetries {
		return false, 0
	}
	delay := r.backoff(attempt)

	if resp != nil && resp.StatusCode >= http.StatusInternalServerError {
		r.logger.Debugf("服务端错误，第 %d 次重试", attempt+1)
		return true, delay
	}

	var netErr *NetworkError
	if errors.As(err, &netErr) {
		r.logger.Debugf("网络错误，第 %d 次重试", attempt+1)
		return true, delay
	}

	var ec *ErrCode
	if errors.As(err, &ec) && ec.Status >= http.StatusInternalServerError {
		r.logger.Debugf("服务端错误(code=%d)，第 %d 次重试", ec.Status, attempt+1)
		return true, delay
	}
	return false, 0
}

func (r *ExponentialBackoffRetry) backoff(attempt int) time.Duration {
	base := r.baseDelay
	if base <= 0 {
		base = 200 * time.Millisecond
	}
	max := r.maxDelay
	if max <= 0 {
		max = 2 * time.Second
	}
	delay := base << attempt
	if delay > max || delay <= 0 {
		delay = max
	}
	return delay
}
