package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dnslin/sessionretry/core/authretry"
	"github.com/dnslin/sessionretry/core/logger"
)

// Client 为统一 HTTP 客户端封装。
type Client struct {
	HTTP      *http.Client
	Prepare   PrepareChain
	Retry     RetryPolicy
	Logger    logger.Logger
	authCodes map[string]struct{}
	session   *authretry.Invoker
}

// Option 配置客户端。
type Option func(*Client)

// WithHTTPClient 自定义 http.Client。
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.HTTP = httpClient
	}
}

// WithRetryPolicy 设置瞬时错误（网络、5xx）的重试策略。
func WithRetryPolicy(policy RetryPolicy) Option {
	return func(c *Client) {
		c.Retry = policy
	}
}

// WithLogger 注入日志。
func WithLogger(l logger.Logger) Option {
	return func(c *Client) {
		c.Logger = l
	}
}

// WithMiddlewares 设置请求中间件链。
func WithMiddlewares(mw ...Middleware) Option {
	return func(c *Client) {
		c.Prepare = append(c.Prepare, mw...)
	}
}

// WithAuthCodes 替换视为会话过期的业务错误码。
func WithAuthCodes(codes ...string) Option {
	return func(c *Client) {
		c.authCodes = make(map[string]struct{}, len(codes))
		for _, code := range codes {
			c.authCodes[code] = struct{}{}
		}
	}
}

// WithSessionRefresh 让 Do 在会话过期时经 inv 刷新并重发一次请求。
func WithSessionRefresh(inv *authretry.Invoker) Option {
	return func(c *Client) {
		c.session = inv
	}
}

// DefaultAuthCodes 默认视为会话过期的业务错误码。
func DefaultAuthCodes() []string {
	return []string{
		"SESSION_EXPIRED",
		"TOKEN_EXPIRED",
		"InvalidAccessToken",
	}
}

// NewClient 创建带默认重试的客户端。
func NewClient(opts ...Option) *Client {
	client := &Client{
		HTTP:    &http.Client{Timeout: 30 * time.Second},
		Prepare: PrepareChain{},
		Logger:  logger.Nop{},
	}
	client.Retry = NewExponentialBackoffRetry(DefaultRetryConfig())
	WithAuthCodes(DefaultAuthCodes()...)(client)
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	if client.HTTP == nil {
		client.HTTP = &http.Client{}
	}
	client.Logger = logger.OrNop(client.Logger)
	return client
}

// Use 添加中间件。
func (c *Client) Use(mw ...Middleware) {
	c.Prepare = append(c.Prepare, mw...)
}

// Do 发送请求并按需解码 JSON。瞬时错误按 Retry 重试；
// 会话过期返回匹配 authretry.ErrSessionExpired 的错误，配置了 WithSessionRefresh 时刷新后重发一次。
func (c *Client) Do(req *http.Request, out any) error {
	if req == nil {
		return errors.New("httpclient: 请求为空")
	}
	if c.HTTP == nil {
		return errors.New("httpclient: http.Client 未配置")
	}
	if c.session == nil {
		return c.send(req, out, 0)
	}
	sent := 0
	_, err := authretry.Do(req.Context(), c.session, func(context.Context) (struct{}, error) {
		first := sent
		sent++
		return struct{}{}, c.send(req, out, first)
	})
	return err
}

// send 执行一次逻辑请求（含瞬时错误重试）。attempt 非 0 时请求体需经 GetBody 重放。
func (c *Client) send(req *http.Request, out any, attempt int) error {
	retries := 0
	for {
		clonedReq, cloneErr := c.cloneRequest(req, attempt)
		if cloneErr != nil {
			return cloneErr
		}
		resp, err := c.execute(clonedReq, out)
		if err == nil {
			return nil
		}
		if resp != nil && resp.Body != nil {
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
		}
		if c.isAuth(err) {
			c.Logger.Debugf("httpclient: %s %s 会话过期: %v", req.Method, req.URL.Path, err)
			return authretry.SessionExpired(err)
		}
		if c.Retry == nil {
			return err
		}
		retry, wait := c.Retry.ShouldRetry(clonedReq, resp, err, retries)
		if !retry {
			return err
		}
		retries++
		attempt++
		if err := sleep(req.Context(), wait); err != nil {
			return err
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (c *Client) execute(req *http.Request, out any) (*http.Response, error) {
	if c.Prepare != nil {
		if err := c.Prepare.Apply(req); err != nil {
			return nil, err
		}
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, &NetworkError{Err: err}
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		if resp.StatusCode >= http.StatusBadRequest {
			return resp, statusToErr(resp.StatusCode)
		}
		return resp, nil
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusInternalServerError {
		return resp, statusToErr(resp.StatusCode)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		var ec ErrCode
		if decodeErr := json.NewDecoder(resp.Body).Decode(&ec); decodeErr == nil {
			ec.Status = resp.StatusCode
			if ec.Message == "" {
				ec.Message = http.StatusText(resp.StatusCode)
			}
			return resp, &ec
		}
		return resp, statusToErr(resp.StatusCode)
	}

	dec := json.NewDecoder(resp.Body)
	dec.UseNumber() // 保留数字精度
	if decodeErr := dec.Decode(out); decodeErr != nil {
		if decodeErr == io.EOF {
			// 空响应体，视为成功
			return resp, nil
		}
		return resp, &DecodeError{Status: resp.StatusCode, Err: decodeErr}
	}
	return resp, nil
}

func (c *Client) isAuth(err error) bool {
	var ec *ErrCode
	if !errors.As(err, &ec) {
		return false
	}
	if ec.Status == http.StatusUnauthorized {
		return true
	}
	if ec.Code == "" {
		return false
	}
	_, ok := c.authCodes[ec.Code]
	return ok
}

func (c *Client) cloneRequest(req *http.Request, attempt int) (*http.Request, error) {
	cloned := req.Clone(req.Context())
	cloned.GetBody = req.GetBody
	cloned.ContentLength = req.ContentLength
	if req.Body != nil {
		if attempt == 0 {
			cloned.Body = req.Body
		} else {
			if req.GetBody == nil {
				return nil, fmt.Errorf("httpclient: 请求体不可重试")
			}
			body, err := req.GetBody()
			if err != nil {
				return nil, err
			}
			cloned.Body = body
		}
	}
	return cloned, nil
}
