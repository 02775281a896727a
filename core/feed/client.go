package feed

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/dnslin/sessionretry/core/auth"
	"github.com/dnslin/sessionretry/core/authretry"
	"github.com/dnslin/sessionretry/core/httpclient"
	"github.com/dnslin/sessionretry/core/logger"
	"github.com/dnslin/sessionretry/core/model"
)

// DefaultBaseURL 是未配置时使用的接口地址。
const DefaultBaseURL = "http://127.0.0.1:8080"

// Client 通过 HTTP 调用动态与评论接口。
type Client struct {
	http    *httpclient.Client
	session auth.SessionProvider
	logger  logger.Logger
	baseURL string
}

var _ Fetcher = (*Client)(nil)

// Option 自定义客户端配置。
type Option func(*Client)

// WithHTTPClient 注入自定义 httpclient.Client。
func WithHTTPClient(cli *httpclient.Client) Option {
	return func(c *Client) {
		if cli != nil {
			c.http = cli
		}
	}
}

// WithLogger 注入日志接口。
func WithLogger(l logger.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// WithBaseURL 替换接口地址。
func WithBaseURL(base string) Option {
	return func(c *Client) {
		if base != "" {
			c.baseURL = base
		}
	}
}

// WithSessionProvider 为每次发送注入 Authorization 头。
func WithSessionProvider(sp auth.SessionProvider) Option {
	return func(c *Client) {
		c.session = sp
	}
}

// NewClient 创建客户端。
func NewClient(opts ...Option) *Client {
	cli := &Client{
		http:    httpclient.NewClient(),
		logger:  logger.Nop{},
		baseURL: DefaultBaseURL,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(cli)
		}
	}
	cli.logger = logger.OrNop(cli.logger)
	if cli.session != nil {
		cli.http.Use(auth.BearerMiddleware(cli.session))
	}
	return cli
}

// Posts 获取用户的动态列表。
func (c *Client) Posts(ctx context.Context, userID string) ([]model.Post, error) {
	if c == nil {
		return nil, ErrClientNil
	}
	if userID == "" {
		return nil, ErrEmptyID
	}
	var rsp []model.Post
	if err := c.get(ctx, "/users/"+url.PathEscape(userID)+"/posts", &rsp); err != nil {
		return nil, wrapError("posts", err)
	}
	return rsp, nil
}

// Comments 获取评论。
func (c *Client) Comments(ctx context.Context, commentID string) ([]model.Comment, error) {
	if c == nil {
		return nil, ErrClientNil
	}
	if commentID == "" {
		return nil, ErrEmptyID
	}
	var rsp []model.Comment
	if err := c.get(ctx, "/comments/"+url.PathEscape(commentID), &rsp); err != nil {
		return nil, wrapError("comments", err)
	}
	return rsp, nil
}

// FetchPosts 是 Posts 的回调形式，done 在独立 goroutine 中调用。
func (c *Client) FetchPosts(ctx context.Context, userID string, done authretry.Callback[[]model.Post]) {
	go func() {
		done(c.Posts(ctx, userID))
	}()
}

// FetchComments 是 Comments 的回调形式，done 在独立 goroutine 中调用。
func (c *Client) FetchComments(ctx context.Context, commentID string, done authretry.Callback[[]model.Comment]) {
	go func() {
		done(c.Comments(ctx, commentID))
	}()
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, joinURL(c.baseURL, path), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	c.logger.Debugf("feed: GET %s", req.URL.Path)
	return c.http.Do(req, out)
}

func joinURL(base, path string) string {
	if base == "" {
		return path
	}
	base = strings.TrimSuffix(base, "/")
	if path == "" {
		return base
	}
	if strings.HasPrefix(path, "/") {
		return base + path
	}
	return base + "/" + path
}
