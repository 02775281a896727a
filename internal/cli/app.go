package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/dnslin/sessionretry/core/auth"
	"github.com/dnslin/sessionretry/core/authretry"
	"github.com/dnslin/sessionretry/core/config"
	"github.com/dnslin/sessionretry/core/feed"
	"github.com/dnslin/sessionretry/core/httpclient"
	"github.com/dnslin/sessionretry/core/logger"
	"github.com/dnslin/sessionretry/core/metrics"
	"github.com/dnslin/sessionretry/core/store"
)

// app 把配置装配成可用的 feed.Service。
type app struct {
	service *feed.Service
	manager *auth.Manager
	closers []func() error
}

func newApp(cfg *config.Config, l logger.Logger) (_ *app, err error) {
	a := &app{}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()
	st, err := a.sessionStore(cfg)
	if err != nil {
		return nil, err
	}

	// 登录与刷新使用独立的 httpclient，不经过会话刷新
	plain := newHTTPClient(cfg, l)
	login := auth.NewLoginClient(plain,
		auth.WithLoginLogger(l),
		auth.WithLoginEndpoints(auth.EndpointsFor(cfg.API.BaseURL)),
	)
	creds := auth.Credentials{Username: cfg.Auth.Username, Password: cfg.Auth.Password}

	a.manager = auth.NewManager(auth.WithManagerLogger(l), auth.WithCoalescing(!cfg.Auth.DisableCoalesce))
	if err := a.manager.AddAccount(cfg.Auth.Account, auth.AccountSession{
		DisplayName: cfg.Auth.Username,
		Store:       st,
		Refresher:   auth.NewTokenRefresher(login, st, creds, auth.WithRefresherLogger(l)),
	}); err != nil {
		return nil, err
	}
	provider, err := a.manager.Provider(cfg.Auth.Account)
	if err != nil {
		return nil, err
	}

	opts := []authretry.Option{
		authretry.WithRefreshPolicy(cfg.RefreshPolicy()),
		authretry.WithLogger(l),
	}
	if cfg.Metrics.Addr != "" {
		m, err := a.serveMetrics(cfg.Metrics.Addr, l)
		if err != nil {
			return nil, err
		}
		opts = append(opts, authretry.WithMetrics(m))
	}
	inv := authretry.NewInvoker(a.manager.RefreshFunc(cfg.Auth.Account), opts...)

	api := newHTTPClient(cfg, l)
	client := feed.NewClient(
		feed.WithHTTPClient(api),
		feed.WithBaseURL(cfg.API.BaseURL),
		feed.WithSessionProvider(provider),
		feed.WithLogger(l),
	)
	a.service = feed.NewService(client, inv)
	return a, nil
}

func newHTTPClient(cfg *config.Config, l logger.Logger) *httpclient.Client {
	retry := cfg.HTTPRetry()
	retry.Logger = l
	return httpclient.NewClient(
		httpclient.WithHTTPClient(&http.Client{
			Timeout:   cfg.API.Timeout,
			Transport: &debugTransport{base: http.DefaultTransport, logger: l},
		}),
		httpclient.WithRetryPolicy(httpclient.NewExponentialBackoffRetry(retry)),
		httpclient.WithLogger(l),
		httpclient.WithMiddlewares(httpclient.WithUserAgent("feedctl"), httpclient.WithRequestID()),
	)
}

func (a *app) sessionStore(cfg *config.Config) (store.SessionStore[*auth.Session], error) {
	if cfg.Store.Driver != config.DriverRedis {
		return store.NewMemoryStore[*auth.Session](), nil
	}
	opt, err := redis.ParseURL(cfg.Store.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("cli: 解析 redis_url 失败: %w", err)
	}
	rdb := redis.NewClient(opt)
	a.closers = append(a.closers, rdb.Close)
	return store.NewRedisStore[*auth.Session](rdb, cfg.Store.KeyPrefix, cfg.Auth.Account, store.WithTTL(cfg.Store.TTL)), nil
}

func (a *app) serveMetrics(addr string, l logger.Logger) (*metrics.Prometheus, error) {
	reg := prometheus.NewRegistry()
	m, err := metrics.NewPrometheus(reg, "sessionretry")
	if err != nil {
		return nil, err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Errorf("cli: metrics 服务退出: %v", err)
		}
	}()
	a.closers = append(a.closers, func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	})
	return m, nil
}

// Close 释放 redis 连接与 metrics 服务。
func (a *app) Close() error {
	var errs []error
	for _, c := range a.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
