// Package config 读取 feedctl 的 YAML 配置。
package config

import (
	"fmt"
	"time"

	"github.com/dnslin/sessionretry/core/authretry"
	"github.com/dnslin/sessionretry/core/httpclient"
)

// Config 是顶层配置。
type Config struct {
	API     APIConfig     `yaml:"api"`
	Auth    AuthConfig    `yaml:"auth"`
	Retry   RetryConfig   `yaml:"retry"`
	Store   StoreConfig   `yaml:"store"`
	Log     LogConfig     `yaml:"log"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// APIConfig 描述业务接口地址。
type APIConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// AuthConfig 描述账号与刷新行为。
type AuthConfig struct {
	Account         string `yaml:"account"`
	Username        string `yaml:"username"`
	Password        string `yaml:"password"`
	RefreshPolicy   string `yaml:"refresh_policy"` // surface, retry
	DisableCoalesce bool   `yaml:"disable_coalesce"`
}

// RetryConfig 描述网络错误与 5xx 的退避重试。
// MaxRetries 未填写时取默认值，显式填 0 表示不重试。
type RetryConfig struct {
	MaxRetries *int          `yaml:"max_retries"`
	BaseDelay  time.Duration `yaml:"base_delay"`
	MaxDelay   time.Duration `yaml:"max_delay"`
}

// StoreConfig 描述会话存储。
type StoreConfig struct {
	Driver    string        `yaml:"driver"` // memory, redis
	RedisURL  string        `yaml:"redis_url"`
	KeyPrefix string        `yaml:"key_prefix"`
	TTL       time.Duration `yaml:"ttl"`
}

// LogConfig 描述日志级别。
type LogConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// MetricsConfig 描述 Prometheus 暴露地址，为空时不启动。
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

const (
	DriverMemory = "memory"
	DriverRedis  = "redis"
)

// Default 返回带默认值的配置。
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.API.BaseURL == "" {
		c.API.BaseURL = "http://127.0.0.1:8080"
	}
	if c.API.Timeout == 0 {
		c.API.Timeout = 30 * time.Second
	}
	if c.Auth.Account == "" {
		c.Auth.Account = "default"
	}
	if c.Auth.RefreshPolicy == "" {
		c.Auth.RefreshPolicy = "surface"
	}
	def := httpclient.DefaultRetryConfig()
	if c.Retry.MaxRetries == nil {
		n := def.MaxRetries
		c.Retry.MaxRetries = &n
	}
	if c.Retry.BaseDelay == 0 {
		c.Retry.BaseDelay = def.BaseDelay
	}
	if c.Retry.MaxDelay == 0 {
		c.Retry.MaxDelay = def.MaxDelay
	}
	if c.Store.Driver == "" {
		c.Store.Driver = DriverMemory
	}
	if c.Store.KeyPrefix == "" {
		c.Store.KeyPrefix = "sessionretry"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// Validate 检查取值是否合法。
func (c *Config) Validate() error {
	if _, err := ParseRefreshPolicy(c.Auth.RefreshPolicy); err != nil {
		return err
	}
	switch c.Store.Driver {
	case DriverMemory:
	case DriverRedis:
		if c.Store.RedisURL == "" {
			return fmt.Errorf("config: store.driver=redis 需要 store.redis_url")
		}
	default:
		return fmt.Errorf("config: 未知的 store.driver %q", c.Store.Driver)
	}
	if c.Retry.MaxRetries != nil && *c.Retry.MaxRetries < 0 {
		return fmt.Errorf("config: retry.max_retries 不能为负数")
	}
	return nil
}

// RefreshPolicy 返回解析后的刷新失败策略。
func (c *Config) RefreshPolicy() authretry.RefreshPolicy {
	p, _ := ParseRefreshPolicy(c.Auth.RefreshPolicy)
	return p
}

// HTTPRetry 转换为 httpclient 的退避配置。
func (c *Config) HTTPRetry() httpclient.RetryConfig {
	retry := httpclient.RetryConfig{
		MaxRetries: httpclient.DefaultRetryConfig().MaxRetries,
		BaseDelay:  c.Retry.BaseDelay,
		MaxDelay:   c.Retry.MaxDelay,
	}
	if c.Retry.MaxRetries != nil {
		retry.MaxRetries = *c.Retry.MaxRetries
	}
	return retry
}

// ParseRefreshPolicy 解析 surface / retry。
func ParseRefreshPolicy(s string) (authretry.RefreshPolicy, error) {
	switch s {
	case "", "surface":
		return authretry.SurfaceRefreshError, nil
	case "retry":
		return authretry.RetryAfterRefreshError, nil
	default:
		return authretry.SurfaceRefreshError, fmt.Errorf("config: 未知的 auth.refresh_policy %q", s)
	}
}
