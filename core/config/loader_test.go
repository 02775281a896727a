package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dnslin/sessionretry/core/authretry"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("写入临时文件失败: %v", err)
	}
	return path
}

func TestLoad_EnvSubstitution(t *testing.T) {
	t.Setenv("TEST_FEED_PASSWORD", "s3cret")
	path := writeFile(t, "config.yaml", `
api:
  base_url: http://api.local
  timeout: 5s
auth:
  username: alice
  password: ${TEST_FEED_PASSWORD}
  refresh_policy: retry
retry:
  max_retries: 1
  base_delay: 50ms
store:
  driver: redis
  redis_url: redis://localhost:6379/0
  ttl: 1h
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("加载失败: %v", err)
	}
	if cfg.Auth.Password != "s3cret" {
		t.Fatalf("环境变量未展开，实际 %q", cfg.Auth.Password)
	}
	if cfg.API.Timeout != 5*time.Second || cfg.Store.TTL != time.Hour {
		t.Fatalf("时长解析错误: %+v %+v", cfg.API, cfg.Store)
	}
	if cfg.RefreshPolicy() != authretry.RetryAfterRefreshError {
		t.Fatalf("刷新策略应为 retry，实际 %s", cfg.RefreshPolicy())
	}
	retry := cfg.HTTPRetry()
	if retry.MaxRetries != 1 || retry.BaseDelay != 50*time.Millisecond || retry.MaxDelay != 2*time.Second {
		t.Fatalf("重试配置不符合预期: %+v", retry)
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("默认配置加载失败: %v", err)
	}
	if cfg.Store.Driver != DriverMemory || cfg.Log.Level != "info" || cfg.Auth.Account != "default" {
		t.Fatalf("默认值不符合预期: %+v", cfg)
	}
	if cfg.RefreshPolicy() != authretry.SurfaceRefreshError {
		t.Fatalf("默认刷新策略应为 surface")
	}
}

func TestLoad_ZeroRetriesKept(t *testing.T) {
	cfg, err := Parse([]byte("retry:\n  max_retries: 0\n"))
	if err != nil {
		t.Fatalf("解析失败: %v", err)
	}
	if got := cfg.HTTPRetry().MaxRetries; got != 0 {
		t.Fatalf("显式 max_retries: 0 应关闭重试，实际 %d", got)
	}

	cfg, err = Parse([]byte("retry:\n  base_delay: 10ms\n"))
	if err != nil {
		t.Fatalf("解析失败: %v", err)
	}
	if got := cfg.HTTPRetry().MaxRetries; got != 3 {
		t.Fatalf("未填写 max_retries 应取默认值 3，实际 %d", got)
	}
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string]string{
		"policy":  "auth:\n  refresh_policy: sometimes\n",
		"driver":  "store:\n  driver: etcd\n",
		"redis":   "store:\n  driver: redis\n",
		"retries": "retry:\n  max_retries: -1\n",
		"yaml":    "api: [",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Parse([]byte(content)); err == nil {
				t.Fatalf("非法配置应返回错误")
			}
		})
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("文件不存在应返回错误")
	}
}

func TestLoadEnv(t *testing.T) {
	path := writeFile(t, "test.env", "TEST_FEED_FROM_DOTENV=hello\n")
	t.Setenv("TEST_FEED_FROM_DOTENV", "")
	os.Unsetenv("TEST_FEED_FROM_DOTENV")
	if err := LoadEnv(path); err != nil {
		t.Fatalf("加载 env 文件失败: %v", err)
	}
	if got := os.Getenv("TEST_FEED_FROM_DOTENV"); got != "hello" {
		t.Fatalf("env 文件未生效，实际 %q", got)
	}
	if err := LoadEnv(filepath.Join(t.TempDir(), "missing.env")); err == nil {
		t.Fatalf("指定的 env 文件不存在应返回错误")
	}
}
