package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore 将会话以 JSON 形式存放在 Redis 的单个 key 下。
type RedisStore[T any] struct {
	rdb     redis.UniversalClient
	key     string
	ttl     time.Duration
	timeout time.Duration
}

var _ SessionStore[int] = (*RedisStore[int])(nil)

// RedisOption 自定义 RedisStore。
type RedisOption func(*redisOptions)

type redisOptions struct {
	ttl     time.Duration
	timeout time.Duration
}

// WithTTL 设置会话 key 的过期时间，0 表示不过期。
func WithTTL(ttl time.Duration) RedisOption {
	return func(o *redisOptions) {
		o.ttl = ttl
	}
}

// WithTimeout 设置单次 Redis 操作超时。
func WithTimeout(d time.Duration) RedisOption {
	return func(o *redisOptions) {
		o.timeout = d
	}
}

// NewRedisStore 创建 RedisStore，key 由 prefix 与 accountID 组成。
func NewRedisStore[T any](rdb redis.UniversalClient, prefix, accountID string, opts ...RedisOption) *RedisStore[T] {
	o := redisOptions{timeout: 3 * time.Second}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if prefix == "" {
		prefix = "sessionretry"
	}
	return &RedisStore[T]{
		rdb:     rdb,
		key:     fmt.Sprintf("%s:session:%s", prefix, accountID),
		ttl:     o.ttl,
		timeout: o.timeout,
	}
}

// Key 返回存储使用的 Redis key。
func (s *RedisStore[T]) Key() string {
	return s.key
}

func (s *RedisStore[T]) SaveSession(session T) error {
	if isNil(session) {
		return s.ClearSession()
	}
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("store: 序列化会话失败: %w", err)
	}
	ctx, cancel := s.ctx()
	defer cancel()
	if err := s.rdb.Set(ctx, s.key, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("store: 写入 redis 失败: %w", err)
	}
	return nil
}

func (s *RedisStore[T]) LoadSession() (T, error) {
	var out T
	ctx, cancel := s.ctx()
	defer cancel()
	data, err := s.rdb.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return out, ErrNotFound
	}
	if err != nil {
		return out, fmt.Errorf("store: 读取 redis 失败: %w", err)
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("store: 解析会话失败: %w", err)
	}
	return out, nil
}

func (s *RedisStore[T]) ClearSession() error {
	ctx, cancel := s.ctx()
	defer cancel()
	if err := s.rdb.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("store: 删除 redis 会话失败: %w", err)
	}
	return nil
}

func (s *RedisStore[T]) ctx() (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(context.Background())
	}
	return context.WithTimeout(context.Background(), s.timeout)
}
