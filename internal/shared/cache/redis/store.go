// Package redis Redis 键值后端实现
//
// 配置了 Redis 端点时启用。TTL 由服务端原生强制，
// 键枚举使用 KEYS 模式查询，批量读取使用 MGET。
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"activity-tracker/internal/shared/cache"
)

// Store Redis 键值存储
type Store struct {
	client *redis.Client
}

var _ cache.Backend = (*Store)(nil)

// NewStore 创建 Redis 存储实例
func NewStore(addr, password string, db int) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Store{client: client}, nil
}

// NewStoreFromURL 从 URL 创建 Redis 存储实例
func NewStoreFromURL(redisURL string) (*Store, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Store{client: client}, nil
}

// NewStoreFromClient 从现有 Redis 客户端创建存储实例
func NewStoreFromClient(client *redis.Client) *Store {
	return &Store{client: client}
}

// Get 读取键值
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := s.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// Set 写入键值，ttl <= 0 表示永不过期
func (s *Store) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = 0 // go-redis: 0 为无过期
	}
	return s.client.Set(ctx, key, value, ttl).Err()
}

// Delete 删除键
func (s *Store) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, key).Err()
}

// TTL 返回剩余存活时间
//
// Redis 对不存在的键返回 -2、无过期的键返回 -1，统一折叠为 0。
func (s *Store) TTL(ctx context.Context, key string) (time.Duration, error) {
	remaining, err := s.client.TTL(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if remaining < 0 {
		return 0, nil
	}
	return remaining, nil
}

// Keys 枚举匹配模式的键
func (s *Store) Keys(ctx context.Context, pattern string) ([]string, error) {
	return s.client.Keys(ctx, pattern).Result()
}

// MGet 批量读取，结果与 keys 顺序一致
func (s *Store) MGet(ctx context.Context, keys []string) ([]*string, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	results, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	values := make([]*string, len(keys))
	for i, result := range results {
		if result == nil {
			continue
		}
		if str, ok := result.(string); ok {
			values[i] = &str
		}
	}
	return values, nil
}

// Raw 原生命令透传
func (s *Store) Raw(ctx context.Context, args ...interface{}) (interface{}, error) {
	return s.client.Do(ctx, args...).Result()
}

// Close 关闭 Redis 连接
func (s *Store) Close() error {
	return s.client.Close()
}

// Client 返回底层 Redis 客户端
func (s *Store) Client() *redis.Client {
	return s.client
}
