// Package cache 键值后端抽象接口
//
// 活跃追踪引擎对底层存储只要求一组键值能力：
// GET / SET（可带 TTL）/ DELETE / 剩余 TTL / 前缀枚举 / 批量 GET / 原生命令透传。
// 两种实现满足同一契约：
//   - memory：进程内 map，自行记录过期时间
//   - redis：网络存储，TTL 由服务端原生强制
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrRawUnsupported 后端不支持原生命令透传
var ErrRawUnsupported = errors.New("cache: raw commands not supported by this backend")

// Backend 键值后端能力契约
//
// 所有单键操作都是原子的；跨读写的组合操作由调用方自行负责。
// 实现必须可被并发调用。
type Backend interface {
	// Get 读取键值。第二个返回值为 false 表示键不存在。
	Get(ctx context.Context, key string) (string, bool, error)

	// Set 写入键值。ttl > 0 时设置/重置过期；ttl <= 0 表示永不过期。
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// Delete 删除键。键不存在时为空操作。
	Delete(ctx context.Context, key string) error

	// TTL 返回键的剩余存活时间。键不存在、无 TTL 或不可知时返回 <= 0。
	TTL(ctx context.Context, key string) (time.Duration, error)

	// Keys 枚举匹配模式的键，模式为前缀式（如 "activity_tracker:session:*"）。
	Keys(ctx context.Context, pattern string) ([]string, error)

	// MGet 批量读取，结果与 keys 顺序一致，nil 表示对应键不存在。
	MGet(ctx context.Context, keys []string) ([]*string, error)

	// Raw 原生命令透传，仅在高层 API 未覆盖时使用。
	// 不支持的后端返回 ErrRawUnsupported。
	Raw(ctx context.Context, args ...interface{}) (interface{}, error)

	// Close 释放后端资源
	Close() error
}
