// Package memory 进程内键值后端
//
// 无 Redis 配置时的默认模式。map 由互斥锁保护，每个条目自行记录
// 过期时间，使 TTL 查询在两种部署模式下行为一致。
// 过期条目由惰性读取和后台清扫共同回收。
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"activity-tracker/internal/shared/cache"
)

// sweepInterval 后台清扫周期
const sweepInterval = time.Minute

type entry struct {
	value     string
	expiresAt time.Time // 零值表示永不过期
}

func (e entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// Store 进程内键值存储
type Store struct {
	mu      sync.RWMutex
	entries map[string]entry

	stopOnce sync.Once
	stop     chan struct{}
}

var _ cache.Backend = (*Store)(nil)

// NewStore 创建进程内存储并启动过期清扫
func NewStore() *Store {
	s := &Store{
		entries: make(map[string]entry),
		stop:    make(chan struct{}),
	}
	go s.sweepLoop()
	return s
}

func (s *Store) sweepLoop() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.sweep(time.Now())
		}
	}
}

func (s *Store) sweep(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, e := range s.entries {
		if e.expired(now) {
			delete(s.entries, key)
		}
	}
}

// Get 读取键值，过期条目视为不存在并顺手删除
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()

	if !ok {
		return "", false, nil
	}
	if e.expired(time.Now()) {
		// 两次加锁之间可能有并发 Set 复活该键，删除前重新校验
		s.mu.Lock()
		if cur, ok := s.entries[key]; ok && cur.expired(time.Now()) {
			delete(s.entries, key)
		}
		s.mu.Unlock()
		return "", false, nil
	}
	return e.value, true, nil
}

// Set 写入键值，ttl <= 0 表示永不过期
func (s *Store) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	e := entry{value: value}
	if ttl > 0 {
		e.expiresAt = time.Now().Add(ttl)
	}

	s.mu.Lock()
	s.entries[key] = e
	s.mu.Unlock()
	return nil
}

// Delete 删除键，不存在时为空操作
func (s *Store) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
	return nil
}

// TTL 返回剩余存活时间；不存在、已过期或无过期时间返回 0
func (s *Store) TTL(ctx context.Context, key string) (time.Duration, error) {
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()

	if !ok || e.expiresAt.IsZero() {
		return 0, nil
	}
	remaining := time.Until(e.expiresAt)
	if remaining <= 0 {
		return 0, nil
	}
	return remaining, nil
}

// Keys 枚举匹配前缀模式的键（仅支持尾部 * 通配）
func (s *Store) Keys(ctx context.Context, pattern string) ([]string, error) {
	prefix := strings.TrimSuffix(pattern, "*")
	now := time.Now()

	s.mu.RLock()
	defer s.mu.RUnlock()

	var keys []string
	for key, e := range s.entries {
		if strings.HasPrefix(key, prefix) && !e.expired(now) {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

// MGet 批量读取，结果与 keys 顺序一致
func (s *Store) MGet(ctx context.Context, keys []string) ([]*string, error) {
	now := time.Now()

	s.mu.RLock()
	defer s.mu.RUnlock()

	values := make([]*string, len(keys))
	for i, key := range keys {
		if e, ok := s.entries[key]; ok && !e.expired(now) {
			v := e.value
			values[i] = &v
		}
	}
	return values, nil
}

// Raw 进程内存储没有原生命令
func (s *Store) Raw(ctx context.Context, args ...interface{}) (interface{}, error) {
	return nil, cache.ErrRawUnsupported
}

// Close 停止清扫并清空存储
func (s *Store) Close() error {
	s.stopOnce.Do(func() { close(s.stop) })
	s.mu.Lock()
	s.entries = make(map[string]entry)
	s.mu.Unlock()
	return nil
}

// Len 当前存活条目数（测试用）
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
