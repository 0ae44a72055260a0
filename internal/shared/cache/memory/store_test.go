// Package memory 进程内后端测试
package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"activity-tracker/internal/shared/cache"
)

func newTestStore(t *testing.T) *Store {
	s := NewStore()
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_SetGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "k1", "v1", 0))

	value, ok, err := s.Get(ctx, "k1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v1", value)

	_, ok, err = s.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_Expiry(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "ephemeral", "v", 50*time.Millisecond))

	_, ok, _ := s.Get(ctx, "ephemeral")
	assert.True(t, ok)

	time.Sleep(80 * time.Millisecond)

	_, ok, _ = s.Get(ctx, "ephemeral")
	assert.False(t, ok, "expired entry must read as absent")
}

func TestStore_TTL(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "timed", "v", time.Hour))
	remaining, err := s.TTL(ctx, "timed")
	require.NoError(t, err)
	assert.Greater(t, remaining, 59*time.Minute)
	assert.LessOrEqual(t, remaining, time.Hour)

	// 无过期键与不存在的键都报告 <= 0
	require.NoError(t, s.Set(ctx, "forever", "v", 0))
	remaining, err = s.TTL(ctx, "forever")
	require.NoError(t, err)
	assert.LessOrEqual(t, remaining, time.Duration(0))

	remaining, err = s.TTL(ctx, "missing")
	require.NoError(t, err)
	assert.LessOrEqual(t, remaining, time.Duration(0))
}

// TestStore_SlidingTTL 重新 Set 满额重置过期时间
func TestStore_SlidingTTL(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "k", "1", 100*time.Millisecond))
	time.Sleep(60 * time.Millisecond)
	require.NoError(t, s.Set(ctx, "k", "2", 100*time.Millisecond))
	time.Sleep(60 * time.Millisecond)

	// 距首次写入已 120ms，但续期后仍然存活
	value, ok, _ := s.Get(ctx, "k")
	assert.True(t, ok)
	assert.Equal(t, "2", value)
}

func TestStore_Delete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "k", "v", 0))
	require.NoError(t, s.Delete(ctx, "k"))

	_, ok, _ := s.Get(ctx, "k")
	assert.False(t, ok)

	// 删除不存在的键是空操作
	assert.NoError(t, s.Delete(ctx, "k"))
}

func TestStore_Keys(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "app:session:a", "1", 0))
	require.NoError(t, s.Set(ctx, "app:session:b", "2", 0))
	require.NoError(t, s.Set(ctx, "app:bot:a", "3", 0))
	require.NoError(t, s.Set(ctx, "other:c", "4", 0))

	keys, err := s.Keys(ctx, "app:session:*")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"app:session:a", "app:session:b"}, keys)
}

// TestStore_KeysSkipsExpired 枚举不返回已过期的键
func TestStore_KeysSkipsExpired(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "app:session:live", "1", time.Hour))
	require.NoError(t, s.Set(ctx, "app:session:dead", "2", 30*time.Millisecond))
	time.Sleep(50 * time.Millisecond)

	keys, err := s.Keys(ctx, "app:session:*")
	require.NoError(t, err)
	assert.Equal(t, []string{"app:session:live"}, keys)
}

func TestStore_MGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "a", "1", 0))
	require.NoError(t, s.Set(ctx, "c", "3", 0))

	values, err := s.MGet(ctx, []string{"a", "b", "c"})
	require.NoError(t, err)
	require.Len(t, values, 3)
	require.NotNil(t, values[0])
	assert.Equal(t, "1", *values[0])
	assert.Nil(t, values[1], "missing key yields nil in order")
	require.NotNil(t, values[2])
	assert.Equal(t, "3", *values[2])
}

func TestStore_RawUnsupported(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Raw(context.Background(), "TTL", "some-key")
	assert.ErrorIs(t, err, cache.ErrRawUnsupported)
}

// TestStore_ExpiredGetKeepsConcurrentSet 读到过期条目的 Get 不得误删
// 与之并发写入的新条目
func TestStore_ExpiredGetKeepsConcurrentSet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	expired := entry{value: "old", expiresAt: time.Now().Add(-time.Minute)}

	for i := 0; i < 1000; i++ {
		s.mu.Lock()
		s.entries["k"] = expired
		s.mu.Unlock()

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			s.Get(ctx, "k")
		}()
		go func() {
			defer wg.Done()
			s.Set(ctx, "k", "fresh", time.Hour)
		}()
		wg.Wait()

		value, ok, err := s.Get(ctx, "k")
		require.NoError(t, err)
		require.True(t, ok, "round %d: fresh entry erased by expired-read cleanup", i)
		require.Equal(t, "fresh", value)
	}
}

func TestStore_Sweep(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "a", "1", 10*time.Millisecond))
	require.NoError(t, s.Set(ctx, "b", "2", 0))
	time.Sleep(20 * time.Millisecond)

	s.sweep(time.Now())
	assert.Equal(t, 1, s.Len())
}
