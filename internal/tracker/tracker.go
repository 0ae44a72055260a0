// Package tracker 会话活跃追踪引擎
//
// 核心职责：
//   - 维护每个会话的活跃计数（滑动 TTL，每次事件满额续期）
//   - 由剩余 TTL 反推最后用户活跃时间，避免每次事件双写
//   - 在进程内 map 与 Redis 两种后端下提供同一外部契约
//
// 错误策略：追踪是尽力而为的辅助功能，所有公开读写操作把后端失败
// 折叠为安全默认值（读返回 nil、写返回原计数、枚举返回空表），
// 同时记录日志与 swallowed_failures 指标，绝不向消息处理链路抛错。
package tracker

import (
	"context"
	"strconv"
	"time"

	"activity-tracker/internal/metrics"
	"activity-tracker/internal/model"
	"activity-tracker/internal/shared/cache"
	"activity-tracker/pkg/logging"
)

// Tracker 活跃追踪引擎
//
// 引擎自身不加锁，依赖后端单键操作的原子性。Add 的读-改-写不是
// 原子的：同一会话并发 Add 可能丢失计数，属已接受的既有语义。
type Tracker struct {
	backend cache.Backend
	window  time.Duration
	log     *logging.Logger
	metrics *metrics.Metrics
}

// New 创建追踪引擎
//
// window 为活跃窗口（会话键 TTL）。metrics 可为 nil。
func New(backend cache.Backend, window time.Duration, log *logging.Logger, m *metrics.Metrics) *Tracker {
	if log == nil {
		log = logging.Default("tracker")
	}
	return &Tracker{
		backend: backend,
		window:  window,
		log:     log,
		metrics: m,
	}
}

// Window 返回配置的活跃窗口
func (t *Tracker) Window() time.Duration {
	return t.window
}

// remainingTTL 读取会话键剩余 TTL
//
// 查询失败时退回配置窗口（降级为"刚刚活跃"而非整个读取失败）；
// 成功读到 <= 0 则按未知处理，由调用方置空派生时间。
func (t *Tracker) remainingTTL(ctx context.Context, key string) time.Duration {
	remaining, err := t.backend.TTL(ctx, key)
	if err != nil {
		t.log.CacheOpLog("ttl", key, err)
		t.metrics.RecordSwallowedFailure("ttl")
		return t.window
	}
	return remaining
}

// Get 读取一个会话的活跃记录，缓存未命中返回 nil
//
// 未命中不等于"被追踪但不活跃"，而是"从未活跃或已过期淘汰"。
func (t *Tracker) Get(ctx context.Context, id model.SessionIdentity) *model.ActivityRecord {
	sessionKey := id.SessionKey()

	value, ok, err := t.backend.Get(ctx, sessionKey)
	if err != nil {
		t.log.CacheOpLog("get", sessionKey, err)
		t.metrics.RecordSwallowedFailure("get")
		return nil
	}
	if !ok {
		return nil
	}

	count, _ := strconv.Atoi(value)
	remaining := t.remainingTTL(ctx, sessionKey)

	botValue, _, err := t.backend.Get(ctx, id.BotKey())
	if err != nil {
		t.log.CacheOpLog("get", id.BotKey(), err)
		t.metrics.RecordSwallowedFailure("get")
		botValue = ""
	}

	return model.NewRecordFromCache(id, count, remaining, t.window, botValue)
}

// Add 记录一次活跃事件，返回新计数
//
// 读当前计数（缺失视为 0）。用户事件写 count+1 并满额重置 TTL
// （滑动窗口）；机器人事件只续期会话键并把当前 epoch 写进无 TTL 的
// 机器人键，计数只统计用户事件。会话键写入失败时返回写前计数——
// 调用方无法区分"计数没变"与"写入悄悄失败"，这是既有契约的一部分。
func (t *Tracker) Add(ctx context.Context, id model.SessionIdentity, isBotEvent bool) int {
	count := 0
	if current := t.Get(ctx, id); current != nil {
		count = current.Count
	}

	newCount := count
	if !isBotEvent {
		newCount = count + 1
	}

	sessionKey := id.SessionKey()
	if err := t.backend.Set(ctx, sessionKey, strconv.Itoa(newCount), t.window); err != nil {
		t.log.CacheOpLog("set", sessionKey, err)
		t.metrics.RecordSwallowedFailure("add")
		return count
	}

	if isBotEvent {
		botKey := id.BotKey()
		if err := t.backend.Set(ctx, botKey, model.FormatBotEpoch(time.Now()), 0); err != nil {
			t.log.CacheOpLog("set", botKey, err)
			t.metrics.RecordSwallowedFailure("add_bot")
		}
		t.metrics.RecordEvent("bot")
	} else {
		t.metrics.RecordEvent("user")
	}

	return newCount
}

// Remove 删除会话的两个子键，幂等
//
// 机器人键没有 TTL，只有这里会清掉它。
func (t *Tracker) Remove(ctx context.Context, id model.SessionIdentity) {
	for _, key := range []string{id.SessionKey(), id.BotKey()} {
		if err := t.backend.Delete(ctx, key); err != nil {
			t.log.CacheOpLog("delete", key, err)
			t.metrics.RecordSwallowedFailure("remove")
		}
	}
}

// GetAll 枚举命名空间下的全部活跃会话
//
// 枚举与批量读取之间过期的键（值已为空）跳过，
// 非法键（段数不对或子命名空间不是 session）跳过。
func (t *Tracker) GetAll(ctx context.Context) []*model.ActivityRecord {
	keys, err := t.backend.Keys(ctx, model.SessionKeyPattern())
	if err != nil {
		t.log.CacheOpLog("keys", model.SessionKeyPattern(), err)
		t.metrics.RecordSwallowedFailure("get_all")
		return nil
	}
	if len(keys) == 0 {
		t.metrics.SetActiveSessions(0)
		return nil
	}

	values, err := t.backend.MGet(ctx, keys)
	if err != nil {
		t.log.CacheOpLog("mget", model.SessionKeyPattern(), err)
		t.metrics.RecordSwallowedFailure("get_all")
		return nil
	}

	var records []*model.ActivityRecord
	for i, key := range keys {
		if values[i] == nil {
			continue // 枚举后、读取前过期
		}

		id, err := model.ParseSessionKey(key)
		if err != nil {
			t.log.Debug("Skipping malformed key", "key", key)
			continue
		}

		count, _ := strconv.Atoi(*values[i])
		remaining := t.remainingTTL(ctx, key)

		botValue, _, err := t.backend.Get(ctx, id.BotKey())
		if err != nil {
			t.log.CacheOpLog("get", id.BotKey(), err)
			t.metrics.RecordSwallowedFailure("get_all")
			botValue = ""
		}

		records = append(records, model.NewRecordFromCache(id, count, remaining, t.window, botValue))
	}

	t.metrics.SetActiveSessions(len(records))
	return records
}

// Query 按原始身份字段查询活跃记录
func (t *Tracker) Query(ctx context.Context, adapter, sceneType, sceneID string) *model.ActivityRecord {
	return t.Get(ctx, model.SessionIdentity{
		Adapter:   adapter,
		SceneType: sceneType,
		SceneID:   sceneID,
	})
}

// Set 底层写入透传，仅供持久化桥接在 hydrate 时按计算好的 TTL 播种
//
// ttl <= 0 表示永不过期。与公开读写不同，这里把错误交还给调用方，
// 桥接按行做尽力而为处理。
func (t *Tracker) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return t.backend.Set(ctx, key, value, ttl)
}

// ============================================================================
// 对上 API（事件钩子与查询面使用）
// ============================================================================

// RecordActivity 记录一次用户活跃事件
func (t *Tracker) RecordActivity(ctx context.Context, id model.SessionIdentity) int {
	return t.Add(ctx, id, false)
}

// RecordBotActivity 记录一次机器人活跃事件
func (t *Tracker) RecordBotActivity(ctx context.Context, id model.SessionIdentity) int {
	return t.Add(ctx, id, true)
}

// QueryActivity 查询会话活跃记录，不活跃返回 nil
func (t *Tracker) QueryActivity(ctx context.Context, adapter, sceneType, sceneID string) *model.ActivityRecord {
	return t.Query(ctx, adapter, sceneType, sceneID)
}

// ListActiveSessions 列出全部活跃会话
func (t *Tracker) ListActiveSessions(ctx context.Context) []*model.ActivityRecord {
	return t.GetAll(ctx)
}
