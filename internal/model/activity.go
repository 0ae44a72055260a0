// Package model 定义核心数据模型
//
// activity.go 包含会话活跃相关的数据模型定义：
//   - SessionIdentity：会话身份（adapter + scene_type + scene_id 三元组）
//   - ActivityRecord：会话活跃记录
//
// 设计理念：
//   - 最后用户活跃时间不单独存储，由剩余 TTL 反推，避免每次活跃事件双写
//   - 机器人活跃时间存在独立的无过期 key 中（epoch 秒）
//   - 两个子 key 共享同一身份后缀，枚举时可直接字符串替换定位
package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// KeyPrefix 缓存键命名空间前缀
const KeyPrefix = "activity_tracker:"

const (
	subKeySession = "session"
	subKeyBot     = "bot"
)

// ============================================================================
// SessionIdentity - 会话身份
// ============================================================================

// SessionIdentity 唯一标识一个会话上下文，创建后不可变
type SessionIdentity struct {
	Adapter   string `json:"adapter" db:"adapter"`
	SceneType string `json:"scene_type" db:"scene_type"`
	SceneID   string `json:"scene_id" db:"scene_id"`
}

// SessionKey 会话计数键（带滑动 TTL）
func (id SessionIdentity) SessionKey() string {
	return fmt.Sprintf("%s%s:%s:%s:%s", KeyPrefix, subKeySession, id.Adapter, id.SceneType, id.SceneID)
}

// BotKey 机器人活跃键（无 TTL，需显式删除）
func (id SessionIdentity) BotKey() string {
	return fmt.Sprintf("%s%s:%s:%s:%s", KeyPrefix, subKeyBot, id.Adapter, id.SceneType, id.SceneID)
}

// String 返回 adapter:scene_type:scene_id 形式
func (id SessionIdentity) String() string {
	return id.Adapter + ":" + id.SceneType + ":" + id.SceneID
}

// SessionKeyPattern 会话键枚举模式
func SessionKeyPattern() string {
	return KeyPrefix + subKeySession + ":*"
}

// ParseSessionKey 解析会话键，返回其中的会话身份
//
// 键格式必须为 <prefix>session:<adapter>:<scene_type>:<scene_id>。
// 段数不足或子命名空间不是 session 的键视为非法。
func ParseSessionKey(key string) (SessionIdentity, error) {
	if !strings.HasPrefix(key, KeyPrefix) {
		return SessionIdentity{}, fmt.Errorf("key %q outside namespace %q", key, KeyPrefix)
	}
	parts := strings.SplitN(key[len(KeyPrefix):], ":", 4)
	if len(parts) != 4 || parts[0] != subKeySession {
		return SessionIdentity{}, fmt.Errorf("malformed session key: %q", key)
	}
	return SessionIdentity{Adapter: parts[1], SceneType: parts[2], SceneID: parts[3]}, nil
}

// ============================================================================
// ActivityRecord - 会话活跃记录
// ============================================================================

// ActivityRecord 一个会话的活跃快照
//
// LastUserActivity 为派生值：now - (窗口 - 剩余TTL)。
// 剩余 TTL 不可读时为 nil（未知，绝不伪造）。
type ActivityRecord struct {
	SessionIdentity

	// Count 累计用户活跃事件数（TTL 续期不重置）
	Count int `json:"count" db:"count"`

	// LastUserActivity 最后用户活跃时间（由 TTL 反推，nil = 未知）
	LastUserActivity *time.Time `json:"last_user_activity,omitempty" db:"last_session_activity"`

	// LastBotActivity 机器人最后活跃时间（nil = 从未活跃）
	LastBotActivity *time.Time `json:"last_bot_activity,omitempty" db:"last_bot_activity"`
}

// NewRecordFromCache 由缓存读取结果构建活跃记录
//
// remaining 是会话键的剩余 TTL，window 是配置的活跃窗口。
// remaining <= 0 表示无有限 TTL 信号，最后活跃时间置为未知。
func NewRecordFromCache(id SessionIdentity, count int, remaining, window time.Duration, botEpoch string) *ActivityRecord {
	rec := &ActivityRecord{
		SessionIdentity: id,
		Count:           count,
		LastBotActivity: ParseBotEpoch(botEpoch),
	}
	if remaining > 0 {
		elapsed := window - remaining
		t := time.Now().Add(-elapsed).Truncate(time.Second)
		rec.LastUserActivity = &t
	}
	return rec
}

// ParseBotEpoch 解析机器人活跃键中的 epoch 秒值
//
// 空值或解析失败返回 nil（按未知处理，不作为错误）。
func ParseBotEpoch(value string) *time.Time {
	if value == "" {
		return nil
	}
	sec, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil || sec <= 0 {
		return nil
	}
	t := time.Unix(sec, 0)
	return &t
}

// FormatBotEpoch 将时间格式化为机器人活跃键存储值（epoch 秒）
func FormatBotEpoch(t time.Time) string {
	return strconv.FormatInt(t.Unix(), 10)
}
