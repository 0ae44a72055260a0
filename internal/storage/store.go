// Package storage 提供会话活跃数据的持久化镜像
//
// activity_sessions 表是缓存的时点快照，只在启动（hydrate）和
// 停机（flush）两个边界被读写，请求处理路径从不触碰它。
// 两个驱动：PostgreSQL（生产）与 SQLite（开发、测试、轻量部署）。
package storage

import (
	"context"

	"activity-tracker/internal/model"
)

// SessionStore 会话快照存储接口
type SessionStore interface {
	// ListSessions 读取全部会话行
	ListSessions(ctx context.Context) ([]*model.ActivityRecord, error)

	// UpsertSessions 在单个事务内按会话身份逐行插入或更新。
	// 事务要么整体提交要么整体回滚，不存在半写的行。
	UpsertSessions(ctx context.Context, records []*model.ActivityRecord) error

	// Close 关闭底层连接
	Close() error
}
