// 持久化桥接：启动时从数据库播种缓存，停机时把缓存快照写回。
// 两个边界之外缓存与数据库完全解耦——不存在增量写穿，
// 以每次活跃事件省掉一次数据库写为代价，接受两次 flush 之间的有界丢失。
package tracker

import (
	"context"
	"strconv"
	"time"

	"activity-tracker/internal/metrics"
	"activity-tracker/internal/model"
	"activity-tracker/internal/storage"
	"activity-tracker/pkg/logging"
)

// minSeedTTL hydrate 播种的最小 TTL，防止算术噪声让键立即过期
const minSeedTTL = 60 * time.Second

// Syncer 缓存与持久化存储之间的桥接
type Syncer struct {
	tracker *Tracker
	store   storage.SessionStore
	log     *logging.Logger
	metrics *metrics.Metrics
}

// NewSyncer 创建桥接实例
func NewSyncer(t *Tracker, store storage.SessionStore, log *logging.Logger, m *metrics.Metrics) *Syncer {
	if log == nil {
		log = logging.Default("sync")
	}
	return &Syncer{tracker: t, store: store, log: log, metrics: m}
}

// Hydrate 启动时把数据库行播种进缓存
//
// 最后活跃时间早于活跃窗口的行直接跳过，不把陈旧会话带回缓存。
// 其余行按 max(窗口 - 已流逝, 60s) 播种会话键；存在机器人活跃时间
// 的行另播种无 TTL 的机器人键。单行失败只记录日志，不中断批次；
// 整体失败也不应中断进程启动，由调用方决定降级。
func (s *Syncer) Hydrate(ctx context.Context) error {
	start := time.Now()

	records, err := s.store.ListSessions(ctx)
	if err != nil {
		s.log.WithError(err).Error("Hydrate failed to list sessions")
		return err
	}

	window := s.tracker.Window()
	var seeded, skipped, failed int

	for _, rec := range records {
		if rec.LastUserActivity != nil && time.Since(*rec.LastUserActivity) > window {
			skipped++
			s.metrics.RecordSyncRow("hydrate", "skipped")
			continue
		}

		// 最后活跃时间未知的行按最小 TTL 播种：计数保住，
		// 但没有信号支持更长的存活期
		remaining := minSeedTTL
		if rec.LastUserActivity != nil {
			elapsed := time.Since(*rec.LastUserActivity)
			if r := window - elapsed; r > minSeedTTL {
				remaining = r
			}
		}

		if err := s.tracker.Set(ctx, rec.SessionKey(), strconv.Itoa(rec.Count), remaining); err != nil {
			failed++
			s.metrics.RecordSyncRow("hydrate", "failed")
			s.log.WithSession(rec.Adapter, rec.SceneType, rec.SceneID).
				WithError(err).Warn("Hydrate failed to seed session key")
			continue
		}

		if rec.LastBotActivity != nil {
			if err := s.tracker.Set(ctx, rec.BotKey(), model.FormatBotEpoch(*rec.LastBotActivity), 0); err != nil {
				s.log.WithSession(rec.Adapter, rec.SceneType, rec.SceneID).
					WithError(err).Warn("Hydrate failed to seed bot key")
			}
		}

		seeded++
		s.metrics.RecordSyncRow("hydrate", "ok")
	}

	s.metrics.RecordSyncDuration("hydrate", time.Since(start))
	s.log.SyncBatchLog("hydrate", len(records), skipped, failed, time.Since(start))
	return nil
}

// Flush 停机时把当前缓存快照写回数据库
//
// 快照内每一行在单个事务里插入或更新；事务失败整体回滚，
// 表里不会留下半写的行。
func (s *Syncer) Flush(ctx context.Context) error {
	start := time.Now()

	records := s.tracker.GetAll(ctx)
	if len(records) == 0 {
		s.log.Info("No cached sessions to flush")
		return nil
	}

	if err := s.store.UpsertSessions(ctx, records); err != nil {
		for range records {
			s.metrics.RecordSyncRow("flush", "failed")
		}
		s.log.WithError(err).Error("Flush failed to upsert sessions")
		return err
	}

	for range records {
		s.metrics.RecordSyncRow("flush", "ok")
	}
	s.metrics.RecordSyncDuration("flush", time.Since(start))
	s.log.SyncBatchLog("flush", len(records), 0, 0, time.Since(start))
	return nil
}
